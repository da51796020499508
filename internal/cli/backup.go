package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/maruel/trackshow/internal/backup"
)

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import the whole library",
	}

	var out string
	var embed bool
	export := &cobra.Command{
		Use:   "export",
		Short: "Write a backup document",
		Long: `Write a backup document holding every show, note, tag and setting.

Images stored in the asset database are exported as references unless --embed
is set. Use "-o -" to write to stdout; without -o the file is named after the
current date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var buf bytes.Buffer
			if err := a.lib.Export(cmd.Context(), &buf, embed); err != nil {
				return err
			}
			buf.WriteByte('\n')
			if out == "-" {
				_, err := io.Copy(cmd.OutOrStdout(), &buf)
				return err
			}
			name := out
			if name == "" {
				name = backup.FileName(a.lib.Records.Now())
			}
			if err := os.WriteFile(name, buf.Bytes(), 0o600); err != nil {
				return fmt.Errorf("failed to write backup: %w", err)
			}
			return printJSON(cmd, map[string]string{"file": name})
		},
	}
	export.Flags().StringVarP(&out, "output", "o", "", "Output file, - for stdout")
	export.Flags().BoolVar(&embed, "embed", false, "Inline referenced images as data URLs")

	var storeImages bool
	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore a backup document",
		Long: `Restore a backup document.

Each of shows, notes, tags and settings present in the document replaces the
current collection; absent ones are kept. Nothing is written when the document
does not parse. Use - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open backup: %w", err)
				}
				defer func() { _ = f.Close() }()
				r = f
			}
			if err := a.lib.Import(cmd.Context(), r, storeImages); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"imported": args[0]})
		},
	}
	imp.Flags().BoolVar(&storeImages, "store-images", false, "Move inline images into the asset database")

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the backup document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := backup.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
			return err
		},
	}

	cmd.AddCommand(export, imp, schema)
	return cmd
}
