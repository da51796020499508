package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maruel/trackshow/internal/imageref"
)

func newImageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Store and read image values",
	}

	var strict bool
	put := &cobra.Command{
		Use:   "put <file>",
		Short: "Store an image and print the value to save in a record",
		Long: `Store an image and print the value to save in a record.

The image goes to the asset database and the value is an "idbimg:" reference.
When the database cannot be used the image is returned inline as a data URL,
unless --strict is set, in which case the command fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !strict {
				v, err := storeImageFile(cmd, a, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{"value": v})
			}
			data, err := os.ReadFile(args[0]) //nolint:gosec // G304: user supplied path
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			v, err := a.lib.Images.Put(cmd.Context(), imageref.File{Name: filepath.Base(args[0]), Data: data})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"value": v})
		},
	}
	put.Flags().BoolVar(&strict, "strict", false, "Fail instead of falling back to an inline image")

	var out string
	get := &cobra.Command{
		Use:   "get <value>",
		Short: "Write the image behind a value to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inline, ok := a.lib.Images.Inline(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("image %q: %w", args[0], errNotFound)
			}
			mimeType, data, err := imageref.DecodeInline(inline)
			if err != nil {
				return err
			}
			if out == "" {
				return printJSON(cmd, map[string]any{"mimeType": mimeType, "size": len(data)})
			}
			if err := os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec // G306: user output
				return fmt.Errorf("failed to write image: %w", err)
			}
			return printJSON(cmd, map[string]any{"mimeType": mimeType, "size": len(data), "file": out})
		},
	}
	get.Flags().StringVarP(&out, "output", "o", "", "Output file")

	cmd.AddCommand(put, get)
	return cmd
}

func newAssetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Inspect the asset database",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List asset ids and whether a record uses them",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ids, err := a.lib.Assets.IDs(cmd.Context())
				if err != nil {
					return err
				}
				used, err := a.lib.UsedAssets()
				if err != nil {
					return err
				}
				type entry struct {
					ID   string `json:"id"`
					Used bool   `json:"used"`
				}
				out := make([]entry, 0, len(ids))
				for _, id := range ids {
					out = append(out, entry{ID: id, Used: used[id]})
				}
				return printJSON(cmd, out)
			},
		},
		&cobra.Command{
			Use:   "gc",
			Short: "Delete assets no record references",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				n, err := a.lib.GCAssets(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]int{"removed": n})
			},
		},
	)
	return cmd
}
