package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maruel/trackshow/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and restore earlier versions of the records",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, args); err != nil {
				return err
			}
			if a.lib.History == nil {
				return errNoHistory
			}
			return nil
		},
	}

	var n int
	log := &cobra.Command{
		Use:   "log [key]",
		Short: "List commits, optionally only those touching key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			commits, err := a.lib.History.Log(cmd.Context(), key, n)
			if err != nil {
				return err
			}
			if commits == nil {
				commits = []*history.Commit{}
			}
			return printJSON(cmd, commits)
		},
	}
	log.Flags().IntVarP(&n, "count", "n", 20, "Maximum number of commits")

	cmd.AddCommand(
		log,
		&cobra.Command{
			Use:   "show <hash> <key>",
			Short: "Print the value of key at a commit",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := a.lib.History.FileAt(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
				return err
			},
		},
		&cobra.Command{
			Use:   "restore <hash> <key>",
			Short: "Write back the value key had at a commit",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.lib.Restore(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{"restored": args[1], "from": args[0]})
			},
		},
	)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the key of every record file changed, until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			err := a.lib.Records.KV().Watch(ctx, func(key string) {
				_ = printJSON(cmd, map[string]string{"changed": key})
			})
			if err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
}
