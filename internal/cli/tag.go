package cli

import (
	"github.com/spf13/cobra"

	"github.com/maruel/trackshow/internal/records"
)

func newTagCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage the tag registry",
	}
	printTags := func(cmd *cobra.Command) error {
		tags, err := a.lib.Records.Tags()
		if err != nil {
			return err
		}
		return printJSON(cmd, tags)
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List known tags",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printTags(cmd)
			},
		},
		&cobra.Command{
			Use:   "add <tag>...",
			Short: "Register tags",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.lib.Records.AddTags(records.SplitList(args)...); err != nil {
					return err
				}
				return printTags(cmd)
			},
		},
		&cobra.Command{
			Use:   "remove <tag>",
			Short: "Unregister a tag; shows keep it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.lib.Records.RemoveTag(args[0]); err != nil {
					return err
				}
				return printTags(cmd)
			},
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Unregister tags no show uses",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				removed, err := a.lib.Records.PruneTags()
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string][]string{"removed": removed})
			},
		},
	)
	return cmd
}

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change application settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.lib.Records.Settings()
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		},
	}
	var reminders bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Change settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.lib.Records.Settings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("reminders") {
				s.EnableReminders = reminders
			}
			if err := a.lib.Records.SaveSettings(s); err != nil {
				return err
			}
			return printJSON(cmd, s)
		},
	}
	set.Flags().BoolVar(&reminders, "reminders", false, "Enable reminders")
	cmd.AddCommand(set)
	return cmd
}
