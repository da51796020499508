package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/maruel/trackshow/internal/imageref"
	"github.com/maruel/trackshow/internal/models"
	"github.com/maruel/trackshow/internal/records"
)

func newShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Manage tracked shows",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List shows",
		Long: `List shows.

--status watching sorts by manual order; --status finished sorts by
completion date, newest first. Without it, shows are listed as stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var shows []*models.Show
			var err error
			switch status {
			case "":
				shows, err = a.lib.Records.Shows.List()
			case string(models.StatusWatching):
				shows, err = a.lib.Records.Watching()
			case string(models.StatusFinished):
				shows, err = a.lib.Records.Finished()
			default:
				return fmt.Errorf("unknown status %q", status)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, shows)
		},
	}
	list.Flags().StringVar(&status, "status", "", "Only list watching or finished shows")

	var in records.ShowInput
	var tags []string
	var cover string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a show",
		Example: `  trackshow show add "Severance" --type 电视剧 --platform "Apple TV+" --total 9 --tags drama,thriller
  trackshow show add "One Piece" --season 1 --episode 1000 --cover poster.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			in.Tags = records.SplitList(tags)
			if cover != "" {
				v, err := storeImageFile(cmd, a, cover)
				if err != nil {
					return err
				}
				in.CoverImage = v
			}
			sh, err := a.lib.AddShow(in)
			if err != nil {
				return err
			}
			return printJSON(cmd, sh)
		},
	}
	af := add.Flags()
	af.StringVar(&in.Type, "type", "", "Category, defaults to "+models.DefaultType)
	af.StringVar(&in.Platform, "platform", "", "Platform, defaults to "+models.DefaultPlatform)
	af.IntVar(&in.CurrentSeason, "season", 1, "Current season")
	af.IntVar(&in.CurrentEpisode, "episode", 1, "Current episode")
	af.IntVar(&in.TotalEpisodes, "total", 0, "Total episodes, 0 when unknown")
	af.StringArrayVar(&tags, "tags", nil, "Tags, comma separated or repeated")
	af.StringVar(&cover, "cover", "", "Cover image file")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Print one show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, ok, err := a.lib.Records.Shows.Get(args[0])
			if err != nil {
				return err
			}
			return printFound(cmd, "show", args[0], sh, ok)
		},
	}

	update := &cobra.Command{
		Use:     "update <id> <json>",
		Short:   "Merge a JSON object into a show",
		Example: `  trackshow show update 0x1b3c '{"platform":"Netflix","tags":["anime"]}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p records.Patch
			if err := json.Unmarshal([]byte(args[1]), &p); err != nil {
				return fmt.Errorf("invalid patch: %w", err)
			}
			return updateShow(cmd, a, args[0], p)
		},
	}

	progress := &cobra.Command{
		Use:   "progress <id> <season> <episode>",
		Short: "Set the current position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			season, err := strconv.Atoi(args[1])
			if err != nil || season < 1 {
				return fmt.Errorf("invalid season %q", args[1])
			}
			episode, err := strconv.Atoi(args[2])
			if err != nil || episode < 1 {
				return fmt.Errorf("invalid episode %q", args[2])
			}
			ok, err := a.lib.Records.SetProgress(args[0], season, episode)
			if err != nil {
				return err
			}
			return printShow(cmd, a, args[0], ok)
		},
	}

	finish := &cobra.Command{
		Use:   "finish <id>",
		Short: "Mark a show finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.lib.Records.MarkFinished(args[0])
			if err != nil {
				return err
			}
			return printShow(cmd, a, args[0], ok)
		},
	}

	setCover := &cobra.Command{
		Use:   "cover <id> <file>",
		Short: "Replace the cover image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := storeImageFile(cmd, a, args[1])
			if err != nil {
				return err
			}
			return updateShow(cmd, a, args[0], records.Patch{"coverImage": v})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a show and its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.lib.Records.DeleteShow(args[0])
			if err != nil {
				return err
			}
			return printFound(cmd, "show", args[0], map[string]string{"deleted": args[0]}, ok)
		},
	}

	reorder := &cobra.Command{
		Use:   "reorder <id>...",
		Short: "Set the manual order of watching shows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.lib.Records.Reorder(args); err != nil {
				return err
			}
			shows, err := a.lib.Records.Watching()
			if err != nil {
				return err
			}
			return printJSON(cmd, shows)
		},
	}

	cmd.AddCommand(list, add, get, update, progress, finish, setCover, del, reorder)
	return cmd
}

func updateShow(cmd *cobra.Command, a *app, id string, p records.Patch) error {
	ok, err := a.lib.UpdateShow(id, p)
	if err != nil {
		return err
	}
	return printShow(cmd, a, id, ok)
}

func printShow(cmd *cobra.Command, a *app, id string, ok bool) error {
	if !ok {
		return printFound(cmd, "show", id, nil, false)
	}
	sh, ok, err := a.lib.Records.Shows.Get(id)
	if err != nil {
		return err
	}
	return printFound(cmd, "show", id, sh, ok)
}

// storeImageFile reads path and returns the image value to persist for it.
func storeImageFile(cmd *cobra.Command, a *app, path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user supplied path
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return a.lib.StoreImage(cmd.Context(), imageref.File{Name: filepath.Base(path), Data: data}), nil
}
