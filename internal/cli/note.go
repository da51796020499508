package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maruel/trackshow/internal/models"
	"github.com/maruel/trackshow/internal/records"
)

func newNoteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Manage notes attached to shows",
	}

	var showID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List notes, newest first when filtered by show",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var notes []*models.Note
			var err error
			if showID != "" {
				notes, err = a.lib.Records.NotesByShow(showID)
			} else {
				notes, err = a.lib.Records.Notes.List()
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, notes)
		},
	}
	list.Flags().StringVar(&showID, "show", "", "Only list notes of this show")

	var in records.NoteInput
	var keywords, highlights, images []string
	add := &cobra.Command{
		Use:     "add <show-id>",
		Short:   "Add a note to a show",
		Example: `  trackshow note add 0x1b3c --title "Finale" --content "..." --keywords twist,ending --image still.png`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Keywords = records.SplitList(keywords)
			in.Highlights = highlights
			in.Images = nil
			for _, p := range images {
				v, err := storeImageFile(cmd, a, p)
				if err != nil {
					return err
				}
				in.Images = append(in.Images, v)
			}
			n, err := a.lib.AddNote(args[0], in)
			if err != nil {
				return err
			}
			return printJSON(cmd, n)
		},
	}
	af := add.Flags()
	af.StringVar(&in.Title, "title", "", "Title")
	af.StringVar(&in.Content, "content", "", "Body text")
	af.StringArrayVar(&keywords, "keywords", nil, "Keywords, comma separated or repeated")
	af.StringArrayVar(&highlights, "highlight", nil, "Quoted line; repeat for more")
	af.StringArrayVar(&images, "image", nil, "Image file; repeat for more")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Print one note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, ok, err := a.lib.Records.Notes.Get(args[0])
			if err != nil {
				return err
			}
			return printFound(cmd, "note", args[0], n, ok)
		},
	}

	update := &cobra.Command{
		Use:   "update <id> <json>",
		Short: "Merge a JSON object into a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p records.Patch
			if err := json.Unmarshal([]byte(args[1]), &p); err != nil {
				return fmt.Errorf("invalid patch: %w", err)
			}
			ok, err := a.lib.Records.Notes.Update(args[0], p)
			if err != nil {
				return err
			}
			if !ok {
				return printFound(cmd, "note", args[0], nil, false)
			}
			n, ok, err := a.lib.Records.Notes.Get(args[0])
			if err != nil {
				return err
			}
			return printFound(cmd, "note", args[0], n, ok)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.lib.Records.Notes.Delete(args[0])
			if err != nil {
				return err
			}
			return printFound(cmd, "note", args[0], map[string]string{"deleted": args[0]}, ok)
		},
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete notes whose show no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.lib.Records.PruneOrphanNotes()
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int{"removed": n})
		},
	}

	cmd.AddCommand(list, add, get, update, del, prune)
	return cmd
}
