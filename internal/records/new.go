// Constructors applying the defaults of the add dialogs.

package records

import (
	"strings"

	"github.com/maruel/trackshow/internal/models"
)

// ShowInput holds the user-supplied fields of a new show.
type ShowInput struct {
	Name           string
	Type           string
	Platform       string
	CurrentSeason  int
	CurrentEpisode int
	TotalEpisodes  int
	Tags           []string
	CoverImage     string
}

// NewShow builds a watching show with a fresh id, placed after the existing
// shows. Blank type and platform fall back to the sentinel category, and
// non-positive season or episode fall back to 1.
func (s *Store) NewShow(in ShowInput) (*models.Show, error) {
	order, err := s.NextSortOrder()
	if err != nil {
		return nil, err
	}
	sh := &models.Show{
		ID:             NewID(),
		Name:           strings.TrimSpace(in.Name),
		Type:           cmpOr(in.Type, models.DefaultType),
		Platform:       cmpOr(in.Platform, models.DefaultPlatform),
		CurrentSeason:  max(in.CurrentSeason, 1),
		CurrentEpisode: max(in.CurrentEpisode, 1),
		TotalEpisodes:  max(in.TotalEpisodes, 0),
		Status:         models.StatusWatching,
		Tags:           dedup(in.Tags),
		CoverImage:     in.CoverImage,
		CreatedAt:      s.now(),
		SortOrder:      order,
	}
	return sh, nil
}

// NoteInput holds the user-supplied fields of a new note.
type NoteInput struct {
	Title      string
	Content    string
	Keywords   []string
	Highlights []string
	Images     []string
}

// NewNote builds a note for showID, capturing the show's current position as
// the progress snapshot.
func (s *Store) NewNote(showID string, in NoteInput) (*models.Note, error) {
	sh, ok, err := s.Shows.Get(showID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoShow
	}
	now := s.now()
	return &models.Note{
		ID:               NewID(),
		ShowID:           showID,
		Title:            in.Title,
		Content:          in.Content,
		Keywords:         SplitList(in.Keywords),
		Highlights:       SplitList(in.Highlights),
		Images:           append([]string{}, in.Images...),
		CreatedAt:        now,
		UpdatedAt:        now,
		ProgressSnapshot: sh.ProgressLabel(),
	}, nil
}

// SplitList trims each entry, splits entries on commas and drops empty
// results, keeping order.
func SplitList(in []string) []string {
	out := []string{}
	for _, v := range in {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func cmpOr(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
