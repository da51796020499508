package records

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/trackshow/internal/kv"
	"github.com/maruel/trackshow/internal/models"
)

// Persisted keys.
const (
	KeyShows    = "trackshow_shows"
	KeyNotes    = "trackshow_notes"
	KeyTags     = "trackshow_tags"
	KeySettings = "trackshow_settings"
)

// Keys lists every key owned by the record store.
var Keys = []string{KeyShows, KeyNotes, KeyTags, KeySettings}

// NewID returns a fresh, time-sortable identifier.
func NewID() string {
	return ksid.NewID().String()
}

// Store is the primary record store.
type Store struct {
	Shows *Collection[*models.Show]
	Notes *Collection[*models.Note]

	kv  *kv.Store
	now func() time.Time
}

// New returns a Store persisting into kvs.
func New(kvs *kv.Store) *Store {
	s := &Store{
		Shows: NewCollection[*models.Show](kvs, KeyShows),
		Notes: NewCollection[*models.Note](kvs, KeyNotes),
		kv:    kvs,
		now:   func() time.Time { return time.Now().UTC() },
	}
	s.Notes.touch = func(n *models.Note) { n.UpdatedAt = s.now() }
	return s
}

// SetClock replaces the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Now returns the current time according to the store clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// KV returns the underlying key namespace.
func (s *Store) KV() *kv.Store {
	return s.kv
}

// Shows

// DeleteShow removes the show and every note attached to it.
func (s *Store) DeleteShow(id string) (bool, error) {
	found, err := s.Shows.Delete(id)
	if err != nil {
		return false, err
	}
	if _, err := s.Notes.DeleteFunc(func(n *models.Note) bool { return n.ShowID == id }); err != nil {
		return found, fmt.Errorf("show %s deleted but its notes were not: %w", id, err)
	}
	return found, nil
}

// Watching returns the shows being watched, in manual order.
func (s *Store) Watching() ([]*models.Show, error) {
	shows, err := s.Shows.List()
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(shows, func(sh *models.Show) bool { return sh.Status != models.StatusWatching })
	slices.SortStableFunc(out, func(a, b *models.Show) int { return cmp.Compare(a.SortOrder, b.SortOrder) })
	return out, nil
}

// Finished returns the finished shows, most recently finished first. Shows
// without a finish time sort by creation time.
func (s *Store) Finished() ([]*models.Show, error) {
	shows, err := s.Shows.List()
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(shows, func(sh *models.Show) bool { return sh.Status != models.StatusFinished })
	when := func(sh *models.Show) time.Time {
		if sh.FinishedAt != nil {
			return *sh.FinishedAt
		}
		return sh.CreatedAt
	}
	slices.SortStableFunc(out, func(a, b *models.Show) int { return when(b).Compare(when(a)) })
	return out, nil
}

// NextSortOrder returns the sort order for a show appended to the list.
func (s *Store) NextSortOrder() (int, error) {
	shows, err := s.Shows.List()
	if err != nil {
		return 0, err
	}
	return len(shows), nil
}

// Reorder assigns SortOrder 0..n-1 to the shows in ids, in that order, with a
// single write. Unknown ids are ignored and other shows keep their order.
func (s *Store) Reorder(ids []string) error {
	shows, err := s.Shows.List()
	if err != nil {
		return err
	}
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	for _, sh := range shows {
		if i, ok := pos[sh.ID]; ok {
			sh.SortOrder = i
		}
	}
	return s.Shows.ReplaceAll(shows)
}

// SetProgress moves the show to season and episode.
func (s *Store) SetProgress(id string, season, episode int) (bool, error) {
	return s.Shows.Update(id, Patch{"currentSeason": season, "currentEpisode": episode})
}

// MarkFinished sets the status to finished and records the finish time in
// the same write.
func (s *Store) MarkFinished(id string) (bool, error) {
	return s.Shows.Update(id, Patch{"status": models.StatusFinished, "finishedAt": s.now()})
}

// Notes

// NotesByShow returns the notes of a show, newest first.
func (s *Store) NotesByShow(showID string) ([]*models.Note, error) {
	notes, err := s.Notes.List()
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(notes, func(n *models.Note) bool { return n.ShowID != showID })
	slices.SortStableFunc(out, func(a, b *models.Note) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// PruneOrphanNotes removes notes whose show no longer exists.
func (s *Store) PruneOrphanNotes() (int, error) {
	shows, err := s.Shows.List()
	if err != nil {
		return 0, err
	}
	live := make(map[string]bool, len(shows))
	for _, sh := range shows {
		live[sh.ID] = true
	}
	return s.Notes.DeleteFunc(func(n *models.Note) bool { return !live[n.ShowID] })
}

// Tags

// Tags returns the tag registry.
func (s *Store) Tags() ([]string, error) {
	tags, err := load(s.kv, KeyTags, []string{})
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// SaveTags replaces the registry with tags, dropping duplicates and keeping
// the first occurrence of each.
func (s *Store) SaveTags(tags []string) error {
	return save(s.kv, KeyTags, dedup(tags))
}

// AddTags merges tags into the registry.
func (s *Store) AddTags(tags ...string) error {
	cur, err := s.Tags()
	if err != nil {
		return err
	}
	return s.SaveTags(append(cur, tags...))
}

// RemoveTag removes tag from the registry. Shows keep their own copy.
func (s *Store) RemoveTag(tag string) error {
	cur, err := s.Tags()
	if err != nil {
		return err
	}
	return s.SaveTags(slices.DeleteFunc(cur, func(t string) bool { return t == tag }))
}

// PruneTags removes tags no show uses and returns the removed ones.
func (s *Store) PruneTags() ([]string, error) {
	shows, err := s.Shows.List()
	if err != nil {
		return nil, err
	}
	used := map[string]bool{}
	for _, sh := range shows {
		for _, t := range sh.Tags {
			used[t] = true
		}
	}
	cur, err := s.Tags()
	if err != nil {
		return nil, err
	}
	var kept, removed []string
	for _, t := range cur {
		if used[t] {
			kept = append(kept, t)
		} else {
			removed = append(removed, t)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	return removed, s.SaveTags(kept)
}

// Settings

// Settings returns the persisted settings or [models.DefaultSettings].
func (s *Store) Settings() (models.AppSettings, error) {
	return load(s.kv, KeySettings, models.DefaultSettings())
}

// SaveSettings replaces the settings.
func (s *Store) SaveSettings(v models.AppSettings) error {
	return save(s.kv, KeySettings, v)
}

func load[V any](store *kv.Store, key string, def V) (V, error) {
	data, ok, err := store.Get(key)
	if err != nil || !ok {
		return def, err
	}
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return def, &DecodeError{Key: key, Err: err}
	}
	return v, nil
}

func save[V any](store *kv.Store, key string, v V) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return store.Set(key, data)
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
