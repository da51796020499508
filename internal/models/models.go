// Package models defines the records persisted by the record store.
package models

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Status is the watching state of a show.
type Status string

const (
	// StatusWatching is a show in progress; it participates in manual ordering.
	StatusWatching Status = "watching"
	// StatusFinished is a completed show.
	StatusFinished Status = "finished"
)

// DefaultType and DefaultPlatform are the sentinel categories used when the
// caller leaves the field blank.
const (
	DefaultType     = "其他"
	DefaultPlatform = "其他"
)

// DefaultTypes and DefaultPlatforms are the suggested vocabularies.
var (
	DefaultTypes     = []string{"电视剧", "电影", "日番", "动漫", "综艺", "纪录片"}
	DefaultPlatforms = []string{"Netflix", "Disney+", "B站", "HBO Max", "Apple TV+", "爱奇艺", "优酷", "腾讯视频", "网盘", "其他"}
)

// Show is a series or film being tracked.
//
// The store does not validate any field; CurrentSeason and CurrentEpisode are
// expected to be >= 1 and TotalEpisodes == 0 means the length is unknown.
type Show struct {
	ID             string     `json:"id" jsonschema:"description=Unique show identifier"`
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	Platform       string     `json:"platform"`
	CurrentSeason  int        `json:"currentSeason"`
	CurrentEpisode int        `json:"currentEpisode"`
	TotalEpisodes  int        `json:"totalEpisodes" jsonschema:"description=Episode count; 0 means unknown"`
	TimeProgress   string     `json:"timeProgress,omitempty" jsonschema:"description=Optional position inside the episode such as 12:30"`
	Status         Status     `json:"status" jsonschema:"enum=watching,enum=finished"`
	Tags           []string   `json:"tags"`
	CoverImage     string     `json:"coverImage,omitempty" jsonschema:"description=Image value: data URL or idbimg: reference"`
	CreatedAt      time.Time  `json:"createdAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	SortOrder      int        `json:"sortOrder" jsonschema:"description=Manual ordering among watching shows"`
}

// GetID returns the show identifier.
func (s *Show) GetID() string {
	return s.ID
}

// Clone returns a deep copy.
func (s *Show) Clone() *Show {
	c := *s
	c.Tags = slices.Clone(s.Tags)
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Progress returns the watched ratio in percent, rounded to the nearest
// integer. ok is false when TotalEpisodes is 0 (unbounded).
func (s *Show) Progress() (percent int, ok bool) {
	if s.TotalEpisodes <= 0 {
		return 0, false
	}
	return int(math.Round(float64(s.CurrentEpisode) / float64(s.TotalEpisodes) * 100)), true
}

// ProgressLabel returns the compact "S{season}E{episode}" position.
func (s *Show) ProgressLabel() string {
	return fmt.Sprintf("S%dE%d", s.CurrentSeason, s.CurrentEpisode)
}

// Images returns the image values referenced by the show.
func (s *Show) Images() []string {
	if s.CoverImage == "" {
		return nil
	}
	return []string{s.CoverImage}
}

// Note is a free-form note attached to a show.
type Note struct {
	ID         string    `json:"id"`
	ShowID     string    `json:"showId"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Keywords   []string  `json:"keywords"`
	Highlights []string  `json:"highlights"`
	Images     []string  `json:"images" jsonschema:"description=Image values: data URLs or idbimg: references"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	// ProgressSnapshot is the show position when the note was created. It is
	// never recomputed.
	ProgressSnapshot string `json:"progressSnapshot"`
}

// GetID returns the note identifier.
func (n *Note) GetID() string {
	return n.ID
}

// Clone returns a deep copy.
func (n *Note) Clone() *Note {
	c := *n
	c.Keywords = slices.Clone(n.Keywords)
	c.Highlights = slices.Clone(n.Highlights)
	c.Images = slices.Clone(n.Images)
	return &c
}

// AppSettings holds the application feature toggles. There is exactly one.
type AppSettings struct {
	EnableReminders bool `json:"enableReminders"`
}

// DefaultSettings returns the settings used before any are saved.
func DefaultSettings() AppSettings {
	return AppSettings{EnableReminders: false}
}
