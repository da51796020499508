// Package backup serializes the whole record store to one portable JSON
// document and restores it.
//
// Asset store contents are not part of the document by default: images held
// by reference are exported as their unresolved "idbimg:" string. Set
// [ExportOptions.EmbedAssets] to inline them as data URLs instead.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/maruel/trackshow/internal/imageref"
	"github.com/maruel/trackshow/internal/models"
	"github.com/maruel/trackshow/internal/records"
)

// ErrInvalidDocument is returned when an import document cannot be parsed.
var ErrInvalidDocument = errors.New("invalid backup document")

// Document is the backup file layout.
type Document struct {
	Shows      []*models.Show     `json:"shows"`
	Notes      []*models.Note     `json:"notes"`
	Tags       []string           `json:"tags"`
	Settings   models.AppSettings `json:"settings"`
	ExportedAt string             `json:"exportedAt" jsonschema:"format=date-time"`
}

// partialDocument distinguishes absent keys from empty ones on import.
type partialDocument struct {
	Shows    *[]*models.Show     `json:"shows"`
	Notes    *[]*models.Note     `json:"notes"`
	Tags     *[]string           `json:"tags"`
	Settings *models.AppSettings `json:"settings"`
}

// Inliner converts image values to their data URL form.
type Inliner interface {
	Inline(ctx context.Context, s string) (string, bool)
}

// Storer moves an uploaded image into its preferred persisted form.
type Storer interface {
	Store(ctx context.Context, f imageref.File) string
}

// ExportOptions controls Export.
type ExportOptions struct {
	// EmbedAssets replaces every asset reference with a data URL. References
	// that cannot be resolved are kept as-is.
	EmbedAssets bool
	// Assets resolves references when EmbedAssets is set.
	Assets Inliner
	// Now overrides the export timestamp.
	Now time.Time
}

// ImportOptions controls Import.
type ImportOptions struct {
	// StoreInlineImages moves data URL images into the asset store through
	// Assets before the records are written.
	StoreInlineImages bool
	Assets            Storer
}

// FileName returns the conventional download name for a backup taken at t.
func FileName(t time.Time) string {
	return "trackshow-backup-" + t.UTC().Format(time.DateOnly) + ".json"
}

// Build assembles the document from the current store state.
func Build(ctx context.Context, s *records.Store, opts ExportOptions) (*Document, error) {
	shows, err := s.Shows.List()
	if err != nil {
		return nil, err
	}
	notes, err := s.Notes.List()
	if err != nil {
		return nil, err
	}
	tags, err := s.Tags()
	if err != nil {
		return nil, err
	}
	settings, err := s.Settings()
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now.IsZero() {
		now = s.Now()
	}
	doc := &Document{
		Shows:      shows,
		Notes:      notes,
		Tags:       tags,
		Settings:   settings,
		ExportedAt: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if opts.EmbedAssets && opts.Assets != nil {
		embed(ctx, doc, opts.Assets)
	}
	return doc, nil
}

// Export writes the pretty-printed document to w.
func Export(ctx context.Context, w io.Writer, s *records.Store, opts ExportOptions) error {
	doc, err := Build(ctx, s, opts)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Import parses the document read from r and, for each of shows, notes, tags
// and settings present in it, replaces that collection. Absent keys are left
// untouched. Nothing is written unless the whole document parses.
//
// Each replacement is an independent write; an error part way leaves the
// earlier collections replaced.
func Import(ctx context.Context, r io.Reader, s *records.Store, opts ImportOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	var doc partialDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if doc.Shows != nil && slices.Contains(*doc.Shows, nil) {
		return fmt.Errorf("%w: null entry in shows", ErrInvalidDocument)
	}
	if doc.Notes != nil && slices.Contains(*doc.Notes, nil) {
		return fmt.Errorf("%w: null entry in notes", ErrInvalidDocument)
	}
	if opts.StoreInlineImages && opts.Assets != nil {
		storeInline(ctx, &doc, opts.Assets)
	}
	if doc.Shows != nil {
		if err := s.Shows.ReplaceAll(*doc.Shows); err != nil {
			return err
		}
	}
	if doc.Notes != nil {
		if err := s.Notes.ReplaceAll(*doc.Notes); err != nil {
			return err
		}
	}
	if doc.Tags != nil {
		if err := s.SaveTags(*doc.Tags); err != nil {
			return err
		}
	}
	if doc.Settings != nil {
		if err := s.SaveSettings(*doc.Settings); err != nil {
			return err
		}
	}
	return nil
}

func embed(ctx context.Context, doc *Document, a Inliner) {
	conv := func(s string) string {
		out, ok := a.Inline(ctx, s)
		if !ok {
			slog.WarnContext(ctx, "Cannot embed missing asset", "ref", s)
		}
		return out
	}
	for _, sh := range doc.Shows {
		sh.CoverImage = conv(sh.CoverImage)
	}
	for _, n := range doc.Notes {
		for i, img := range n.Images {
			n.Images[i] = conv(img)
		}
	}
}

func storeInline(ctx context.Context, doc *partialDocument, a Storer) {
	conv := func(s string) string {
		if imageref.Parse(s).Kind != imageref.KindInline {
			return s
		}
		mt, data, err := imageref.DecodeInline(s)
		if err != nil {
			return s
		}
		return a.Store(ctx, imageref.File{MIMEType: mt, Data: data})
	}
	if doc.Shows != nil {
		for _, sh := range *doc.Shows {
			if sh != nil {
				sh.CoverImage = conv(sh.CoverImage)
			}
		}
	}
	if doc.Notes != nil {
		for _, n := range *doc.Notes {
			if n == nil {
				continue
			}
			for i, img := range n.Images {
				n.Images[i] = conv(img)
			}
		}
	}
}
