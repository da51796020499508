// Package library assembles the record store, the asset store, the image
// resolver and the optional history into the single object the user
// interface talks to.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/maruel/trackshow/internal/assets"
	"github.com/maruel/trackshow/internal/backup"
	"github.com/maruel/trackshow/internal/history"
	"github.com/maruel/trackshow/internal/imageref"
	"github.com/maruel/trackshow/internal/kv"
	"github.com/maruel/trackshow/internal/models"
	"github.com/maruel/trackshow/internal/records"
)

var (
	errNoHistory  = errors.New("history is disabled")
	errUnknownKey = errors.New("unknown record key")
)

// Options configures Open.
type Options struct {
	// DataDir holds the key files, the asset database and the history.
	DataDir string
	// AssetDB is the asset database name; empty means assets.DefaultName.
	AssetDB string
	// History records every write as a git commit in DataDir.
	History bool
}

// Library is the persistence layer handed to the user interface.
type Library struct {
	Records *records.Store
	Assets  *assets.Store
	Images  *imageref.Resolver
	// History is nil when disabled.
	History *history.Recorder
}

// Open wires the stores rooted at opts.DataDir. The asset database is not
// touched until the first image operation.
func Open(opts Options) (*Library, error) {
	kvs, err := kv.NewOS(opts.DataDir)
	if err != nil {
		return nil, err
	}
	l := &Library{
		Records: records.New(kvs),
		Assets:  assets.New(opts.DataDir, opts.AssetDB),
	}
	l.Images = imageref.NewResolver(l.Assets, nil)
	if opts.History {
		if l.History, err = history.Open(opts.DataDir); err != nil {
			return nil, err
		}
		kvs.AddObserver(l.History)
	}
	return l, nil
}

// AddShow creates a show from in, persists it and registers its tags.
func (l *Library) AddShow(in records.ShowInput) (*models.Show, error) {
	sh, err := l.Records.NewShow(in)
	if err != nil {
		return nil, err
	}
	if err := l.Records.Shows.Add(sh); err != nil {
		return nil, err
	}
	if len(sh.Tags) != 0 {
		if err := l.Records.AddTags(sh.Tags...); err != nil {
			return nil, err
		}
	}
	return sh, nil
}

// UpdateShow applies p to the show and registers any tags it sets.
func (l *Library) UpdateShow(id string, p records.Patch) (bool, error) {
	ok, err := l.Records.Shows.Update(id, p)
	if err != nil || !ok {
		return ok, err
	}
	if _, has := p["tags"]; has {
		sh, _, err := l.Records.Shows.Get(id)
		if err != nil {
			return true, err
		}
		if sh != nil && len(sh.Tags) != 0 {
			return true, l.Records.AddTags(sh.Tags...)
		}
	}
	return true, nil
}

// AddNote creates and persists a note for showID.
func (l *Library) AddNote(showID string, in records.NoteInput) (*models.Note, error) {
	n, err := l.Records.NewNote(showID, in)
	if err != nil {
		return nil, err
	}
	if err := l.Records.Notes.Add(n); err != nil {
		return nil, err
	}
	return n, nil
}

// StoreImage returns the image value to persist for f. It never fails; see
// [imageref.Resolver.Store].
func (l *Library) StoreImage(ctx context.Context, f imageref.File) string {
	return l.Images.Store(ctx, f)
}

// ResolveImage returns a renderable source for s; see
// [imageref.Resolver.Resolve].
func (l *Library) ResolveImage(ctx context.Context, s string) string {
	return l.Images.Resolve(ctx, s)
}

// Export writes a backup document. With embed, referenced images are inlined
// so the document is self-contained.
func (l *Library) Export(ctx context.Context, w io.Writer, embed bool) error {
	return backup.Export(ctx, w, l.Records, backup.ExportOptions{EmbedAssets: embed, Assets: l.Images})
}

// Import restores a backup document. With storeInline, inline images are
// moved into the asset store.
func (l *Library) Import(ctx context.Context, r io.Reader, storeInline bool) error {
	return backup.Import(ctx, r, l.Records, backup.ImportOptions{StoreInlineImages: storeInline, Assets: l.Images})
}

// UsedAssets returns the asset ids referenced by any show or note.
func (l *Library) UsedAssets() (map[string]bool, error) {
	shows, err := l.Records.Shows.List()
	if err != nil {
		return nil, err
	}
	notes, err := l.Records.Notes.List()
	if err != nil {
		return nil, err
	}
	used := map[string]bool{}
	add := func(images []string) {
		for _, s := range images {
			if v := imageref.Parse(s); v.Kind == imageref.KindReference {
				used[v.AssetID] = true
			}
		}
	}
	for _, sh := range shows {
		add(sh.Images())
	}
	for _, n := range notes {
		add(n.Images)
	}
	return used, nil
}

// GCAssets deletes assets no record references any more.
func (l *Library) GCAssets(ctx context.Context) (int, error) {
	used, err := l.UsedAssets()
	if err != nil {
		return 0, err
	}
	n, err := l.Assets.GC(ctx, used)
	if err != nil {
		return 0, err
	}
	if n != 0 {
		slog.InfoContext(ctx, "Removed orphaned assets", "count", n)
	}
	return n, nil
}

// Restore writes back the value key had at commit hash. The restore is
// itself recorded as a new commit.
func (l *Library) Restore(ctx context.Context, hash, key string) error {
	if l.History == nil {
		return errNoHistory
	}
	if !slices.Contains(records.Keys, key) {
		return fmt.Errorf("%w: %q", errUnknownKey, key)
	}
	data, err := l.History.FileAt(ctx, hash, key)
	if err != nil {
		return err
	}
	return l.Records.KV().Set(key, data)
}
