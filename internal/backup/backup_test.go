package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/maruel/trackshow/internal/imageref"
	"github.com/maruel/trackshow/internal/kv"
	"github.com/maruel/trackshow/internal/models"
	"github.com/maruel/trackshow/internal/records"
	"github.com/spf13/afero"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *records.Store {
	t.Helper()
	kvs, err := kv.New(afero.NewMemMapFs(), "/data")
	if err != nil {
		t.Fatal(err)
	}
	s := records.New(kvs)
	n := 0
	s.SetClock(func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	})
	return s
}

// populate fills s with one show, two notes, tags and settings.
func populate(t *testing.T, s *records.Store) {
	t.Helper()
	sh, err := s.NewShow(records.ShowInput{Name: "Severance", TotalEpisodes: 9, Tags: []string{"drama"}, CoverImage: "idbimg:cover"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Shows.Add(sh); err != nil {
		t.Fatal(err)
	}
	for _, title := range []string{"one", "two"} {
		n, err := s.NewNote(sh.ID, records.NoteInput{Title: title, Images: []string{"idbimg:img-" + title, "data:image/png;base64,AAAA"}})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Notes.Add(n); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AddTags("drama", "thriller"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSettings(models.AppSettings{EnableReminders: true}); err != nil {
		t.Fatal(err)
	}
}

type snapshot struct {
	shows    []*models.Show
	notes    []*models.Note
	tags     []string
	settings models.AppSettings
}

func take(t *testing.T, s *records.Store) snapshot {
	t.Helper()
	var snap snapshot
	var err error
	if snap.shows, err = s.Shows.List(); err != nil {
		t.Fatal(err)
	}
	if snap.notes, err = s.Notes.List(); err != nil {
		t.Fatal(err)
	}
	if snap.tags, err = s.Tags(); err != nil {
		t.Fatal(err)
	}
	if snap.settings, err = s.Settings(); err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestRoundTrip(t *testing.T) {
	ctx := t.Context()
	src := setupStore(t)
	populate(t, src)
	var buf bytes.Buffer
	if err := Export(ctx, &buf, src, ExportOptions{}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	t.Run("into same store", func(t *testing.T) {
		before := take(t, src)
		if err := Import(ctx, bytes.NewReader(buf.Bytes()), src, ImportOptions{}); err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if after := take(t, src); !reflect.DeepEqual(before, after) {
			t.Errorf("round trip changed the store:\nbefore %+v\nafter  %+v", before, after)
		}
	})

	t.Run("into empty store", func(t *testing.T) {
		dst := setupStore(t)
		if err := Import(ctx, bytes.NewReader(buf.Bytes()), dst, ImportOptions{}); err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if want, got := take(t, src), take(t, dst); !reflect.DeepEqual(want, got) {
			t.Errorf("restored store differs:\nwant %+v\ngot  %+v", want, got)
		}
	})
}

func TestExportFormat(t *testing.T) {
	s := setupStore(t)
	populate(t, s)
	var buf bytes.Buffer
	if err := Export(t.Context(), &buf, s, ExportOptions{Now: t0}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n  \"shows\": [") {
		t.Errorf("document is not pretty-printed:\n%s", buf.String())
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"shows", "notes", "tags", "settings", "exportedAt"} {
		if _, ok := raw[k]; !ok {
			t.Errorf("missing key %q", k)
		}
	}
	if got := string(raw["exportedAt"]); got != `"2025-03-01T12:00:00.000Z"` {
		t.Errorf("exportedAt = %s", got)
	}
	// References are exported unresolved by default.
	if !strings.Contains(buf.String(), `"coverImage": "idbimg:cover"`) {
		t.Error("reference was not exported verbatim")
	}
}

func TestExportEmptyStore(t *testing.T) {
	s := setupStore(t)
	doc, err := Build(t.Context(), s, ExportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(doc)
	if !strings.Contains(string(data), `"shows":[]`) || !strings.Contains(string(data), `"settings":{"enableReminders":false}`) {
		t.Errorf("empty export = %s", data)
	}
}

func TestImport(t *testing.T) {
	t.Run("missing keys untouched", func(t *testing.T) {
		s := setupStore(t)
		populate(t, s)
		before := take(t, s)
		if err := Import(t.Context(), strings.NewReader(`{"tags":["x","x","y"]}`), s, ImportOptions{}); err != nil {
			t.Fatal(err)
		}
		after := take(t, s)
		if !reflect.DeepEqual(after.tags, []string{"x", "y"}) {
			t.Errorf("tags = %v", after.tags)
		}
		if !reflect.DeepEqual(before.shows, after.shows) || !reflect.DeepEqual(before.notes, after.notes) || before.settings != after.settings {
			t.Error("absent keys were modified")
		}
	})

	t.Run("empty arrays clear", func(t *testing.T) {
		s := setupStore(t)
		populate(t, s)
		if err := Import(t.Context(), strings.NewReader(`{"shows":[],"notes":[]}`), s, ImportOptions{}); err != nil {
			t.Fatal(err)
		}
		after := take(t, s)
		if len(after.shows) != 0 || len(after.notes) != 0 || len(after.tags) != 2 {
			t.Errorf("after = %+v", after)
		}
	})

	t.Run("parse error applies nothing", func(t *testing.T) {
		s := setupStore(t)
		populate(t, s)
		before := take(t, s)
		for _, doc := range []string{`{"shows":[`, `[]`, `{"shows":"nope"}`, `{"tags":[1]}`, `{"shows":[null],"notes":[null]}`, `{"notes":[null]}`} {
			err := Import(t.Context(), strings.NewReader(doc), s, ImportOptions{})
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("Import(%q) error = %v, want ErrInvalidDocument", doc, err)
			}
		}
		if after := take(t, s); !reflect.DeepEqual(before, after) {
			t.Error("store modified by failed import")
		}
	})
}

type fakeAssets struct {
	stored []imageref.File
}

func (f *fakeAssets) Inline(_ context.Context, s string) (string, bool) {
	if s == "idbimg:cover" {
		return "data:image/png;base64,Q09WRVI=", true
	}
	return s, !imageref.IsReference(s)
}

func (f *fakeAssets) Store(_ context.Context, file imageref.File) string {
	f.stored = append(f.stored, file)
	return "idbimg:new"
}

func TestEmbedAssets(t *testing.T) {
	s := setupStore(t)
	populate(t, s)
	var buf bytes.Buffer
	if err := Export(t.Context(), &buf, s, ExportOptions{EmbedAssets: true, Assets: &fakeAssets{}}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"coverImage": "data:image/png;base64,Q09WRVI="`) {
		t.Error("cover not embedded")
	}
	if !strings.Contains(out, `"idbimg:img-one"`) {
		t.Error("unresolvable reference should be kept")
	}
	// The store itself is unchanged.
	sh, _ := s.Shows.List()
	if sh[0].CoverImage != "idbimg:cover" {
		t.Errorf("store mutated: %q", sh[0].CoverImage)
	}

	t.Run("store inline on import", func(t *testing.T) {
		dst := setupStore(t)
		fa := &fakeAssets{}
		if err := Import(t.Context(), strings.NewReader(out), dst, ImportOptions{StoreInlineImages: true, Assets: fa}); err != nil {
			t.Fatal(err)
		}
		shows, _ := dst.Shows.List()
		if shows[0].CoverImage != "idbimg:new" {
			t.Errorf("cover = %q", shows[0].CoverImage)
		}
		// Cover plus one inline image per note.
		if len(fa.stored) != 3 {
			t.Errorf("stored %d files, want 3", len(fa.stored))
		}
		if fa.stored[0].MIMEType != "image/png" || string(fa.stored[0].Data) != "COVER" {
			t.Errorf("first stored = %+v", fa.stored[0])
		}
	})
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2026, 10, 16, 23, 30, 0, 0, time.FixedZone("X", -3600)))
	if got != "trackshow-backup-2026-10-17.json" {
		t.Errorf("FileName() = %q", got)
	}
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatal(err)
	}
	var s struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"shows", "notes", "tags", "settings", "exportedAt"} {
		if _, ok := s.Properties[k]; !ok {
			t.Errorf("schema missing %q", k)
		}
	}
}
