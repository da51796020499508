package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maruel/trackshow/internal/history"
	"github.com/maruel/trackshow/internal/models"
)

type env struct {
	t       *testing.T
	confDir string
	dataDir string
}

func newEnv(t *testing.T) *env {
	return &env{t: t, confDir: t.TempDir(), dataDir: t.TempDir()}
}

func (e *env) run(args ...string) (string, error) {
	e.t.Helper()
	root, a := newRootCmd()
	e.t.Cleanup(a.close)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config-dir", e.confDir, "--data-dir", e.dataDir}, args...))
	err := root.ExecuteContext(e.t.Context())
	return out.String(), err
}

func (e *env) mustRun(v any, args ...string) {
	e.t.Helper()
	out, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("%v: error = %v", args, err)
	}
	if v != nil {
		if err := json.Unmarshal([]byte(out), v); err != nil {
			e.t.Fatalf("%v: bad output %q: %v", args, out, err)
		}
	}
}

func TestShowAndNote(t *testing.T) {
	e := newEnv(t)

	var sh models.Show
	e.mustRun(&sh, "show", "add", "Dark", "--tags", "scifi,german", "--total", "26")
	if sh.ID == "" || sh.Type != models.DefaultType || sh.TotalEpisodes != 26 {
		t.Fatalf("show add = %+v", sh)
	}

	var shows []*models.Show
	e.mustRun(&shows, "show", "list", "--status", "watching")
	if len(shows) != 1 || shows[0].ID != sh.ID {
		t.Errorf("show list = %+v", shows)
	}

	e.mustRun(&sh, "show", "progress", sh.ID, "2", "3")
	if sh.CurrentSeason != 2 || sh.CurrentEpisode != 3 {
		t.Errorf("show progress = %+v", sh)
	}
	e.mustRun(&sh, "show", "update", sh.ID, `{"platform":"Netflix"}`)
	if sh.Platform != "Netflix" {
		t.Errorf("show update = %+v", sh)
	}

	var n models.Note
	e.mustRun(&n, "note", "add", sh.ID, "--title", "loop", "--keywords", "time,cave")
	if n.ProgressSnapshot != "S2E3" || len(n.Keywords) != 2 {
		t.Errorf("note add = %+v", n)
	}
	var notes []*models.Note
	e.mustRun(&notes, "note", "list", "--show", sh.ID)
	if len(notes) != 1 {
		t.Errorf("note list = %+v", notes)
	}

	var tags []string
	e.mustRun(&tags, "tag", "list")
	if strings.Join(tags, ",") != "scifi,german" {
		t.Errorf("tag list = %v", tags)
	}

	e.mustRun(&sh, "show", "finish", sh.ID)
	if sh.Status != models.StatusFinished || sh.FinishedAt == nil {
		t.Errorf("show finish = %+v", sh)
	}

	e.mustRun(nil, "show", "delete", sh.ID)
	e.mustRun(&notes, "note", "list")
	if len(notes) != 0 {
		t.Errorf("notes survived their show: %+v", notes)
	}
}

func TestNotFound(t *testing.T) {
	e := newEnv(t)
	for _, args := range [][]string{
		{"show", "get", "nope"},
		{"show", "finish", "nope"},
		{"note", "delete", "nope"},
		{"image", "get", "idbimg:nope"},
	} {
		if _, err := e.run(args...); !errors.Is(err, errNotFound) {
			t.Errorf("%v: error = %v, want not found", args, err)
		}
	}
	if _, err := e.run("show", "list", "--status", "paused"); err == nil {
		t.Error("unknown status expected error")
	}
}

func TestSettings(t *testing.T) {
	e := newEnv(t)
	var s models.AppSettings
	e.mustRun(&s, "settings")
	if s.EnableReminders {
		t.Error("reminders enabled by default")
	}
	e.mustRun(&s, "settings", "set", "--reminders")
	e.mustRun(&s, "settings")
	if !s.EnableReminders {
		t.Error("settings set not persisted")
	}
}

func TestImages(t *testing.T) {
	e := newEnv(t)
	src := filepath.Join(t.TempDir(), "cover.png")
	if err := os.WriteFile(src, []byte("\x89PNG\r\n\x1a\nfake"), 0o600); err != nil {
		t.Fatal(err)
	}
	var put struct{ Value string }
	e.mustRun(&put, "image", "put", "--strict", src)
	if !strings.HasPrefix(put.Value, "idbimg:") {
		t.Fatalf("image put = %q", put.Value)
	}

	dst := filepath.Join(t.TempDir(), "out.png")
	var got struct {
		MIMEType string `json:"mimeType"`
		Size     int    `json:"size"`
	}
	e.mustRun(&got, "image", "get", put.Value, "-o", dst)
	if got.MIMEType != "image/png" || got.Size != 12 {
		t.Errorf("image get = %+v", got)
	}
	if data, err := os.ReadFile(dst); err != nil || string(data) != "\x89PNG\r\n\x1a\nfake" {
		t.Errorf("written image = %q, %v", data, err)
	}

	var removed struct{ Removed int }
	e.mustRun(&removed, "assets", "gc")
	if removed.Removed != 1 {
		t.Errorf("assets gc = %+v", removed)
	}
}

func TestBackup(t *testing.T) {
	e := newEnv(t)
	e.mustRun(nil, "show", "add", "Dark")
	out, err := e.run("backup", "export", "-o", "-")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"exportedAt"`) || !strings.Contains(out, `"name": "Dark"`) {
		t.Fatalf("backup export = %s", out)
	}
	file := filepath.Join(t.TempDir(), "b.json")
	if err := os.WriteFile(file, []byte(out), 0o600); err != nil {
		t.Fatal(err)
	}

	other := newEnv(t)
	other.mustRun(nil, "backup", "import", file)
	var shows []*models.Show
	other.mustRun(&shows, "show", "list")
	if len(shows) != 1 || shows[0].Name != "Dark" {
		t.Errorf("imported shows = %+v", shows)
	}

	if err := os.WriteFile(file, []byte(`{"shows":`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := other.run("backup", "import", file); err == nil {
		t.Error("truncated backup expected error")
	}

	schema, err := e.run("backup", "schema")
	if err != nil || !strings.Contains(schema, `"exportedAt"`) {
		t.Errorf("backup schema = %q, %v", schema, err)
	}
}

func TestHistory(t *testing.T) {
	e := newEnv(t)
	if _, err := e.run("history", "log"); !errors.Is(err, errNoHistory) {
		t.Fatalf("history log error = %v", err)
	}
	e.mustRun(nil, "--history", "show", "add", "first")
	e.mustRun(nil, "--history", "show", "add", "second")

	var commits []*history.Commit
	e.mustRun(&commits, "--history", "history", "log", "trackshow_shows")
	if len(commits) != 2 {
		t.Fatalf("history log = %+v", commits)
	}
	e.mustRun(nil, "--history", "history", "restore", commits[1].Hash, "trackshow_shows")
	var shows []*models.Show
	e.mustRun(&shows, "show", "list")
	if len(shows) != 1 || shows[0].Name != "first" {
		t.Errorf("after restore = %+v", shows)
	}
}

func TestEnvFile(t *testing.T) {
	e := newEnv(t)
	if err := os.WriteFile(filepath.Join(e.dataDir, ".env"), []byte("TRACKSHOW_HISTORY=true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	e.mustRun(nil, "tag", "add", "x")
	var commits []*history.Commit
	e.mustRun(&commits, "history", "log")
	if len(commits) != 1 {
		t.Errorf("history log = %+v", commits)
	}
	// Flags win over .env.
	if _, err := e.run("--history=false", "history", "log"); !errors.Is(err, errNoHistory) {
		t.Errorf("history log error = %v", err)
	}
}
