// Git-backed write history for the key-value store.

// Package history records every key write of a kv.Store as a git commit in
// the store directory, so earlier versions of a collection can be listed and
// read back.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/maruel/trackshow/internal/kv"
)

const (
	defaultName  = "trackshow"
	defaultEmail = "trackshow@localhost"
	maxLog       = 1000
	gitignore    = "*.tmp\n*.db\n*.db-*\n"
)

// Commit is one recorded version.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// Recorder commits key files to a git repository.
//
// It implements kv.Observer.
type Recorder struct {
	dir  string
	repo *gogit.Repository

	mu sync.Mutex
}

// Open opens the repository in dir, initializing it when absent.
func Open(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		if repo, err = gogit.PlainInit(dir, false); err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = defaultName
		cfg.User.Email = defaultEmail
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
		// Keep temp files and the asset database out of status scans.
		if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil { //nolint:gosec // G306: not secret
			return nil, fmt.Errorf("failed to write .gitignore: %w", err)
		}
	}
	return &Recorder{dir: dir, repo: repo}, nil
}

// Dir returns the repository root.
func (r *Recorder) Dir() string {
	return r.dir
}

// OnSet commits the new state of key. Failures are logged; the write that
// triggered the call has already succeeded.
func (r *Recorder) OnSet(key string) {
	if _, err := r.Commit(context.Background(), key); err != nil {
		slog.Warn("Failed to record history", "key", key, "err", err)
	}
}

// Commit stages the file holding key, deleted or not, and commits it.
// It returns false when the file has no change to record.
func (r *Recorder) Commit(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	name := kv.FileName(key)
	w, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := w.Add(name); err != nil {
		if errors.Is(err, index.ErrEntryNotFound) {
			// Deleted before it was ever recorded.
			return false, nil
		}
		return false, fmt.Errorf("failed to stage %s: %w", name, err)
	}
	status, err := w.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree status: %w", err)
	}
	st, ok := status[name]
	if !ok || st.Staging == gogit.Unmodified || st.Staging == gogit.Untracked {
		return false, nil
	}
	verb := "update"
	if st.Staging == gogit.Deleted {
		verb = "delete"
	}
	sig := &object.Signature{Name: defaultName, Email: defaultEmail, When: time.Now()}
	if _, err := w.Commit(verb+" "+key, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// Log returns up to n commits touching key, newest first. An empty key lists
// every commit. n is capped at 1000; n <= 0 means the cap.
func (r *Recorder) Log(_ context.Context, key string, n int) ([]*Commit, error) {
	if n <= 0 || n > maxLog {
		n = maxLog
	}
	opts := &gogit.LogOptions{}
	if key != "" {
		name := kv.FileName(key)
		opts.FileName = &name
	}
	iter, err := r.repo.Log(opts)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var out []*Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, &Commit{Hash: c.Hash.String(), Message: subject, When: c.Author.When})
	}
	return out, nil
}

// FileAt returns the value of key as recorded in commit hash. "HEAD" names
// the latest commit.
func (r *Recorder) FileAt(_ context.Context, hash, key string) ([]byte, error) {
	h := plumbing.NewHash(hash)
	if hash == "HEAD" {
		ref, err := r.repo.Head()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
		}
		h = ref.Hash()
	}
	c, err := r.repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	f, err := c.File(kv.FileName(key))
	if err != nil {
		return nil, fmt.Errorf("failed to get %s at %s: %w", key, hash, err)
	}
	rd, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = rd.Close() }()
	return io.ReadAll(rd)
}
