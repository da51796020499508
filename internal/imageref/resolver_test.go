package imageref

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/maruel/trackshow/internal/assets"
)

// memBlobs is an in-memory BlobStore. When gate is set, Get blocks until a
// value is received on it.
type memBlobs struct {
	mu    sync.Mutex
	m     map[string]*assets.Blob
	n     int
	err   error
	gates map[string]chan struct{}
}

func newMemBlobs() *memBlobs {
	return &memBlobs{m: map[string]*assets.Blob{}, gates: map[string]chan struct{}{}}
}

func (s *memBlobs) Put(_ context.Context, mimeType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.n++
	id := "id" + strings.Repeat("x", s.n)
	s.m[id] = &assets.Blob{ID: id, MIMEType: mimeType, Data: data, Size: int64(len(data))}
	return id, nil
}

func (s *memBlobs) Get(_ context.Context, id string) (*assets.Blob, error) {
	s.mu.Lock()
	gate := s.gates[id]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.m[id], nil
}

var helloFile = File{Name: "hello.txt", MIMEType: "text/plain", Data: []byte("hello")}

func TestResolver(t *testing.T) {
	t.Run("store available", func(t *testing.T) {
		r := NewResolver(newMemBlobs(), nil)
		ref := r.Store(t.Context(), helloFile)
		if !strings.HasPrefix(ref, "idbimg:") {
			t.Fatalf("Store() = %q, want reference", ref)
		}
		src := r.Resolve(t.Context(), ref)
		if src == "" || src == ref {
			t.Fatalf("Resolve() = %q", src)
		}
		mt, data, ok := r.Handles().Open(src)
		if !ok || mt != "text/plain" || !bytes.Equal(data, helloFile.Data) {
			t.Errorf("Open() = %q, %q, %v", mt, data, ok)
		}
		r.Handles().Revoke(src)
		if r.Handles().Len() != 0 {
			t.Errorf("Len() = %d after Revoke", r.Handles().Len())
		}
	})

	t.Run("store unavailable", func(t *testing.T) {
		blobs := newMemBlobs()
		blobs.err = assets.ErrUnavailable
		r := NewResolver(blobs, nil)
		got := r.Store(t.Context(), helloFile)
		if !strings.HasPrefix(got, "data:text/plain;base64,") {
			t.Errorf("Store() = %q, want inline", got)
		}
		if _, err := r.Put(t.Context(), helloFile); !errors.Is(err, assets.ErrUnavailable) {
			t.Errorf("Put() error = %v", err)
		}
	})

	t.Run("no store", func(t *testing.T) {
		r := NewResolver(nil, nil)
		got := r.Store(t.Context(), File{Name: "a.png", Data: []byte{1, 2}})
		if !strings.HasPrefix(got, "data:image/png;base64,") {
			t.Errorf("Store() = %q", got)
		}
		if got := r.Resolve(t.Context(), "idbimg:abc"); got != "" {
			t.Errorf("Resolve() = %q, want empty", got)
		}
	})

	t.Run("resolve identity", func(t *testing.T) {
		r := NewResolver(newMemBlobs(), nil)
		for _, s := range []string{"", "data:image/png;base64,abc", "https://x/y.png"} {
			if got := r.Resolve(t.Context(), s); got != s {
				t.Errorf("Resolve(%q) = %q", s, got)
			}
		}
		if r.Handles().Len() != 0 {
			t.Error("handles created for non-references")
		}
	})

	t.Run("resolve missing", func(t *testing.T) {
		r := NewResolver(newMemBlobs(), nil)
		if got := r.Resolve(t.Context(), "idbimg:unknown"); got != "" {
			t.Errorf("Resolve() = %q, want empty", got)
		}
	})

	t.Run("resolve error", func(t *testing.T) {
		blobs := newMemBlobs()
		r := NewResolver(blobs, nil)
		ref := r.Store(t.Context(), helloFile)
		blobs.err = errors.New("engine blocked")
		if got := r.Resolve(t.Context(), ref); got != "" {
			t.Errorf("Resolve() = %q, want empty", got)
		}
	})

	t.Run("Inline", func(t *testing.T) {
		blobs := newMemBlobs()
		r := NewResolver(blobs, nil)
		ref := r.Store(t.Context(), helloFile)
		got, ok := r.Inline(t.Context(), ref)
		if !ok || got != "data:text/plain;base64,aGVsbG8=" {
			t.Errorf("Inline() = %q, %v", got, ok)
		}
		if got, ok := r.Inline(t.Context(), "idbimg:missing"); ok || got != "idbimg:missing" {
			t.Errorf("Inline(missing) = %q, %v", got, ok)
		}
	})
}

func TestResolverWithAssetStore(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		r := NewResolver(assets.New(t.TempDir(), ""), nil)
		ref := r.Store(t.Context(), helloFile)
		if !IsReference(ref) {
			t.Fatalf("Store() = %q", ref)
		}
		src := r.Resolve(t.Context(), ref)
		if !IsHandle(src) {
			t.Errorf("Resolve() = %q", src)
		}
	})

	t.Run("open fails", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		if err := os.WriteFile(blocker, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		r := NewResolver(assets.New(filepath.Join(blocker, "db"), ""), nil)
		got := r.Store(t.Context(), helloFile)
		if !strings.HasPrefix(got, "data:text/plain;base64,") {
			t.Errorf("Store() = %q", got)
		}
		if got := r.Resolve(t.Context(), "idbimg:x"); got != "" {
			t.Errorf("Resolve() = %q", got)
		}
	})
}

func TestDisplay(t *testing.T) {
	t.Run("replace releases previous", func(t *testing.T) {
		r := NewResolver(newMemBlobs(), nil)
		a := r.Store(t.Context(), helloFile)
		b := r.Store(t.Context(), helloFile)
		d := NewDisplay(r)
		srcA, ok := d.Show(t.Context(), a)
		if !ok || !IsHandle(srcA) {
			t.Fatalf("Show(a) = %q, %v", srcA, ok)
		}
		srcB, ok := d.Show(t.Context(), b)
		if !ok || !IsHandle(srcB) {
			t.Fatalf("Show(b) = %q, %v", srcB, ok)
		}
		if _, _, ok := r.Handles().Open(srcA); ok {
			t.Error("previous handle not released")
		}
		if d.Current() != srcB || r.Handles().Len() != 1 {
			t.Errorf("Current() = %q, Len() = %d", d.Current(), r.Handles().Len())
		}
		d.Close()
		if r.Handles().Len() != 0 || d.Current() != "" {
			t.Error("Close() did not release")
		}
	})

	t.Run("stale result released", func(t *testing.T) {
		blobs := newMemBlobs()
		r := NewResolver(blobs, nil)
		slow := r.Store(t.Context(), helloFile)
		fast := r.Store(t.Context(), helloFile)
		gate := make(chan struct{})
		blobs.mu.Lock()
		blobs.gates[Parse(slow).AssetID] = gate
		blobs.mu.Unlock()

		d := NewDisplay(r)
		type result struct {
			src string
			ok  bool
		}
		done := make(chan result)
		go func() {
			src, ok := d.Show(t.Context(), slow)
			done <- result{src, ok}
		}()
		// Wait for the slow Show to register before superseding it.
		for {
			d.mu.Lock()
			started := d.gen == 1
			d.mu.Unlock()
			if started {
				break
			}
		}
		srcFast, ok := d.Show(t.Context(), fast)
		if !ok {
			t.Fatal("Show(fast) superseded")
		}
		close(gate)
		res := <-done
		if res.ok || res.src != "" {
			t.Errorf("stale Show() = %q, %v", res.src, res.ok)
		}
		if d.Current() != srcFast || r.Handles().Len() != 1 {
			t.Errorf("Current() = %q, Len() = %d", d.Current(), r.Handles().Len())
		}
	})

	t.Run("non-reference", func(t *testing.T) {
		r := NewResolver(newMemBlobs(), nil)
		d := NewDisplay(r)
		in := "data:image/png;base64,AAAA"
		if src, ok := d.Show(t.Context(), in); !ok || src != in {
			t.Errorf("Show() = %q, %v", src, ok)
		}
		d.Close()
	})
}
