// Temporary in-memory sources for resolved assets.

package imageref

import (
	"strings"
	"sync"

	"github.com/maruel/ksid"
)

// HandlePrefix starts every handle URL.
const HandlePrefix = "blob:trackshow/"

type handle struct {
	mimeType string
	data     []byte
}

// Handles is a registry of resolved assets addressable by URL. Every handle
// stays alive, holding its bytes, until revoked.
type Handles struct {
	mu sync.Mutex
	m  map[string]handle
}

// NewHandles returns an empty registry.
func NewHandles() *Handles {
	return &Handles{m: map[string]handle{}}
}

// IsHandle reports whether s is a handle URL.
func IsHandle(s string) bool {
	return strings.HasPrefix(s, HandlePrefix)
}

// Create registers data and returns its URL.
func (h *Handles) Create(mimeType string, data []byte) string {
	u := HandlePrefix + ksid.NewID().String()
	h.mu.Lock()
	h.m[u] = handle{mimeType: mimeType, data: data}
	h.mu.Unlock()
	return u
}

// Open returns the content behind url.
func (h *Handles) Open(url string) (mimeType string, data []byte, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.m[url]
	return e.mimeType, e.data, ok
}

// Revoke releases url. Revoking an unknown or non-handle URL is a no-op.
func (h *Handles) Revoke(url string) {
	h.mu.Lock()
	delete(h.m, url)
	h.mu.Unlock()
}

// Len returns the number of live handles.
func (h *Handles) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.m)
}
