package imageref

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maruel/trackshow/internal/assets"
)

var errNoBlobStore = errors.New("no asset store configured")

// BlobStore is the subset of [assets.Store] used by the resolver.
type BlobStore interface {
	Put(ctx context.Context, mimeType string, data []byte) (string, error)
	Get(ctx context.Context, id string) (*assets.Blob, error)
}

// Resolver maps files to image values and image values to renderable sources.
type Resolver struct {
	blobs   BlobStore
	handles *Handles
}

// NewResolver returns a resolver over blobs. blobs may be nil, in which case
// every image is stored inline.
func NewResolver(blobs BlobStore, handles *Handles) *Resolver {
	if handles == nil {
		handles = NewHandles()
	}
	return &Resolver{blobs: blobs, handles: handles}
}

// Handles returns the registry holding resolved sources.
func (r *Resolver) Handles() *Handles {
	return r.handles
}

// Put stores f in the asset store and returns its reference. Unlike
// [Resolver.Store], it reports why the asset store could not be used.
func (r *Resolver) Put(ctx context.Context, f File) (string, error) {
	if r.blobs == nil {
		return "", fmt.Errorf("%w: %w", assets.ErrUnavailable, errNoBlobStore)
	}
	id, err := r.blobs.Put(ctx, DetectMIME(f), f.Data)
	if err != nil {
		return "", err
	}
	return Reference(id), nil
}

// Store returns an image value for f. It prefers the asset store and falls
// back to an inline data URL on any failure; it never fails.
func (r *Resolver) Store(ctx context.Context, f File) string {
	ref, err := r.Put(ctx, f)
	if err == nil {
		return ref
	}
	slog.WarnContext(ctx, "Asset store unavailable, storing image inline", "name", f.Name, "size", len(f.Data), "err", err)
	return EncodeInline(DetectMIME(f), f.Data)
}

// Resolve returns a renderable source for the image value s.
//
// Values that are not references, including the empty string, are returned
// unchanged. A reference is looked up in the asset store and returned as a
// handle URL registered in [Resolver.Handles]; the caller must release it
// with [Handles.Revoke]. A lookup failure or a missing asset yields "".
func (r *Resolver) Resolve(ctx context.Context, s string) string {
	v := Parse(s)
	if v.Kind != KindReference {
		return s
	}
	b, err := r.lookup(ctx, v.AssetID)
	if err != nil || b == nil {
		return ""
	}
	return r.handles.Create(b.MIMEType, b.Data)
}

// Inline returns the data URL form of s. References are fetched from the
// asset store; ok is false when s is a reference that cannot be resolved.
// Other values are returned unchanged.
func (r *Resolver) Inline(ctx context.Context, s string) (string, bool) {
	v := Parse(s)
	if v.Kind != KindReference {
		return s, true
	}
	b, err := r.lookup(ctx, v.AssetID)
	if err != nil || b == nil {
		return s, false
	}
	return EncodeInline(b.MIMEType, b.Data), true
}

func (r *Resolver) lookup(ctx context.Context, id string) (*assets.Blob, error) {
	if r.blobs == nil {
		return nil, errNoBlobStore
	}
	b, err := r.blobs.Get(ctx, id)
	if err != nil {
		slog.DebugContext(ctx, "Failed to resolve image", "id", id, "err", err)
		return nil, err
	}
	if b == nil {
		slog.DebugContext(ctx, "Image not found", "id", id)
	}
	return b, nil
}
