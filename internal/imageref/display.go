package imageref

import (
	"context"
	"sync"
)

// Display holds the source currently shown for one image slot.
//
// Each call to Show supersedes the previous one. A resolution that completes
// after a newer Show started is released immediately and never becomes
// current, so no handle leaks when requests race.
type Display struct {
	r *Resolver

	mu      sync.Mutex
	gen     uint64
	current string
}

// NewDisplay returns an empty slot resolving through r.
func NewDisplay(r *Resolver) *Display {
	return &Display{r: r}
}

// Show resolves s and makes it current, releasing the previously current
// handle. ok is false when a newer Show superseded this one before it
// completed; src is then "".
func (d *Display) Show(ctx context.Context, s string) (src string, ok bool) {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	src = d.r.Resolve(ctx, s)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		d.release(src)
		return "", false
	}
	if d.current != src {
		d.release(d.current)
	}
	d.current = src
	return src, true
}

// Current returns the source currently shown.
func (d *Display) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Close releases the current source and supersedes any Show in flight.
func (d *Display) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.release(d.current)
	d.current = ""
}

func (d *Display) release(src string) {
	if IsHandle(src) {
		d.r.handles.Revoke(src)
	}
}
