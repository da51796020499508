// Generic read-decode-mutate-encode-write collection over one key.

package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/maruel/trackshow/internal/kv"
)

// Cloner is implemented by types that can clone themselves.
type Cloner[T any] interface {
	Clone() T
}

// Row is a record with a string identifier.
type Row[T any] interface {
	Cloner[T]
	GetID() string
}

// Patch is a set of top-level JSON fields to overwrite on a record. Keys use
// the JSON field names; fields not named are retained.
type Patch map[string]any

// Collection stores every row of one kind as a single JSON array under one
// key. Each mutation reads the whole array, applies the change and writes the
// whole array back.
type Collection[T Row[T]] struct {
	kv  *kv.Store
	key string
	// touch is applied to a row after a patch has been merged into it.
	touch func(T)
}

// NewCollection returns a collection stored under key.
func NewCollection[T Row[T]](store *kv.Store, key string) *Collection[T] {
	return &Collection[T]{kv: store, key: key}
}

// Key returns the persisted key name.
func (c *Collection[T]) Key() string {
	return c.key
}

// List returns all rows in storage order. A key that was never written yields
// an empty slice. A null element is reported as a DecodeError.
func (c *Collection[T]) List() ([]T, error) {
	data, ok, err := c.kv.Get(c.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []T{}, nil
	}
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &DecodeError{Key: c.key, Err: err}
	}
	if slices.ContainsFunc(rows, isNil[T]) {
		return nil, &DecodeError{Key: c.key, Err: errNullRow}
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// ReplaceAll overwrites the collection with rows in a single write.
func (c *Collection[T]) ReplaceAll(rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.key, err)
	}
	return c.kv.Set(c.key, data)
}

// Add appends row. The id is not checked for uniqueness.
func (c *Collection[T]) Add(row T) error {
	if isNil(row) {
		return errNilRecord
	}
	rows, err := c.List()
	if err != nil {
		return err
	}
	return c.ReplaceAll(append(rows, row.Clone()))
}

// Get returns a clone of the first row with id.
func (c *Collection[T]) Get(id string) (T, bool, error) {
	var zero T
	rows, err := c.List()
	if err != nil {
		return zero, false, err
	}
	for _, r := range rows {
		if r.GetID() == id {
			return r, true, nil
		}
	}
	return zero, false, nil
}

// Update shallow-merges p into the row with id and persists the collection.
// It returns false without writing when id is unknown.
func (c *Collection[T]) Update(id string, p Patch) (bool, error) {
	if id == "" {
		return false, errIDEmpty
	}
	if v, ok := p["id"]; ok && v != id {
		return false, errPatchID
	}
	rows, err := c.List()
	if err != nil {
		return false, err
	}
	found := false
	for i, r := range rows {
		if r.GetID() != id {
			continue
		}
		merged, err := merge(r, p)
		if err != nil {
			return false, fmt.Errorf("failed to update %s in %s: %w", id, c.key, err)
		}
		if c.touch != nil {
			c.touch(merged)
		}
		rows[i] = merged
		found = true
	}
	if !found {
		return false, nil
	}
	return true, c.ReplaceAll(rows)
}

// Delete removes every row with id. It returns false without writing when id
// is unknown.
func (c *Collection[T]) Delete(id string) (bool, error) {
	n, err := c.DeleteFunc(func(r T) bool { return r.GetID() == id })
	return n > 0, err
}

// DeleteFunc removes every row for which del returns true and reports how
// many were removed. Nothing is written when no row matches.
func (c *Collection[T]) DeleteFunc(del func(T) bool) (int, error) {
	rows, err := c.List()
	if err != nil {
		return 0, err
	}
	kept := rows[:0]
	for _, r := range rows {
		if !del(r) {
			kept = append(kept, r)
		}
	}
	removed := len(rows) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, c.ReplaceAll(kept)
}

// merge overlays the fields of p on the JSON object form of row. Keys that do
// not name a field of T are rejected.
func merge[T any](row T, p Patch) (T, error) {
	var zero T
	raw, err := json.Marshal(row)
	if err != nil {
		return zero, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return zero, err
	}
	over := make(map[string]json.RawMessage, len(p))
	for k, v := range p {
		b, err := json.Marshal(v)
		if err != nil {
			return zero, fmt.Errorf("field %q: %w", k, err)
		}
		over[k] = b
	}
	maps.Copy(fields, over)
	if raw, err = json.Marshal(fields); err != nil {
		return zero, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var out T
	if err := dec.Decode(&out); err != nil {
		return zero, err
	}
	return out, nil
}

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	return !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil())
}
