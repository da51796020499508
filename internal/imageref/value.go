// Package imageref converts between uploaded files and the two persisted
// forms of an image value, and back to something renderable.
//
// An image value is a string that is either an inline data URL
// ("data:<mime>;base64,<payload>") or a reference into the asset store
// ("idbimg:<id>"). [Value] is the tagged form of that string.
package imageref

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Prefix marks a reference into the asset store.
const Prefix = "idbimg:"

const dataPrefix = "data:"

var errNotInline = errors.New("not a base64 data URL")

// Kind discriminates the forms of an image value.
type Kind int

const (
	// KindEmpty is the absence of an image.
	KindEmpty Kind = iota
	// KindInline is a self-contained data URL.
	KindInline
	// KindReference points into the asset store.
	KindReference
	// KindOther is any other string, such as a plain URL. It is rendered as-is.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindInline:
		return "inline"
	case KindReference:
		return "reference"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a parsed image value.
type Value struct {
	Kind Kind
	// Raw is the original string.
	Raw string
	// AssetID is set for KindReference.
	AssetID string
}

// IsReference reports whether s is an asset store reference.
func IsReference(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// Reference returns the reference string for an asset id.
func Reference(id string) string {
	return Prefix + id
}

// Parse classifies s. It never fails: strings that are neither empty, a
// reference nor a data URL are KindOther.
func Parse(s string) Value {
	switch {
	case s == "":
		return Value{Kind: KindEmpty}
	case IsReference(s):
		return Value{Kind: KindReference, Raw: s, AssetID: strings.TrimPrefix(s, Prefix)}
	case strings.HasPrefix(s, dataPrefix):
		return Value{Kind: KindInline, Raw: s}
	default:
		return Value{Kind: KindOther, Raw: s}
	}
}

// String returns the persisted form.
func (v Value) String() string {
	return v.Raw
}

// EncodeInline returns the data URL for data.
func EncodeInline(mimeType string, data []byte) string {
	return dataPrefix + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeInline parses a base64 data URL.
func DecodeInline(s string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, dataPrefix)
	if !ok {
		return "", nil, errNotInline
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errNotInline
	}
	mimeType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errNotInline
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return mimeType, data, nil
}

// File is an uploaded image.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// DetectMIME returns f.MIMEType, or guesses it from the file name and then
// from the content.
func DetectMIME(f File) string {
	if f.MIMEType != "" {
		return f.MIMEType
	}
	if t := mime.TypeByExtension(filepath.Ext(f.Name)); t != "" {
		return stripParams(t)
	}
	return stripParams(mimetype.Detect(f.Data).String())
}

func stripParams(t string) string {
	t, _, _ = strings.Cut(t, ";")
	return strings.TrimSpace(t)
}
