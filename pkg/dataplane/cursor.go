package dataplane

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Position addresses one metadata field blob plus a page index into it.
type Position struct {
	Field   string `json:"field"`
	Pointer string `json:"pointer"`
	Page    int    `json:"page"`
}

// Cursor is the self-contained pagination state for a metadata read. It
// round-trips through base64(JSON) so callers can hold it across requests
// with no server-side session.
type Cursor struct {
	Next      Position `json:"next"`
	Remaining []string `json:"remaining"`
}

func EncodeCursor(c *Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

func DecodeCursor(encoded string) (*Cursor, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}

	var cursor Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}

	return &cursor, nil
}

// Page is one step of a cursor walk. Cursor is empty once every field and
// page has been served.
type Page struct {
	Field  string `json:"field"`
	Value  any    `json:"value"`
	Cursor string `json:"cursor,omitempty"`
}

// Walker steps a cursor across metadata blobs. Resolve fetches the blob a
// pointer addresses; PointerFor maps a sibling field name to its pointer
// when the walk moves on to it.
type Walker struct {
	Resolve    func(ctx context.Context, pointer string) (any, error)
	PointerFor func(field string) string
}

// Step serves the value the cursor points at and returns the advanced
// cursor. A blob that decodes to a JSON array is a page list: the walk
// serves one element per step and only moves to the next field once the
// array is exhausted, so chunked multi-page writes read back identically to
// single-shot ones.
func (w *Walker) Step(ctx context.Context, cursor *Cursor) (*Page, error) {
	blob, err := w.Resolve(ctx, cursor.Next.Pointer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pointer %s: %w", cursor.Next.Pointer, err)
	}

	pages, paged := blob.([]any)

	if !paged {
		next, err := w.pop(cursor.Remaining)
		if err != nil {
			return nil, err
		}

		return &Page{Field: cursor.Next.Field, Value: blob, Cursor: next}, nil
	}

	if cursor.Next.Page >= len(pages) {
		return nil, fmt.Errorf("cursor page %d out of range for %s", cursor.Next.Page, cursor.Next.Field)
	}

	value := pages[cursor.Next.Page]

	if cursor.Next.Page+1 < len(pages) {
		next, err := EncodeCursor(&Cursor{
			Next: Position{
				Field:   cursor.Next.Field,
				Pointer: cursor.Next.Pointer,
				Page:    cursor.Next.Page + 1,
			},
			Remaining: cursor.Remaining,
		})
		if err != nil {
			return nil, err
		}

		return &Page{Field: cursor.Next.Field, Value: value, Cursor: next}, nil
	}

	next, err := w.pop(cursor.Remaining)
	if err != nil {
		return nil, err
	}

	return &Page{Field: cursor.Next.Field, Value: value, Cursor: next}, nil
}

// pop advances to the first remaining field, or ends the walk.
func (w *Walker) pop(remaining []string) (string, error) {
	if len(remaining) == 0 {
		return "", nil
	}

	return EncodeCursor(&Cursor{
		Next: Position{
			Field:   remaining[0],
			Pointer: w.PointerFor(remaining[0]),
			Page:    0,
		},
		Remaining: remaining[1:],
	})
}
