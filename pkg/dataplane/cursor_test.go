package dataplane

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	cursor := &Cursor{
		Next:      Position{Field: "labels", Pointer: "meta/asset-1/labels", Page: 2},
		Remaining: []string{"transcript", "faces"},
	}

	encoded, err := EncodeCursor(cursor)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, cursor, decoded)
}

func TestDecodeCursor_Garbage(t *testing.T) {
	_, err := DecodeCursor("not base64!!!")
	assert.Error(t, err)

	// Valid base64, invalid JSON.
	_, err = DecodeCursor("bm90IGpzb24=")
	assert.Error(t, err)
}

func testWalker(blobs map[string]any) *Walker {
	return &Walker{
		Resolve: func(_ context.Context, pointer string) (any, error) {
			return blobs[pointer], nil
		},
		PointerFor: func(field string) string {
			return "meta/asset-1/" + field
		},
	}
}

// walk drains the cursor, collecting every served field/value pair.
func walk(t *testing.T, w *Walker, cursor *Cursor) []Page {
	t.Helper()

	var served []Page

	for {
		page, err := w.Step(t.Context(), cursor)
		require.NoError(t, err)

		served = append(served, Page{Field: page.Field, Value: page.Value})

		if page.Cursor == "" {
			return served
		}

		cursor, err = DecodeCursor(page.Cursor)
		require.NoError(t, err)
	}
}

func TestWalkerStep_SingleShotField(t *testing.T) {
	w := testWalker(map[string]any{
		"meta/asset-1/labels": map[string]any{"sport": "tennis"},
	})

	page, err := w.Step(t.Context(), &Cursor{
		Next: Position{Field: "labels", Pointer: "meta/asset-1/labels"},
	})
	require.NoError(t, err)

	assert.Equal(t, "labels", page.Field)
	assert.Equal(t, map[string]any{"sport": "tennis"}, page.Value)
	assert.Empty(t, page.Cursor)
}

func TestWalkerStep_PagedField(t *testing.T) {
	w := testWalker(map[string]any{
		"meta/asset-1/transcript": []any{"chunk-0", "chunk-1", "chunk-2"},
	})

	served := walk(t, w, &Cursor{
		Next: Position{Field: "transcript", Pointer: "meta/asset-1/transcript"},
	})

	require.Len(t, served, 3)
	for i, page := range served {
		assert.Equal(t, "transcript", page.Field)
		assert.Equal(t, []any{"chunk-0", "chunk-1", "chunk-2"}[i], page.Value)
	}
}

// A field written in chunks reads back the same as one written single-shot,
// just spread over more steps.
func TestWalkerStep_ChunkedMatchesSingleShot(t *testing.T) {
	w := testWalker(map[string]any{
		"meta/asset-1/labels":     []any{"page-a", "page-b"},
		"meta/asset-1/transcript": "whole",
	})

	served := walk(t, w, &Cursor{
		Next:      Position{Field: "labels", Pointer: "meta/asset-1/labels"},
		Remaining: []string{"transcript"},
	})

	require.Len(t, served, 3)
	assert.Equal(t, "labels", served[0].Field)
	assert.Equal(t, "page-a", served[0].Value)
	assert.Equal(t, "labels", served[1].Field)
	assert.Equal(t, "page-b", served[1].Value)
	assert.Equal(t, "transcript", served[2].Field)
	assert.Equal(t, "whole", served[2].Value)
}

func TestWalkerStep_PageOutOfRange(t *testing.T) {
	w := testWalker(map[string]any{
		"meta/asset-1/transcript": []any{"only"},
	})

	_, err := w.Step(t.Context(), &Cursor{
		Next: Position{Field: "transcript", Pointer: "meta/asset-1/transcript", Page: 5},
	})
	assert.Error(t, err)
}
