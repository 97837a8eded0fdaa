package items

import (
	"time"

	"github.com/google/uuid"
)

// Item is an inventory record as returned by the remote API.
type Item struct {
	ID            uuid.UUID      `json:"id"`
	TableID       uuid.UUID      `json:"table_id"`
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	Quantity      int            `json:"quantity"`
	ImageOriginal string         `json:"image_original"`
	ImageThumb    string         `json:"image_thumb"`
	Notes         string         `json:"notes"`
	Properties    map[string]any `json:"properties"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the item. Nested maps and slices inside
// Properties are copied as well; nil and empty maps are preserved as such.
func (it Item) Clone() Item {
	it.Properties = cloneMap(it.Properties)
	return it
}

// NewItem is the payload of a create request.
type NewItem struct {
	TableID       uuid.UUID      `json:"table_id"`
	Name          string         `json:"name"`
	Code          string         `json:"code"`
	Quantity      int            `json:"quantity"`
	ImageOriginal string         `json:"image_original,omitempty"`
	ImageThumb    string         `json:"image_thumb,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	Properties    map[string]any `json:"properties,omitempty"`
}

// Upload describes a stored image as returned by the upload endpoint.
type Upload struct {
	OriginalPath string `json:"original_path"`
	ThumbPath    string `json:"thumb_path"`
	OriginalURL  string `json:"original_url"`
	ThumbURL     string `json:"thumb_url"`
}

// Ptr returns a pointer to v. Handy for building a Patch.
func Ptr[T any](v T) *T {
	return &v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
