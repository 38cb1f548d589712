package abyss

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ItemRecord represents one stored stack in the abyss. Records are treated as
// structurally immutable once stored: the Store never edits a record in place,
// and every record crossing the Store boundary is an independent copy.
//
// Metadata is an opaque payload preserved byte-for-byte across storage. The
// broker never inspects it beyond carrying it along.
type ItemRecord struct {
	ID       string          `json:"id"`                 // UUID - unique identifier for this record
	Kind     string          `json:"kind"`               // Opaque item kind identifier (never empty for a stored record)
	Quantity int             `json:"quantity"`           // Stacked quantity (>= 1 for a stored record)
	Metadata json.RawMessage `json:"metadata,omitempty"` // Opaque attached metadata, preserved bit-for-bit
}

// NewItemRecord creates an item record with a fresh UUID.
// Metadata may be nil; if present it must be valid JSON produced by the caller.
func NewItemRecord(kind string, quantity int, metadata json.RawMessage) ItemRecord {
	return ItemRecord{
		ID:       uuid.New().String(),
		Kind:     kind,
		Quantity: quantity,
		Metadata: cloneRaw(metadata),
	}
}

// IsEmpty reports whether the record is an empty placeholder. Empty records
// are rejected at every Store boundary; an empty argument to Set means
// "remove".
func (r ItemRecord) IsEmpty() bool {
	return r.Kind == "" || r.Quantity <= 0
}

// Clone returns an independent deep copy of the record, including the
// metadata bytes. Mutating the copy never affects the original.
func (r ItemRecord) Clone() ItemRecord {
	c := r
	c.Metadata = cloneRaw(r.Metadata)
	return c
}

// Validate checks if the ItemRecord has valid field values for storage.
func (r ItemRecord) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid item ID: not a valid UUID")
	}

	if r.Kind == "" {
		return fmt.Errorf("item kind cannot be empty")
	}

	if r.Quantity < 1 {
		return fmt.Errorf("invalid quantity: must be >= 1, got %d", r.Quantity)
	}

	if len(r.Metadata) > 0 && !json.Valid(r.Metadata) {
		return fmt.Errorf("item metadata is not valid JSON")
	}

	return nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	c := make(json.RawMessage, len(raw))
	copy(c, raw)
	return c
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
