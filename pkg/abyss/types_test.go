package abyss

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItemRecord(t *testing.T) {
	meta := json.RawMessage(`{"lore":["ancient"]}`)
	item := NewItemRecord("relic", 3, meta)

	_, err := uuid.Parse(item.ID)
	assert.NoError(t, err)
	assert.Equal(t, "relic", item.Kind)
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, meta, item.Metadata)

	// The record must hold its own copy of the metadata bytes.
	meta[2] = 'X'
	assert.Equal(t, json.RawMessage(`{"lore":["ancient"]}`), item.Metadata)
}

func TestItemRecordIsEmpty(t *testing.T) {
	assert.True(t, ItemRecord{}.IsEmpty())
	assert.True(t, ItemRecord{Kind: "stone"}.IsEmpty())
	assert.True(t, ItemRecord{Kind: "stone", Quantity: -1}.IsEmpty())
	assert.True(t, ItemRecord{Quantity: 5}.IsEmpty())
	assert.False(t, ItemRecord{Kind: "stone", Quantity: 1}.IsEmpty())
}

func TestItemRecordClone(t *testing.T) {
	original := NewItemRecord("orb", 1, json.RawMessage(`{"charge":9}`))
	clone := original.Clone()

	require.Equal(t, original, clone)

	clone.Metadata[1] = 'x'
	assert.Equal(t, json.RawMessage(`{"charge":9}`), original.Metadata)
}

func TestItemRecordValidate(t *testing.T) {
	t.Run("accepts a well-formed record", func(t *testing.T) {
		item := NewItemRecord("orb", 2, json.RawMessage(`{"a":1}`))
		assert.NoError(t, item.Validate())
	})

	t.Run("accepts nil metadata", func(t *testing.T) {
		assert.NoError(t, NewItemRecord("orb", 1, nil).Validate())
	})

	t.Run("rejects invalid fields", func(t *testing.T) {
		valid := NewItemRecord("orb", 1, nil)

		broken := valid
		broken.ID = "not-a-uuid"
		assert.ErrorContains(t, broken.Validate(), "invalid item ID")

		broken = valid
		broken.Kind = ""
		assert.ErrorContains(t, broken.Validate(), "kind cannot be empty")

		broken = valid
		broken.Quantity = 0
		assert.ErrorContains(t, broken.Validate(), "invalid quantity")

		broken = valid
		broken.Metadata = json.RawMessage(`{"unterminated`)
		assert.ErrorContains(t, broken.Validate(), "not valid JSON")
	})
}
