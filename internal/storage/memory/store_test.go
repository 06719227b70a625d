package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsdash/backend/internal/domain"
	"opsdash/backend/internal/storage"
)

func TestMemoryStore_UpsertAndGet(t *testing.T) {
	store := NewStore()

	err := store.Upsert([]domain.EmailRecord{
		{"id": "e1", "subject": "first", "is_read": false},
	})
	require.NoError(t, err)

	rec, err := store.Get("e1")
	require.NoError(t, err)
	assert.Equal(t, "first", rec.GetString("subject"))

	// Re-upserting the same id merges, new fields win
	err = store.Upsert([]domain.EmailRecord{
		{"id": "e1", "subject": "second", "extra": "kept"},
	})
	require.NoError(t, err)

	rec, err = store.Get("e1")
	require.NoError(t, err)
	assert.Equal(t, "second", rec.GetString("subject"))
	assert.Equal(t, "kept", rec.GetString("extra"))
	assert.Equal(t, false, rec.GetBool("is_read"))

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewStore()

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestMemoryStore_ListSortedByReceivedDesc(t *testing.T) {
	store := NewStore()

	err := store.Upsert([]domain.EmailRecord{
		{"id": "old", "received_date": "2024-01-01T00:00:00.000Z"},
		{"id": "new", "received_date": "2024-06-01T00:00:00.000Z"},
		{"id": "broken", "received_date": "???"},
	})
	require.NoError(t, err)

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "new", records[0].ID())
	assert.Equal(t, "old", records[1].ID())
	assert.Equal(t, "broken", records[2].ID())
}

func TestMemoryStore_ListReturnsCopies(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Upsert([]domain.EmailRecord{{"id": "e1", "subject": "s"}}))

	records, err := store.List()
	require.NoError(t, err)
	records[0]["subject"] = "tampered"

	rec, err := store.Get("e1")
	require.NoError(t, err)
	assert.Equal(t, "s", rec.GetString("subject"))
}

func TestMemoryStore_UpdateMergesFields(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Upsert([]domain.EmailRecord{{"id": "e1", "is_read": false, "subject": "s"}}))

	err := store.Update("e1", domain.EmailRecord{"is_read": true, "is_archived": true})
	require.NoError(t, err)

	rec, err := store.Get("e1")
	require.NoError(t, err)
	assert.True(t, rec.GetBool("is_read"))
	assert.True(t, rec.GetBool("is_archived"))
	assert.Equal(t, "s", rec.GetString("subject"))
}

func TestMemoryStore_UpdateMissingIsNoop(t *testing.T) {
	store := NewStore()

	err := store.Update("missing", domain.EmailRecord{"is_read": true})
	require.NoError(t, err)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Upsert([]domain.EmailRecord{{"id": "e1"}}))

	require.NoError(t, store.Delete("e1"))
	_, err := store.Get("e1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	// Second delete does not error
	assert.NoError(t, store.Delete("e1"))
}

func TestMemoryStore_Health(t *testing.T) {
	store := NewStore()
	assert.NoError(t, store.Health())
	assert.NoError(t, store.Close())
}
