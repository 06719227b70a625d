package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReceivedDate(t *testing.T) {
	cases := []struct {
		input string
		want  time.Time
	}{
		{"2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01T10:00:00.250Z", time.Date(2024, 3, 1, 10, 0, 0, 250_000_000, time.UTC)},
		{"2024-03-01T10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01 10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"  2024-03-01T10:00:00Z  ", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, ok := ParseReceivedDate(tc.input)
		require.True(t, ok, "input %q", tc.input)
		assert.True(t, tc.want.Equal(got), "input %q: got %v", tc.input, got)
	}

	for _, input := range []string{"", "   ", "yesterday", "13/45/2024"} {
		_, ok := ParseReceivedDate(input)
		assert.False(t, ok, "input %q should not parse", input)
	}
}

func TestSortByReceivedDesc(t *testing.T) {
	records := []EmailRecord{
		{"id": "old", "received_date": "2024-01-01T00:00:00.000Z"},
		{"id": "broken-1", "received_date": "???"},
		{"id": "new", "received_date": "2024-06-01T00:00:00.000Z"},
		{"id": "broken-2"},
		{"id": "mid", "received_date": "2024-03-01T00:00:00.000Z"},
	}

	SortByReceivedDesc(records)

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID()
	}
	// Newest first, unparseable dates after all valid ones, stable among themselves
	assert.Equal(t, []string{"new", "mid", "old", "broken-1", "broken-2"}, ids)
}

func TestEmailRecord_CloneAndMerge(t *testing.T) {
	rec := EmailRecord{"id": "a", "subject": "s"}

	clone := rec.Clone()
	clone["subject"] = "changed"
	assert.Equal(t, "s", rec.GetString("subject"))

	rec.Merge(EmailRecord{"subject": "merged", "is_read": true})
	assert.Equal(t, "merged", rec.GetString("subject"))
	assert.True(t, rec.GetBool("is_read"))
	assert.Equal(t, "a", rec.ID())
}
