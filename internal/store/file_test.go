package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func TestSaveRecordWritesJSONWithTimestamp(t *testing.T) {
	t.Parallel()

	sink, err := NewFileSink(t.TempDir(), fixedClock{at: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	path, err := sink.SaveRecord(context.Background(), testRecord())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "rec-1", decoded["id"])
	require.Equal(t, "2026-03-14T09:00:00Z", decoded["_saved_at"])
}

func TestSaveRecordSanitizesFilename(t *testing.T) {
	t.Parallel()

	sink, err := NewFileSink(t.TempDir(), fixedClock{at: time.Now()})
	require.NoError(t, err)

	record := testRecord()
	record.ID = "weird/id with:chars"
	path, err := sink.SaveRecord(context.Background(), record)
	require.NoError(t, err)
	require.Contains(t, path, "weird_id_with_chars.json")
}

func TestSaveRecordRequiresID(t *testing.T) {
	t.Parallel()

	sink, err := NewFileSink(t.TempDir(), fixedClock{at: time.Now()})
	require.NoError(t, err)

	record := testRecord()
	record.ID = ""
	_, err = sink.SaveRecord(context.Background(), record)
	require.Error(t, err)
}
