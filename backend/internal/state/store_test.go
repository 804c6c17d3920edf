package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStore_LoadAbsentFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.json"), 1000)
	wm := s.Load()
	assert.NotNil(t, wm)
	assert.Empty(t, wm.SeenIDs)
	assert.False(t, wm.Seen("anything"))
}

func TestStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	assert.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewStore(path, 1000)
	wm := s.Load()
	assert.NotNil(t, wm)
	assert.Empty(t, wm.SeenIDs)
}

func TestStore_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStore(path, 1000)

	wm := NewWatermark()
	wm.Observe("100")
	wm.Observe("101")
	wm.LastRunAt = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	wm.Mode = "full"
	wm.TotalBookmarks = 2

	assert.NoError(t, s.Save(wm))

	loaded := s.Load()
	assert.Equal(t, []string{"100", "101"}, loaded.SeenIDs)
	assert.Equal(t, "101", loaded.LastItemID)
	assert.Equal(t, "full", loaded.Mode)
	assert.Equal(t, 2, loaded.TotalBookmarks)
	assert.True(t, loaded.Seen("100"))
	assert.False(t, loaded.Seen("999"))
}

func TestStore_SaveTrimsToCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStore(path, 3)

	wm := NewWatermark()
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		wm.Observe(id)
	}
	assert.NoError(t, s.Save(wm))

	loaded := s.Load()
	// Only the most recent ids survive.
	assert.Equal(t, []string{"3", "4", "5"}, loaded.SeenIDs)
	assert.False(t, loaded.Seen("1"))
	assert.True(t, loaded.Seen("5"))
}

func TestStore_SaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	s := NewStore(path, 1000)

	wm := NewWatermark()
	wm.Observe("42")
	assert.NoError(t, s.Save(wm))

	// The directory must hold only the final file, no leftover temp files.
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())

	// And the file is complete valid JSON.
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	var decoded map[string]interface{}
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "seen_tweet_ids")
}

func TestWatermark_ObserveDedupes(t *testing.T) {
	wm := NewWatermark()
	wm.Observe("7")
	wm.Observe("7")
	wm.Observe("8")
	assert.Equal(t, []string{"7", "8"}, wm.SeenIDs)
	assert.Equal(t, "8", wm.LastItemID)
}
