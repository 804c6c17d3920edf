package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	apperrors "tweet-graph/backend/pkg/errors"
	"tweet-graph/backend/pkg/logger"
	"go.uber.org/zap"
)

// Watermark marks how far a previous run progressed. It is loaded at
// collector start, mutated only after a successful sync, and persisted
// atomically at end of run.
type Watermark struct {
	LastRunAt      time.Time `json:"last_run_at"`
	LastItemID     string    `json:"last_item_id"`
	SeenIDs        []string  `json:"seen_tweet_ids"`
	TotalBookmarks int       `json:"total_bookmarks"`
	Mode           string    `json:"mode"`

	index map[string]struct{}
}

// NewWatermark returns an empty watermark.
func NewWatermark() *Watermark {
	return &Watermark{index: make(map[string]struct{})}
}

// Seen reports whether id was delivered to storage by a previous run.
func (w *Watermark) Seen(id string) bool {
	if w.index == nil {
		w.reindex()
	}
	_, ok := w.index[id]
	return ok
}

// Observe records an id as delivered. Most-recent ids sit at the end of
// SeenIDs; Store.Save trims the front when over capacity.
func (w *Watermark) Observe(id string) {
	if w.index == nil {
		w.reindex()
	}
	if _, ok := w.index[id]; ok {
		return
	}
	w.index[id] = struct{}{}
	w.SeenIDs = append(w.SeenIDs, id)
	w.LastItemID = id
}

func (w *Watermark) reindex() {
	w.index = make(map[string]struct{}, len(w.SeenIDs))
	for _, id := range w.SeenIDs {
		w.index[id] = struct{}{}
	}
}

// Store persists the watermark as a JSON file between runs.
type Store struct {
	path     string
	capacity int
	logger   *zap.Logger
}

// NewStore creates a store. capacity bounds the seen-id set to the most
// recent N entries.
func NewStore(path string, capacity int) *Store {
	return &Store{
		path:     path,
		capacity: capacity,
		logger:   logger.Get(),
	}
}

// Load reads the persisted watermark. An absent or corrupt file yields a
// default empty watermark, never an error: losing the watermark only costs
// one full re-scan, while failing the run would cost the sync.
func (s *Store) Load() *Watermark {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read sync state, starting fresh",
				zap.String("path", s.path), zap.Error(err))
		}
		return NewWatermark()
	}

	w := NewWatermark()
	if err := json.Unmarshal(data, w); err != nil {
		s.logger.Warn("Corrupt sync state, starting fresh",
			zap.String("path", s.path), zap.Error(err))
		return NewWatermark()
	}
	w.reindex()
	return w
}

// Save writes the watermark atomically (temp file + rename) so a crash
// mid-write cannot corrupt the previous valid state.
func (s *Store) Save(w *Watermark) error {
	if s.capacity > 0 && len(w.SeenIDs) > s.capacity {
		w.SeenIDs = w.SeenIDs[len(w.SeenIDs)-s.capacity:]
		w.reindex()
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return apperrors.NewStateSaveFailed(s.path, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return apperrors.NewStateSaveFailed(s.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.NewStateSaveFailed(s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStateSaveFailed(s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStateSaveFailed(s.path, err)
	}

	return nil
}
