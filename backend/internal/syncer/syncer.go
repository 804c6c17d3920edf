package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"tweet-graph/backend/internal/bookmark"
	"tweet-graph/backend/internal/graph"
	"tweet-graph/backend/internal/state"
	apperrors "tweet-graph/backend/pkg/errors"
	"tweet-graph/backend/pkg/logger"
	"go.uber.org/zap"
)

// mergeConcurrency bounds parallel writes into the graph.
const mergeConcurrency = 4

// itemCollector captures the current bookmark feed.
type itemCollector interface {
	Collect(ctx context.Context, mode bookmark.SyncMode, wm *state.Watermark) ([]*bookmark.Item, error)
}

// batchResolver fetches full records for truncated captures.
type batchResolver interface {
	FetchBatch(ctx context.Context, ids []string) (map[string]bookmark.FullRecord, error)
}

// itemReconciler merges one item into the graph.
type itemReconciler interface {
	Reconcile(ctx context.Context, item *bookmark.Item) (graph.Outcome, error)
}

// Syncer runs the capture, enrich, merge, checkpoint pipeline end to end.
type Syncer struct {
	collector  itemCollector
	resolver   batchResolver
	reconciler itemReconciler
	states     *state.Store
	batchSize  int
	logger     *zap.Logger
	now        func() time.Time
}

// NewSyncer wires the pipeline. resolver may be nil when no API token is
// configured; truncated items then stay truncated until a later run.
func NewSyncer(collector itemCollector, resolver batchResolver, reconciler itemReconciler, states *state.Store, batchSize int) *Syncer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Syncer{
		collector:  collector,
		resolver:   resolver,
		reconciler: reconciler,
		states:     states,
		batchSize:  batchSize,
		logger:     logger.Get(),
		now:        time.Now,
	}
}

// RunSync executes one full or incremental sync. The summary is returned
// even when the run ends with an error after items were processed.
func (s *Syncer) RunSync(ctx context.Context, mode bookmark.SyncMode) (*bookmark.SyncSummary, error) {
	summary := &bookmark.SyncSummary{
		RunID: uuid.NewString(),
		Mode:  string(mode),
	}
	s.logger.Info("Sync started",
		zap.String("run_id", summary.RunID), zap.String("mode", string(mode)))

	wm := s.states.Load()

	items, err := s.collector.Collect(ctx, mode, wm)
	if err != nil {
		return summary, err
	}
	summary.TotalReceived = len(items)

	if len(items) == 0 {
		// No new items, but the run timestamp still advances.
		wm.LastRunAt = s.now().UTC()
		wm.Mode = string(mode)
		if err := s.states.Save(wm); err != nil {
			return summary, err
		}
		s.logger.Info("Sync complete, nothing new", zap.String("run_id", summary.RunID))
		return summary, nil
	}

	enriched := s.enrichTruncated(ctx, items)

	type mergeResult struct {
		outcome graph.Outcome
		err     error
	}
	results := make([]mergeResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mergeConcurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			out, err := s.reconciler.Reconcile(gctx, item)
			results[i] = mergeResult{outcome: out, err: err}
			// Store failures are per-item, never run-fatal.
			return nil
		})
	}
	_ = g.Wait()

	for i, item := range items {
		res := results[i]
		if res.err != nil {
			summary.Failed++
			s.logger.Error("Failed to merge item",
				zap.String("tweet_id", item.ID), zap.Error(res.err))
			continue
		}
		switch res.outcome {
		case graph.OutcomeStored:
			summary.NewStored++
		case graph.OutcomeUpdated:
			summary.Updated++
		case graph.OutcomeSkipped:
			summary.DuplicatesSkipped++
		}
		if _, ok := enriched[item.ID]; ok && res.outcome != graph.OutcomeSkipped {
			summary.Enriched++
		}
		// Failed items are deliberately not observed so the next run retries.
		wm.Observe(item.ID)
	}

	wm.LastRunAt = s.now().UTC()
	wm.Mode = string(mode)
	wm.TotalBookmarks += summary.NewStored

	if err := s.states.Save(wm); err != nil {
		s.logger.Error("Failed to persist sync state", zap.Error(err))
		return summary, err
	}

	s.logger.Info("Sync complete",
		zap.String("run_id", summary.RunID),
		zap.Int("total_received", summary.TotalReceived),
		zap.Int("new_stored", summary.NewStored),
		zap.Int("updated", summary.Updated),
		zap.Int("enriched", summary.Enriched),
		zap.Int("duplicates_skipped", summary.DuplicatesSkipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// enrichTruncated repairs truncated items in place through the resolver and
// returns the set of ids that received full text. Rate-limit and auth
// failures stop enrichment but never the sync: clipped text still merges.
func (s *Syncer) enrichTruncated(ctx context.Context, items []*bookmark.Item) map[string]struct{} {
	repaired := make(map[string]struct{})
	if s.resolver == nil {
		return repaired
	}

	byID := make(map[string]*bookmark.Item)
	var ids []string
	for _, it := range items {
		if it.IsTruncated {
			byID[it.ID] = it
			ids = append(ids, it.ID)
		}
	}
	if len(ids) == 0 {
		return repaired
	}
	s.logger.Info("Enriching truncated items", zap.Int("count", len(ids)))

	for start := 0; start < len(ids); start += s.batchSize {
		end := start + s.batchSize
		if end > len(ids) {
			end = len(ids)
		}

		records, err := s.resolver.FetchBatch(ctx, ids[start:end])
		if err != nil {
			if apperrors.IsRateLimited(err) || apperrors.IsAuthFailure(err) {
				s.logger.Warn("Enrichment halted, merging clipped text", zap.Error(err))
				break
			}
			s.logger.Warn("Enrichment batch failed, continuing", zap.Error(err))
			continue
		}

		for id, rec := range records {
			if item, ok := byID[id]; ok {
				item.Apply(rec)
				repaired[id] = struct{}{}
			}
		}
	}

	s.logger.Info("Enrichment finished",
		zap.Int("truncated", len(ids)), zap.Int("repaired", len(repaired)))
	return repaired
}
