package enrich

import (
	"context"
	"time"

	"tweet-graph/backend/internal/bookmark"
	"tweet-graph/backend/internal/graph"
	apperrors "tweet-graph/backend/pkg/errors"
	"tweet-graph/backend/pkg/logger"
	"go.uber.org/zap"
)

// truncatedStore is the storage surface the repair pass needs.
type truncatedStore interface {
	GetTruncated(ctx context.Context) ([]graph.StoredTweet, error)
	UpdateTweetText(ctx context.Context, item *bookmark.Item) error
}

// RepairResult summarizes a repair pass over stored truncated tweets.
type RepairResult struct {
	Total    int `json:"total"`
	Repaired int `json:"repaired"`
	Absent   int `json:"absent"`
	Failed   int `json:"failed"`
}

// RepairStored fetches full text for every tweet stored as truncated and
// writes it back. Ids the source no longer knows are counted as absent and
// left truncated. Rate-limit and auth failures end the pass with the partial
// result.
func RepairStored(ctx context.Context, store truncatedStore, r *Resolver, batchSize int) (*RepairResult, error) {
	log := logger.Get()
	if batchSize <= 0 || batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	truncated, err := store.GetTruncated(ctx)
	if err != nil {
		return nil, err
	}
	result := &RepairResult{Total: len(truncated)}
	if len(truncated) == 0 {
		return result, nil
	}
	log.Info("Repairing stored truncated tweets", zap.Int("count", len(truncated)))

	for start := 0; start < len(truncated); start += batchSize {
		end := start + batchSize
		if end > len(truncated) {
			end = len(truncated)
		}
		batch := truncated[start:end]

		ids := make([]string, 0, len(batch))
		for _, t := range batch {
			ids = append(ids, t.ID)
		}

		records, err := r.FetchBatch(ctx, ids)
		if err != nil {
			if apperrors.IsRateLimited(err) || apperrors.IsAuthFailure(err) {
				return result, err
			}
			result.Failed += len(batch)
			log.Warn("Repair batch failed, continuing", zap.Error(err))
			continue
		}

		for _, t := range batch {
			rec, ok := records[t.ID]
			if !ok {
				result.Absent++
				continue
			}
			item := &bookmark.Item{
				ID:          t.ID,
				Text:        t.Text,
				IsTruncated: true,
				CapturedAt:  time.Now().UTC(),
			}
			item.Apply(rec)
			if err := store.UpdateTweetText(ctx, item); err != nil {
				result.Failed++
				log.Error("Failed to write repaired tweet",
					zap.String("tweet_id", t.ID), zap.Error(err))
				continue
			}
			result.Repaired++
		}
	}

	log.Info("Repair pass complete",
		zap.Int("total", result.Total),
		zap.Int("repaired", result.Repaired),
		zap.Int("absent", result.Absent),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
