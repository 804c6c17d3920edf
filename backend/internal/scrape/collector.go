package scrape

import (
	"context"
	"time"

	"tweet-graph/backend/internal/bookmark"
	"tweet-graph/backend/internal/capture"
	"tweet-graph/backend/internal/state"
	apperrors "tweet-graph/backend/pkg/errors"
	"tweet-graph/backend/pkg/logger"
	"go.uber.org/zap"
)

// CollectorConfig tunes the scroll/capture loop.
type CollectorConfig struct {
	BookmarksURL         string
	NavigateTimeout      time.Duration
	SettleDelay          time.Duration
	ScrollPixels         int
	StagnationThreshold  int
	MaxPassesFull        int
	MaxPassesIncremental int
}

// Collector drives the capture driver through repeated scroll/capture
// cycles, accumulating newly-seen items until convergence, stagnation, or
// the pass budget is exhausted.
type Collector struct {
	driver capture.Driver
	parser *Parser
	cfg    CollectorConfig
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration)
}

// NewCollector creates a collector over the given driver.
func NewCollector(driver capture.Driver, parser *Parser, cfg CollectorConfig) *Collector {
	return &Collector{
		driver: driver,
		parser: parser,
		cfg:    cfg,
		logger: logger.Get(),
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Collect runs the capture loop and returns newly-discovered items in
// first-seen order, with no duplicate ids. The watermark is read here but
// only mutated by the caller after a successful sync.
//
// Driver failures on the first pass are fatal; on later passes they act as
// an early stagnation signal and the accumulated items are still returned.
func (c *Collector) Collect(ctx context.Context, mode bookmark.SyncMode, wm *state.Watermark) ([]*bookmark.Item, error) {
	maxPasses := c.cfg.MaxPassesFull
	if mode == bookmark.ModeIncremental {
		maxPasses = c.cfg.MaxPassesIncremental
	}

	if err := c.driver.Navigate(ctx, c.cfg.BookmarksURL); err != nil {
		return nil, err
	}
	found, err := c.driver.WaitForElement(ctx, SelectorTweet, c.cfg.NavigateTimeout)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewCaptureFailed("wait for feed", SelectorTweet, nil)
	}

	var items []*bookmark.Item
	inRun := make(map[string]struct{})
	stagnation := 0
	prevCount := 0
	converged := false

	for pass := 1; pass <= maxPasses; pass++ {
		if ctx.Err() != nil {
			// Aborted between passes: keep what we have. Reconciliation is
			// idempotent, so a resumed run re-discovers anything missed.
			c.logger.Warn("Collection cancelled, keeping partial results",
				zap.Int("pass", pass), zap.Int("items", len(items)))
			break
		}

		handles, err := c.driver.QueryAll(ctx, SelectorTweet)
		if err != nil {
			if pass == 1 {
				return nil, err
			}
			c.logger.Warn("Capture failed mid-run, stopping early",
				zap.Int("pass", pass), zap.Error(err))
			break
		}

		for _, h := range handles {
			item := c.parser.Parse(ctx, c.driver, h)
			if item == nil {
				continue
			}
			if _, dup := inRun[item.ID]; dup {
				continue
			}
			if mode == bookmark.ModeIncremental && wm.Seen(item.ID) {
				// The feed is newest-first: a known id means everything
				// after it is already stored.
				c.logger.Info("Convergence reached",
					zap.String("tweet_id", item.ID), zap.Int("pass", pass))
				converged = true
				break
			}
			inRun[item.ID] = struct{}{}
			items = append(items, item)
		}
		if converged {
			break
		}

		if len(items) == prevCount {
			stagnation++
		} else {
			stagnation = 0
		}
		prevCount = len(items)

		c.logger.Debug("Capture pass complete",
			zap.Int("pass", pass),
			zap.Int("accumulated", len(items)),
			zap.Int("stagnation", stagnation),
		)

		if stagnation >= c.cfg.StagnationThreshold {
			c.logger.Info("Feed exhausted", zap.Int("passes", pass), zap.Int("items", len(items)))
			break
		}
		if pass == maxPasses {
			c.logger.Warn("Pass budget reached", zap.Int("max_passes", maxPasses))
			break
		}

		if err := c.driver.ScrollBy(ctx, c.cfg.ScrollPixels); err != nil {
			c.logger.Warn("Scroll failed, stopping early", zap.Int("pass", pass), zap.Error(err))
			break
		}
		c.sleep(ctx, c.cfg.SettleDelay)
	}

	return items, nil
}
