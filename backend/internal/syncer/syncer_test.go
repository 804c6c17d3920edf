package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"tweet-graph/backend/internal/bookmark"
	"tweet-graph/backend/internal/graph"
	"tweet-graph/backend/internal/state"
	apperrors "tweet-graph/backend/pkg/errors"
)

type fakeCollector struct {
	items []*bookmark.Item
	err   error
}

func (f *fakeCollector) Collect(ctx context.Context, mode bookmark.SyncMode, wm *state.Watermark) ([]*bookmark.Item, error) {
	return f.items, f.err
}

type fakeResolver struct {
	records map[string]bookmark.FullRecord
	err     error
	calls   int
}

func (f *fakeResolver) FetchBatch(ctx context.Context, ids []string) (map[string]bookmark.FullRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bookmark.FullRecord)
	for _, id := range ids {
		if rec, ok := f.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

type fakeReconciler struct {
	mu       sync.Mutex
	outcomes map[string]graph.Outcome
	errs     map[string]error
	merged   map[string]*bookmark.Item
}

func newFakeReconciler() *fakeReconciler {
	return &fakeReconciler{
		outcomes: map[string]graph.Outcome{},
		errs:     map[string]error{},
		merged:   map[string]*bookmark.Item{},
	}
}

func (f *fakeReconciler) Reconcile(ctx context.Context, item *bookmark.Item) (graph.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[item.ID]; ok {
		return graph.OutcomeSkipped, err
	}
	f.merged[item.ID] = item
	if out, ok := f.outcomes[item.ID]; ok {
		return out, nil
	}
	return graph.OutcomeStored, nil
}

func feedItem(id string, truncated bool) *bookmark.Item {
	return &bookmark.Item{ID: id, Text: "text " + id, IsTruncated: truncated}
}

func newTestSyncer(t *testing.T, c *fakeCollector, r *fakeResolver, rec *fakeReconciler) (*Syncer, *state.Store) {
	t.Helper()
	states := state.NewStore(filepath.Join(t.TempDir(), "state.json"), 1000)
	var s *Syncer
	if r != nil {
		s = NewSyncer(c, r, rec, states, 100)
	} else {
		s = NewSyncer(c, nil, rec, states, 100)
	}
	return s, states
}

func TestRunSync_CountsOutcomes(t *testing.T) {
	collector := &fakeCollector{items: []*bookmark.Item{
		feedItem("1", false),
		feedItem("2", false),
		feedItem("3", false),
		feedItem("4", false),
	}}
	rec := newFakeReconciler()
	rec.outcomes["2"] = graph.OutcomeUpdated
	rec.outcomes["3"] = graph.OutcomeSkipped
	rec.errs["4"] = apperrors.NewStoreFailed("4", errors.New("write failed"))

	s, states := newTestSyncer(t, collector, nil, rec)
	summary, err := s.RunSync(context.Background(), bookmark.ModeIncremental)
	assert.NoError(t, err)

	assert.Equal(t, 4, summary.TotalReceived)
	assert.Equal(t, 1, summary.NewStored)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.DuplicatesSkipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Enriched)
	assert.NotEmpty(t, summary.RunID)

	// Failed items are not checkpointed, so the next run retries them.
	wm := states.Load()
	assert.True(t, wm.Seen("1"))
	assert.True(t, wm.Seen("3"))
	assert.False(t, wm.Seen("4"))
	assert.Equal(t, "incremental", wm.Mode)
	assert.False(t, wm.LastRunAt.IsZero())
}

func TestRunSync_EnrichedOnlyCountsResolverRepairs(t *testing.T) {
	collector := &fakeCollector{items: []*bookmark.Item{
		feedItem("10", true),  // repaired by the resolver, then updated
		feedItem("11", true),  // repaired, but storage already had it
		feedItem("12", false), // full from capture: updated but never enriched
	}}
	resolver := &fakeResolver{records: map[string]bookmark.FullRecord{
		"10": {ID: "10", Text: "full ten."},
		"11": {ID: "11", Text: "full eleven."},
	}}
	rec := newFakeReconciler()
	rec.outcomes["10"] = graph.OutcomeUpdated
	rec.outcomes["11"] = graph.OutcomeSkipped
	rec.outcomes["12"] = graph.OutcomeUpdated

	s, _ := newTestSyncer(t, collector, resolver, rec)
	summary, err := s.RunSync(context.Background(), bookmark.ModeFull)
	assert.NoError(t, err)

	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 1, summary.Enriched)
	assert.Equal(t, 1, summary.DuplicatesSkipped)

	// The repaired item reached the reconciler with the full text.
	assert.Equal(t, "full ten.", rec.merged["10"].Text)
	assert.False(t, rec.merged["10"].IsTruncated)
}

func TestRunSync_CollectorErrorIsFatal(t *testing.T) {
	collector := &fakeCollector{err: apperrors.NewCaptureFailed("wait for feed", "sel", nil)}
	s, _ := newTestSyncer(t, collector, nil, newFakeReconciler())

	summary, err := s.RunSync(context.Background(), bookmark.ModeFull)
	assert.Error(t, err)
	assert.Equal(t, 0, summary.TotalReceived)
}

func TestRunSync_RateLimitHaltsEnrichmentNotSync(t *testing.T) {
	collector := &fakeCollector{items: []*bookmark.Item{
		feedItem("20", true),
		feedItem("21", true),
	}}
	resolver := &fakeResolver{err: apperrors.NewRateLimited(time.Now().Add(10 * time.Minute))}
	rec := newFakeReconciler()

	s, states := newTestSyncer(t, collector, resolver, rec)
	summary, err := s.RunSync(context.Background(), bookmark.ModeIncremental)
	assert.NoError(t, err)

	// Clipped text still merges and checkpoints.
	assert.Equal(t, 2, summary.NewStored)
	assert.Equal(t, 0, summary.Enriched)
	assert.True(t, rec.merged["20"].IsTruncated)
	assert.True(t, states.Load().Seen("21"))
	assert.Equal(t, 1, resolver.calls)
}

func TestRunSync_NoNewItemsStillCheckpoints(t *testing.T) {
	collector := &fakeCollector{}
	s, states := newTestSyncer(t, collector, nil, newFakeReconciler())

	summary, err := s.RunSync(context.Background(), bookmark.ModeIncremental)
	assert.NoError(t, err)
	assert.Equal(t, 0, summary.TotalReceived)

	wm := states.Load()
	assert.False(t, wm.LastRunAt.IsZero())
	assert.Equal(t, "incremental", wm.Mode)
}

func TestRunSync_NoResolverLeavesTruncated(t *testing.T) {
	collector := &fakeCollector{items: []*bookmark.Item{feedItem("30", true)}}
	rec := newFakeReconciler()

	s, _ := newTestSyncer(t, collector, nil, rec)
	summary, err := s.RunSync(context.Background(), bookmark.ModeFull)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.NewStored)
	assert.Equal(t, 0, summary.Enriched)
	assert.True(t, rec.merged["30"].IsTruncated)
}
