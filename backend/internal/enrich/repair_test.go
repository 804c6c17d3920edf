package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"tweet-graph/backend/internal/bookmark"
	"tweet-graph/backend/internal/graph"
	apperrors "tweet-graph/backend/pkg/errors"
)

type fakeTruncatedStore struct {
	truncated []graph.StoredTweet
	updated   map[string]*bookmark.Item
	updateErr error
}

func (f *fakeTruncatedStore) GetTruncated(ctx context.Context) ([]graph.StoredTweet, error) {
	return f.truncated, nil
}

func (f *fakeTruncatedStore) UpdateTweetText(ctx context.Context, item *bookmark.Item) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updated == nil {
		f.updated = map[string]*bookmark.Item{}
	}
	f.updated[item.ID] = item
	return nil
}

func TestRepairStored_WritesFullText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data": [{"id": "1", "text": "the restored full text.", "author_id": "u1"}],
			"includes": {"users": [{"id": "u1", "username": "alice"}]}
		}`))
	}))
	defer srv.Close()

	store := &fakeTruncatedStore{truncated: []graph.StoredTweet{
		{ID: "1", Text: "the restored fu", Truncated: true},
		{ID: "2", Text: "gone from the source", Truncated: true},
	}}
	resolver := NewResolver(srv.URL, "tok", 300)

	result, err := RepairStored(context.Background(), store, resolver, 100)
	assert.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Repaired)
	assert.Equal(t, 1, result.Absent)
	assert.Equal(t, 0, result.Failed)

	assert.Equal(t, "the restored full text.", store.updated["1"].Text)
	assert.Equal(t, "alice", store.updated["1"].AuthorUsername)
	assert.False(t, store.updated["1"].IsTruncated)
}

func TestRepairStored_NothingToRepair(t *testing.T) {
	store := &fakeTruncatedStore{}
	resolver := NewResolver("http://unused.invalid", "tok", 300)

	result, err := RepairStored(context.Background(), store, resolver, 100)
	assert.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}

func TestRepairStored_RateLimitEndsPass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	store := &fakeTruncatedStore{truncated: []graph.StoredTweet{
		{ID: "1", Truncated: true},
	}}
	resolver := NewResolver(srv.URL, "tok", 300)

	result, err := RepairStored(context.Background(), store, resolver, 100)
	assert.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))
	assert.Equal(t, 0, result.Repaired)
}
