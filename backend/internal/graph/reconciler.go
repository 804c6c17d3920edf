package graph

import (
	"context"

	"tweet-graph/backend/internal/bookmark"
	"tweet-graph/backend/pkg/logger"
	"go.uber.org/zap"
)

// Outcome classifies what a reconciliation did with one item.
type Outcome int

const (
	// OutcomeStored means the item was new and is now in the graph.
	OutcomeStored Outcome = iota
	// OutcomeUpdated means an existing tweet was improved (fuller text or
	// a backfilled author).
	OutcomeUpdated
	// OutcomeSkipped means storage already held an equal or better record.
	OutcomeSkipped
)

// tweetStore is the storage surface the merge policy needs. Repository
// satisfies it; tests substitute an in-memory fake.
type tweetStore interface {
	TweetState(ctx context.Context, tweetID string) (TweetState, error)
	StoreTweet(ctx context.Context, item *bookmark.Item) error
	UpdateTweetText(ctx context.Context, item *bookmark.Item) error
	BackfillAuthor(ctx context.Context, tweetID, username string) error
}

// Reconciler applies the merge policy: new items are stored, truncated
// records are upgraded by full ones, full records are never regressed, and
// a missing author can always be backfilled.
type Reconciler struct {
	store  tweetStore
	logger *zap.Logger
}

// NewReconciler creates a reconciler over the repository.
func NewReconciler(store tweetStore) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger.Get(),
	}
}

// Reconcile merges one item into storage and reports what happened.
// Replaying the same item yields OutcomeSkipped, so a crashed run can be
// safely re-run end to end.
func (rc *Reconciler) Reconcile(ctx context.Context, item *bookmark.Item) (Outcome, error) {
	st, err := rc.store.TweetState(ctx, item.ID)
	if err != nil {
		return OutcomeSkipped, err
	}

	if !st.Exists {
		if err := rc.store.StoreTweet(ctx, item); err != nil {
			return OutcomeSkipped, err
		}
		return OutcomeStored, nil
	}

	if st.IsTruncated && !item.IsTruncated {
		if err := rc.store.UpdateTweetText(ctx, item); err != nil {
			return OutcomeSkipped, err
		}
		rc.logger.Debug("Truncated tweet upgraded", zap.String("tweet_id", item.ID))
		return OutcomeUpdated, nil
	}

	if !st.HasAuthor && item.AuthorUsername != "" {
		if err := rc.store.BackfillAuthor(ctx, item.ID, item.AuthorUsername); err != nil {
			return OutcomeSkipped, err
		}
		rc.logger.Debug("Author backfilled",
			zap.String("tweet_id", item.ID), zap.String("author", item.AuthorUsername))
		return OutcomeUpdated, nil
	}

	return OutcomeSkipped, nil
}
