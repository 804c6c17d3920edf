package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"tweet-graph/backend/internal/bookmark"
	"tweet-graph/backend/internal/themes"
	apperrors "tweet-graph/backend/pkg/errors"
	"go.uber.org/zap"
)

// StoreTweet merges a tweet and all of its relationships into the graph.
// Every node is merged on its natural key, so replaying the same item is a
// no-op at the graph level.
func (r *Repository) StoreTweet(ctx context.Context, item *bookmark.Item) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	embedding, err := r.embed(ctx, item.Text)
	if err != nil {
		r.logger.Warn("Embedding failed, storing without one",
			zap.String("tweet_id", item.ID), zap.Error(err))
	}

	query := `
		MERGE (t:Tweet {id: $id})
		SET t.text = $text,
		    t.captured_at = $captured_at,
		    t.bookmark_url = $bookmark_url,
		    t.truncated = $truncated,
		    t.fetch_method = $fetch_method,
		    t.author_username = $author_username

		WITH t
		FOREACH (_ IN CASE WHEN $author_username <> '' THEN [1] ELSE [] END |
			MERGE (author:User {username: $author_username})
			MERGE (author)-[:POSTED]->(t)
		)

		FOREACH (tag IN $hashtags |
			MERGE (h:Hashtag {tag: tag})
			MERGE (t)-[:HAS_HASHTAG]->(h)
		)
		FOREACH (mention IN $mentions |
			MERGE (m:User {username: mention})
			MERGE (t)-[:MENTIONS]->(m)
		)
		FOREACH (url IN $urls |
			MERGE (u:URL {url: url})
			MERGE (t)-[:CONTAINS_URL]->(u)
		)
		FOREACH (_ IN CASE WHEN $reply_to <> '' THEN [1] ELSE [] END |
			MERGE (reply:Tweet {id: $reply_to})
			MERGE (t)-[:REPLY_TO]->(reply)
		)
		FOREACH (_ IN CASE WHEN $quote_of <> '' THEN [1] ELSE [] END |
			MERGE (quoted:Tweet {id: $quote_of})
			MERGE (t)-[:QUOTES]->(quoted)
		)

		RETURN t.id as id
	`

	params := map[string]interface{}{
		"id":              item.ID,
		"text":            item.Text,
		"captured_at":     item.CapturedAt.UTC().Format(time.RFC3339),
		"bookmark_url":    item.SourceURL,
		"truncated":       item.IsTruncated,
		"fetch_method":    item.FetchMethod,
		"author_username": item.AuthorUsername,
		"hashtags":        emptyIfNil(item.Hashtags),
		"mentions":        emptyIfNil(item.Mentions),
		"urls":            emptyIfNil(item.URLs),
		"reply_to":        item.ReplyTo,
		"quote_of":        item.QuoteOf,
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return apperrors.NewStoreFailed(item.ID, err)
	}
	if _, err := result.Single(ctx); err != nil {
		return apperrors.NewStoreFailed(item.ID, err)
	}

	if embedding != nil {
		if _, err := session.Run(ctx, `
			MATCH (t:Tweet {id: $id}) SET t.embedding = $embedding
		`, map[string]interface{}{"id": item.ID, "embedding": embedding}); err != nil {
			r.logger.Warn("Failed to attach embedding",
				zap.String("tweet_id", item.ID), zap.Error(err))
		}
	}

	return r.mergeThemes(ctx, session, item.ID, item.Text)
}

// UpdateTweetText replaces a tweet's text with the full version, clears the
// truncation flag, and refreshes relationships from the new text.
func (r *Repository) UpdateTweetText(ctx context.Context, item *bookmark.Item) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	embedding, err := r.embed(ctx, item.Text)
	if err != nil {
		r.logger.Warn("Embedding failed during update",
			zap.String("tweet_id", item.ID), zap.Error(err))
	}

	query := `
		MATCH (t:Tweet {id: $id})
		SET t.text = $text,
		    t.truncated = false,
		    t.fetch_method = $fetch_method

		WITH t
		FOREACH (_ IN CASE WHEN $author_username <> '' THEN [1] ELSE [] END |
			SET t.author_username = $author_username
			MERGE (author:User {username: $author_username})
			MERGE (author)-[:POSTED]->(t)
		)

		FOREACH (tag IN $hashtags |
			MERGE (h:Hashtag {tag: tag})
			MERGE (t)-[:HAS_HASHTAG]->(h)
		)
		FOREACH (mention IN $mentions |
			MERGE (m:User {username: mention})
			MERGE (t)-[:MENTIONS]->(m)
		)
		FOREACH (url IN $urls |
			MERGE (u:URL {url: url})
			MERGE (t)-[:CONTAINS_URL]->(u)
		)

		RETURN t.id as id
	`

	params := map[string]interface{}{
		"id":              item.ID,
		"text":            item.Text,
		"fetch_method":    item.FetchMethod,
		"author_username": item.AuthorUsername,
		"hashtags":        emptyIfNil(item.Hashtags),
		"mentions":        emptyIfNil(item.Mentions),
		"urls":            emptyIfNil(item.URLs),
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return apperrors.NewStoreFailed(item.ID, err)
	}
	if _, err := result.Single(ctx); err != nil {
		return apperrors.NewStoreFailed(item.ID, err)
	}

	if embedding != nil {
		if _, err := session.Run(ctx, `
			MATCH (t:Tweet {id: $id}) SET t.embedding = $embedding
		`, map[string]interface{}{"id": item.ID, "embedding": embedding}); err != nil {
			r.logger.Warn("Failed to attach embedding",
				zap.String("tweet_id", item.ID), zap.Error(err))
		}
	}

	return r.mergeThemes(ctx, session, item.ID, item.Text)
}

// BackfillAuthor attaches the author to an existing tweet.
func (r *Repository) BackfillAuthor(ctx context.Context, tweetID, username string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (t:Tweet {id: $id})
		SET t.author_username = $author
		WITH t
		MERGE (u:User {username: $author})
		MERGE (u)-[:POSTED]->(t)
		RETURN t.id as id
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"id":     tweetID,
		"author": username,
	})
	if err != nil {
		return apperrors.NewStoreFailed(tweetID, err)
	}
	if _, err := result.Single(ctx); err != nil {
		return apperrors.NewStoreFailed(tweetID, err)
	}
	return nil
}

// TweetState returns the storage-side view the merge policy compares against.
func (r *Repository) TweetState(ctx context.Context, tweetID string) (TweetState, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (t:Tweet {id: $id})
		RETURN coalesce(t.truncated, true) as truncated,
		       coalesce(t.author_username, '') <> '' as has_author
	`
	result, err := session.Run(ctx, query, map[string]interface{}{"id": tweetID})
	if err != nil {
		return TweetState{}, fmt.Errorf("failed to query tweet state: %w", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return TweetState{}, fmt.Errorf("failed to fetch tweet state: %w", err)
		}
		return TweetState{Exists: false}, nil
	}
	record := result.Record()
	return TweetState{
		Exists:      true,
		IsTruncated: getBool(record, "truncated", true),
		HasAuthor:   getBool(record, "has_author", false),
	}, nil
}

// mergeThemes derives themes and entities from the current text and merges
// them. Derivation runs on every store so enriched text always wins.
func (r *Repository) mergeThemes(ctx context.Context, session neo4j.SessionWithContext, tweetID, text string) error {
	themeNames, entityNames := themes.Extract(text)

	if len(themeNames) > 0 {
		_, err := session.Run(ctx, `
			MATCH (t:Tweet {id: $id})
			UNWIND $themes AS theme
			MERGE (th:Theme {name: theme})
			MERGE (t)-[:ABOUT_THEME]->(th)
		`, map[string]interface{}{"id": tweetID, "themes": themeNames})
		if err != nil {
			return apperrors.NewStoreFailed(tweetID, err)
		}
	}

	if len(entityNames) > 0 {
		_, err := session.Run(ctx, `
			MATCH (t:Tweet {id: $id})
			UNWIND $entities AS entity
			MERGE (e:Entity {name: entity})
			MERGE (t)-[:MENTIONS_ENTITY]->(e)
		`, map[string]interface{}{"id": tweetID, "entities": entityNames})
		if err != nil {
			return apperrors.NewStoreFailed(tweetID, err)
		}
	}

	return nil
}

func (r *Repository) embed(ctx context.Context, text string) ([]float32, error) {
	if r.embedder == nil || !r.embedder.Enabled() {
		return nil, nil
	}
	return r.embedder.Embed(ctx, text)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
