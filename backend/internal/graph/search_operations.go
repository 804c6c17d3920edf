package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// VectorSearch embeds the query text and returns the closest tweets by
// cosine similarity. Requires embeddings to be enabled.
func (r *Repository) VectorSearch(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if r.embedder == nil || !r.embedder.Enabled() {
		return nil, fmt.Errorf("vector search unavailable: embeddings not configured")
	}
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if limit <= 0 {
		limit = 10
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	cypher := `
		CALL db.index.vector.queryNodes('tweet_embedding', $limit, $embedding)
		YIELD node AS t, score
		OPTIONAL MATCH (u:User)-[:POSTED]->(t)
		RETURN t.id as id, t.text as text,
		       coalesce(u.username, t.author_username) as author,
		       score,
		       [(t)-[:HAS_HASHTAG]->(h) | h.tag] as hashtags
		ORDER BY score DESC
	`
	result, err := session.Run(ctx, cypher, map[string]interface{}{
		"embedding": embedding,
		"limit":     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	var hits []SearchResult
	for result.Next(ctx) {
		record := result.Record()
		hits = append(hits, SearchResult{
			ID:       getString(record, "id", ""),
			Text:     getString(record, "text", ""),
			Author:   getString(record, "author", ""),
			Score:    getFloat64(record, "score"),
			Hashtags: getStringSlice(record, "hashtags"),
		})
	}
	return hits, result.Err()
}

// GetTweet returns one tweet with its relationships, or nil when absent.
func (r *Repository) GetTweet(ctx context.Context, tweetID string) (*StoredTweet, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (t:Tweet {id: $id})
		OPTIONAL MATCH (u:User)-[:POSTED]->(t)
		WITH t, head(collect(u.username)) as posted_by
		RETURN t.id as id, t.text as text,
		       coalesce(t.truncated, true) as truncated,
		       coalesce(posted_by, t.author_username, '') as author,
		       t.captured_at as created_at,
		       [(t)-[:HAS_HASHTAG]->(h) | h.tag] as hashtags,
		       [(t)-[:ABOUT_THEME]->(th) | th.name] as themes,
		       [(t)-[:MENTIONS_ENTITY]->(e) | e.name] as entities
	`
	result, err := session.Run(ctx, query, map[string]interface{}{"id": tweetID})
	if err != nil {
		return nil, fmt.Errorf("failed to get tweet: %w", err)
	}
	if !result.Next(ctx) {
		return nil, result.Err()
	}
	record := result.Record()
	t := recordToTweet(record)
	return &t, nil
}

// GetTweets returns one page of tweets, newest capture first.
func (r *Repository) GetTweets(ctx context.Context, limit, offset int) (*TweetPage, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	countResult, err := session.Run(ctx, `MATCH (t:Tweet) RETURN count(t) as total`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count tweets: %w", err)
	}
	total := int64(0)
	if countResult.Next(ctx) {
		total = getInt64(countResult.Record(), "total")
	}

	result, err := session.Run(ctx, `
		MATCH (t:Tweet)
		OPTIONAL MATCH (u:User)-[:POSTED]->(t)
		WITH t, head(collect(u.username)) as posted_by
		RETURN t.id as id, t.text as text,
		       coalesce(t.truncated, true) as truncated,
		       coalesce(posted_by, t.author_username, '') as author,
		       t.captured_at as created_at,
		       [(t)-[:HAS_HASHTAG]->(h) | h.tag] as hashtags,
		       [(t)-[:ABOUT_THEME]->(th) | th.name] as themes,
		       [(t)-[:MENTIONS_ENTITY]->(e) | e.name] as entities
		ORDER BY t.captured_at DESC
		SKIP $offset
		LIMIT $limit
	`, map[string]interface{}{"offset": offset, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list tweets: %w", err)
	}

	page := &TweetPage{
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Tweets: []StoredTweet{},
	}
	for result.Next(ctx) {
		page.Tweets = append(page.Tweets, recordToTweet(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	page.HasMore = int64(offset+limit) < total
	return page, nil
}

// GetTruncated lists tweets still awaiting enrichment.
func (r *Repository) GetTruncated(ctx context.Context) ([]StoredTweet, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (t:Tweet)
		WHERE t.truncated = true OR t.truncated IS NULL
		OPTIONAL MATCH (u:User)-[:POSTED]->(t)
		WITH t, head(collect(u.username)) as posted_by
		RETURN t.id as id, t.text as text,
		       true as truncated,
		       coalesce(posted_by, t.author_username, '') as author,
		       t.captured_at as created_at,
		       [(t)-[:HAS_HASHTAG]->(h) | h.tag] as hashtags,
		       [] as themes, [] as entities
		ORDER BY t.captured_at DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list truncated tweets: %w", err)
	}

	var tweets []StoredTweet
	for result.Next(ctx) {
		tweets = append(tweets, recordToTweet(result.Record()))
	}
	return tweets, result.Err()
}

// GetStats returns node and relationship counts.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	stats := &Stats{}
	counts := []struct {
		query string
		dest  *int64
	}{
		{`MATCH (t:Tweet) RETURN count(t) as count`, &stats.Tweets},
		{`MATCH (u:User) RETURN count(u) as count`, &stats.Users},
		{`MATCH (h:Hashtag) RETURN count(h) as count`, &stats.Hashtags},
		{`MATCH (th:Theme) RETURN count(th) as count`, &stats.Themes},
		{`MATCH (e:Entity) RETURN count(e) as count`, &stats.Entities},
		{`MATCH ()-[r]->() RETURN count(r) as count`, &stats.Relationships},
	}

	for _, c := range counts {
		result, err := session.Run(ctx, c.query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to gather stats: %w", err)
		}
		if result.Next(ctx) {
			*c.dest = getInt64(result.Record(), "count")
		}
	}
	return stats, nil
}

// GetThemes returns every theme with its tweet count, most common first.
func (r *Repository) GetThemes(ctx context.Context) ([]NamedCount, error) {
	return r.namedCounts(ctx, `
		MATCH (th:Theme)<-[:ABOUT_THEME]-(t:Tweet)
		RETURN th.name as name, count(t) as count
		ORDER BY count DESC
	`)
}

// GetEntities returns every entity with its mention count, most common first.
func (r *Repository) GetEntities(ctx context.Context) ([]NamedCount, error) {
	return r.namedCounts(ctx, `
		MATCH (e:Entity)<-[:MENTIONS_ENTITY]-(t:Tweet)
		RETURN e.name as name, count(t) as count
		ORDER BY count DESC
	`)
}

func (r *Repository) namedCounts(ctx context.Context, query string) ([]NamedCount, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate counts: %w", err)
	}
	counts := []NamedCount{}
	for result.Next(ctx) {
		record := result.Record()
		counts = append(counts, NamedCount{
			Name:  getString(record, "name", ""),
			Count: getInt64(record, "count"),
		})
	}
	return counts, result.Err()
}

// allowedRelationships guards the traversal pattern, which cannot be
// parameterized in Cypher.
var allowedRelationships = map[string]struct{}{
	"POSTED": {}, "HAS_HASHTAG": {}, "MENTIONS": {}, "REPLY_TO": {},
	"QUOTES": {}, "CONTAINS_URL": {}, "ABOUT_THEME": {}, "MENTIONS_ENTITY": {},
}

// GetRelated traverses outward from a tweet up to depth hops.
func (r *Repository) GetRelated(ctx context.Context, tweetID string, depth int, relTypes []string) ([]RelatedNode, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > 3 {
		depth = 3
	}

	pattern := "POSTED|HAS_HASHTAG|MENTIONS|REPLY_TO|QUOTES|CONTAINS_URL"
	if len(relTypes) > 0 {
		var kept []string
		for _, rt := range relTypes {
			if _, ok := allowedRelationships[rt]; ok {
				kept = append(kept, rt)
			}
		}
		if len(kept) == 0 {
			return nil, fmt.Errorf("no valid relationship types in %v", relTypes)
		}
		pattern = strings.Join(kept, "|")
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (t:Tweet {id: $id})
		MATCH (t)-[r:%s*1..%d]-(related)
		RETURN DISTINCT
			labels(related)[0] as type,
			related.id as id,
			properties(related) as properties,
			type(last(r)) as relationship
		LIMIT 50
	`, pattern, depth)

	result, err := session.Run(ctx, query, map[string]interface{}{"id": tweetID})
	if err != nil {
		return nil, fmt.Errorf("traversal failed: %w", err)
	}

	nodes := []RelatedNode{}
	for result.Next(ctx) {
		record := result.Record()
		node := RelatedNode{
			Type:         getString(record, "type", ""),
			ID:           getString(record, "id", ""),
			Relationship: getString(record, "relationship", ""),
			Properties:   map[string]interface{}{},
		}
		if props, ok := record.Get("properties"); ok {
			if m, ok := props.(map[string]interface{}); ok {
				// embeddings are large and useless to clients
				delete(m, "embedding")
				node.Properties = m
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, result.Err()
}

func recordToTweet(record *neo4j.Record) StoredTweet {
	return StoredTweet{
		ID:        getString(record, "id", ""),
		Text:      getString(record, "text", ""),
		Truncated: getBool(record, "truncated", true),
		Author:    getString(record, "author", ""),
		CreatedAt: getString(record, "created_at", ""),
		Hashtags:  getStringSlice(record, "hashtags"),
		Themes:    getStringSlice(record, "themes"),
		Entities:  getStringSlice(record, "entities"),
	}
}
