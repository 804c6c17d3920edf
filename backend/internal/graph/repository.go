package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	apperrors "tweet-graph/backend/pkg/errors"
	"tweet-graph/backend/pkg/logger"
	"go.uber.org/zap"
)

// Embedder produces text embeddings for vector search. A disabled embedder
// makes tweets store without an embedding property.
type Embedder interface {
	Enabled() bool
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Repository handles all Neo4j database operations
type Repository struct {
	driver   neo4j.DriverWithContext
	embedder Embedder
	logger   *zap.Logger
}

// Connect opens and verifies a Neo4j driver.
func Connect(ctx context.Context, uri, username, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	return driver, nil
}

// NewRepository creates a new graph repository. embedder may be nil.
func NewRepository(driver neo4j.DriverWithContext, embedder Embedder) *Repository {
	return &Repository{
		driver:   driver,
		embedder: embedder,
		logger:   logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// InitSchema creates the uniqueness constraints and, when embeddings are
// enabled, the vector index. Safe to run on every startup.
func (r *Repository) InitSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	constraints := []string{
		`CREATE CONSTRAINT tweet_id IF NOT EXISTS FOR (t:Tweet) REQUIRE t.id IS UNIQUE`,
		`CREATE CONSTRAINT user_username IF NOT EXISTS FOR (u:User) REQUIRE u.username IS UNIQUE`,
		`CREATE CONSTRAINT hashtag_tag IF NOT EXISTS FOR (h:Hashtag) REQUIRE h.tag IS UNIQUE`,
		`CREATE CONSTRAINT url_url IF NOT EXISTS FOR (u:URL) REQUIRE u.url IS UNIQUE`,
		`CREATE CONSTRAINT theme_name IF NOT EXISTS FOR (th:Theme) REQUIRE th.name IS UNIQUE`,
		`CREATE CONSTRAINT entity_name IF NOT EXISTS FOR (e:Entity) REQUIRE e.name IS UNIQUE`,
	}
	for _, c := range constraints {
		if _, err := session.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
	}

	if r.embedder != nil && r.embedder.Enabled() {
		index := fmt.Sprintf(`
			CREATE VECTOR INDEX tweet_embedding IF NOT EXISTS
			FOR (t:Tweet)
			ON t.embedding
			OPTIONS {
				indexConfig: {
					`+"`vector.dimensions`"+`: %d,
					`+"`vector.similarity_function`"+`: 'cosine'
				}
			}
		`, r.embedder.Dimensions())
		if _, err := session.Run(ctx, index, nil); err != nil {
			// Older server versions reject the syntax; search degrades, storage does not.
			r.logger.Warn("Vector index creation failed", zap.Error(err))
		} else {
			r.logger.Info("Vector index ready", zap.Int("dimensions", r.embedder.Dimensions()))
		}
	}

	return nil
}

// Helper functions

func getString(record *neo4j.Record, key string, defaultValue string) string {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	if str, ok := val.(string); ok {
		return str
	}
	return defaultValue
}

func getBool(record *neo4j.Record, key string, defaultValue bool) bool {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	if b, ok := val.(bool); ok {
		return b
	}
	return defaultValue
}

func getInt64(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok {
		return 0
	}
	if n, ok := val.(int64); ok {
		return n
	}
	return 0
}

func getFloat64(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok {
		return 0
	}
	if f, ok := val.(float64); ok {
		return f
	}
	return 0
}

func getStringSlice(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok {
		return []string{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(slice))
		for _, v := range slice {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}
