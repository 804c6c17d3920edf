package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tweet-graph/backend/internal/adapter"
	"tweet-graph/backend/internal/bookmark"
	"tweet-graph/backend/internal/capture"
	"tweet-graph/backend/internal/enrich"
	"tweet-graph/backend/internal/graph"
	"tweet-graph/backend/internal/scrape"
	"tweet-graph/backend/internal/state"
	"tweet-graph/backend/internal/syncer"
	"tweet-graph/backend/pkg/config"
	"tweet-graph/backend/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Initialize dependencies
	embedder := adapter.NewEmbeddingAdapter(
		cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	repo := graph.NewRepository(driver, embedder)
	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}
	reconciler := graph.NewReconciler(repo)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		// Trigger a sync run: capture, enrich, merge, checkpoint
		api.POST("/bookmarks/sync", func(c *gin.Context) {
			var req struct {
				Mode string `json:"mode"`
			}
			// Body is optional; an empty body means incremental.
			_ = c.ShouldBindJSON(&req)
			mode := bookmark.SyncMode(req.Mode)
			if mode == "" {
				mode = bookmark.ModeIncremental
			}
			if mode != bookmark.ModeFull && mode != bookmark.ModeIncremental {
				c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be full or incremental"})
				return
			}

			summary, err := runSync(c.Request.Context(), cfg, repo, reconciler, mode)
			if err != nil {
				log.Error("Sync failed", zap.Error(err))
				status := http.StatusInternalServerError
				if summary != nil && summary.TotalReceived > 0 {
					// Partial progress still merged; report it.
					status = http.StatusOK
				}
				c.JSON(status, gin.H{"summary": summary, "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, summary)
		})

		// Store a single tweet
		api.POST("/tweets", func(c *gin.Context) {
			var item bookmark.Item
			if err := c.ShouldBindJSON(&item); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if item.ID == "" || item.Text == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "id and text are required"})
				return
			}
			if item.CapturedAt.IsZero() {
				item.CapturedAt = time.Now().UTC()
			}
			if item.FetchMethod == "" {
				item.FetchMethod = "api"
			}

			outcome, err := reconciler.Reconcile(c.Request.Context(), &item)
			if err != nil {
				log.Error("Failed to store tweet", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store tweet"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"id": item.ID, "outcome": outcomeName(outcome)})
		})

		// List tweets, paginated
		api.GET("/tweets", func(c *gin.Context) {
			limit := intQuery(c, "limit", 50)
			offset := intQuery(c, "offset", 0)

			page, err := repo.GetTweets(c.Request.Context(), limit, offset)
			if err != nil {
				log.Error("Failed to list tweets", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tweets"})
				return
			}
			c.JSON(http.StatusOK, page)
		})

		// Tweets still awaiting enrichment
		api.GET("/tweets/truncated", func(c *gin.Context) {
			tweets, err := repo.GetTruncated(c.Request.Context())
			if err != nil {
				log.Error("Failed to list truncated tweets", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list truncated tweets"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"count": len(tweets), "tweets": tweets})
		})

		// Single tweet with relationships
		api.GET("/tweets/:id", func(c *gin.Context) {
			tweet, err := repo.GetTweet(c.Request.Context(), c.Param("id"))
			if err != nil {
				log.Error("Failed to get tweet", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get tweet"})
				return
			}
			if tweet == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Tweet not found"})
				return
			}
			c.JSON(http.StatusOK, tweet)
		})

		// Vector similarity search
		api.POST("/search", func(c *gin.Context) {
			var req struct {
				Query string `json:"query" binding:"required"`
				Limit int    `json:"limit"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			hits, err := repo.VectorSearch(c.Request.Context(), req.Query, req.Limit)
			if err != nil {
				log.Error("Search failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"results": hits})
		})

		// Graph traversal from a tweet
		api.POST("/related", func(c *gin.Context) {
			var req struct {
				ID                string   `json:"id" binding:"required"`
				Depth             int      `json:"depth"`
				RelationshipTypes []string `json:"relationship_types"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if req.Depth == 0 {
				req.Depth = 2
			}

			nodes, err := repo.GetRelated(c.Request.Context(), req.ID, req.Depth, req.RelationshipTypes)
			if err != nil {
				log.Error("Traversal failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Traversal failed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"related": nodes})
		})

		// Graph statistics
		api.GET("/stats", func(c *gin.Context) {
			stats, err := repo.GetStats(c.Request.Context())
			if err != nil {
				log.Error("Failed to gather stats", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to gather stats"})
				return
			}
			c.JSON(http.StatusOK, stats)
		})

		// Theme counts
		api.GET("/themes", func(c *gin.Context) {
			themes, err := repo.GetThemes(c.Request.Context())
			if err != nil {
				log.Error("Failed to list themes", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list themes"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"themes": themes})
		})

		// Entity counts
		api.GET("/entities", func(c *gin.Context) {
			entities, err := repo.GetEntities(c.Request.Context())
			if err != nil {
				log.Error("Failed to list entities", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list entities"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"entities": entities})
		})

		// Repair stored truncated tweets via the X API
		api.POST("/enrich", func(c *gin.Context) {
			if !cfg.EnrichmentEnabled() {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "X_BEARER_TOKEN not configured"})
				return
			}
			resolver := enrich.NewResolver(cfg.XAPIBaseURL, cfg.XBearerToken, cfg.EnrichBudget)
			result, err := enrich.RepairStored(c.Request.Context(), repo, resolver, cfg.EnrichBatchSize)
			if err != nil {
				log.Error("Enrichment failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"result": result, "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, result)
		})
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// runSync builds a fresh browser session and runs one pipeline pass. The
// browser is per-run: bookmark feeds are tied to a logged-in session and a
// long-lived headless instance goes stale.
func runSync(ctx context.Context, cfg *config.Config, repo *graph.Repository, reconciler *graph.Reconciler, mode bookmark.SyncMode) (*bookmark.SyncSummary, error) {
	cookies := capture.LoadCookies(cfg.CookiesFile)
	browser, err := capture.NewChromeDriver(ctx, cookies)
	if err != nil {
		return nil, err
	}
	defer browser.Close(context.Background())

	collector := scrape.NewCollector(browser, scrape.NewParser(), scrape.CollectorConfig{
		BookmarksURL:         cfg.BookmarksURL,
		NavigateTimeout:      cfg.NavigateTimeout,
		SettleDelay:          cfg.SettleDelay,
		ScrollPixels:         cfg.ScrollPixels,
		StagnationThreshold:  cfg.StagnationThreshold,
		MaxPassesFull:        cfg.MaxPassesFull,
		MaxPassesIncremental: cfg.MaxPassesIncremental,
	})

	states := state.NewStore(cfg.StateFile, cfg.SeenIDCapacity)

	var s *syncer.Syncer
	if cfg.EnrichmentEnabled() {
		resolver := enrich.NewResolver(cfg.XAPIBaseURL, cfg.XBearerToken, cfg.EnrichBudget)
		s = syncer.NewSyncer(collector, resolver, reconciler, states, cfg.EnrichBatchSize)
	} else {
		s = syncer.NewSyncer(collector, nil, reconciler, states, cfg.EnrichBatchSize)
	}

	return s.RunSync(ctx, mode)
}

func outcomeName(o graph.Outcome) string {
	switch o {
	case graph.OutcomeStored:
		return "stored"
	case graph.OutcomeUpdated:
		return "updated"
	default:
		return "skipped"
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
