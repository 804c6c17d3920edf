// Package main provides the fetcher CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
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

var rootCmd = &cobra.Command{
	Use:   "fetcher",
	Short: "Bookmark capture and graph sync pipeline",
	Long:  `fetcher captures the bookmark feed through a headless browser, repairs truncated tweets via the X API, and merges everything into the Neo4j graph.`,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a sync: capture, enrich, merge, checkpoint",
	RunE:  runSync,
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Repair tweets already stored as truncated",
	RunE:  runEnrich,
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the persisted sync watermark",
	RunE:  runState,
}

var syncMode string

func init() {
	syncCmd.Flags().StringVar(&syncMode, "mode", "incremental", "Sync mode: full or incremental")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(stateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and initializes logging. Shared by every command.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Init(cfg.Env); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Get()

	mode := bookmark.SyncMode(syncMode)
	if mode != bookmark.ModeFull && mode != bookmark.ModeIncremental {
		return fmt.Errorf("invalid mode %q: want full or incremental", syncMode)
	}

	ctx, cancel := signalContext()
	defer cancel()

	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		return err
	}
	defer driver.Close(context.Background())

	embedder := adapter.NewEmbeddingAdapter(
		cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	repo := graph.NewRepository(driver, embedder)
	if err := repo.InitSchema(ctx); err != nil {
		return err
	}

	cookies := capture.LoadCookies(cfg.CookiesFile)
	browser, err := capture.NewChromeDriver(ctx, cookies)
	if err != nil {
		return err
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

	var resolver *enrich.Resolver
	if cfg.EnrichmentEnabled() {
		resolver = enrich.NewResolver(cfg.XAPIBaseURL, cfg.XBearerToken, cfg.EnrichBudget)
	} else {
		log.Warn("No bearer token configured, truncated tweets stay truncated")
	}

	states := state.NewStore(cfg.StateFile, cfg.SeenIDCapacity)

	var s *syncer.Syncer
	if resolver != nil {
		s = syncer.NewSyncer(collector, resolver, graph.NewReconciler(repo), states, cfg.EnrichBatchSize)
	} else {
		s = syncer.NewSyncer(collector, nil, graph.NewReconciler(repo), states, cfg.EnrichBatchSize)
	}

	summary, err := s.RunSync(ctx, mode)
	if summary != nil {
		printJSON(summary)
	}
	return err
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Get()

	if !cfg.EnrichmentEnabled() {
		return fmt.Errorf("X_BEARER_TOKEN is required for enrichment")
	}

	ctx, cancel := signalContext()
	defer cancel()

	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		return err
	}
	defer driver.Close(context.Background())

	embedder := adapter.NewEmbeddingAdapter(
		cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	repo := graph.NewRepository(driver, embedder)
	resolver := enrich.NewResolver(cfg.XAPIBaseURL, cfg.XBearerToken, cfg.EnrichBudget)

	result, err := enrich.RepairStored(ctx, repo, resolver, cfg.EnrichBatchSize)
	if result != nil {
		printJSON(result)
	}
	if err != nil {
		log.Error("Enrichment pass ended with error", zap.Error(err))
	}
	return err
}

func runState(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	states := state.NewStore(cfg.StateFile, cfg.SeenIDCapacity)
	wm := states.Load()
	printJSON(wm)
	return nil
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
