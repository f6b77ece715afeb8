// Package main is the pageindex CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/pageindex/internal/cli"
	"github.com/hyperjump/pageindex/internal/config"
	"github.com/hyperjump/pageindex/internal/indexer"
	"github.com/hyperjump/pageindex/internal/models"
	"github.com/hyperjump/pageindex/internal/server"
	"github.com/hyperjump/pageindex/internal/storage"
	"github.com/hyperjump/pageindex/internal/telemetry"
	"github.com/hyperjump/pageindex/internal/watcher"
	"github.com/hyperjump/pageindex/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/pageindex/config.yaml"
	sampleQuery       = "sample test query"
)

var (
	configPath string
	debugFlag  bool
)

// loadConfig loads config from path. When path is the default and a config.yaml exists in
// the current directory, that file is used instead so the CLI works from a project checkout.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Debug = cfg.Debug || debugFlag
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug))
	return cfg, logger, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pageindex",
		Short: "Semantic search over documentation pages",
		Long: `pageindex embeds documentation pages into a vector store and answers
similarity queries over them, from the command line or over HTTP.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	root.AddCommand(
		newServerCommand(),
		newReindexCommand(),
		newSearchCommand(),
		newStatsCommand(),
		newImportCommand(),
		newConfigCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pageindex version %s\n", version)
		},
	}
}

func newServerCommand() *cobra.Command {
	var reindexOnStart bool
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runServer(cfg, logger, reindexOnStart)
		},
	}
	cmd.Flags().BoolVar(&reindexOnStart, "reindex", false, "run a full reindex in the background after startup")
	return cmd
}

func runServer(cfg *config.Config, logger *zap.Logger, reindexOnStart bool) error {
	ctx, stop := signalContext()
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, &cfg.Telemetry, version, logger)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	c, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.Watch.Enabled {
		w, err := startWatcher(ctx, cfg, c, logger)
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		if w != nil {
			defer w.Stop()
		}
	}

	srv := server.NewServer(c.search, c.indexer, cfg, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// the startup run shares the server's reindex lock, and Stop waits for it, so the
	// deferred Close never races its writes.
	if reindexOnStart {
		go func() {
			if _, err := srv.ReindexAll(ctx); err != nil {
				logger.Warn("startup reindex did not complete", zap.Error(err))
			}
		}()
	}

	var serveErr error
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(serveErr, srv.Stop(sctx))
}

// startWatcher watches the pages directory when the primary store is file-backed.
func startWatcher(ctx context.Context, cfg *config.Config, c *components, logger *zap.Logger) (*watcher.Watcher, error) {
	files, ok := c.docs.(*storage.FileStorage)
	if !ok {
		logger.Warn("watch is only supported with the files primary store", zap.String("primary_store", cfg.Storage.PrimaryKind))
		return nil, nil
	}
	handle := func(ctx context.Context, ev models.DocumentEvent) {
		err := c.indexer.HandleEvent(ctx, ev)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			logger.Warn("watch event failed",
				zap.String("type", string(ev.Type)),
				zap.String("document_id", ev.DocumentID),
				zap.Error(err))
		}
	}
	w := watcher.New(files.Root(), cfg.Watch.RecursiveOrDefault(), handle,
		watcher.WithFilter(files.Accepts),
		watcher.WithDebounce(cfg.Watch.Debounce),
		watcher.WithLogger(logger))
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	logger.Info("watching pages", zap.String("root", files.Root()))
	return w, nil
}

func newReindexCommand() *cobra.Command {
	var (
		quiet     bool
		testQuery string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Re-embed every page into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			ctx, stop := signalContext()
			defer stop()
			return runReindex(ctx, cmd.OutOrStdout(), cfg, logger, format, quiet, testQuery)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress lines")
	cmd.Flags().StringVar(&testQuery, "test-query", sampleQuery, "query run after indexing to check search (empty to skip)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "summary format (text, json)")
	return cmd
}

func runReindex(ctx context.Context, out io.Writer, cfg *config.Config, logger *zap.Logger, format cli.OutputFormat, quiet bool, testQuery string) error {
	var opts []indexer.Option
	text := format == cli.OutputText
	if text && !quiet {
		opts = append(opts, indexer.WithObserver(cli.ProgressPrinter(out)))
	}
	c, err := initializeComponents(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	if text {
		fmt.Fprintln(out, "Starting page indexing")
		if stats, err := c.store.Stats(ctx); err == nil {
			fmt.Fprintf(out, "Current vector store: %d vectors\n", stats.Count)
		}
		fmt.Fprintf(out, "Embedding model: %s (%s)\n\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	}

	summary, runErr := c.indexer.ReindexAll(ctx)
	if err := cli.WriteSummary(out, summary, format); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if !text {
		return nil
	}
	if stats, err := c.store.Stats(ctx); err == nil {
		fmt.Fprintf(out, "  Vectors in store:   %d\n", stats.Count)
	}
	if testQuery == "" || summary.Succeeded == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nTesting search")
	results, err := c.search.Search(ctx, testQuery, 3)
	if err != nil {
		fmt.Fprintf(out, "Search test failed: %v\n", err)
		return nil
	}
	return cli.WriteSearchResults(out, &models.SearchResponse{Results: results, Total: len(results), Query: testQuery}, cli.OutputText)
}

func newSearchCommand() *cobra.Command {
	var (
		topK      int
		output    string
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search pages by meaning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			query := &models.SearchQuery{Query: buildSearchQuery(args)}
			if cmd.Flags().Changed("top-k") {
				query.TopK = &topK
			}
			if serverURL != "" {
				resp, err := searchViaHTTP(cmd.Context(), serverURL, query)
				if err != nil {
					return err
				}
				return cli.WriteSearchResults(cmd.OutOrStdout(), resp, format)
			}

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			ctx, stop := signalContext()
			defer stop()
			c, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()
			resp, err := c.search.Query(ctx, query)
			if err != nil {
				return err
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), resp, format)
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	cmd.Flags().StringVar(&serverURL, "server", "", "query a running server (e.g. http://localhost:8080) instead of opening the stores")
	return cmd
}

// buildSearchQuery joins the positional args into one query; blank args are dropped.
func buildSearchQuery(args []string) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}

// searchViaHTTP posts query to a running pageindex server.
func searchViaHTTP(ctx context.Context, serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := strings.TrimRight(serverURL, "/") + "/api/v1/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	var out models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid server response: %w", err)
	}
	return &out, nil
}

func newStatsCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show vector store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			ctx := context.Background()
			c, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()
			stats, err := c.search.Stats(ctx)
			if err != nil {
				return err
			}
			return cli.WriteStats(cmd.OutOrStdout(), stats, format)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	return cmd
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Load markdown pages from a directory into the SQLite page database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			ctx, stop := signalContext()
			defer stop()

			created, updated, err := importPages(ctx, args[0], cfg.Storage.DatabasePath, cfg.Watch.Extensions)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d pages (%d new, %d updated) into %s\n",
				created+updated, created, updated, cfg.Storage.DatabasePath)
			return nil
		},
	}
}

// importPages upserts every page under dir into the SQLite database at dbPath.
func importPages(ctx context.Context, dir, dbPath string, extensions []string) (created, updated int, err error) {
	src, err := storage.NewFileStorage(dir, extensions)
	if err != nil {
		return 0, 0, err
	}
	defer src.Close()
	dst, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return 0, 0, err
	}
	defer dst.Close()

	docs, err := src.ListDocuments(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, doc := range docs {
		isNew, err := dst.UpsertDocument(ctx, doc)
		if err != nil {
			return created, updated, fmt.Errorf("failed to import %s: %w", doc.ID, err)
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}
	return created, updated, nil
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	})
	return cmd
}
