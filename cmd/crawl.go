// Package cmd defines the CLI commands of the youtube-graph-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/youtube-graph-crawler/internal/config"
	"github.com/JakeFAU/youtube-graph-crawler/internal/crawl"
	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
	"github.com/JakeFAU/youtube-graph-crawler/internal/metrics"
)

const metricsShutdownTimeout = 5 * time.Second

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl from the seed file",
		Long: `Reads the seed channels, performs a depth-first crawl of featured
channels, writes periodic checkpoints and a final reconciled snapshot. An
interrupt stops the crawl and still writes the final snapshot.`,
		RunE: runCrawlCommand,
	}
	cmd.Flags().String("seeds", "", "seed CSV file (overrides crawl.seed_file)")
	cmd.Flags().Int("max-depth", 0, "maximum crawl depth (overrides crawl.max_depth)")
	cmd.Flags().String("prefix", "", "output object prefix (overrides output.prefix)")
	return cmd
}

// applyFlagOverrides copies explicitly set flags onto cfg and revalidates.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Lookup("seeds") != nil && flags.Changed("seeds") {
		v, err := flags.GetString("seeds")
		if err != nil {
			return fmt.Errorf("read --seeds: %w", err)
		}
		cfg.Crawl.SeedFile = v
	}
	if flags.Lookup("max-depth") != nil && flags.Changed("max-depth") {
		v, err := flags.GetInt("max-depth")
		if err != nil {
			return fmt.Errorf("read --max-depth: %w", err)
		}
		cfg.Crawl.MaxDepth = v
	}
	if flags.Lookup("prefix") != nil && flags.Changed("prefix") {
		v, err := flags.GetString("prefix")
		if err != nil {
			return fmt.Errorf("read --prefix: %w", err)
		}
		cfg.Output.Prefix = v
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	defer func() {
		if cerr := appInstance.Close(context.WithoutCancel(cmd.Context())); cerr != nil {
			logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	g, ctx := errgroup.WithContext(cmd.Context())
	crawlDone := make(chan struct{})

	if addr := appInstance.Config().Metrics.Addr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metrics.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-crawlDone:
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var summary crawl.Summary
	g.Go(func() error {
		defer close(crawlDone)
		var runErr error
		summary, runErr = appInstance.Run(ctx)
		if runErr != nil {
			return fmt.Errorf("run crawl: %w", runErr)
		}
		return nil
	})

	err = g.Wait()
	logSummary(logger, summary)
	return err
}

func logSummary(logger *zap.Logger, s crawl.Summary) {
	logger.Info("crawl summary",
		zap.String("run_id", s.RunID),
		zap.Int("nodes", s.Nodes),
		zap.Int("edges", s.Edges),
		zap.Int("expanded", s.States[crawler.StateExpanded]),
		zap.Int("leaf_fetched", s.States[crawler.StateLeafFetched]),
		zap.Int("dropped", s.States[crawler.StateDropped]),
		zap.Int("failed", s.States[crawler.StateFailed]),
		zap.Int("pending", s.States[crawler.StatePending]),
		zap.Int("checkpoints", len(s.Checkpoints)),
		zap.Int("promoted", s.Promoted),
		zap.Bool("interrupted", s.Interrupted),
		zap.String("nodes_uri", s.Final.NodesURI),
		zap.String("edges_uri", s.Final.EdgesURI),
		zap.Duration("duration", s.Duration),
	)
}
