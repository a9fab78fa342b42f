package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-asset-picker/config"
	"github.com/aluiziolira/go-asset-picker/crawler"
	"github.com/aluiziolira/go-asset-picker/models"
	"github.com/aluiziolira/go-asset-picker/parser"
	"github.com/aluiziolira/go-asset-picker/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [folder...]",
	Short: "Crawl asset folders and write the PNGs found",
	Long: `Crawl each folder (a name under the public root, e.g. "weapon") breadth-first
and write every discovered image through the output pipeline. Without
arguments the public root itself is crawled.`,
	RunE: runCrawl,
}

func init() {
	d := config.DefaultConfig()
	f := crawlCmd.Flags()
	f.StringP("output", "o", d.OutputFile, "output file path")
	f.StringP("format", "f", d.OutputFormat, "output format: csv, json, or dual")
	f.String("metrics-addr", d.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	f.Int("batch-size", d.BatchSize, "items per output write")

	bindFlags(crawlCmd, map[string]string{
		"output":       "output",
		"format":       "format",
		"metrics_addr": "metrics-addr",
		"batch_size":   "batch-size",
	}, false)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	folders := args
	if len(folders) == 0 {
		folders = []string{""}
	}

	c, err := crawler.NewCrawler(cfg)
	if err != nil {
		return fmt.Errorf("initialising crawler: %w", err)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Error().Err(err).Msg("close writer")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, c)

	// The pipeline outlives an interrupt so partial results still reach the writer.
	p := pipeline.NewPipeline(context.WithoutCancel(ctx), writer, cfg)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Crawling"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	c.OnFolder = func(string, int) {
		_ = bar.Add(1)
	}

	startTime := time.Now()
	results := make([]*models.CrawlResult, 0, len(folders))
	for _, folder := range folders {
		folderPath := parser.FolderPath(cfg.PublicRoot, folder)
		bar.Describe("Crawling " + folderPath)

		result, err := c.Crawl(ctx, folderPath, cfg.MaxFolders)
		if result != nil {
			results = append(results, result)
			if perr := p.ProcessResult(result); perr != nil {
				log.Error().Err(perr).Msg("pipeline rejected items")
			}
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Warn().Msg("crawl interrupted, flushing partial results")
				break
			}
			_ = bar.Finish()
			return fmt.Errorf("crawl %s: %w", folderPath, err)
		}
	}
	_ = bar.Finish()

	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown failed: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics server shutdown failed")
		}
		cancel()
	}

	printSummary(results, time.Since(startTime), cfg.OutputFile, p.GetMetrics())
	return nil
}

func startMetricsServer(addr string, c *crawler.Crawler) *http.Server {
	if addr == "" || c.Metrics == nil {
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(c.Metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics server enabled")
	return srv
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		return pipeline.NewDualWriter(filename, pipeline.DualJSONPath(filename))
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(results []*models.CrawlResult, duration time.Duration, outputFile string, metrics map[string]interface{}) {
	var folders, skipped, found int
	errorsByType := make(map[string]int)
	for _, r := range results {
		folders += r.FolderCount
		skipped += r.SkippedFolders
		found += len(r.Items)
		for k, n := range r.ErrorsByType {
			errorsByType[k] += n
		}
	}

	written := int64(0)
	if processed, ok := metrics["processed_items"].(int64); ok {
		written = processed
	}

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")
	fmt.Printf("  Crawls:        %d\n", len(results))
	fmt.Printf("  Folders:       %d\n", folders)
	fmt.Printf("  Skipped:       %d\n", skipped)
	fmt.Printf("  Images found:  %d\n", found)
	fmt.Printf("  Written:       %d\n", written)
	if found == 0 {
		fmt.Println("  No images found")
	}
	if len(errorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", errorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}
