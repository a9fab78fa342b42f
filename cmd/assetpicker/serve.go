package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-asset-picker/cache"
	"github.com/aluiziolira/go-asset-picker/config"
	"github.com/aluiziolira/go-asset-picker/crawler"
	"github.com/aluiziolira/go-asset-picker/dom"
	"github.com/aluiziolira/go-asset-picker/loader"
	"github.com/aluiziolira/go-asset-picker/page"
	"github.com/aluiziolira/go-asset-picker/picker"
	"github.com/aluiziolira/go-asset-picker/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the host page and serve its menu and asset picker over HTTP",
	RunE:  runServe,
}

func init() {
	d := config.DefaultConfig()
	f := serveCmd.Flags()
	f.String("listen", d.ListenAddr, "HTTP listen address")
	f.String("host-page", d.HostPage, "host page HTML file")
	f.Int("probe-cache-size", d.ProbeCacheSize, "thumbnail probe outcomes kept in memory")

	bindFlags(serveCmd, map[string]string{
		"listen_addr":      "listen",
		"host_page":        "host-page",
		"probe_cache_size": "probe-cache-size",
	}, false)
}

func runServe(cmd *cobra.Command, args []string) error {
	file, err := os.Open(cfg.HostPage)
	if err != nil {
		return fmt.Errorf("open host page: %w", err)
	}
	doc, err := dom.Parse(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("parse host page: %w", err)
	}

	c, err := crawler.NewCrawler(cfg)
	if err != nil {
		return fmt.Errorf("initialising crawler: %w", err)
	}
	l, err := loader.New(cfg)
	if err != nil {
		return fmt.Errorf("initialising loader: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg := page.Init(doc, page.Deps{
		Crawler:  c,
		Resolver: l,
		Cache:    cache.New(),
		Options:  picker.Options{PublicRoot: cfg.PublicRoot, MaxFolders: cfg.MaxFolders},
	})
	if pg.Picker != nil {
		log.Info().Int("triggers", len(pg.Picker.Triggers())).Msg("asset picker bound")
	}

	srv := server.New(ctx, cfg, server.Deps{Page: pg, Crawler: c, Registry: c.Metrics.Registry})
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if pg.Picker != nil {
		pg.Picker.Wait()
	}
	return nil
}
