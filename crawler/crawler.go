// Package crawler discovers PNG files by walking static file server directory listings.
package crawler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-asset-picker/config"
	"github.com/aluiziolira/go-asset-picker/models"
	"github.com/aluiziolira/go-asset-picker/parser"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	hrefsKey  = "hrefs"
	statusKey = "status"
)

// FolderFunc observes each visited folder. visited counts folders so far in the crawl.
type FolderFunc func(folderURL string, visited int)

// Crawler runs bounded breadth-first crawls over directory listings.
// Each crawl is sequential: one listing request at a time.
type Crawler struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics

	// OnFolder, when set, is called after every visited folder.
	OnFolder FolderFunc
}

// NewCrawler builds a crawler configured from cfg.
func NewCrawler(cfg *config.Config) (*Crawler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if _, err := url.Parse(cfg.PageURL); err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	// Zero disables the client timeout.
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	c := &Crawler{
		cfg:       cfg,
		collector: collector,
		Metrics:   NewMetrics(),
	}
	c.configureHandlers()
	return c, nil
}

// WithTransport replaces the HTTP transport used for listing requests.
func (c *Crawler) WithTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

func (c *Crawler) configureHandlers() {
	c.collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if href == "" {
			return
		}
		if hrefs, ok := e.Request.Ctx.GetAny(hrefsKey).(*[]string); ok {
			*hrefs = append(*hrefs, href)
		}
	})

	c.collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(statusKey, r.StatusCode)
		}
	})
}

// Crawl walks the listing at startFolderURL breadth-first and returns every
// unique PNG found. startFolderURL may be relative to the configured page URL.
// maxFolders bounds visited folders for the whole crawl; values <= 0 use the
// configured default.
//
// Unreachable folders and malformed hrefs only shrink the result. The error is
// non-nil only for an unusable start URL or when ctx is done, in which case
// the partial result is still returned.
func (c *Crawler) Crawl(ctx context.Context, startFolderURL string, maxFolders int) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxFolders <= 0 {
		maxFolders = c.cfg.MaxFolders
	}

	start, err := parser.ResolveString(c.cfg.PageURL, startFolderURL)
	if err != nil {
		return nil, fmt.Errorf("resolve start folder: %w", err)
	}

	result := &models.CrawlResult{
		CrawlID:      uuid.NewString(),
		StartURL:     start,
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
	logger := log.With().Str("crawl_id", result.CrawlID).Str("start", start).Logger()
	logger.Debug().Int("max_folders", maxFolders).Msg("crawl started")

	var found []models.ImageItem
	f := newFrontier(start, maxFolders)
	for {
		if err := ctx.Err(); err != nil {
			result.Items = dedupe(found)
			result.EndTime = time.Now()
			result.FolderCount = f.visitedCount()
			return result, err
		}
		folderURL, ok := f.next()
		if !ok {
			break
		}
		c.Metrics.IncFolders()

		hrefs, err := c.fetch(folderURL)
		result.RequestCount++
		if err != nil {
			category := errorTypeLabel(err)
			result.SkippedFolders++
			result.ErrorsByType[category]++
			result.FailedURLs = append(result.FailedURLs, folderURL)
			c.Metrics.IncRequest("skipped")
			c.Metrics.IncError(category)
			logger.Debug().
				Str("folder", folderURL).
				Str("category", category).
				Err(err).
				Msg("folder skipped")
		} else {
			c.Metrics.IncRequest("ok")
			found = c.collect(folderURL, hrefs, f, found)
		}

		if c.OnFolder != nil {
			c.OnFolder(folderURL, f.visitedCount())
		}
	}

	if f.pending() > 0 {
		logger.Debug().Int("pending", f.pending()).Msg("folder limit reached")
	}

	result.Items = dedupe(found)
	result.EndTime = time.Now()
	result.FolderCount = f.visitedCount()
	c.Metrics.AddImages(len(result.Items))
	c.Metrics.IncCrawls()

	logger.Info().
		Int("folders", result.FolderCount).
		Int("skipped", result.SkippedFolders).
		Int("images", len(result.Items)).
		Dur("duration", result.Duration()).
		Msg("crawl finished")
	return result, nil
}

// fetch returns the anchor hrefs of one listing, in document order.
func (c *Crawler) fetch(folderURL string) ([]string, error) {
	hrefs := make([]string, 0, 16)
	reqCtx := colly.NewContext()
	reqCtx.Put(hrefsKey, &hrefs)

	start := time.Now()
	err := c.collector.Request(http.MethodGet, folderURL, nil, reqCtx, nil)
	c.Metrics.ObserveDuration(time.Since(start))
	if err != nil {
		status, _ := reqCtx.GetAny(statusKey).(int)
		return nil, classifyError(err, status)
	}
	return hrefs, nil
}

// collect classifies hrefs of one folder: sub-folders go to the frontier, PNGs to found.
func (c *Crawler) collect(folderURL string, hrefs []string, f *frontier, found []models.ImageItem) []models.ImageItem {
	base, err := url.Parse(folderURL)
	if err != nil {
		return found
	}

	for _, href := range hrefs {
		resolved, err := parser.Resolve(base, href)
		if err != nil {
			continue
		}
		if parser.IsFolderHref(href) {
			f.push(resolved.String())
			continue
		}
		if !parser.IsPNGHref(href) {
			continue
		}
		filename, err := parser.FilenameFromURL(resolved)
		if err != nil {
			continue
		}
		found = append(found, models.ImageItem{Filename: filename, Src: resolved.String()})
	}
	return found
}

// dedupe drops repeated items by Key, keeping first-seen order.
func dedupe(items []models.ImageItem) []models.ImageItem {
	unique := make([]models.ImageItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		key := item.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}
