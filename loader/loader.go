// Package loader resolves a loadable source for a thumbnail, falling back to
// conventional public-folder paths when the discovered URL does not load.
package loader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/aluiziolira/go-asset-picker/config"
	"github.com/aluiziolira/go-asset-picker/models"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// Tier identifies which candidate source loaded.
type Tier int

const (
	TierHidden Tier = iota - 1
	TierPrimary
	TierRootFallback
	TierPageFallback
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierRootFallback:
		return "root_fallback"
	case TierPageFallback:
		return "page_fallback"
	default:
		return "hidden"
	}
}

// Resolution is the outcome of loading one thumbnail.
type Resolution struct {
	Src      string
	Tier     Tier
	Hidden   bool
	Attempts []string
}

const (
	statusKey      = "status"
	contentTypeKey = "content_type"
)

// Loader probes image URLs and memoises the outcome per URL.
type Loader struct {
	pageURL   *url.URL
	rootDir   string
	pageDir   string
	collector *colly.Collector
	probes    *lru.Cache[string, bool]
}

// New builds a loader whose fallbacks mirror cfg.PublicRoot: the page-relative
// root itself, and the same folder name rooted at the server origin.
func New(cfg *config.Config) (*Loader, error) {
	pageURL, err := url.Parse(cfg.PageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	probes, err := lru.New[string, bool](cfg.ProbeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create probe cache: %w", err)
	}

	pageDir := cfg.PublicRoot
	if !strings.HasSuffix(pageDir, "/") {
		pageDir += "/"
	}
	rootDir := "/" + path.Base(strings.TrimSuffix(pageDir, "/")) + "/"

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(contentTypeKey, r.Headers.Get("Content-Type"))
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(statusKey, r.StatusCode)
		}
	})

	return &Loader{
		pageURL:   pageURL,
		rootDir:   rootDir,
		pageDir:   pageDir,
		collector: collector,
		probes:    probes,
	}, nil
}

// WithTransport replaces the HTTP transport used for probes.
func (l *Loader) WithTransport(rt http.RoundTripper) {
	l.collector.WithTransport(rt)
}

// Candidates lists the sources tried for item, in order, without repeats.
func (l *Loader) Candidates(item models.ImageItem) []string {
	candidates := make([]string, 0, 3)
	add := func(u string) {
		if u == "" {
			return
		}
		for _, existing := range candidates {
			if existing == u {
				return
			}
		}
		candidates = append(candidates, u)
	}

	add(item.Src)
	add(l.pageURL.ResolveReference(&url.URL{Path: l.rootDir + item.Filename}).String())
	add(l.pageURL.ResolveReference(&url.URL{Path: l.pageDir + item.Filename}).String())
	return candidates
}

// Resolve tries the primary source, then each fallback once. When none loads
// the thumbnail is hidden.
func (l *Loader) Resolve(ctx context.Context, item models.ImageItem) Resolution {
	if ctx == nil {
		ctx = context.Background()
	}
	res := Resolution{Tier: TierHidden, Hidden: true}

	for _, candidate := range l.Candidates(item) {
		if ctx.Err() != nil {
			break
		}
		res.Attempts = append(res.Attempts, candidate)
		if l.probe(candidate) {
			res.Src = candidate
			res.Hidden = false
			res.Tier = l.tierOf(item, candidate)
			return res
		}
	}

	log.Debug().
		Str("filename", item.Filename).
		Strs("attempts", res.Attempts).
		Msg("thumbnail hidden")
	return res
}

func (l *Loader) tierOf(item models.ImageItem, src string) Tier {
	switch src {
	case item.Src:
		return TierPrimary
	case l.pageURL.ResolveReference(&url.URL{Path: l.rootDir + item.Filename}).String():
		return TierRootFallback
	default:
		return TierPageFallback
	}
}

func (l *Loader) probe(u string) bool {
	if ok, cached := l.probes.Get(u); cached {
		return ok
	}

	ok := l.request(http.MethodHead, u)
	l.probes.Add(u, ok)
	return ok
}

func (l *Loader) request(method, u string) bool {
	reqCtx := colly.NewContext()
	err := l.collector.Request(method, u, nil, reqCtx, nil)
	if err != nil {
		status, _ := reqCtx.GetAny(statusKey).(int)
		if method == http.MethodHead && status == http.StatusMethodNotAllowed {
			return l.request(http.MethodGet, u)
		}
		log.Debug().Str("url", u).Int("status", status).Err(err).Msg("image probe failed")
		return false
	}

	contentType, _ := reqCtx.GetAny(contentTypeKey).(string)
	if contentType != "" && !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		log.Debug().Str("url", u).Str("content_type", contentType).Msg("probe returned non-image")
		return false
	}
	return true
}
