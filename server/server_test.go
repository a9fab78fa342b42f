package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aluiziolira/go-asset-picker/cache"
	"github.com/aluiziolira/go-asset-picker/config"
	"github.com/aluiziolira/go-asset-picker/crawler"
	"github.com/aluiziolira/go-asset-picker/dom"
	"github.com/aluiziolira/go-asset-picker/loader"
	"github.com/aluiziolira/go-asset-picker/models"
	"github.com/aluiziolira/go-asset-picker/page"
	"github.com/aluiziolira/go-asset-picker/picker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hostPage = `<html><body>
<nav class="navbar">
  <div class="hamburger" id="burger"></div>
  <ul class="right" id="links"><li id="link">Home</li></ul>
</nav>
<main id="main">
  <div id="weapon-slot" data-asset="Weapon" data-folder="weapon"></div>
</main>
<div id="asset-popup" style="display:none">
  <div id="content">
    <h2 id="asset-popup-title"></h2>
    <div id="asset-image-list"></div>
  </div>
</div>
</body></html>`

type stubCrawler struct {
	items []models.ImageItem
	err   error
}

func (s *stubCrawler) Crawl(ctx context.Context, start string, maxFolders int) (*models.CrawlResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.CrawlResult{CrawlID: "c1", StartURL: start, Items: s.items, FolderCount: 1}, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, item models.ImageItem) loader.Resolution {
	return loader.Resolution{Src: item.Src, Tier: loader.TierPrimary, Attempts: []string{item.Src}}
}

var sword = models.ImageItem{Filename: "sword.png", Src: "http://example.test/public/weapon/sword.png"}

func newTestServer(t *testing.T, c picker.Crawler) (*Server, *page.Page) {
	t.Helper()
	doc, err := dom.ParseString(hostPage)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	pg := page.Init(doc, page.Deps{
		Crawler:  c,
		Resolver: stubResolver{},
		Cache:    cache.New(),
		Options:  picker.Options{PublicRoot: cfg.PublicRoot, MaxFolders: cfg.MaxFolders},
	})
	require.NotNil(t, pg.Picker)
	require.NotNil(t, pg.Menu)

	metrics := crawler.NewMetrics()
	return New(context.Background(), cfg, Deps{Page: pg, Crawler: c, Registry: metrics.Registry}), pg
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, &stubCrawler{})

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTriggers(t *testing.T) {
	s, _ := newTestServer(t, &stubCrawler{})

	rec := do(t, s, http.MethodGet, "/api/triggers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var triggers []triggerView
	decode(t, rec, &triggers)
	require.Len(t, triggers, 1)
	assert.Equal(t, "weapon-slot", triggers[0].ID)
	assert.Equal(t, "Weapon", triggers[0].Label)
	assert.Equal(t, "../public/weapon/", triggers[0].FolderPath)
}

func TestOpenSelectFlow(t *testing.T) {
	s, pg := newTestServer(t, &stubCrawler{items: []models.ImageItem{sword}})

	rec := do(t, s, http.MethodPost, "/api/triggers/0/open?wait=true", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var view picker.View
	decode(t, rec, &view)
	assert.Equal(t, "open", view.State)
	assert.Equal(t, "Select Weapon", view.Title)
	require.Len(t, view.Thumbnails, 1)
	assert.Equal(t, sword.Src, view.Thumbnails[0].Src)

	rec = do(t, s, http.MethodPost, "/api/popup/thumbnails/0/select", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, picker.Hidden, pg.Picker.State())

	slot := pg.Doc.ByID("weapon-slot")
	assert.Equal(t, "url('"+sword.Src+"')", slot.Style("background-image"))
	assert.Equal(t, "cover", slot.Style("background-size"))

	items, ok := pg.Cache.Get("../public/weapon/")
	require.True(t, ok)
	assert.Equal(t, []models.ImageItem{sword}, items)
}

func TestSelectErrors(t *testing.T) {
	s, _ := newTestServer(t, &stubCrawler{items: []models.ImageItem{sword}})

	rec := do(t, s, http.MethodPost, "/api/popup/thumbnails/0/select", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	do(t, s, http.MethodPost, "/api/triggers/0/open?wait=true", "")
	rec = do(t, s, http.MethodPost, "/api/popup/thumbnails/5/select", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/popup/thumbnails/x/select", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenUnknownTrigger(t *testing.T) {
	s, _ := newTestServer(t, &stubCrawler{})

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/triggers/3/open", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/triggers/abc/open", "").Code)
}

func TestDismissAndOverlayClick(t *testing.T) {
	s, pg := newTestServer(t, &stubCrawler{})

	do(t, s, http.MethodPost, "/api/triggers/0/open?wait=true", "")
	require.Equal(t, picker.Open, pg.Picker.State())

	// Clicks on popup content leave it open.
	rec := do(t, s, http.MethodPost, "/api/click", `{"target_id":"content"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, picker.Open, pg.Picker.State())

	rec = do(t, s, http.MethodPost, "/api/click", `{"target_id":"asset-popup"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, picker.Hidden, pg.Picker.State())

	do(t, s, http.MethodPost, "/api/triggers/0/open?wait=true", "")
	rec = do(t, s, http.MethodPost, "/api/popup/dismiss", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, picker.Hidden, pg.Picker.State())
}

func TestEmptyFolderMessage(t *testing.T) {
	s, _ := newTestServer(t, &stubCrawler{})

	do(t, s, http.MethodPost, "/api/triggers/0/open?wait=true", "")
	rec := do(t, s, http.MethodGet, "/api/popup", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view picker.View
	decode(t, rec, &view)
	assert.Equal(t, picker.NoImagesMessage, view.Message)
	assert.Empty(t, view.Thumbnails)
}

func TestMenuToggleAndOutsideClick(t *testing.T) {
	s, pg := newTestServer(t, &stubCrawler{})

	rec := do(t, s, http.MethodPost, "/api/menu/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, pg.Menu.Open())

	do(t, s, http.MethodPost, "/api/click", `{"target_id":"link"}`)
	assert.True(t, pg.Menu.Open(), "click inside the panel keeps it open")

	do(t, s, http.MethodPost, "/api/click", `{"target_id":"main"}`)
	assert.False(t, pg.Menu.Open())

	var state map[string]any
	decode(t, do(t, s, http.MethodGet, "/api/menu", ""), &state)
	assert.Equal(t, false, state["menu_open"])
	assert.Equal(t, "hidden", state["popup"])
}

func TestClickBadRequests(t *testing.T) {
	s, _ := newTestServer(t, &stubCrawler{})

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/click", "{").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/click", `{"target_id":"nope"}`).Code)
}

func TestFolderCrawlPopulatesCache(t *testing.T) {
	s, _ := newTestServer(t, &stubCrawler{items: []models.ImageItem{sword}})

	rec := do(t, s, http.MethodGet, "/api/folders/weapon/images", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/folders/weapon/crawl?max_folders=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		CrawlID    string             `json:"crawl_id"`
		FolderPath string             `json:"folder_path"`
		Items      []models.ImageItem `json:"items"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "c1", body.CrawlID)
	assert.Equal(t, "../public/weapon/", body.FolderPath)
	assert.Equal(t, []models.ImageItem{sword}, body.Items)

	rec = do(t, s, http.MethodGet, "/api/folders/weapon/images", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sword.png")
}

func TestFolderCrawlErrors(t *testing.T) {
	s, _ := newTestServer(t, &stubCrawler{err: errors.New("invalid start url")})

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/folders/weapon/crawl?max_folders=0", "").Code)
	assert.Equal(t, http.StatusBadGateway, do(t, s, http.MethodPost, "/api/folders/weapon/crawl", "").Code)
}

func TestNoPickerMarkup(t *testing.T) {
	doc, err := dom.ParseString(`<html><body><p id="x">plain</p></body></html>`)
	require.NoError(t, err)
	pg := page.Init(doc, page.Deps{Crawler: &stubCrawler{}, Resolver: stubResolver{}})
	s := New(context.Background(), config.DefaultConfig(), Deps{Page: pg})

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/triggers", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/menu/toggle", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/metrics", "").Code)
}

func TestClickOnTriggerKeepsMenuOpen(t *testing.T) {
	s, pg := newTestServer(t, &stubCrawler{items: []models.ImageItem{sword}})

	do(t, s, http.MethodPost, "/api/menu/toggle", "")
	require.True(t, pg.Menu.Open())

	rec := do(t, s, http.MethodPost, "/api/click?wait=true", `{"target_id":"weapon-slot"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var state map[string]any
	decode(t, rec, &state)
	assert.Equal(t, true, state["menu_open"])
	assert.Equal(t, "open", state["popup"])
	assert.Len(t, pg.Picker.View().Thumbnails, 1)
}
