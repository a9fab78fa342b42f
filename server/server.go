// Package server exposes a page session over HTTP: the trigger list, the
// picker state machine, the menu toggle, direct folder crawls and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aluiziolira/go-asset-picker/config"
	"github.com/aluiziolira/go-asset-picker/page"
	"github.com/aluiziolira/go-asset-picker/parser"
	"github.com/aluiziolira/go-asset-picker/picker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Deps are the collaborators served over HTTP.
type Deps struct {
	Page     *page.Page
	Crawler  picker.Crawler
	Registry *prometheus.Registry
}

// Server serves one page session.
type Server struct {
	cfg  *config.Config
	deps Deps
	// session outlives individual requests so background refreshes finish.
	session    context.Context
	router     chi.Router
	httpServer *http.Server
}

// New builds the server. session bounds background crawls started by requests.
func New(session context.Context, cfg *config.Config, deps Deps) *Server {
	if session == nil {
		session = context.Background()
	}
	s := &Server{cfg: cfg, deps: deps, session: session}
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/triggers", s.handleTriggers)
		r.Post("/triggers/{index}/open", s.handleOpen)
		r.Get("/popup", s.handlePopup)
		r.Post("/popup/dismiss", s.handleDismiss)
		r.Post("/popup/thumbnails/{index}/select", s.handleSelect)
		r.Post("/click", s.handleClick)
		r.Get("/menu", s.handleMenu)
		r.Post("/menu/toggle", s.handleMenuToggle)
		r.Get("/folders/{folder}/images", s.handleCachedImages)
		r.Post("/folders/{folder}/crawl", s.handleCrawl)
	})

	return r
}

type triggerView struct {
	Index      int    `json:"index"`
	ID         string `json:"id,omitempty"`
	Label      string `json:"label"`
	Folder     string `json:"folder"`
	FolderPath string `json:"folder_path"`
	Style      string `json:"style,omitempty"`
}

func toTriggerView(t *picker.Trigger) triggerView {
	return triggerView{
		Index:      t.Index,
		ID:         t.Element.ID(),
		Label:      t.Label,
		Folder:     t.Folder,
		FolderPath: t.FolderPath,
		Style:      t.Element.StyleString(),
	}
}

func (s *Server) picker(w http.ResponseWriter) (*picker.Picker, bool) {
	if s.deps.Page == nil || s.deps.Page.Picker == nil {
		writeError(w, http.StatusNotFound, "asset picker is not available on this page")
		return nil, false
	}
	return s.deps.Page.Picker, true
}

func (s *Server) handleTriggers(w http.ResponseWriter, r *http.Request) {
	p, ok := s.picker(w)
	if !ok {
		return
	}
	triggers := p.Triggers()
	out := make([]triggerView, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, toTriggerView(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	p, ok := s.picker(w)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trigger index")
		return
	}
	trigger, err := p.Trigger(index)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	done := p.Open(s.session, trigger)
	if r.URL.Query().Get("wait") == "true" {
		select {
		case <-done:
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, http.StatusAccepted, p.View())
}

func (s *Server) handlePopup(w http.ResponseWriter, r *http.Request) {
	p, ok := s.picker(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	p, ok := s.picker(w)
	if !ok {
		return
	}
	p.Dismiss()
	writeJSON(w, http.StatusOK, p.View())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	p, ok := s.picker(w)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid thumbnail index")
		return
	}

	thumb, err := p.Select(index)
	switch {
	case errors.Is(err, picker.ErrNotOpen):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, picker.ErrNoThumbnail):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, picker.ErrHiddenThumbnail):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"selected": thumb,
		"popup":    p.View(),
	})
}

type clickRequest struct {
	TargetID string `json:"target_id"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	if s.deps.Page == nil || s.deps.Page.Doc == nil {
		writeError(w, http.StatusNotFound, "no page loaded")
		return
	}
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target := s.deps.Page.Doc.ByID(req.TargetID)
	if target == nil {
		writeError(w, http.StatusNotFound, "no element with id "+req.TargetID)
		return
	}
	done := s.deps.Page.Click(s.session, target)
	if done != nil && r.URL.Query().Get("wait") == "true" {
		select {
		case <-done:
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, http.StatusOK, s.pageState())
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pageState())
}

func (s *Server) handleMenuToggle(w http.ResponseWriter, r *http.Request) {
	if s.deps.Page == nil || s.deps.Page.Menu == nil {
		writeError(w, http.StatusNotFound, "menu toggle is not available on this page")
		return
	}
	s.deps.Page.Menu.ClickTrigger()
	writeJSON(w, http.StatusOK, s.pageState())
}

func (s *Server) pageState() map[string]any {
	state := map[string]any{"menu_open": false, "popup": "hidden"}
	if s.deps.Page == nil {
		return state
	}
	if s.deps.Page.Menu != nil {
		state["menu_open"] = s.deps.Page.Menu.Open()
	}
	if s.deps.Page.Picker != nil {
		state["popup"] = s.deps.Page.Picker.State().String()
	}
	return state
}

func (s *Server) handleCachedImages(w http.ResponseWriter, r *http.Request) {
	if s.deps.Page == nil || s.deps.Page.Cache == nil {
		writeError(w, http.StatusNotFound, "no cache")
		return
	}
	folderPath := parser.FolderPath(s.cfg.PublicRoot, chi.URLParam(r, "folder"))
	items, ok := s.deps.Page.Cache.Get(folderPath)
	if !ok {
		writeError(w, http.StatusNotFound, "folder not crawled yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"folder_path": folderPath,
		"items":       items,
	})
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	if s.deps.Crawler == nil {
		writeError(w, http.StatusNotFound, "crawler not configured")
		return
	}
	folderPath := parser.FolderPath(s.cfg.PublicRoot, chi.URLParam(r, "folder"))
	maxFolders := 0
	if raw := r.URL.Query().Get("max_folders"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "max_folders must be a positive integer")
			return
		}
		maxFolders = n
	}

	result, err := s.deps.Crawler.Crawl(r.Context(), folderPath, maxFolders)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if s.deps.Page != nil && s.deps.Page.Cache != nil {
		s.deps.Page.Cache.Set(folderPath, result.Items)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"crawl_id":    result.CrawlID,
		"start_url":   result.StartURL,
		"folder_path": folderPath,
		"folders":     result.FolderCount,
		"skipped":     result.SkippedFolders,
		"errors":      result.ErrorsByType,
		"duration_ms": result.Duration().Milliseconds(),
		"items":       result.Items,
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", s.cfg.ListenAddr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
