// Package httpserver provides the HTTP REST API surface for the paper
// discovery service (component C9, spec.md §4.9, §6).
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/literature-review-service/internal/authgateway"
	"github.com/helixir/literature-review-service/internal/config"
	"github.com/helixir/literature-review-service/internal/feedservice"
	"github.com/helixir/literature-review-service/internal/followfeed"
	"github.com/helixir/literature-review-service/internal/observability"
	"github.com/helixir/literature-review-service/internal/papersources"
	"github.com/helixir/literature-review-service/internal/queryparser"
	"github.com/helixir/literature-review-service/internal/recommendengine"
	"github.com/helixir/literature-review-service/internal/repository"
	"github.com/helixir/literature-review-service/internal/searchengine"
)

// Server is the HTTP REST API server wiring every engine behind chi routes.
type Server struct {
	router     chi.Router
	httpServer *http.Server

	papers     repository.PaperRepository
	source     papersources.Source
	parser     queryparser.Parser
	feed       *feedservice.Service
	search     *searchengine.Engine
	follow     *followfeed.Engine
	recommend  *recommendengine.Engine
	auth       *authgateway.Gateway
	logger     zerolog.Logger
	metrics    *observability.Metrics
	paging     pagingDefaults
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Deps bundles every component the HTTP surface dispatches to.
type Deps struct {
	Papers    repository.PaperRepository
	Source    papersources.Source
	Parser    queryparser.Parser
	Feed      *feedservice.Service
	Search    *searchengine.Engine
	Follow    *followfeed.Engine
	Recommend *recommendengine.Engine
	Auth      *authgateway.Gateway
	Logger    zerolog.Logger
	Metrics   *observability.Metrics
	Feeds     config.FeedsConfig
}

// NewServer builds the HTTP server and its route table.
func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{
		papers:    deps.Papers,
		source:    deps.Source,
		parser:    deps.Parser,
		feed:      deps.Feed,
		search:    deps.Search,
		follow:    deps.Follow,
		recommend: deps.Recommend,
		auth:      deps.Auth,
		logger:    deps.Logger.With().Str("component", "http-server").Logger(),
		metrics:   deps.Metrics,
		paging: pagingDefaults{
			defaultPerPage: nonZero(deps.Feeds.DefaultPerPage, 25),
			maxPerPage:     nonZero(deps.Feeds.MaxPerPage, 200),
			defaultLimit:   nonZero(deps.Feeds.RecommendationDefaultLimit, 20),
			maxLimit:       nonZero(deps.Feeds.RecommendationMaxLimit, 100),
		},
	}

	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func nonZero(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestMetricsMiddleware(s.metrics))
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.healthHandler)

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/login", s.auth.HandleLogin)
		r.Get("/callback", s.auth.HandleCallback)
		r.Get("/logout", s.auth.HandleLogout)
		r.Get("/status", s.auth.HandleStatus)
		r.Get("/me", s.auth.HandleMe)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.RequireAuth)

		r.Get("/papers/search", s.searchPapers)
		r.Get("/papers/search/query", s.searchPapersByQuery)
		r.Get("/papers/bulk/by-ids", s.bulkPapers)
		r.Get("/papers/recommendations", s.recommendations)
		r.Get("/papers/parse-query", s.parseQuery)
		r.Get("/papers/{paperID}/similar", s.similarPapers)
		r.Get("/papers/{paperID}", s.getPaper)

		r.Get("/profile", s.getProfile)
		r.Put("/profile", s.putProfile)
		r.Delete("/profile", s.clearProfile)

		r.Get("/feedback", s.getFeedback)
		r.Post("/feedback/like", s.postLike)
		r.Delete("/feedback/like/{paperID}", s.deleteLike)
		r.Post("/feedback/dislike", s.postDislike)
		r.Delete("/feedback/dislike/{paperID}", s.deleteDislike)
		r.Delete("/feedback", s.clearFeedback(repository.ClearAll))
		r.Delete("/feedback/liked", s.clearFeedback(repository.ClearLiked))
		r.Delete("/feedback/disliked", s.clearFeedback(repository.ClearDisliked))

		r.Get("/folders", s.listFolders)
		r.Post("/folders", s.createFolder)
		r.Get("/folders/{folderID}", s.getFolder)
		r.Delete("/folders/{folderID}", s.deleteFolder)
		r.Post("/folders/{folderID}/papers", s.addPaperToFolder)
		r.Delete("/folders/{folderID}/papers/{paperID}", s.removePaperFromFolder)

		r.Get("/follows", s.listFollows)
		r.Post("/follows", s.createFollow)
		r.Delete("/follows/{type}/{entityID}", s.deleteFollow)
		r.Get("/follows/papers", s.followFeed)

		r.Get("/entity-search/{kind}", s.entitySearch)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
