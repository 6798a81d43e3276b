package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"crawlscope/internal/metrics"
)

// RouterDeps bundles everything the HTTP surface serves
type RouterDeps struct {
	Crawl          *CrawlHandler
	Events         http.Handler
	Metrics        *metrics.Collector
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the HTTP routes
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Recover(deps.Logger))
	r.Use(Logger(deps.Logger))
	r.Use(CORS(deps.AllowedOrigins))
	r.Use(Metrics(deps.Metrics))

	h := deps.Crawl

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", deps.Metrics.Handler())
	r.Get("/events", deps.Events.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/graph", h.GetGraph)
		r.Get("/export/{format}", h.Export)

		r.Get("/branches", h.ListBranches)
		r.Post("/branches/toggle", h.ToggleBranch)

		r.Get("/messages", h.ListMessages)
		r.Get("/notifications", h.ListNotifications)

		r.Get("/crawl", h.GetCrawl)
		r.Post("/crawl/start", h.StartCrawl)
		r.Post("/crawl/stop", h.StopCrawl)

		r.Post("/clear", h.Clear)
	})

	return r
}
