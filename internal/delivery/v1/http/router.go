package http

import (
	"net/http"

	_ "github.com/DRSN-tech/recommender/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "recommender"

type Router struct {
	router *chi.Mux
	cfg    *cfg.HTTPConfig
	logger logger.Logger
}

func NewRouter(router *chi.Mux, cfg *cfg.HTTPConfig, logger logger.Logger) *Router {
	return &Router{router: router, cfg: cfg, logger: logger}
}

func (r *Router) Init(recUC usecase.RecommendUC, adminUC usecase.IndexAdminUC, recCfg *cfg.RecommendCfg) {
	r.router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, processTime)
	if r.cfg.RateLimitRequests > 0 {
		r.router.Use(httprate.LimitByIP(r.cfg.RateLimitRequests, r.cfg.RateLimitWindow))
	}

	recHandler := NewRecommendHandler(recUC, adminUC, recCfg, r.logger)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // ссылка на JSON
	))
	r.router.Handle("/metrics", promhttp.Handler())
	r.router.Get("/health", recHandler.health)
	r.router.Get("/stats", recHandler.stats)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerRecommendRoutes(v1, recHandler)
		registerAdminRoutes(v1, recHandler)
	})
}

// Handler возвращает роутер, обёрнутый трассировкой OpenTelemetry.
func (r *Router) Handler() http.Handler {
	return otelhttp.NewHandler(r.router, serviceName)
}

func registerRecommendRoutes(router chi.Router, h *RecommendHandler) {
	router.Route("/recommend", func(rec chi.Router) {
		rec.Post("/batch", h.recommendBatch)
		rec.Get("/{itemID}", h.recommend)
	})
}

func registerAdminRoutes(router chi.Router, h *RecommendHandler) {
	router.Route("/admin", func(adm chi.Router) {
		adm.Post("/index/rebuild", h.rebuildIndex)
	})
}
