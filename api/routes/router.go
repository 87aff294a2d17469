package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockroom-backend/api/controllers"
	"github.com/angelmondragon/stockroom-backend/api/middleware"
	"github.com/angelmondragon/stockroom-backend/internal/approvals"
	"github.com/angelmondragon/stockroom-backend/internal/requests"
	"github.com/angelmondragon/stockroom-backend/internal/stock"
	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

// PendingFeed is the read side of the pending-count notifier.
type PendingFeed interface {
	controllers.PendingCounter
	controllers.PendingWatcher
}

// RouterParams carries everything the HTTP surface is wired to.
type RouterParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        controllers.Pinger
	Redis     controllers.Pinger
	Stock     stock.Reader
	Requests  requests.Service
	Approvals approvals.Service
	Pending   PendingFeed
	Gatherer  prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	reviewers := []enums.UserRole{enums.UserRoleAdmin, enums.UserRoleDirector}
	everyone := append([]enums.UserRole{enums.UserRoleDocente}, reviewers...)

	r.Route("/ws", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, reviewers...))
		r.Get("/pending-count", controllers.PendingCountSocket(p.Pending, cfg.App.CORSOrigins, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, everyone...))
			r.Get("/stock", controllers.SearchStock(p.Stock, logg))
			r.Get("/requests", controllers.ListMyRequests(p.Requests, logg))
			r.Post("/requests", controllers.SubmitRequest(p.Requests, p.Stock, logg))
			r.Put("/requests/{requestId}", controllers.AmendRequest(p.Requests, p.Stock, logg))
		})

		r.Route("/review", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, reviewers...))
			r.Get("/requests", controllers.ListAllRequests(p.Requests, logg))
			r.Get("/requests/{requestId}", controllers.GetRequest(p.Requests, logg))
			r.Post("/items/{itemId}/approve", controllers.ApproveItem(p.Approvals, logg))
			r.Post("/items/{itemId}/reject", controllers.RejectItem(p.Approvals, logg))
			r.Get("/pending-count", controllers.PendingCount(p.Pending, logg))
		})
	})

	return r
}
