package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/xdr-console/internal/console/handler"
	"github.com/xela07ax/xdr-console/internal/infra/auth"
	"go.uber.org/zap"
)

// Handlers — обработчики бизнес-доменов, которые собирает main.
type Handlers struct {
	Auth      *handler.AuthHandler      // /v1/session
	Events    *handler.EventsHandler    // /v1/events
	Incidents *handler.IncidentsHandler // /v1/incidents
	Assets    *handler.AssetsHandler    // /v1/assets
	Alerts    *handler.AlertsHandler    // /v1/alerts
	Dashboard *handler.DashboardHandler // /v1/dashboard
	Toasts    *handler.ToastHandler     // /v1/toasts
	Favorites *handler.FavoritesHandler // /v1/favorites
}

// ConsoleServer — локальный API состояния для UI-оболочки.
type ConsoleServer struct {
	router  *chi.Mux
	logger  *zap.Logger
	gate    auth.SessionGate
	h       Handlers
	metrics http.Handler
}

// NewConsoleServer собирает роутер. metrics == nil — /metrics не монтируется.
func NewConsoleServer(logger *zap.Logger, gate auth.SessionGate, h Handlers, metrics http.Handler) *ConsoleServer {
	s := &ConsoleServer{
		router:  chi.NewRouter(),
		logger:  logger.Named("console-api"),
		gate:    gate,
		h:       h,
		metrics: metrics,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		if s.metrics != nil {
			r.Handle("/metrics", s.metrics)
		}

		// Сессия и уведомления нужны экрану логина
		r.Get("/v1/state/session", s.h.Auth.State)
		r.Post("/v1/session/login", s.h.Auth.Login)
		r.Post("/v1/session/logout", s.h.Auth.Logout)

		r.Get("/v1/state/toasts", s.h.Toasts.List)
		r.Post("/v1/toasts/{id}/dismiss", s.h.Toasts.Dismiss)
		r.Post("/v1/toasts/clear", s.h.Toasts.Clear)

		r.Get("/v1/state/favorites", s.h.Favorites.List)
		r.Post("/v1/favorites/{id}/toggle", s.h.Favorites.Toggle)
		r.Delete("/v1/favorites", s.h.Favorites.Clear)
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (нужна живая сессия) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.gate, s.logger))

		r.Post("/v1/session/refresh", s.h.Auth.Refresh)

		r.Get("/v1/state/dashboard", s.h.Dashboard.State)
		r.Post("/v1/dashboard/refresh", s.h.Dashboard.Refresh)

		r.Get("/v1/state/events", s.h.Events.State)
		r.Route("/v1/events", func(r chi.Router) {
			r.Post("/refresh", s.h.Events.Refresh)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.h.Events.Get)
				r.Post("/status", s.h.Events.SetStatus)
				r.With(auth.RequireAdmin(s.gate, s.logger)).Delete("/", s.h.Events.Delete)
			})
		})

		r.Get("/v1/state/incidents", s.h.Incidents.State)
		r.Route("/v1/incidents", func(r chi.Router) {
			r.Post("/refresh", s.h.Incidents.Refresh)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.h.Incidents.Get)
				r.Post("/status", s.h.Incidents.SetStatus)
				r.Post("/assign", s.h.Incidents.Assign)
			})
		})

		r.Get("/v1/state/assets", s.h.Assets.State)
		r.Get("/v1/state/assets/by-department", s.h.Assets.ByDepartment)
		r.Route("/v1/assets", func(r chi.Router) {
			r.Post("/refresh", s.h.Assets.Refresh)
			r.Get("/{id}", s.h.Assets.Get)
		})

		// Правила алертов меняет только analyst и выше
		r.Get("/v1/state/alerts", s.h.Alerts.State)
		r.Route("/v1/alerts", func(r chi.Router) {
			r.Use(auth.RequireAnalyst(s.gate, s.logger))
			r.Post("/refresh", s.h.Alerts.Refresh)
			r.Post("/{id}/toggle", s.h.Alerts.Toggle)
		})
	})
}

func (s *ConsoleServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
