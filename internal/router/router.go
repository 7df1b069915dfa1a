package router

import (
	"net/http"

	"github.com/foodgram/api/internal/config"
	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/handler"
	mw "github.com/foodgram/api/internal/middleware"
	"github.com/foodgram/api/internal/realtime"
	"github.com/foodgram/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services are the stateful collaborators the routes delegate to.
type Services struct {
	Orders     *service.OrderService
	Deliveries *service.DeliveryService
	Webhooks   handler.WebhookParser
	Hub        *realtime.Hub
}

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, svc Services) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(mw.Observability(zap.L()))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		realtime.ServeWS(svc.Hub, queries, cfg.JWTSecret, w, r)
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	handler.NewMenuHandler(queries).RegisterRoutes(r)
	handler.NewPaymentHandler(svc.Webhooks, svc.Orders).RegisterRoutes(r)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Get("/auth/me", authHandler.Me)

		orderHandler := handler.NewOrderHandler(svc.Orders, queries)
		r.Route("/orders", orderHandler.RegisterRoutes)

		deliveryHandler := handler.NewDeliveryHandler(svc.Deliveries, queries)
		r.Route("/deliveries", deliveryHandler.RegisterRoutes)

		notificationHandler := handler.NewNotificationHandler(queries)
		r.Route("/notifications", notificationHandler.RegisterRoutes)

		// Admin-only routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleAdmin))
			handler.NewStatsHandler(queries).RegisterRoutes(r)
		})
	})

	zap.L().Info("router initialized")
	return r
}
