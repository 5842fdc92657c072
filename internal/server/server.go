// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"

	"kavach/internal/config"
	"kavach/internal/domain/report"
	"kavach/internal/server/handlers"
	svc "kavach/internal/service/report"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.Config,
	natsConn *nats.Conn,
	lifecycle report.Lifecycle,
	index report.Index,
	stats *svc.StatsService,
) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	reportHandler := handlers.NewReportHandler(lifecycle, index, stats, handlers.ReportHandlerConfig{
		DefaultRadiusKm: cfg.Geo.DefaultRadiusKm,
		MaxRadiusKm:     cfg.Geo.MaxRadiusKm,
		NearbyLimit:     cfg.Geo.NearbyLimit,
		DefaultWindow:   cfg.Stats.DefaultWindow,
	})

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			r.Route("/reports", func(r chi.Router) {
				r.Post("/", reportHandler.CreateReport)
				r.Get("/nearby", reportHandler.GetNearbyReports)
				r.Get("/stats", reportHandler.GetStats)
				r.Get("/{id}", reportHandler.GetReport)
				r.Delete("/{id}", reportHandler.DeleteReport)
				r.Post("/{id}/status", reportHandler.UpdateStatus)
				r.Put("/{id}/location", reportHandler.UpdateCoordinate)
				r.Get("/{id}/updates", reportHandler.GetUpdates)
			})
		})
	})

	// WebSocket endpoint for the live report event feed
	router.Get("/ws/reports", handlers.ReportFeedHandler(natsConn))

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
