// Package server provides the HTTP server and routing for rosterd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/config"
	"github.com/shiftops/rosterd/internal/di"
	absencehandlers "github.com/shiftops/rosterd/internal/modules/absence/handlers"
	compoffhandlers "github.com/shiftops/rosterd/internal/modules/compoff/handlers"
	rosterhandlers "github.com/shiftops/rosterd/internal/modules/roster/handlers"
	schedulehandlers "github.com/shiftops/rosterd/internal/modules/schedule/handlers"
	statisticshandlers "github.com/shiftops/rosterd/internal/modules/statistics/handlers"
	"github.com/shiftops/rosterd/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Port      int
	DevMode   bool
	Container *di.Container
	Jobs      *di.JobInstances
	Scheduler *scheduler.Scheduler
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.Config.DataDir,
		cfg.Container,
		cfg.Jobs,
		cfg.Scheduler,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      cfg.Container,
		systemHandlers: systemHandlers,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Live event stream. Held open indefinitely, so it stays outside
		// the request timeout group below.
		eventsHandler := NewEventsStreamHandler(s.container.EventBus, s.log)
		r.Get("/events/ws", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// Module routes
			rosterHandler := rosterhandlers.NewHandler(
				s.container.RegionRepo,
				s.container.ShiftRepo,
				s.container.AnalystRepo,
				s.container.HolidayRepo,
				s.log,
			)
			rosterHandler.RegisterRoutes(r)

			absenceHandler := absencehandlers.NewHandler(
				s.container.VacationRepo,
				s.container.AbsenceRepo,
				s.log,
			)
			absenceHandler.RegisterRoutes(r)

			scheduleHandler := schedulehandlers.NewHandler(
				s.container.Engine,
				s.container.ScheduleRepo,
				s.container.GenerationLogRepo,
				s.container.SwapValidator,
				s.container.RotationRepo,
				s.log,
			)
			scheduleHandler.RegisterRoutes(r)

			compoffHandler := compoffhandlers.NewHandler(s.container.CompOffLedger, s.log)
			compoffHandler.RegisterRoutes(r)

			statisticsHandler := statisticshandlers.NewHandler(s.container.StatisticsService, s.log)
			statisticsHandler.RegisterRoutes(r)

			// System monitoring and operations
			s.systemHandlers.RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs each request with zerolog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
