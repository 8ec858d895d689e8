package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	d := s.deps
	log := s.logger.Named("handlers")

	authHandler := handlers.NewAuthHandler(d.Engine, d.Engine, d.Accounts, d.Tokens, log)
	attendanceHandler := handlers.NewAttendanceHandler(d.Engine, d.Recorder, d.Store, log)
	schedulesHandler := handlers.NewSchedulesHandler(d.Store, log)
	usersHandler := handlers.NewUsersHandler(d.Store, d.Engine, log)
	modelHandler := handlers.NewModelHandler(d.Engine, log)

	rateLimit := middleware.RateLimit(s.config.Web.AuthRateLimit, s.config.Web.AuthRateBurst)
	pending := middleware.RequireToken(d.Tokens, middleware.StagePending)
	anyStage := middleware.RequireToken(d.Tokens, middleware.StagePending, middleware.StageSession)
	session := middleware.RequireToken(d.Tokens, middleware.StageSession)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if d.Metrics != nil {
		s.router.Handle("/metrics", d.Metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth
		r.With(rateLimit).Post("/auth/register", authHandler.Register)
		r.With(rateLimit).Post("/auth/login", authHandler.Login)
		r.With(rateLimit, pending).Post("/auth/verify", authHandler.Verify)
		r.Get("/auth/status", authHandler.Status)
		r.Post("/auth/logout", authHandler.Logout)

		// Attendance accepts a pending token: the face check happens here.
		r.With(rateLimit, anyStage).Post("/attendance", attendanceHandler.Mark)

		r.Group(func(r chi.Router) {
			r.Use(session)

			r.Get("/schedules", attendanceHandler.Schedules)
			r.Get("/attendance", attendanceHandler.History)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				// Users
				r.Get("/users", usersHandler.List)
				r.Get("/users/{id}", usersHandler.Get)
				r.Put("/users/{id}", usersHandler.Update)
				r.Delete("/users/{id}", usersHandler.Delete)

				// Schedules
				r.Get("/schedules", schedulesHandler.List)
				r.Post("/schedules", schedulesHandler.Create)
				r.Get("/schedules/{id}", schedulesHandler.Get)
				r.Put("/schedules/{id}", schedulesHandler.Update)
				r.Delete("/schedules/{id}", schedulesHandler.Delete)
				r.Post("/schedules/{id}/toggle", schedulesHandler.Toggle)
				r.Get("/schedules/{id}/attendances", schedulesHandler.Attendances)

				// Model
				r.Get("/model", modelHandler.Status)
				r.Post("/model/rebuild", modelHandler.Rebuild)
			})
		})
	})
}
