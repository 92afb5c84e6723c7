package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zapponejosh/teller/internal/config"
)

// SetupRoutes configures all HTTP routes and returns the router.
//
// Route structure:
//
//	GET    /health
//	GET    /api/v1/days/today
//	GET    /api/v1/days/{date}
//	GET    /api/v1/days?start=&end=
//	GET    /api/v1/flow-palace?year_branch=&month=&day= | &label=
//	GET    /api/v1/four-transformations/{stem}
//	GET    /api/v1/lunar/parse?label=
//	GET    /api/v1/solar-terms
//
//	authenticated (X-API-Key):
//	GET    /api/v1/records?start=&end=
//	GET    /api/v1/records/{date}
//	POST   /api/v1/records/generate
//	GET    /api/v1/journal?start=&end=
//	POST   /api/v1/journal
//	GET    /api/v1/journal/{date}
//	GET    /api/v1/journal/{date}/draft
//	PUT    /api/v1/journal/{date}
//	DELETE /api/v1/journal/{date}
//	GET    /api/v1/history?start=&end=
func SetupRoutes(handlers *Handlers, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", "METHOD_NOT_ALLOWED")
	})

	// ==========================================================================
	// Public routes
	// ==========================================================================
	r.Get("/health", handlers.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/days/today", handlers.GetToday)
		r.Get("/days/{date}", handlers.GetDay)
		r.Get("/days", handlers.GetDayRange)
		r.Get("/flow-palace", handlers.GetFlowPalace)
		r.Get("/four-transformations/{stem}", handlers.GetFourTransformations)
		r.Get("/lunar/parse", handlers.ParseLunarLabel)
		r.Get("/solar-terms", handlers.ListSolarTerms)

		// ======================================================================
		// Authenticated routes
		// ======================================================================
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg, logger))

			r.Get("/records", handlers.ListRecords)
			r.Get("/records/{date}", handlers.GetRecord)
			r.Post("/records/generate", handlers.GenerateRecords)

			r.Get("/journal", handlers.ListJournal)
			r.Post("/journal", handlers.CreateJournal)
			r.Get("/journal/{date}", handlers.GetJournal)
			r.Get("/journal/{date}/draft", handlers.GetJournalDraft)
			r.Put("/journal/{date}", handlers.PutJournal)
			r.Delete("/journal/{date}", handlers.DeleteJournal)

			r.Get("/history", handlers.GetHistory)
		})
	})

	return r
}
