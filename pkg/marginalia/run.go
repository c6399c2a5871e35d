package marginalia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Routes:
//
//	GET  /health, /api/health                    - service health
//	POST /api/readers                            - provision a reader
//	GET  /api/readers/{readerId}                 - get a reader
//	POST /api/readers/{readerId}/activities      - process a command
//	GET  /api/readers/{readerId}/activities      - the reader's outbox (?limit=N)
//	GET  /api/activities/{id}                    - one activity
//	GET  /api/admin/read-only                    - maintenance switch state
//	POST /api/admin/read-only                    - flip the maintenance switch
//
// Requests that act as a reader carry its id in the X-Reader-Id header, set
// by the authenticating proxy in front of the service.
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/readers", a.handleCreateReader).Methods("POST")
	api.HandleFunc("/readers/{readerId}", a.handleGetReader).Methods("GET")
	api.HandleFunc("/readers/{readerId}/activities", a.handleProcess).Methods("POST")
	api.HandleFunc("/readers/{readerId}/activities", a.handleListActivities).Methods("GET")
	api.HandleFunc("/activities/{id}", a.handleGetActivity).Methods("GET")

	api.HandleFunc("/admin/read-only", a.handleGetReadOnly).Methods("GET")
	api.HandleFunc("/admin/read-only", a.handleSetReadOnly).Methods("POST")

	// Health check route (outside of /api prefix)
	router.HandleFunc("/health", a.handleHealth).Methods("GET")
	return router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", a.config.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info().Str("addr", server.Addr).Bool("readOnly", a.IsReadOnly()).Msg("starting marginalia server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
