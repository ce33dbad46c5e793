package relicarium

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// serve context is cancelled.
const shutdownTimeout = 5 * time.Second

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails.
//
// # API Endpoints
//
// Catalog:
//
//	POST   /artifacts              - Create artifact
//	GET    /artifacts              - List artifacts (?name= substring filter)
//	GET    /artifacts/{id}         - Get artifact by ID
//	PUT    /artifacts/{id}         - Update artifact descriptive fields
//	DELETE /artifacts/{id}         - Delete artifact and its engagement data
//
// Engagement:
//
//	PATCH  /artifacts/{id}/like      - Set a user's like state
//	POST   /artifacts/{id}/comments  - Append a comment
//	GET    /artifacts/{id}/comments  - List comments in append order
//
// Health:
//
//	GET    /health                 - Service liveness
//
// On context cancellation the server shuts down gracefully, allowing up to
// shutdownTimeout for active requests to complete.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", a.config.ServerPort),
		Handler: a.Router(),
	}

	a.log.Info().
		Str("addr", server.Addr).
		Str("backend", a.config.StoreBackend).
		Msg("starting relicarium server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// Router builds the HTTP routing table. Exposed separately from Run so
// tests can drive the handlers through httptest without binding a port.
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	router.HandleFunc("/artifacts", a.handleCreateArtifact).Methods("POST")
	router.HandleFunc("/artifacts", a.handleListArtifacts).Methods("GET")
	router.HandleFunc("/artifacts/{id}", a.handleGetArtifact).Methods("GET")
	router.HandleFunc("/artifacts/{id}", a.handleUpdateArtifact).Methods("PUT")
	router.HandleFunc("/artifacts/{id}", a.handleDeleteArtifact).Methods("DELETE")

	router.HandleFunc("/artifacts/{id}/like", a.handleSetLike).Methods("PATCH")
	router.HandleFunc("/artifacts/{id}/comments", a.handleAddComment).Methods("POST")
	router.HandleFunc("/artifacts/{id}/comments", a.handleListComments).Methods("GET")

	return router
}

// Migrate initializes or updates the backend schema for the configured
// store. Safe to run repeatedly; it only creates missing schema elements.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	a.log.Info().Str("backend", a.config.StoreBackend).Msg("running migrations")
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	a.log.Info().Msg("migrations complete")
	return nil
}
