package matchnote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Router returns the HTTP API. Fixed paths are registered before the
// {kind} patterns they would otherwise collide with.
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/sync", a.handleSync).Methods(http.MethodPost)

	api.HandleFunc("/account/register", a.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/account/login", a.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/account/logout", a.handleLogout).Methods(http.MethodPost)

	api.HandleFunc("/{kind}", a.handleList).Methods(http.MethodGet)
	api.HandleFunc("/{kind}", a.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/{kind}/count", a.handleCount).Methods(http.MethodGet)
	api.HandleFunc("/{kind}/{id}", a.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/{kind}/{id}", a.handleUpdate).Methods(http.MethodPut)
	api.HandleFunc("/{kind}/{id}", a.handleDelete).Methods(http.MethodDelete)

	router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	return router
}

// Serve runs the HTTP API until ctx is done, syncing every
// config.SyncInterval while online and signed in.
func (a *App) Serve(ctx context.Context, cmd *ServeCommand) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.config.SyncInterval > 0 {
		go a.reconciler.Run(ctx, a.config.SyncInterval, a.gate)
	}

	addr := fmt.Sprintf(":%d", a.config.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.log.Info().Str("addr", addr).Dur("sync_interval", a.config.SyncInterval).Msg("starting matchnote server")

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
