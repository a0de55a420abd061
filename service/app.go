package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"postvote/app/auth"
	"postvote/app/config"
	"postvote/app/controllers"
	"postvote/app/middleware"
	"postvote/app/repositories"
	"postvote/app/repositories/sqlstore"
	"postvote/app/routes"
	"postvote/app/services"
)

// shutdownTimeout bounds how long in-flight requests may finish after a
// shutdown signal.
const shutdownTimeout = 5 * time.Second

// OpenStore opens the store selected by cfg.StoreDriver.
func OpenStore(cfg *config.Config, log *slog.Logger) (repositories.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverBadger:
		log.Info("opening badger store", "path", cfg.BadgerPath)
		return repositories.NewRepository(cfg.BadgerPath)
	case config.DriverPostgres, config.DriverSQLite:
		return sqlstore.Open(cfg.StoreDriver, cfg.DatabaseURL, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewHandler wires services, controllers and routes on top of store.
func NewHandler(cfg *config.Config, store repositories.Store, log *slog.Logger) (http.Handler, error) {
	tokens, err := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	postService := services.NewPostService(store, cfg.StoreTimeout, log)
	userService := services.NewUserService(store, tokens, cfg.StoreTimeout, log)

	return routes.SetupRoutes(routes.Deps{
		Posts:       controllers.NewPostController(postService, log),
		Users:       controllers.NewUserController(userService, log),
		Tokens:      tokens,
		AuthLimiter: middleware.NewIPRateLimiter(cfg.AuthRateRPS, cfg.AuthRateBurst).WithTrustedProxies(cfg.TrustedProxies...),
		Logger:      log,
	}), nil
}

// RunAppServer serves the API until ctx is cancelled, then shuts down
// gracefully and closes the store.
func RunAppServer(ctx context.Context, cfg *config.Config, log *slog.Logger) (err error) {
	store, err := OpenStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
		}
	}()

	handler, err := NewHandler(cfg, store, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return Serve(ctx, srv, log)
}

// Serve runs srv until ctx is done and then waits up to shutdownTimeout
// for in-flight requests.
func Serve(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}
