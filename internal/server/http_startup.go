package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resumatch/internal/observability"
)

// Start brings up observability, TLS, and the HTTP listener, then blocks
// until a shutdown signal or a fatal server error.
func (s *Server) Start() error {
	om, err := s.startObservability()
	if err != nil {
		return err
	}
	defer s.stopObservability(om)

	httpServer := s.buildHTTPServer(om)

	vaultClient, err := s.vaultClientForWatcher()
	if err != nil {
		return err
	}

	if err := s.configureTLS(httpServer, vaultClient, om); err != nil {
		return err
	}

	s.displayServerInfo()

	return s.serveUntilSignal(httpServer)
}

// startObservability builds the observability manager from application config.
func (s *Server) startObservability() (*observability.ObservabilityManager, error) {
	obsConfig := observability.GetObservabilityConfig(s.AppConfig, s.Version)

	om, err := observability.NewObservabilityManager(obsConfig, s.AppConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return om, nil
}

func (s *Server) stopObservability(om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// buildHTTPServer assembles the http.Server with routes wrapped in the
// observability middleware.
func (s *Server) buildHTTPServer(om *observability.ObservabilityManager) *http.Server {
	mux := s.setupRoutes(om)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      om.HTTPMiddleware()(mux),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// serveUntilSignal runs the listener in a goroutine and waits for SIGINT,
// SIGTERM, or a listen failure. ErrServerClosed is the normal shutdown path
// and is not treated as a failure.
func (s *Server) serveUntilSignal(server *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", server.TLSConfig != nil)

		var err error
		if server.TLSConfig == nil {
			err = server.ListenAndServe()
		} else {
			// buildTLSConfig installed the certificates, so no file paths
			// here. Passing paths would load static certificates and bypass
			// the certificate manager's GetCertificate callback.
			err = server.ListenAndServeTLS("", "")
		}

		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-quit:
		s.Logger.Info("Received shutdown signal, starting graceful shutdown",
			"signal", sig.String())
		return s.drainAndStop(server)
	}
}

// drainAndStop releases background resources and gives in-flight requests
// thirty seconds to complete before forcing the listener closed.
func (s *Server) drainAndStop(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.CertificateManager != nil {
		if err := s.CertificateManager.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop certificate manager")
		}
	}

	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}
