// Package dashboard serves the Switchboard HTTP API: accepting sends,
// exposing envelope history, and reporting per-agent delivery health.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/ledger"
	"github.com/zulandar/switchboard/internal/registry"
	"github.com/zulandar/switchboard/internal/router"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Registry *registry.Registry
	Router   *router.Router
	Ledger   *ledger.Ledger
	Port     int
	Out      io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	engine, err := buildEngine(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: engine,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// buildEngine assembles the Gin engine with all routes registered. Split out
// from Start so tests can drive handlers without a listening socket.
func buildEngine(opts StartOpts) (*gin.Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("dashboard: registry is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("dashboard: router is required")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("dashboard: ledger is required")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	registerRoutes(engine, opts)
	return engine, nil
}
