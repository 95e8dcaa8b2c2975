package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	mcpAdapter "github.com/aretw0/arbor/pkg/adapters/mcp"
)

// ShutdownTimeout bounds how long in-flight requests may take after a signal.
const ShutdownTimeout = 5 * time.Second

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	Options
	// Port overrides http.port when non-zero.
	Port int
}

// Serve runs the REST API until SIGINT or SIGTERM.
func Serve(opts ServeOptions) error {
	ctx := NewSignalContext(context.Background())
	defer ctx.Cancel()

	stack, err := Open(ctx, opts.Options, LogJSON)
	if err != nil {
		return err
	}
	defer stack.Close()

	handlerOpts := []httpAdapter.Option{httpAdapter.WithLogger(stack.Logger)}
	if stack.Metrics != nil {
		handlerOpts = append(handlerOpts, httpAdapter.WithMetrics(stack.Metrics.Handler()))
	}
	handler, err := httpAdapter.NewHandler(stack.Engine, handlerOpts...)
	if err != nil {
		return fmt.Errorf("failed to build handler: %w", err)
	}

	port := stack.Config.HTTP.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return listen(ctx, srv, stack)
}

func listen(ctx *SignalContext, srv *http.Server, stack *Stack) error {
	serverErrors := make(chan error, 1)
	go func() {
		stack.Logger.Info("Starting Arbor Server", "addr", srv.Addr, "groups_dir", stack.Config.GroupsDir, "store", stack.Config.Store.Kind)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		stack.Logger.Info("Start shutdown", "signal", fmt.Sprint(ctx.Signal()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			stack.Logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "error", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		stack.Logger.Info("Arbor Server stopped gracefully")
		return nil
	}
}

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// MCPOptions configures the MCP server.
type MCPOptions struct {
	Options
	Transport string
	Port      int
}

// ServeMCP runs the MCP server over stdio or SSE.
// Stdout belongs to the protocol in stdio mode, so logs always go to Stderr.
func ServeMCP(opts MCPOptions) error {
	ctx := NewSignalContext(context.Background())
	defer ctx.Cancel()

	stack, err := Open(ctx, opts.Options, LogText)
	if err != nil {
		return err
	}
	defer stack.Close()

	srv := mcpAdapter.NewServer(stack.Engine, mcpAdapter.WithLogger(stack.Logger))
	switch opts.Transport {
	case "", TransportStdio:
		return handleExecutionError(srv.ServeStdio())
	case TransportSSE:
		port := opts.Port
		if port == 0 {
			port = stack.Config.HTTP.Port
		}
		return srv.ServeSSE(ctx, port)
	default:
		return fmt.Errorf("unknown transport %q (want stdio or sse)", opts.Transport)
	}
}
