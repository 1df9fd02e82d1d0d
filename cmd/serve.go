package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rasha-hantash/confluence-mirror/httpapi"
	"github.com/rasha-hantash/confluence-mirror/mcp"
	"github.com/rasha-hantash/confluence-mirror/syncer"
)

const mcpEndpoint = "/mcp"

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sync HTTP endpoints",
	Long: `Serve POST /api/ConfluenceSync (JSON body), /api/HttpTrigger (query string)
and /healthz. With MCP_ENABLED=true the syncSpace tool is served at /mcp.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), newHandler(syncer.New(cfg)))
	},
}

func newHandler(svc *syncer.Service) http.Handler {
	h := httpapi.NewHandler(svc)
	if cfg.MCPEnabled {
		h.Handle(mcpEndpoint, mcp.NewHTTPServer(mcp.NewServer(svc), mcpEndpoint))
	}
	return h
}

func serve(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening",
			slog.String("addr", cfg.ListenAddr),
			slog.Bool("mcp", cfg.MCPEnabled))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
