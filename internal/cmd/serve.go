package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rehoboam-dev/rehoboam/internal/collab"
	"github.com/rehoboam-dev/rehoboam/internal/config"
	"github.com/rehoboam-dev/rehoboam/internal/engine"
	"github.com/rehoboam-dev/rehoboam/internal/health"
	"github.com/rehoboam-dev/rehoboam/internal/ingress"
	"github.com/rehoboam-dev/rehoboam/internal/loopctl"
	"github.com/rehoboam-dev/rehoboam/internal/reconcile"
	"github.com/rehoboam-dev/rehoboam/internal/state"
	"github.com/rehoboam-dev/rehoboam/internal/statusline"
	"github.com/rehoboam-dev/rehoboam/internal/telemetry"
)

var (
	serveSocketPath   string
	serveWSAddr       string
	serveWSToken      string
	serveConfigPath   string
	serveOtelEndpoint string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the full engine: ingress, reconcilers, loop controller, and status surface",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cmd.Flags().Changed("ws-addr") && cfg.Sandboxes.Enabled {
		serveWSAddr = fmt.Sprintf(":%d", cfg.Sandboxes.WebSocketPort)
	}

	ing := ingress.New()
	fleet := state.New()
	fleet.Commits = collab.HeadCommitResolver{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := ing.ListenUnixSocket(ctx, serveSocketPath); err != nil {
			log.Printf("[cmd] unix socket ingress: %v", err)
			stop()
		}
	}()

	wsServer := ingress.NewWebSocketServer(ing, serveWSToken)
	httpSrv := &http.Server{Addr: serveWSAddr, Handler: wsServer.Handler()}
	go func() {
		log.Printf("[cmd] websocket/status surface listening on %s", serveWSAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[cmd] http server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = httpSrv.Shutdown(context.Background())
	}()

	tmux := collab.Tmux{}
	ctrl := loopctl.NewController(tmux, collab.Git{}, collab.Notifier{})
	ctrl.Judge = buildJudge(cfg.Judge)

	tel, err := telemetry.New(ctx, telemetry.Config{Endpoint: serveOtelEndpoint})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	e := engine.New(ing, fleet, reconcile.NewTmuxReconciler(), health.New(), ctrl, tel, statusline.NewRenderer(os.Stdout))
	e.OnDirty = func(footer string) {
		fmt.Fprintln(os.Stdout, footer)
	}

	err = e.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func loadServeConfig() (config.RehoboamConfig, error) {
	if serveConfigPath != "" {
		return config.LoadFromPath(serveConfigPath, log.Printf), nil
	}
	return config.Load(log.Printf), nil
}

func defaultSocketPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "rehoboam.sock")
	}
	return filepath.Join(dir, ".rehoboam", "ingress.sock")
}

func init() {
	serveCmd.Flags().StringVar(&serveSocketPath, "socket", defaultSocketPath(), "Unix socket path for local hook events")
	serveCmd.Flags().StringVar(&serveWSAddr, "ws-addr", ":8787", "Address for the WebSocket/status HTTP surface")
	serveCmd.Flags().StringVar(&serveWSToken, "ws-token", "", "Bearer token required on the status/control surface (empty disables auth)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config.toml (default: ~/.config/rehoboam/config.toml)")
	serveCmd.Flags().StringVar(&serveOtelEndpoint, "otel-endpoint", "", "OTLP/HTTP collector endpoint (empty disables telemetry export)")
}
