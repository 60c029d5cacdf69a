package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rehoboam-dev/rehoboam/internal/collab"
	"github.com/rehoboam-dev/rehoboam/internal/config"
	"github.com/rehoboam-dev/rehoboam/internal/ingress"
	"github.com/rehoboam-dev/rehoboam/internal/loopctl"
	"github.com/rehoboam-dev/rehoboam/internal/state"
)

var (
	loopProjectDir    string
	loopDirFlag       string
	loopAnchor        string
	loopMaxIterations uint32
	loopStopWord      string
	loopRole          string
	loopPaneID        string
	loopCoordination  bool
	loopWorker        bool
	loopConfigPath    string
)

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Run a standalone single-agent Rehoboam loop without the rest of the fleet",
	RunE:  runLoop,
}

func runLoop(cmd *cobra.Command, args []string) error {
	projectDir := strings.TrimSpace(loopProjectDir)
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving project dir: %w", err)
		}
		projectDir = wd
	}

	loopDir := strings.TrimSpace(loopDirFlag)
	if loopDir == "" {
		loopDir = filepath.Join(projectDir, ".rehoboam")
	}

	anchor := strings.TrimSpace(loopAnchor)
	if anchor == "" {
		return fmt.Errorf("--anchor is required (describe the goal for the loop)")
	}

	opts := loopctl.InitOptions{EnableCoordination: loopCoordination, IsWorker: loopWorker}
	if err := loopctl.InitLoopDir(loopDir, anchor, opts); err != nil {
		return fmt.Errorf("initializing loop dir: %w", err)
	}

	s, err := loopctl.LoadState(loopDir)
	if err != nil {
		return err
	}
	s.MaxIterations = loopMaxIterations
	s.StopWord = loopStopWord
	s.Role = loopctl.Role(loopRole)
	s.ProjectDir = projectDir
	if err := s.Save(loopDir); err != nil {
		return err
	}

	paneID := strings.TrimSpace(loopPaneID)
	if paneID == "" {
		tmux := collab.Tmux{}
		pane, err := tmux.SplitPane(context.Background(), true, projectDir)
		if err != nil {
			return fmt.Errorf("spawning initial pane: %w", err)
		}
		paneID = pane
	}

	a := &state.Agent{
		PaneID:        paneID,
		Project:       filepath.Base(projectDir),
		WorkingDir:    projectDir,
		LoopDir:       loopDir,
		LoopMode:      state.LoopActive,
		LoopMax:       loopMaxIterations,
		LoopStopWord:  loopStopWord,
	}

	var cfg config.RehoboamConfig
	if loopConfigPath != "" {
		cfg = config.LoadFromPath(loopConfigPath, nil)
	} else {
		cfg = config.Load(nil)
	}

	ctrl := loopctl.NewController(collab.Tmux{}, collab.Git{}, collab.Notifier{})
	ctrl.Judge = buildJudge(cfg.Judge)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	socketPath := filepath.Join(loopDir, "hooks.sock")
	ing := ingress.New()
	go func() {
		if err := ing.ListenUnixSocket(ctx, socketPath); err != nil {
			fmt.Fprintf(os.Stderr, "[loop] hook socket: %v\n", err)
			stop()
		}
	}()

	fmt.Fprintf(os.Stdout, "[loop] starting %s in %s (loop_dir=%s, hooks=%s)\n", a.PaneID, a.WorkingDir, a.LoopDir, socketPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-ing.Events:
			if e.PaneID != a.PaneID || e.Event != "Stop" {
				continue
			}
			result, err := ctrl.OnStop(ctx, a)
			if err != nil {
				return fmt.Errorf("loop iteration failed: %w", err)
			}
			if result.Completed {
				fmt.Fprintf(os.Stdout, "[loop] complete: %s\n", result.Reason)
				return nil
			}
			fmt.Fprintf(os.Stdout, "[loop] iteration %d continuing on pane %s\n", a.LoopIteration, a.PaneID)
		}
	}
}

func init() {
	loopCmd.Flags().StringVar(&loopProjectDir, "project", "", "Project directory (default: current directory)")
	loopCmd.Flags().StringVar(&loopDirFlag, "loop-dir", "", "Loop state directory (default: <project>/.rehoboam)")
	loopCmd.Flags().StringVar(&loopAnchor, "anchor", "", "Anchor goal text written to anchor.md on first run (required)")
	loopCmd.Flags().Uint32Var(&loopMaxIterations, "max-iterations", 20, "Maximum iterations before the loop force-completes")
	loopCmd.Flags().StringVar(&loopStopWord, "stop-word", "", "Optional stop word that, found in progress.md, completes the loop")
	loopCmd.Flags().StringVar(&loopRole, "role", "auto", "Loop role: planner, worker, or auto")
	loopCmd.Flags().StringVar(&loopPaneID, "pane", "", "Existing tmux pane id to drive (default: spawn a new pane)")
	loopCmd.Flags().BoolVar(&loopCoordination, "enable-coordination", false, "Create the multi-agent coordination bus under loop_dir")
	loopCmd.Flags().BoolVar(&loopWorker, "worker", false, "Initialize this loop as a Worker (creates assigned_task.md)")
	loopCmd.Flags().StringVar(&loopConfigPath, "config", "", "Path to config.toml (default: ~/.config/rehoboam/config.toml)")
}
