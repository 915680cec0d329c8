package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/events"
	"github.com/wardenhq/warden/internal/monitor"
)

var (
	watchSession string
	watchTask    string
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a worker directory for policy violations",
	Long: `Watch a directory tree for filesystem changes and flag edits to
protected files or areas locked by other sessions. Violations are
recorded and routed as they happen. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		router := buildRouter(cfg, logger)
		bus := events.NewBus(0)
		defer bus.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go forwardEvents(ctx, bus, router)

		mon := monitor.New(monitor.Config{
			Dir:         args[0],
			ProjectRoot: projectRoot,
			SessionID:   watchSession,
			TaskID:      watchTask,
			Locks:       buildLockRegistry(cfg, logger),
			Bus:         bus,
			Logger:      logger,
		})
		if !mon.Start() {
			return fmt.Errorf("watcher failed to start on %s", args[0])
		}

		fmt.Printf("watching %s. Press Ctrl+C to stop.\n", args[0])
		<-ctx.Done()
		metrics := mon.Stop()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("\n%s\n", cyan("=== Watch Session ==="))
		fmt.Printf("  Duration:     %v\n", metrics.Elapsed.Round(time.Second))
		fmt.Printf("  Events:       %d\n", metrics.TotalEvents)
		fmt.Printf("  Files:        %d\n", metrics.FilesChanged)
		if metrics.ViolationCount > 0 {
			fmt.Printf("  Violations:   %s\n", red(fmt.Sprintf("%d", metrics.ViolationCount)))
			for _, v := range metrics.Violations {
				fmt.Printf("    %s %s (%s)\n", red("✗"), v.File, v.Type)
			}
		} else {
			fmt.Printf("  Violations:   0\n")
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchSession, "session", "", "worker session ID")
	watchCmd.Flags().StringVar(&watchTask, "task", "", "worker task ID")
	rootCmd.AddCommand(watchCmd)
}
