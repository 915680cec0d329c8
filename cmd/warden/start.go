package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/events"
	"github.com/wardenhq/warden/internal/supervisor"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the health supervisor loop",
	Long: `Start the supervision loop: probe daemon liveness on a fixed interval,
restart it with bounded backoff, watch host memory, and flush the
notification digest when it comes due. Runs until interrupted.`,
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

		sup := supervisor.New(supervisor.Config{
			ProjectRoot:           projectRoot,
			Interval:              cfg.SupervisorInterval(),
			MaxRestarts:           cfg.Supervisor.MaxRestarts,
			Cooldown:              cfg.SupervisorCooldown(),
			ProgressWindow:        cfg.SupervisorProgressWindow(),
			MemoryWarnPercent:     cfg.Supervisor.MemoryWarnPercent,
			MemoryCriticalPercent: cfg.Supervisor.MemoryCriticalPercent,
			DaemonScript:          cfg.Supervisor.DaemonScript,
			Notifier:              router,
			Bus:                   bus,
			Logger:                logger,
		})

		// This process is the single digest flusher.
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if router.ShouldFlushDigest() {
						if sent, err := router.FlushDigest(ctx); err == nil && sent > 0 {
							logger.Info("digest flushed", zap.Int("items", sent))
						}
					}
				}
			}
		}()

		fmt.Println("warden supervisor running. Press Ctrl+C to stop.")
		if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		fmt.Println("warden supervisor stopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
