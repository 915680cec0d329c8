package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/monitor"
	"github.com/wardenhq/warden/internal/supervisor"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show supervisor heartbeat and queue state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Warden Status ==="))

		hb, err := supervisor.ReadHeartbeat(projectRoot)
		if err != nil {
			return fmt.Errorf("read heartbeat: %w", err)
		}
		if hb == nil {
			fmt.Printf("  %s\n", gray("No heartbeat recorded — supervisor not running?"))
		} else {
			daemonState := red("● dead")
			if hb.DaemonAlive {
				daemonState = green("● alive")
			}
			fmt.Printf("  Daemon:    %s\n", daemonState)
			fmt.Printf("  Tick:      %s (%v ago)\n",
				hb.Timestamp.Format("2006-01-02 15:04:05"),
				time.Since(hb.Timestamp).Round(time.Second))
			fmt.Printf("  Restarts:  %d\n", hb.ConsecutiveRestarts)
			memLine := fmt.Sprintf("%.1f%%", hb.MemoryPercent)
			if hb.MemoryPercent >= cfg.Supervisor.MemoryWarnPercent {
				memLine = yellow(memLine)
			}
			fmt.Printf("  Memory:    %s\n", memLine)
		}

		router := buildRouter(cfg, logger)
		fmt.Printf("  Digest:    %d queued (primary channel: %s)\n",
			router.QueueSize(), router.Primary())

		violations, err := monitor.ReadViolations(projectRoot)
		if err == nil {
			fmt.Printf("  Violations recorded: %d\n", len(violations))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
