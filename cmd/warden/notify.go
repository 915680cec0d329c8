package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/notify"
	"github.com/wardenhq/warden/internal/types"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification utilities",
}

var flushDigestCmd = &cobra.Command{
	Use:   "flush-digest",
	Short: "Flush queued info notifications as one digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		router := buildRouter(cfg, logger)
		sent, err := router.FlushDigest(cmd.Context())
		if err != nil {
			return fmt.Errorf("flush digest: %w", err)
		}
		if sent == 0 {
			fmt.Println("Digest queue is empty.")
			return nil
		}
		fmt.Printf("Flushed %d queued notification(s).\n", sent)
		return nil
	},
}

var notifyTestSeverity string

var notifyTestCmd = &cobra.Command{
	Use:   "test [message]",
	Short: "Send a test notification through the configured channels",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		sev := types.Severity(notifyTestSeverity)
		if !sev.IsValid() {
			return fmt.Errorf("unknown severity %q", notifyTestSeverity)
		}
		msg := "Test notification from warden"
		if len(args) > 0 {
			msg = args[0]
		}

		router := buildRouter(cfg, logger)
		result := router.Route(cmd.Context(), notify.Event{
			Title:    msg,
			Severity: sev,
		})
		if result.Queued {
			fmt.Println("Queued for the next digest (info severity).")
			return nil
		}
		for _, d := range result.Deliveries {
			state := "ok"
			if !d.Delivered {
				state = d.Error
			}
			fmt.Printf("  %-10s %s\n", d.Channel, state)
		}
		return nil
	},
}

func init() {
	notifyTestCmd.Flags().StringVar(&notifyTestSeverity, "severity", "warning",
		"severity to route with (info, warning, critical)")
	notifyCmd.AddCommand(flushDigestCmd)
	notifyCmd.AddCommand(notifyTestCmd)
	rootCmd.AddCommand(notifyCmd)
}
