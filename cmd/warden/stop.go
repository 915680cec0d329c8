package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/supervisor"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal the running supervisor to shut down",
	RunE: func(cmd *cobra.Command, args []string) error {
		hb, err := supervisor.ReadHeartbeat(projectRoot)
		if err != nil {
			return fmt.Errorf("read heartbeat: %w", err)
		}
		if hb == nil || hb.SupervisorPID <= 0 {
			return fmt.Errorf("no supervisor heartbeat found under %s", projectRoot)
		}
		proc, err := os.FindProcess(hb.SupervisorPID)
		if err != nil {
			return fmt.Errorf("find supervisor process %d: %w", hb.SupervisorPID, err)
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("signal supervisor %d: %w", hb.SupervisorPID, err)
		}
		fmt.Printf("Sent SIGTERM to supervisor (pid %d).\n", hb.SupervisorPID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
