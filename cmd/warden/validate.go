package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/budget"
	"github.com/wardenhq/warden/internal/gate"
	"github.com/wardenhq/warden/internal/gitops"
	"github.com/wardenhq/warden/internal/types"
)

var (
	validateSession string
	validateBase    string
	validateWorkDir string
)

var validateCmd = &cobra.Command{
	Use:   "validate <task-id>",
	Short: "Gate a finished worker's output",
	Long: `Run the completion gate against a worker's changes: area locks,
protected files, plan scope, budget, and working-tree cleanliness.
Exits nonzero when any hard violation is found.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := args[0]
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		workDir := validateWorkDir
		if workDir == "" {
			workDir = projectRoot
		}

		git, err := gitops.NewClient()
		if err != nil {
			logger.Warn("git unavailable, skipping version-control checks")
			git = nil
		}

		g := gate.New(gate.Config{
			Locks:  buildLockRegistry(cfg, logger),
			Budget: budget.NewFileChecker(projectRoot),
			Git:    git,
			Logger: logger,
		})
		report := g.Validate(cmd.Context(), gate.Request{
			WorkDir:     workDir,
			ProjectRoot: projectRoot,
			SessionID:   validateSession,
			TaskID:      taskID,
			BaseRef:     validateBase,
		})

		printReport(report)
		if !report.Passed {
			return fmt.Errorf("validation failed: %d violation(s)", len(report.Violations))
		}
		return nil
	},
}

func printReport(report *types.ValidationReport) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	verdict := green("PASSED")
	if !report.Passed {
		verdict = red("FAILED")
	}
	fmt.Printf("\nValidation %s  (task %s, %d files changed)\n\n",
		verdict, report.Summary.TaskID, report.Summary.FilesChanged)

	for _, v := range report.Violations {
		fmt.Printf("  %s %s", red("✗"), v.Type)
		if v.File != "" {
			fmt.Printf("  %s", v.File)
		}
		fmt.Println()
	}
	for _, w := range report.Warnings {
		fmt.Printf("  %s %s", yellow("!"), w.Type)
		if w.File != "" {
			fmt.Printf("  %s", w.File)
		}
		fmt.Println()
	}
	if len(report.Violations) == 0 && len(report.Warnings) == 0 {
		fmt.Println("  No findings.")
	}
	fmt.Println()
}

func init() {
	validateCmd.Flags().StringVar(&validateSession, "session", "", "worker session ID")
	validateCmd.Flags().StringVar(&validateBase, "base", "", "diff base ref (default: repository default branch)")
	validateCmd.Flags().StringVar(&validateWorkDir, "workdir", "", "worker checkout directory (default: project root)")
	rootCmd.AddCommand(validateCmd)
}
