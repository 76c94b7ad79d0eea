package main

import (
	"fmt"
	"time"

	"mcpdock/internal/health"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health [name]",
	Short: "Show inferred health of deployed servers",
	Long: `Infer server health from recent host log activity. With a name, shows
details for one server; without, sweeps every registered server.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	app, err := newApp(cliLogger())
	if err != nil {
		return err
	}
	defer app.Close()

	if len(args) == 1 {
		result, err := app.monitor.CheckHealth(args[0])
		if err != nil {
			return err
		}
		printHealthDetail(result)
		return nil
	}

	results := app.monitor.CheckAll()
	if len(results) == 0 {
		fmt.Println("No servers registered.")
		return nil
	}

	fmt.Printf("%-20s %-14s %-10s %-8s %s\n", "NAME", "STATUS", "ERRORS", "WARNINGS", "LAST SEEN")
	for _, result := range results {
		lastSeen := "-"
		if result.LastSeenInLogs != nil {
			lastSeen = result.LastSeenInLogs.Format(time.RFC3339)
		}
		fmt.Printf("%-20s %-14s %-10d %-8d %s\n",
			result.ServerName, result.Status, result.ErrorCount, result.WarningCount, lastSeen)
	}
	return nil
}

func printHealthDetail(result *health.Result) {
	fmt.Printf("%s: %s\n", result.ServerName, result.Status)
	fmt.Printf("  deployed:   %v\n", result.Deployed)
	fmt.Printf("  checked at: %s\n", result.CheckedAt.Format(time.RFC3339))
	if result.LastSeenInLogs != nil {
		fmt.Printf("  last seen:  %s\n", result.LastSeenInLogs.Format(time.RFC3339))
	}
	if result.ErrorCount > 0 {
		fmt.Printf("  errors (%d):\n", result.ErrorCount)
		for _, line := range result.RecentErrors {
			fmt.Printf("    %s\n", line)
		}
	}
	if result.WarningCount > 0 {
		fmt.Printf("  warnings (%d):\n", result.WarningCount)
		for _, line := range result.RecentWarnings {
			fmt.Printf("    %s\n", line)
		}
	}
}
