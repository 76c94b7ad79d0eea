package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show recent deploy and undeploy events for a server",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of events to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	name := args[0]

	app, err := newApp(cliLogger())
	if err != nil {
		return err
	}
	defer app.Close()

	if _, ok := app.records.Get(name); !ok {
		return fmt.Errorf("unknown server %q", name)
	}

	events, err := app.db.ListEvents(cmd.Context(), name, historyLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Printf("No events recorded for %s.\n", name)
		return nil
	}

	fmt.Printf("%-22s %-10s %-9s %-12s %s\n", "WHEN", "ACTION", "STATUS", "VERSION", "DETAIL")
	for _, event := range events {
		version := "-"
		if event.ResolvedVersion != nil {
			version = *event.ResolvedVersion
		}
		detail := ""
		if event.ErrorMessage != nil {
			detail = *event.ErrorMessage
		} else if event.DurationSeconds != nil {
			detail = fmt.Sprintf("%.2fs", *event.DurationSeconds)
		}
		fmt.Printf("%-22s %-10s %-9s %-12s %s\n",
			event.CreatedAt.Format(time.RFC3339), event.Action, event.Status, version, detail)
	}
	return nil
}
