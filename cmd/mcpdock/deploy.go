package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <name>",
	Short: "Deploy a registered server into the host configuration",
	Long: `Resolve the server's source, derive its launch command, and write it into
Claude Desktop's configuration file. The previous configuration is backed
up and restored on failure.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeploy,
}

var undeployCmd = &cobra.Command{
	Use:   "undeploy <name>",
	Short: "Remove a server from the host configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runUndeploy,
}

func runDeploy(cmd *cobra.Command, args []string) error {
	name := args[0]

	app, err := newApp(cliLogger())
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.manager.Deploy(cmd.Context(), name)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("deploy failed: %s", result.ErrorMessage)
	}

	rec, _ := app.records.Get(name)
	fmt.Printf("Deployed %s", name)
	if rec != nil && rec.ResolvedVersion != "" {
		fmt.Printf(" at %s (%s)", rec.ResolvedVersion, shortCommit(rec.ResolvedCommit))
	}
	fmt.Printf("\n  config: %s\n", result.ConfigPath)
	if result.BackupPath != "" {
		fmt.Printf("  backup: %s\n", result.BackupPath)
	}
	fmt.Println("Restart Claude Desktop to pick up the change.")
	return nil
}

func runUndeploy(cmd *cobra.Command, args []string) error {
	name := args[0]

	app, err := newApp(cliLogger())
	if err != nil {
		return err
	}
	defer app.Close()

	removed, err := app.manager.Undeploy(cmd.Context(), name)
	if err != nil {
		return err
	}
	if removed {
		fmt.Printf("Removed %s from the host configuration.\n", name)
		fmt.Println("Restart Claude Desktop to pick up the change.")
	} else {
		fmt.Printf("%s was not present in the host configuration.\n", name)
	}
	return nil
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	if commit == "" {
		return "unknown"
	}
	return commit
}
