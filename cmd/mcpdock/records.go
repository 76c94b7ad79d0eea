package main

import (
	"fmt"
	"strings"

	"mcpdock/internal/registry"

	"github.com/spf13/cobra"
)

var (
	addVersion string
	addEnv     []string
)

var addCmd = &cobra.Command{
	Use:   "add <name> <owner/repo>",
	Short: "Register a server record",
	Long: `Register a server so it can be deployed. The record only describes the
server; nothing is installed until 'mcpdock deploy'.`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered servers",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a server record",
	Long:  `Remove a server record. Installed servers must be undeployed first.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	addCmd.Flags().StringVar(&addVersion, "version", "latest", "Release tag to deploy, or 'latest'")
	addCmd.Flags().StringArrayVarP(&addEnv, "env", "e", nil, "Environment variable for the server (KEY=VALUE, repeatable)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	name, sourceRef := args[0], args[1]

	env, err := parseEnvFlags(addEnv)
	if err != nil {
		return err
	}

	app, err := newApp(cliLogger())
	if err != nil {
		return err
	}
	defer app.Close()

	record := &registry.Record{
		Name:        name,
		SourceRef:   sourceRef,
		VersionSpec: addVersion,
		Env:         env,
	}
	// Re-adding keeps the lifecycle state of the existing record
	if existing, ok := app.records.Get(name); ok {
		record.Status = existing.Status
		record.ResolvedCommit = existing.ResolvedCommit
		record.ResolvedVersion = existing.ResolvedVersion
		record.InstalledAt = existing.InstalledAt
		record.LastUpdated = existing.LastUpdated
	}

	if err := app.records.Upsert(cmd.Context(), record); err != nil {
		return err
	}

	fmt.Printf("Registered %s (%s@%s)\n", name, sourceRef, record.VersionSpec)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	app, err := newApp(cliLogger())
	if err != nil {
		return err
	}
	defer app.Close()

	records := app.records.All()
	if len(records) == 0 {
		fmt.Println("No servers registered.")
		return nil
	}

	fmt.Printf("%-20s %-30s %-12s %-14s %s\n", "NAME", "SOURCE", "VERSION", "STATUS", "RESOLVED")
	for _, rec := range records {
		resolved := rec.ResolvedVersion
		if resolved == "" {
			resolved = "-"
		}
		fmt.Printf("%-20s %-30s %-12s %-14s %s\n",
			rec.Name, rec.SourceRef, rec.VersionSpec, rec.Status, resolved)
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	app, err := newApp(cliLogger())
	if err != nil {
		return err
	}
	defer app.Close()

	rec, ok := app.records.Get(name)
	if !ok {
		return fmt.Errorf("unknown server %q", name)
	}
	if rec.Status == registry.StatusInstalled {
		return fmt.Errorf("server %q is installed; run 'mcpdock undeploy %s' first", name, name)
	}

	if _, err := app.records.Delete(cmd.Context(), name); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", name)
	return nil
}

func parseEnvFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --env %q, expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}
