package main

import (
	"fmt"
	"os"

	"mcpdock/internal/deploy"
	"mcpdock/internal/security"
	"mcpdock/pkg/fileutil"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local setup",
	Long: `Print the resolved platform paths and verify that the host configuration
file parses. Useful before the first deploy and when Claude Desktop
stops picking up servers.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	plat, err := hostPlatform(cfg)
	if err != nil {
		return err
	}

	configPath, err := plat.ConfigPath()
	if err != nil {
		return err
	}
	logDir, err := plat.LogDir()
	if err != nil {
		return err
	}

	fmt.Printf("host config:  %s\n", configPath)
	if !fileutil.FileExists(configPath) {
		fmt.Println("              not present yet (created on first deploy)")
	} else if doc, err := deploy.LoadDocument(configPath); err != nil {
		fmt.Printf("              PARSE ERROR: %v\n", err)
	} else {
		fmt.Printf("              parses OK, %d server(s) configured\n", len(doc))
	}

	fmt.Printf("host logs:    %s\n", logDir)
	if !fileutil.DirExists(logDir) {
		fmt.Println("              directory not found; health checks will report unknown")
	}

	fmt.Printf("database:     %s\n", cfg.DBPath)
	fmt.Printf("cache dir:    %s\n", cfg.CacheDir)
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		fmt.Printf("              NOT WRITABLE: %v\n", err)
	}

	if cfg.WebhookSecret == "" {
		fmt.Println("webhooks:     disabled (no webhook_secret)")
		if secret, err := security.GenerateSecret(); err == nil {
			fmt.Printf("              to enable, set webhook_secret, e.g.: %s\n", secret)
		}
	} else {
		fmt.Println("webhooks:     enabled")
	}
	return nil
}
