package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"pgbak/internal/app"
	"pgbak/internal/config"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Backup", "History").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "pgbak",
	Short: "Streaming PostgreSQL base backup capture",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Generate a new host ID
		hostID := uuid.New().String()

		cfg := config.NewConfig(hostID, defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:       %s\n", cfg.HostID)
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Postgres User: %s\n", cfg.Postgres.User)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Capture a base backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")

		a, err := newApp("Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Backup(label)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Backup complete: %s\n", res.ArtifactPath)
		fmt.Printf("WAL start: %s\n", res.WALStart)
		fmt.Printf("Captured %s (%s compressed)\n",
			humanize.IBytes(uint64(res.RawBytes)),
			humanize.IBytes(uint64(res.CompressedBytes)),
		)
		fmt.Printf("Manifest: %s\n", res.Manifest.ID)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View capture history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No captures recorded.")
			return nil
		}

		for _, rec := range records {
			duration := rec.FinishedAt.Sub(rec.StartedAt).Truncate(time.Millisecond)
			fmt.Printf("#%d  %-20s  %s  %-7s  %s -> %s  %s\n",
				rec.ID,
				rec.Label,
				rec.StartedAt.Format("2006-01-02 15:04:05"),
				rec.Status,
				humanize.IBytes(uint64(rec.RawBytes)),
				humanize.IBytes(uint64(rec.CompressedBytes)),
				duration,
			)
		}
		return nil
	},
}

// manifest command
var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect backup manifests",
}

var manifestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored manifests",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Manifests")
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.Manifests()
		if err != nil {
			return err
		}

		if len(ids) == 0 {
			fmt.Println("No manifests stored.")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var manifestShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Manifest")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.Manifest(args[0])
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding manifest: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// manifest subcommands
	manifestCmd.AddCommand(manifestListCmd)
	manifestCmd.AddCommand(manifestShowCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().String("label", "", "Backup label (names the artifact)")
	backupCmd.MarkFlagRequired("label")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of captures to show")
	rootCmd.AddCommand(manifestCmd)
}
