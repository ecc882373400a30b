package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"integrity-go/internal/app"
	"integrity-go/internal/config"
	"integrity-go/internal/integrity"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// errPartial marks a scan that completed but could not examine every root.
var errPartial = errors.New("scan incomplete")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	switch {
	case errors.Is(err, errPartial):
		os.Exit(2)
	case err != nil:
		os.Exit(1)
	}
}

// readConfig loads the config file from its default location.
func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates an IntegrityApp. The caller must defer app.Close().
func newApp(ctx context.Context, opts app.Options) (*app.IntegrityApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewIntegrityApp(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Detect silent corruption and disappearance of files",
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

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])
		cfg.Roots, _ = cmd.Flags().GetStringSlice("root")

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		if len(cfg.Roots) == 0 {
			fmt.Println("No roots yet: add directories to 'roots' before scanning.")
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Host ID:    %s\n", cfg.HostID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Store:      %s %s\n", cfg.Store.Type, cfg.Store.Path)
		fmt.Printf("Workers:    %d\n", cfg.Scan.Workers)
		for _, r := range cfg.Roots {
			fmt.Printf("Root:       %s\n", r)
		}
		for _, a := range cfg.Alerts {
			fmt.Printf("Alert:      %s %s\n", a.Type, a.MinSeverity)
		}
		if cfg.Vault.Type != "" {
			fmt.Printf("Vault:      %s (%s)\n", cfg.Vault.Name, cfg.Vault.Type)
		}
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the snapshot encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		passphrase, err := promptNewPassphrase()
		if err != nil {
			return err
		}
		if err := app.InitKeys(cfg, passphrase); err != nil {
			return err
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:          "scan",
	Short:        "Reconcile every root against the record store",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

		progress := newDotProgress(os.Stderr)
		a, err := newApp(cmd.Context(), app.Options{Progress: progress, Verbose: verbose})
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Scan(cmd.Context())
		progress.Done()
		if report != nil {
			fmt.Print(renderReport(report))
		}
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if !report.Success() {
			return errPartial
		}
		return nil
	},
}

// records command
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List stored file records",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		prefix, _ := cmd.Flags().GetString("prefix")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := integrity.RecordFilter{Status: integrity.RecordStatus(status), PathPrefix: prefix, Limit: limit}
		switch filter.Status {
		case integrity.StatusAll, integrity.StatusActive, integrity.StatusCorrupted, integrity.StatusRemoved:
		default:
			return fmt.Errorf("unknown status %q: want all, active, corrupted or removed", status)
		}

		a, err := newApp(cmd.Context(), app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.ListRecords(cmd.Context(), filter)
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No records.")
			return nil
		}

		for _, r := range recs {
			fmt.Printf("%-9s  %s  %s  %s\n",
				recordState(r),
				r.FileHash[:12],
				r.LastModify.Local().Format("2006-01-02 15:04:05"),
				r.FullPath(),
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View scan history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No scans recorded.")
			return nil
		}

		for _, run := range runs {
			duration := ""
			if run.FinishedAt != nil {
				duration = run.FinishedAt.Sub(run.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %s  %-8s  seen:%d added:%d corrupted:%d missing:%d skipped:%d  %s\n",
				run.ID,
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				run.Status,
				run.FilesSeen, run.Added, run.Corrupted, run.Missing, run.Skipped,
				duration,
			)
		}
		return nil
	},
}

// accept command
var acceptCmd = &cobra.Command{
	Use:   "accept PATH",
	Short: "Acknowledge the current content of a file flagged corrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Accept(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Accepted %s (%s)\n", rec.FullPath(), rec.FileHash[:12])
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Work with record store snapshots in the vault",
}

var snapshotFetchCmd = &cobra.Command{
	Use:   "fetch DEST",
	Short: "Download and decrypt the latest record store snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		var passphrase string
		if cfg.Encryption.Type == "age" {
			passphrase, err = promptPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		version, err := app.FetchSnapshot(cmd.Context(), cfg, args[0], passphrase)
		if err != nil {
			return err
		}

		fmt.Printf("Snapshot version %d written to %s\n", version, args[0])
		fmt.Printf("Replace %s with it to resume scanning.\n", cfg.Store.Path)
		return nil
	},
}

func recordState(r *integrity.Record) string {
	switch {
	case r.Corrupted:
		return "corrupted"
	case r.Removed:
		return "removed"
	default:
		return "active"
	}
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().StringSlice("root", nil, "Directory to scan (repeatable)")

	keysCmd.AddCommand(keysInitCmd)
	snapshotCmd.AddCommand(snapshotFetchCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolP("verbose", "v", false, "Log debug detail")
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.Flags().String("status", string(integrity.StatusAll), "Filter by state: all, active, corrupted or removed")
	recordsCmd.Flags().String("prefix", "", "Only records under this directory")
	recordsCmd.Flags().IntP("limit", "n", 0, "Maximum number of records to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of scans to show")
	rootCmd.AddCommand(acceptCmd)
	rootCmd.AddCommand(snapshotCmd)
}
