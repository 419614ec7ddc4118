package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/witnz/catalogshadow/internal/alert"
	"github.com/witnz/catalogshadow/internal/catalog"
	"github.com/witnz/catalogshadow/internal/checkpoint"
	"github.com/witnz/catalogshadow/internal/config"
	"github.com/witnz/catalogshadow/internal/dictctx"
	"github.com/witnz/catalogshadow/internal/statestore"
	"github.com/witnz/catalogshadow/internal/writer"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "catalogshadow",
	Short: "Catalog shadow CDC engine",
	Long:  "A change-data-capture engine maintaining an in-memory catalog shadow and delivering ordered messages to external consumers.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "catalogshadow.yaml", "config file path")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(verifyCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("catalogshadow v0.1.0-alpha")
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the data directory and state store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := os.MkdirAll(cfg.Engine.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		dbPath := filepath.Join(cfg.Engine.DataDir, "catalogshadow.db")
		store, err := statestore.Open(dbPath)
		if err != nil {
			return fmt.Errorf("failed to initialize state store: %w", err)
		}
		defer store.Close()

		fmt.Printf("Initialized catalog shadow for database: %s\n", cfg.Engine.Database)
		fmt.Printf("Data directory: %s\n", cfg.Engine.DataDir)
		fmt.Printf("State store path: %s\n", dbPath)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the catalog shadow engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger := slog.Default()
		dictCtx := dictctx.New(logger)
		dictCtx.AdaptiveSchema = cfg.Materialize.AdaptiveSchema
		dictCtx.DisableChecks = cfg.Materialize.DisableChecks
		dictCtx.TraceMask = cfg.Engine.TraceMask

		dbPath := filepath.Join(cfg.Engine.DataDir, "catalogshadow.db")
		store, err := statestore.Open(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		defer store.Close()

		_ = catalog.New(dictCtx) // the catalog shadow; mutated by the redo applier, out of scope here

		meta := writer.NewMetadata(store, cfg.Engine.Database, 0, 0, cfg.Engine.CheckpointIntervalS)
		alerts := alert.NewManager(cfg.Alerts.Enabled, cfg.Alerts.SlackWebhook)

		cp := checkpoint.New(dictCtx, meta, nil, alerts)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errCh := make(chan error, 1)
		go func() { errCh <- cp.Run(ctx) }()

		fmt.Println("Catalog shadow engine running. Press Ctrl+C to stop.")
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
			dictCtx.RequestSoftShutdown()
			cp.WakeUp()
		case err := <-errCh:
			return err
		}

		return <-errCh
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate the materialize filters; the schema-equality check itself is the internal/verifier API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ownerRe, err := regexp.Compile(cfg.Materialize.OwnerRegex)
		if err != nil {
			return fmt.Errorf("invalid materialize.owner_regex: %w", err)
		}
		tableRe, err := regexp.Compile(cfg.Materialize.TableRegex)
		if err != nil {
			return fmt.Errorf("invalid materialize.table_regex: %w", err)
		}
		_, _ = ownerRe, tableRe

		fmt.Println("verify requires a live shadow to compare against a running engine instance; see internal/verifier for the programmatic API.")
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
