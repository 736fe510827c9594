package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"foialens/internal/analyze"
	"foialens/internal/config"
	"foialens/internal/database"
	"foialens/internal/export"
	"foialens/internal/pipeline"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "foialens",
	Short:   "Partisan-content labeling for government disclosure documents",
	Long:    "foialens ingests FOIA releases from public sources, deduplicates and filters them, and labels partisan content via an LLM judgment service.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(analyzeCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("foialens", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/foialens/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, API tokens, and the judgment provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and corpus status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Documents:")
		fmt.Printf("  Total ingested: %d\n", stats.TotalDocuments)
		fmt.Printf("  Pending: %d\n", stats.Pending)
		fmt.Printf("  Classified: %d\n", stats.Classified)
		fmt.Printf("  Filtered: %d\n", stats.Filtered)
		fmt.Printf("  Duplicates: %d\n", stats.Duplicates)
		fmt.Printf("  Unextractable: %d\n", stats.ExtractFailed)
		fmt.Printf("  Dedupe clusters: %d\n", stats.Clusters)
		fmt.Println("\nVerdicts:")
		fmt.Printf("  Succeeded: %d\n", stats.ClassifiedOK)
		fmt.Printf("  Failed: %d\n", stats.ClassifiedFailed)
		fmt.Printf("\nRuns: %d\n", stats.Runs)
		return nil
	},
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest and label every enabled source: list -> fetch -> extract -> tag -> dedupe -> filter -> classify",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}

		result := pipe.Run(signalContext())
		failed := false
		for _, step := range result.Steps {
			fmt.Printf("\nSource: %s\n", step.Name)
			if step.Summary != "" {
				fmt.Printf("  %s\n", step.Summary)
			}
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
				failed = true
			}
		}

		if failed {
			return fmt.Errorf("run %s finished with errors", result.RunID)
		}
		fmt.Printf("\nRun %s complete. Use 'foialens export' to write labeled CSVs.\n", result.RunID)
		return nil
	},
}

// --- ingest command ---

var ingestCmd = &cobra.Command{
	Use:   "ingest [source]",
	Short: "Ingest a single source (muckrock, agency_logs, reading_rooms, foia_gov_annual)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}

		stats, err := pipe.IngestSource(signalContext(), args[0])
		if stats != nil {
			fmt.Printf("Listed %d items: %d ingested, %d classified, %d neutral, %d duplicates, %d filtered, %d unextractable, %d seen, %d failed\n",
				stats.Listed, stats.Ingested, stats.Classified, stats.Neutral,
				stats.Duplicates, stats.Filtered, stats.ExtractFailed, stats.AlreadySeen, stats.Failed)
		}
		return err
	},
}

// --- export command ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write labeled_<source>.csv files for all configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		outDir := filepath.Join(cfg.GetDataDir(), "labeled")
		for _, source := range cfg.Sources.ProcessingPriority {
			path, n, err := export.WriteSource(db, source, outDir)
			if err != nil {
				return fmt.Errorf("exporting %s: %w", source, err)
			}
			fmt.Printf("%s: %d rows\n", path, n)
		}
		return nil
	},
}

// --- analyze command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [hypothesis]",
	Short: "Summarize labeled scores by administration party (wrongdoing or favorability)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var summary *analyze.Summary
		switch args[0] {
		case "wrongdoing":
			summary, err = analyze.Wrongdoing(db, cfg.Sources.ProcessingPriority)
		case "favorability":
			summary, err = analyze.Favorability(db, cfg.Sources.ProcessingPriority)
		default:
			return fmt.Errorf("unknown hypothesis %q (want wrongdoing or favorability)", args[0])
		}
		if err != nil {
			return err
		}

		fmt.Print(summary.String())
		return nil
	},
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so in-flight
// work can finish and checkpoints stay consistent.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		log.Println("interrupt received, stopping after in-flight work...")
		cancel()
	}()
	return ctx
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "foialens.db")
	return database.Open(dbPath)
}
