// Package main implements the thinkctl CLI for inspecting stored
// thinking sessions: list, show, export, delete, and technique stats.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/export"
	"github.com/fyrsmithlabs/thinkd/internal/session"
	"github.com/fyrsmithlabs/thinkd/internal/stats"
)

var (
	// storeDir is the session directory thinkctl operates on.
	storeDir string
	// exportFormat selects the export rendering.
	exportFormat string
	// withTimestamp stamps exports with the current time.
	withTimestamp bool
	// statsJSON emits the stats report as JSON instead of a table.
	statsJSON bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "thinkctl",
	Short: "CLI for inspecting thinkd sessions",
	Long: `thinkctl inspects the sessions a thinkd daemon has stored on disk.
It lists sessions, shows their state, exports full histories, and
aggregates per-technique effectiveness.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDir, "store-dir", defaultStoreDir(), "session store directory")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "export format: json, csv, or markdown")
	exportCmd.Flags().BoolVar(&withTimestamp, "timestamp", false, "stamp the export with the current time")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "emit the report as JSON")
	rootCmd.AddCommand(listCmd, showCmd, exportCmd, deleteCmd, statsCmd)
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sessions"
	}
	return filepath.Join(home, ".config", "thinkd", "sessions")
}

func openStore() (session.Store, error) {
	return session.NewFileStore(storeDir, zap.NewNop())
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		ids, err := store.List(context.Background())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, "no sessions stored")
			return nil
		}
		for _, id := range ids {
			s, err := store.Load(context.Background(), id)
			if err != nil {
				fmt.Printf("%s  (unreadable: %v)\n", id, err)
				continue
			}
			fmt.Printf("%s  %-12s  %d/%d steps  flexibility %.2f  %s\n",
				s.ID, s.State(), len(s.Records), s.TotalSteps(), s.Flexibility,
				s.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session as a markdown narrative",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		s, err := store.Load(context.Background(), args[0])
		if err != nil {
			return err
		}
		data, err := export.Render(export.Summarize(s), export.FormatMarkdown, export.Options{})
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session's full history",
	Long: `Export a session's full history to stdout.

Examples:
  # JSON (default, re-importable)
  thinkctl export 2f1c... > session.json

  # CSV, one row per step record
  thinkctl export --format csv 2f1c... > session.csv

  # Markdown narrative with an export timestamp
  thinkctl export --format markdown --timestamp 2f1c...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		s, err := store.Load(context.Background(), args[0])
		if err != nil {
			return err
		}

		opts := export.Options{}
		if withTimestamp {
			now := time.Now().UTC()
			opts.Timestamp = &now
		}
		data, err := export.Render(export.Summarize(s), export.Format(exportFormat), opts)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Delete(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "deleted %s\n", args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate per-technique effectiveness across sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		report, err := stats.Aggregate(context.Background(), store, zap.NewNop())
		if err != nil {
			return err
		}
		if statsJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		if len(report.Techniques) == 0 {
			fmt.Fprintln(os.Stderr, "no sessions stored")
			return nil
		}

		fmt.Printf("%-24s %6s %12s %14s %10s %8s\n",
			"TECHNIQUE", "USES", "COMPLETION", "EFFECTIVENESS", "INSIGHTS", "RISKS")
		for _, ts := range report.Techniques {
			fmt.Printf("%-24s %6d %11.0f%% %14.2f %10.2f %8.2f\n",
				ts.Technique, ts.UsageCount, ts.CompletionRate*100,
				ts.AverageEffectiveness, ts.AverageInsights, ts.AverageRisks)
		}
		fmt.Printf("\n%d sessions aggregated\n", report.SessionsTotal)
		return nil
	},
}
