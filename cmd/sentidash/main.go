// sentidash serves a stock-news sentiment dashboard: quotes, company news
// classified by an LLM, aggregate sentiment and per-user watchlists.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/seenimoa/sentidash/internal/config"
	"github.com/seenimoa/sentidash/internal/infra"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root command.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sentidash",
	Short: "sentidash: stock news sentiment dashboard",
	Long: `sentidash fetches quotes and company news through a market-data proxy,
classifies each article with an LLM and aggregates the results into a
sentiment dashboard, with per-user watchlists.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if l, _ := cmd.Flags().GetString("log-level"); l != "" {
			level = l
		}
		logger = infra.NewLogger(level, cfg.Logging.Format)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(watchlistCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sentidash %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  sentidash: System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Market Data:   %s\n", cfg.MarketData.BaseURL)
		analysis := cfg.Analysis.URL
		if analysis == "" {
			analysis = "in-process (" + cfg.LLM.Primary + ", model: " + cfg.LLM.Model + ")"
		}
		fmt.Printf("    Analysis:      %s\n", analysis)
		fmt.Printf("    News Source:   %s\n", cfg.News.Source)
		fmt.Printf("    Queue:         %d per %s, %d retries from %s\n",
			cfg.Queue.Limit, cfg.Queue.Window, cfg.Retry.Retries, cfg.Retry.Delay)
		cacheBackend := "memory"
		if cfg.Cache.RedisURL != "" {
			cacheBackend = "redis"
		}
		fmt.Printf("    Cache:         quote %s, news %s, lookup %s (%s)\n",
			cfg.Cache.QuoteTTL, cfg.Cache.NewsTTL, cfg.Cache.LookupTTL, cacheBackend)
		fmt.Printf("    Watchlist DB:  %s (%s)\n", cfg.Watchlist.DBPath, cfg.Watchlist.Mode)
		fmt.Printf("    API Server:    %s\n", cfg.API.Addr())
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
