package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seenimoa/sentidash/internal/dashboard"
	"github.com/seenimoa/sentidash/pkg/models"
)

// --- Search Command ---

var searchCmd = &cobra.Command{
	Use:   "search [symbol]",
	Short: "Load the dashboard for a symbol and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, _ := cmd.Flags().GetString("range")
		a := newApp(cmd.Context())
		defer a.Close()

		st := a.svc.NewScreen().Search(cmd.Context(), dashboard.SearchRequest{
			Symbol: args[0],
			Range:  models.ParseTimeRange(rng),
		})
		if err := printJSON(st); err != nil {
			return err
		}
		if st.Status != dashboard.StatusSuccess {
			return fmt.Errorf("search for %s failed", st.Symbol)
		}
		return nil
	},
}

// --- Lookup Command ---

var lookupCmd = &cobra.Command{
	Use:   "lookup [query]",
	Short: "Search symbols matching a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cmd.Context())
		defer a.Close()

		matches, err := a.svc.Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Printf("%-12s %s\n", m.DisplaySymbol, m.Description)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("range", string(models.DefaultRange), "time range: 24h, 7d or 30d")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
