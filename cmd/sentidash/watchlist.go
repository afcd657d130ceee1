package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seenimoa/sentidash/internal/watchlist"
)

// --- Watchlist Command ---

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage a user's watchlist in the local database",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watchlist entries",
	Args:  cobra.NoArgs,
	RunE: withScoped(func(cmd *cobra.Command, sc *watchlist.Scoped, _ []string) error {
		entries, err := sc.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("watchlist is empty")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-10s %-30s %s\n", e.Symbol, e.Name, e.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	}),
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add [symbol]",
	Short: "Add a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: withScoped(func(cmd *cobra.Command, sc *watchlist.Scoped, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		e, created, err := sc.Ensure(cmd.Context(), args[0], name)
		if err != nil {
			return err
		}
		if !created {
			fmt.Printf("%s is already on the watchlist\n", e.Symbol)
			return nil
		}
		fmt.Printf("added %s\n", e.Symbol)
		return nil
	}),
}

var watchlistRemoveCmd = &cobra.Command{
	Use:   "remove [symbol]",
	Short: "Remove a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: withScoped(func(cmd *cobra.Command, sc *watchlist.Scoped, args []string) error {
		n, err := sc.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("removed %d row(s) for %s\n", n, args[0])
		return nil
	}),
}

func init() {
	watchlistCmd.PersistentFlags().String("user", "", "user ID whose watchlist to manage")
	_ = watchlistCmd.MarkPersistentFlagRequired("user")
	watchlistAddCmd.Flags().String("name", "", "display name")

	watchlistCmd.AddCommand(watchlistListCmd, watchlistAddCmd, watchlistRemoveCmd)
}

// withScoped opens the store and scopes it to --user around fn.
func withScoped(fn func(*cobra.Command, *watchlist.Scoped, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		store, err := watchlist.Open(cfg.Watchlist.DBPath)
		if err != nil {
			return fmt.Errorf("open watchlist: %w", err)
		}
		defer store.Close()

		sc, err := store.For(user)
		if err != nil {
			return err
		}
		return fn(cmd, sc, args)
	}
}
