package models

import "time"

// WatchlistEntry is one symbol on a user's watchlist.
type WatchlistEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
