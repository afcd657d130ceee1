package watchlist

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/seenimoa/sentidash/internal/infra"
	"github.com/seenimoa/sentidash/pkg/models"
	"github.com/seenimoa/sentidash/pkg/utils"
)

// Mode selects how Add updates the local list.
type Mode string

const (
	// ModeOptimistic appends the inserted row locally.
	ModeOptimistic Mode = "optimistic"
	// ModeRefetch reloads the list from the store after inserting.
	ModeRefetch Mode = "refetch"
)

// EventKind names a watchlist state transition.
type EventKind string

const (
	EventSignedIn               EventKind = "signed-in"
	EventSignedOut              EventKind = "signed-out"
	EventAddedLocally           EventKind = "added-locally"
	EventConfirmedFromServer    EventKind = "confirmed-from-server"
	EventRemovedLocally         EventKind = "removed-locally"
	EventSyncedFromSubscription EventKind = "synced-from-subscription"
)

// Event is one input to Reduce.
type Event struct {
	Kind    EventKind
	UserID  string
	Entry   models.WatchlistEntry   // added-locally
	Symbol  string                  // removed-locally
	Entries []models.WatchlistEntry // signed-in, confirmed-from-server, synced-from-subscription
}

// State is the client-side watchlist.
type State struct {
	UserID  string                  `json:"user_id,omitempty"`
	Entries []models.WatchlistEntry `json:"entries"`
}

// Has reports whether symbol is in the list.
func (s State) Has(symbol string) bool {
	symbol = utils.NormalizeTicker(symbol)
	for _, e := range s.Entries {
		if e.Symbol == symbol {
			return true
		}
	}
	return false
}

// Reduce applies e to s and returns the new state. Events for a user
// other than the signed-in one are ignored. s is not modified.
func Reduce(s State, e Event) State {
	switch e.Kind {
	case EventSignedIn:
		return State{UserID: e.UserID, Entries: cloneEntries(e.Entries)}
	case EventSignedOut:
		return State{Entries: []models.WatchlistEntry{}}
	}
	if s.UserID == "" || e.UserID != s.UserID {
		return s
	}

	switch e.Kind {
	case EventAddedLocally:
		if s.Has(e.Entry.Symbol) {
			return s
		}
		next := cloneEntries(s.Entries)
		return State{UserID: s.UserID, Entries: append(next, e.Entry)}
	case EventRemovedLocally:
		sym := utils.NormalizeTicker(e.Symbol)
		next := make([]models.WatchlistEntry, 0, len(s.Entries))
		for _, en := range s.Entries {
			if en.Symbol != sym {
				next = append(next, en)
			}
		}
		return State{UserID: s.UserID, Entries: next}
	case EventConfirmedFromServer, EventSyncedFromSubscription:
		return State{UserID: s.UserID, Entries: cloneEntries(e.Entries)}
	}
	return s
}

func cloneEntries(in []models.WatchlistEntry) []models.WatchlistEntry {
	out := make([]models.WatchlistEntry, len(in))
	copy(out, in)
	return out
}

// Adapter keeps a user's watchlist in sync with the store. Authorization
// failures are logged and the operation does nothing.
type Adapter struct {
	store  *Store
	mode   Mode
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	unsubscribe func()
	listeners   map[int]chan State
	nextID      int
}

// NewAdapter creates a signed-out adapter.
func NewAdapter(store *Store, mode Mode, logger *slog.Logger) *Adapter {
	if mode != ModeRefetch {
		mode = ModeOptimistic
	}
	return &Adapter{
		store:     store,
		mode:      mode,
		logger:    infra.OrDefault(logger),
		state:     State{Entries: []models.WatchlistEntry{}},
		listeners: make(map[int]chan State),
	}
}

// State returns the current state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{UserID: a.state.UserID, Entries: cloneEntries(a.state.Entries)}
}

// Entries returns the current list.
func (a *Adapter) Entries() []models.WatchlistEntry { return a.State().Entries }

// Subscribe returns a channel receiving each new state. A slow reader only
// sees the latest one.
func (a *Adapter) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = ch
	a.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

// SignIn loads userID's list and subscribes to changes of their rows.
func (a *Adapter) SignIn(ctx context.Context, userID string) error {
	scoped, err := a.store.For(userID)
	if err != nil {
		return a.authFailure("sign in", err)
	}
	entries, err := scoped.List(ctx)
	if err != nil {
		return err
	}

	changes, unsubscribe := a.store.Subscribe(userID)
	a.mu.Lock()
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.unsubscribe = unsubscribe
	a.mu.Unlock()
	a.dispatch(Event{Kind: EventSignedIn, UserID: userID, Entries: entries})

	go a.follow(userID, changes)
	return nil
}

// SignOut clears the list and drops the subscription.
func (a *Adapter) SignOut() {
	a.mu.Lock()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	a.mu.Unlock()
	a.dispatch(Event{Kind: EventSignedOut})
}

// Close signs out.
func (a *Adapter) Close() { a.SignOut() }

// Add puts symbol on the list unless it is already there.
func (a *Adapter) Add(ctx context.Context, symbol, name string) error {
	st := a.State()
	if st.Has(symbol) {
		return nil
	}
	scoped, err := a.store.For(st.UserID)
	if err != nil {
		return a.authFailure("add", err)
	}
	entry, err := scoped.Insert(ctx, models.WatchlistEntry{Symbol: symbol, Name: name})
	if err != nil {
		return a.authFailure("add", err)
	}
	if a.mode == ModeRefetch {
		return a.refetch(ctx, st.UserID, EventConfirmedFromServer)
	}
	a.dispatch(Event{Kind: EventAddedLocally, UserID: st.UserID, Entry: entry})
	return nil
}

// Remove deletes symbol from the list.
func (a *Adapter) Remove(ctx context.Context, symbol string) error {
	st := a.State()
	scoped, err := a.store.For(st.UserID)
	if err != nil {
		return a.authFailure("remove", err)
	}
	if _, err := scoped.Delete(ctx, symbol); err != nil {
		return a.authFailure("remove", err)
	}
	a.dispatch(Event{Kind: EventRemovedLocally, UserID: st.UserID, Symbol: symbol})
	return nil
}

// Refresh reloads the list from the store.
func (a *Adapter) Refresh(ctx context.Context) error {
	st := a.State()
	if st.UserID == "" {
		return a.authFailure("refresh", ErrUnauthenticated)
	}
	return a.refetch(ctx, st.UserID, EventConfirmedFromServer)
}

// follow reloads the whole list on every change until the channel closes.
func (a *Adapter) follow(userID string, changes <-chan Change) {
	for c := range changes {
		a.logger.Debug("watchlist change", "user", userID, "op", c.Op, "symbol", c.Entry.Symbol)
		if err := a.refetch(context.Background(), userID, EventSyncedFromSubscription); err != nil {
			a.logger.Warn("watchlist resync failed", "user", userID, "error", err)
		}
	}
}

func (a *Adapter) refetch(ctx context.Context, userID string, kind EventKind) error {
	scoped, err := a.store.For(userID)
	if err != nil {
		return a.authFailure("refetch", err)
	}
	entries, err := scoped.List(ctx)
	if err != nil {
		return err
	}
	a.dispatch(Event{Kind: kind, UserID: userID, Entries: entries})
	return nil
}

func (a *Adapter) dispatch(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Reduce(a.state, e)
	st := State{UserID: a.state.UserID, Entries: cloneEntries(a.state.Entries)}
	for _, ch := range a.listeners {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

// authFailure swallows authorization errors after logging them and
// returns any other error unchanged.
func (a *Adapter) authFailure(op string, err error) error {
	if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrForbidden) {
		a.logger.Warn("watchlist operation not authorized", "op", op, "error", err)
		return nil
	}
	return err
}
