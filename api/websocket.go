package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seenimoa/sentidash/internal/dashboard"
	"github.com/seenimoa/sentidash/internal/watchlist"
	"github.com/seenimoa/sentidash/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS origins are enforced on the REST routes
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client message types.
const (
	msgSearch          = "search"
	msgSubscribe       = "subscribe_watchlist"
	msgUnsubscribe     = "unsubscribe_watchlist"
	msgWatchlistAdd    = "watchlist_add"
	msgWatchlistRemove = "watchlist_remove"
	msgPing            = "ping"
)

// Server message types.
const (
	msgState     = "state"
	msgWatchlist = "watchlist"
	msgPong      = "pong"
	msgError     = "error"
)

// wsRequest is an incoming frame. Data is decoded per message type.
type wsRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SearchPayload is the data of a "search" message.
type SearchPayload struct {
	Symbol string             `json:"symbol"`
	Range  string             `json:"range,omitempty"`
	Quote  *models.StockQuote `json:"quote,omitempty"`
}

// SubscribePayload is the data of a "subscribe_watchlist" message.
type SubscribePayload struct {
	Token string `json:"token"`
}

// WatchlistPayload is the data of "watchlist_add" and "watchlist_remove".
type WatchlistPayload struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
}

// handleWebSocket upgrades the connection and runs a dashboard session on
// it: one screen whose states stream to the client, plus an optional
// watchlist kept in sync for the signed-in user.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.wsHub)
	s.wsHub.Register(client)

	sess := s.newSession(client)
	go wsWritePump(conn, client, s)
	go wsReadPump(conn, client, sess)
}

// session is the per-connection state behind a WebSocket.
type session struct {
	srv    *Server
	client *WSClient
	screen *dashboard.Screen

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watch   *watchlist.Adapter
	unwatch func()
}

func (s *Server) newSession(client *WSClient) *session {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		srv:    s,
		client: client,
		screen: s.svc.NewScreen(),
		ctx:    ctx,
		cancel: cancel,
	}
	states, unsubscribe := sess.screen.Subscribe()
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case st := <-states:
				client.Push(WSMessage{Type: msgState, Data: st})
			}
		}
	}()
	return sess
}

func (sess *session) close() {
	sess.cancel()
	sess.mu.Lock()
	if sess.watch != nil {
		sess.unwatch()
		sess.watch.Close()
		sess.watch = nil
	}
	sess.mu.Unlock()
}

func (sess *session) fail(msg string) {
	sess.client.Push(WSMessage{Type: msgError, Data: map[string]string{"message": msg}})
}

// handle dispatches one client frame.
func (sess *session) handle(req wsRequest) {
	switch req.Type {
	case msgSearch:
		var p SearchPayload
		if err := json.Unmarshal(req.Data, &p); err != nil || p.Symbol == "" {
			sess.fail("search needs a symbol")
			return
		}
		// Searches run concurrently; the screen keeps only the newest.
		go sess.screen.Search(sess.ctx, dashboard.SearchRequest{
			Symbol:   p.Symbol,
			Range:    models.ParseTimeRange(p.Range),
			Snapshot: p.Quote,
		})

	case msgSubscribe:
		var p SubscribePayload
		_ = json.Unmarshal(req.Data, &p)
		sess.subscribe(p.Token)

	case msgUnsubscribe:
		sess.mu.Lock()
		if sess.watch != nil {
			sess.watch.SignOut()
		}
		sess.mu.Unlock()

	case msgWatchlistAdd, msgWatchlistRemove:
		var p WatchlistPayload
		if err := json.Unmarshal(req.Data, &p); err != nil || p.Symbol == "" {
			sess.fail(req.Type + " needs a symbol")
			return
		}
		sess.mu.Lock()
		a := sess.watch
		sess.mu.Unlock()
		if a == nil {
			sess.fail("subscribe_watchlist first")
			return
		}
		var err error
		if req.Type == msgWatchlistAdd {
			err = a.Add(sess.ctx, p.Symbol, p.Name)
		} else {
			err = a.Remove(sess.ctx, p.Symbol)
		}
		if err != nil {
			sess.fail(err.Error())
		}

	case msgPing:
		sess.client.Push(WSMessage{Type: msgPong})

	default:
		sess.fail("unknown message type " + req.Type)
	}
}

// subscribe signs the session's watchlist in as the token's user.
func (sess *session) subscribe(token string) {
	srv := sess.srv
	if srv.verifier == nil || srv.store == nil {
		sess.fail("watchlist is not configured")
		return
	}
	userID, err := srv.verifier.Verify(sess.ctx, token)
	if err != nil {
		sess.fail(err.Error())
		return
	}

	sess.mu.Lock()
	if sess.watch == nil {
		sess.watch = watchlist.NewAdapter(srv.store, watchlist.Mode(srv.cfg.Watchlist.Mode), srv.logger)
		states, unsubscribe := sess.watch.Subscribe()
		done := make(chan struct{})
		var once sync.Once
		sess.unwatch = func() {
			unsubscribe()
			once.Do(func() { close(done) })
		}
		go func() {
			for {
				select {
				case <-done:
					return
				case <-sess.ctx.Done():
					return
				case st := <-states:
					sess.client.Push(WSMessage{Type: msgWatchlist, Data: st})
				}
			}
		}()
	}
	a := sess.watch
	sess.mu.Unlock()

	if err := a.SignIn(sess.ctx, userID); err != nil {
		sess.fail(err.Error())
	}
}

// wsReadPump reads client frames until the connection drops.
func wsReadPump(conn *websocket.Conn, client *WSClient, sess *session) {
	defer func() {
		sess.close()
		client.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.srv.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			sess.fail("invalid message")
			continue
		}
		sess.handle(req)
	}
}

// wsWritePump writes queued messages and keepalive pings to the peer.
func wsWritePump(conn *websocket.Conn, client *WSClient, s *Server) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug("websocket write failed", "type", msg.Type, "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
