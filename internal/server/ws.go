package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/umarz317/uniswap-v2-dapp/internal/quote"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The UI is served from a different origin during development.
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsRequest struct {
	Amount     string `json:"amount"`
	FromNative bool   `json:"from_native"`
}

type wsQuote struct {
	Seq uint64 `json:"seq"`
	quoteJSON
}

// handleQuoteStream re-quotes on every inbound message. While a reserve
// read is in flight the user may type again, so each request takes a
// generation number and only the newest one may write to the stream.
// Stale responses are discarded.
func (s *Server) handleQuoteStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		latest  quote.Latest
		writeMu sync.Mutex
	)

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("ws read", zap.Error(err))
			}
			return
		}

		seq := latest.Begin()
		go func(seq uint64, req wsRequest) {
			q := s.eng.Quote(ctx, req.Amount, req.FromNative)
			// The commit check must happen under the write lock: a stale
			// result that passed the check outside it could still reach
			// the socket after a fresher writer released the lock.
			writeMu.Lock()
			defer writeMu.Unlock()
			if !latest.Commit(seq) {
				return
			}
			if err := conn.WriteJSON(wsQuote{Seq: seq, quoteJSON: toQuoteJSON(q)}); err != nil {
				cancel()
			}
		}(seq, req)
	}
}
