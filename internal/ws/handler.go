package ws

import (
	"errors"
	"net/http"

	"github.com/arwic/dominion/internal/protocol"
	"github.com/arwic/dominion/internal/transport"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Handler upgrades to a websocket and serves it as one more transport
// connection. Each binary message carries the same byte stream a TCP peer
// would send, so frames may span messages.
func Handler(srv *transport.Server, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Debug("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(int64(protocol.MaxPayload) + protocol.HeaderSize)

		nc := websocket.NetConn(r.Context(), conn, websocket.MessageBinary)
		if err := srv.ServeConn(r.Context(), nc, r.RemoteAddr); err != nil && !errors.Is(err, transport.ErrServerClosed) {
			log.Warn("websocket peer not served", zap.String("remote", r.RemoteAddr), zap.Error(err))
		}
	}
}
