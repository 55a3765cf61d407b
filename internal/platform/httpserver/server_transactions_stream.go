package httpserver

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"txengine/contexts/finance-core/transaction-service/adapters/broadcast"
	transactionhttp "txengine/contexts/finance-core/transaction-service/transport/http"

	"github.com/gorilla/websocket"
)

const streamReadLimit = 4096

// handleTransactionStream streams terminal status events to one observer
// until either side closes or the observer is evicted for falling behind.
func (s *Server) handleTransactionStream(w http.ResponseWriter, r *http.Request) {
	if s.transactions.Registry == nil {
		writeTransactionError(w, http.StatusServiceUnavailable, "stream_unavailable", "transaction stream is not configured")
		return
	}

	// Registered before the handshake completes so a client never misses an
	// event published right after its dial returns.
	sub := s.transactions.Registry.Subscribe()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.transactions.Registry.Unsubscribe(sub)
		s.logger.Warn("stream upgrade failed",
			"event", "transaction_stream_upgrade_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		return
	}
	s.logger.Info("stream connected",
		"event", "transaction_stream_connected",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"subscriber_id", sub.ID(),
	)

	closed := make(chan struct{})
	go s.readStream(conn, closed)
	s.writeStream(conn, sub, closed)

	s.transactions.Registry.Unsubscribe(sub)
	_ = conn.Close()
	s.logger.Info("stream disconnected",
		"event", "transaction_stream_disconnected",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"subscriber_id", sub.ID(),
		"evicted", sub.Evicted(),
	)
}

// readStream discards client frames; it only exists to notice the peer
// going away and to process pong frames.
func (s *Server) readStream(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	pongWait := 2 * s.options.StreamPingInterval
	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (s *Server) writeStream(conn *websocket.Conn, sub *broadcast.Subscription, closed <-chan struct{}) {
	ticker := time.NewTicker(s.options.StreamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"),
					time.Now().Add(s.options.StreamWriteTimeout),
				)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.options.StreamWriteTimeout))
			if err := conn.WriteJSON(transactionhttp.StatusEventDTO{
				TransactionID: event.TransactionID,
				Status:        string(event.Status),
			}); err != nil {
				s.logger.Warn("stream write failed",
					"event", "transaction_stream_write_failed",
					"module", "internal/platform/httpserver",
					"layer", "platform",
					"subscriber_id", sub.ID(),
					"error", err.Error(),
				)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.options.StreamWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// checkOrigin accepts same-host requests, clients that send no Origin and
// the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err == nil && strings.EqualFold(parsed.Host, r.Host) {
		return true
	}
	for _, allowed := range s.options.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
