package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/pkg/errorhandler"
	"github.com/coursehub/coursehub-api/internal/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// StatusEvent is pushed to subscribers whenever a transaction changes status
type StatusEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Code          string    `json:"code"`
	Status        Status    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StatusChannel is the Redis pub/sub channel of one transaction
func StatusChannel(id uuid.UUID) string {
	return "transactions:status:" + id.String()
}

// RedisPublisher publishes status events over Redis pub/sub so every API
// instance can serve the feed.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, StatusChannel(ev.TransactionID), payload).Err()
}

// Feed streams status changes of a transaction over WebSocket
type Feed struct {
	service  *Service
	rdb      *redis.Client
	upgrader websocket.Upgrader
}

// NewFeed creates the status feed. An empty allowedOrigins accepts any origin.
func NewFeed(service *Service, rdb *redis.Client, allowedOrigins []string) *Feed {
	return &Feed{
		service: service,
		rdb:     rdb,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(allowedOrigins) == 0 || origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				log.Warn().Str("origin", origin).Msg("WebSocket origin rejected")
				return false
			},
		},
	}
}

// Stream handles WS /ws/transactions/{id}
// The first message is the current status; the socket is closed after a terminal status.
func (f *Feed) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == uuid.Nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	viewer := Viewer{UserID: userID, IsAdmin: middleware.IsAdmin(ctx)}
	if _, err := f.service.Lookup(ctx, id, viewer); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "transaction not found")
			return
		}
		errorhandler.Internal(ctx, w, err)
		return
	}

	if f.rdb == nil {
		response.ServiceUnavailable(w, "realtime updates are disabled")
		return
	}

	// Subscribe before reading the current status so no change is lost in between.
	sub := f.rdb.Subscribe(context.Background(), StatusChannel(id))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		errorhandler.Internal(ctx, w, err)
		return
	}

	current, err := f.service.Lookup(ctx, id, viewer)
	if err != nil {
		sub.Close()
		errorhandler.Internal(ctx, w, err)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	first := StatusEvent{
		TransactionID: current.ID,
		Code:          current.Code,
		Status:        current.Status,
		UpdatedAt:     current.UpdatedAt,
	}

	done := make(chan struct{})
	go f.reader(conn, done)
	go f.writer(conn, sub, first, done)
}

// reader drains control frames and reports when the client goes away
func (f *Feed) reader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}
	}
}

func (f *Feed) writer(conn *websocket.Conn, sub *redis.PubSub, first StatusEvent, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
	}()

	send := func(ev StatusEvent) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			return false
		}
		if ev.Status.Terminal() {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(ev.Status)))
			return false
		}
		return true
	}

	if !send(first) {
		return
	}

	messages := sub.Channel()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var ev StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			if !send(ev) {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
