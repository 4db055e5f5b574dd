package handler

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/Baaaki/storyline/internal/broker"
	"github.com/Baaaki/storyline/internal/metrics"
	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second // Time allowed to write a message to the peer
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // 54 seconds
	maxMessageSize = 512                 // the feed is one way; clients only send control frames
	replayCount    = 20
	sendBuffer     = 64
)

// FeedHandler streams story and flower events to browsers over WebSocket.
// One broker subscription per process feeds every connected client.
type FeedHandler struct {
	events         broker.EventBroker
	metrics        *metrics.Metrics
	allowedOrigins []string
	upgrader       websocket.Upgrader

	clients map[*feedClient]struct{}
	mu      sync.Mutex
}

type feedClient struct {
	conn        *websocket.Conn
	send        chan broker.Event
	connectedAt time.Time
}

func NewFeedHandler(events broker.EventBroker, m *metrics.Metrics, allowedOrigins []string) *FeedHandler {
	h := &FeedHandler{
		events:         events,
		metrics:        m,
		allowedOrigins: allowedOrigins,
		clients:        make(map[*feedClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// Run relays broker events to connected clients until ctx is done.
func (h *FeedHandler) Run(ctx context.Context) error {
	events, err := h.events.Subscribe(ctx)
	if err != nil {
		return err
	}
	logger.Log.Info("Live feed subscribed")

	for event := range events {
		h.broadcast(event)
	}

	h.closeAll()
	logger.Log.Info("Live feed stopped")
	return nil
}

// Serve upgrades the request, replays recent events, then streams new ones.
// GET /api/feed
func (h *FeedHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("Failed to upgrade feed connection", zap.String("ip", c.ClientIP()), zap.Error(err))
		return
	}

	client := &feedClient{
		conn:        conn,
		send:        make(chan broker.Event, sendBuffer),
		connectedAt: time.Now(),
	}
	h.add(client)

	recent, err := h.events.Recent(c.Request.Context(), replayCount)
	if err != nil {
		logger.Log.Warn("Failed to load recent feed events", zap.Error(err))
	}
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		for _, event := range recent {
			client.enqueue(event)
		}
	}
	h.mu.Unlock()

	go h.writePump(client)
	h.readPump(client)
}

// readPump only services control frames; it returns when the peer goes away
// or stops answering pings.
func (h *FeedHandler) readPump(client *feedClient) {
	defer h.remove(client)

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Debug("Feed connection error", zap.Error(err))
			}
			return
		}
	}
}

func (h *FeedHandler) writePump(client *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.conn.WriteJSON(event); err != nil {
				logger.Log.Debug("Failed to write feed event", zap.Error(err))
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *FeedHandler) broadcast(event broker.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.enqueue(event) {
			// Too slow to keep up; drop it rather than stall everyone else.
			h.dropLocked(client)
		}
	}
}

func (h *FeedHandler) add(client *feedClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.FeedClients.Inc()
	logger.Log.Debug("Feed client connected", zap.Int("total", total))
}

func (h *FeedHandler) remove(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client)
}

func (h *FeedHandler) dropLocked(client *feedClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.metrics.FeedClients.Dec()

	logger.Log.Debug("Feed client disconnected",
		zap.Duration("session_duration", time.Since(client.connectedAt).Round(time.Second)),
		zap.Int("remaining", len(h.clients)),
	)
}

func (h *FeedHandler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.dropLocked(client)
	}
}

// ClientCount reports how many browsers are connected to this process.
func (h *FeedHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *FeedHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	return slices.Contains(h.allowedOrigins, origin)
}

// enqueue hands the event to the write pump without blocking. Callers hold
// the handler lock, so send is never closed underneath it.
func (c *feedClient) enqueue(event broker.Event) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}
