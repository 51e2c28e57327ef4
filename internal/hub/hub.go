package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stock-tracker-go/infrastructure/logger"
	"stock-tracker-go/market"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// Metrics 是 hub 上报的指标（可选）。
type Metrics interface {
	RecordBroadcast(updateType string)
	SetWSClients(n int)
	RecordWSDisconnect()
}

type Config struct {
	ReadLimitBytes int64
	// CheckOrigin 为空时允许所有来源（开发环境）。
	CheckOrigin func(r *http.Request) bool
}

// Hub 管理 WebSocket 客户端，并把 K 线更新推送给订阅了该 symbol 的客户端。
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	log      *logger.Logger
	metrics  Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	symbols map[string]struct{}

	closeOnce sync.Once
}

func New(cfg Config, log *logger.Logger, metrics Metrics) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log:     log,
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP 升级连接并注册客户端。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.LogError(err, map[string]interface{}{"action": "upgrade"})
		return
	}
	c := &client{
		id:      uuid.New().String(),
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		symbols: make(map[string]struct{}),
	}
	h.register(c)
	go c.writePump()
	go c.readPump()
}

// Broadcast 发送给所有订阅了该 symbol 的客户端；发送队列已满的客户端会被断开。
func (h *Hub) Broadcast(u market.Update) {
	payload, err := json.Marshal(u)
	if err != nil {
		h.log.LogError(err, map[string]interface{}{"action": "marshal_update"})
		return
	}
	if h.metrics != nil {
		h.metrics.RecordBroadcast(string(u.UpdateType))
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.subscribed(u.Candle.Symbol) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.LogClient("dropped_slow", c.id, nil)
		c.close()
	}
}

// Run 把 updates 推送给客户端直到 ctx 结束或通道关闭。
func (h *Hub) Run(ctx context.Context, updates <-chan market.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			h.Broadcast(u)
		}
	}
}

// ClientCount 返回当前连接数。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown 断开所有客户端。
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		c.close()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.SetWSClients(n)
	}
	h.log.LogClient("connected", c.id, map[string]interface{}{"remote": c.conn.RemoteAddr().String()})
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	if h.metrics != nil {
		h.metrics.SetWSClients(n)
		h.metrics.RecordWSDisconnect()
	}
	h.log.LogClient("disconnected", c.id, nil)
}

// ParseSymbols 解析订阅消息：逗号或空白分隔，转大写并去重。
func ParseSymbols(msg string) []string {
	fields := strings.FieldsFunc(msg, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		s := strings.ToUpper(f)
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (c *client) subscribed(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.symbols[symbol]
	return ok
}

// setSymbols 每条消息替换整个订阅集合。
func (c *client) setSymbols(symbols []string) {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	c.mu.Lock()
	c.symbols = set
	c.mu.Unlock()
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		_ = c.conn.Close()
	})
}

func (c *client) readPump() {
	defer c.close()
	if c.hub.cfg.ReadLimitBytes > 0 {
		c.conn.SetReadLimit(c.hub.cfg.ReadLimitBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.LogError(err, map[string]interface{}{"action": "read", "client_id": c.id})
			}
			return
		}
		symbols := ParseSymbols(string(msg))
		c.setSymbols(symbols)
		c.hub.log.LogClient("subscribed", c.id, map[string]interface{}{"symbols": symbols})
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.log.LogError(err, map[string]interface{}{"action": "write", "client_id": c.id})
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
