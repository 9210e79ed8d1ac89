package hub

import (
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

// Client 一条 WebSocket 连接及其 Redis 订阅
type Client struct {
	connID  string
	userID  uint64
	isStaff bool

	conn   *websocket.Conn
	send   chan []byte
	pubsub *redis.PubSub

	closeOnce sync.Once
	done      chan struct{}
}

// readPump 读取入站操作交给 hub 分发，连接断开时负责全部清理
func (c *Client) readPump(h *Hub) {
	defer h.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket 异常断开", "conn_id", c.connID, "user_id", c.userID, "err", err)
			}
			return
		}
		h.dispatch(c, raw)
	}
}

// writePump 唯一的连接写者：出站事件与心跳都走这里
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// subscriptionPump 把 Redis 订阅消息转发到连接写通道。
// 写通道满说明客户端消费不过来，丢弃该条避免拖垮整个转发。
func (c *Client) subscriptionPump() {
	ch := c.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case c.send <- []byte(msg.Payload):
			default:
				log.Warn("连接写缓冲已满，丢弃事件", "conn_id", c.connID, "user_id", c.userID)
			}
		case <-c.done:
			return
		}
	}
}

// enqueue 直接回给本连接（不经 Redis），用于只有调用方关心的响应
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	case <-c.done:
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.pubsub != nil {
			_ = c.pubsub.Close()
		}
		_ = c.conn.Close()
	})
}

func (c *Client) subscribe(ctx context.Context, channels ...string) error {
	return c.pubsub.Subscribe(ctx, channels...)
}

func (c *Client) unsubscribe(ctx context.Context, channels ...string) error {
	return c.pubsub.Unsubscribe(ctx, channels...)
}
