package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tempbox/backend/internal/domain"
)

// MailboxResolver 按地址解析有效邮箱，用于建立连接时校验订阅目标。
type MailboxResolver interface {
	Resolve(address string) (*domain.Mailbox, error)
}

// upgraderFactory 创建带 Origin 校验的 upgrader
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	allowAll := false
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		originSet[strings.ToLower(origin)] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// 非浏览器客户端
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			_, ok := originSet[strings.ToLower(u.Scheme+"://"+u.Host)]
			return ok
		},
	}
}

// MessageType WebSocket 消息类型
type MessageType string

const (
	MessageTypeNewMail MessageType = "new_mail"
	MessageTypeExpired MessageType = "mailbox_expired"
	MessageTypePing    MessageType = "ping"
	MessageTypePong    MessageType = "pong"
)

// Message WebSocket 消息
type Message struct {
	Type      MessageType `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client 一条已建立的连接，订阅固定在连接时解析出的邮箱上。
type Client struct {
	ID        string
	MailboxID string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	log       *zap.Logger
}

// Hub 管理所有 WebSocket 连接
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	mailboxes      map[string]map[string]*Client // mailboxID -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *BroadcastMessage
	done           chan struct{}
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	resolver       MailboxResolver
}

// BroadcastMessage 广播消息
type BroadcastMessage struct {
	MailboxID string
	Message   *Message
}

// NewHub 创建 WebSocket Hub
func NewHub(allowedOrigins []string, resolver MailboxResolver, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Hub{
		clients:        make(map[string]*Client),
		mailboxes:      make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, 256),
		done:           make(chan struct{}),
		log:            log,
		allowedOrigins: allowedOrigins,
		resolver:       resolver,
	}
}

// Run 启动 Hub
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			// 停止后 pump 协程改走 done 分支退出，不再阻塞在注册通道上
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.mailboxes[client.MailboxID] == nil {
				h.mailboxes[client.MailboxID] = make(map[string]*Client)
			}
			h.mailboxes[client.MailboxID][client.ID] = client
			h.mu.Unlock()
			h.log.Debug("client registered",
				zap.String("id", client.ID),
				zap.String("mailboxID", client.MailboxID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				if clients, exists := h.mailboxes[client.MailboxID]; exists {
					delete(clients, client.ID)
					if len(clients) == 0 {
						delete(h.mailboxes, client.MailboxID)
					}
				}
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToMailbox(msg.MailboxID, msg.Message)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// NewMailData 新邮件通知数据
type NewMailData struct {
	EmailID        string `json:"emailId"`
	MailboxID      string `json:"mailboxId"`
	From           string `json:"from"`
	Subject        string `json:"subject"`
	HasAttachments bool   `json:"hasAttachments"`
	ReceivedAt     string `json:"receivedAt"`
}

// NotifyNewMail 向订阅者推送新邮件通知
func (h *Hub) NotifyNewMail(summary domain.EmailSummary) {
	h.broadcast <- &BroadcastMessage{
		MailboxID: summary.MailboxID,
		Message: &Message{
			Type: MessageTypeNewMail,
			Data: NewMailData{
				EmailID:        summary.ID,
				MailboxID:      summary.MailboxID,
				From:           summary.FromAddress,
				Subject:        summary.Subject,
				HasAttachments: summary.HasAttachments,
				ReceivedAt:     summary.ReceivedAt.Format(time.RFC3339),
			},
			Timestamp: time.Now().UTC(),
		},
	}
}

// NotifyMailboxExpired 通知订阅者邮箱已被清理
func (h *Hub) NotifyMailboxExpired(mailboxID string) {
	h.broadcast <- &BroadcastMessage{
		MailboxID: mailboxID,
		Message: &Message{
			Type:      MessageTypeExpired,
			Timestamp: time.Now().UTC(),
		},
	}
}

// broadcastToMailbox 向订阅特定邮箱的客户端广播消息
func (h *Hub) broadcastToMailbox(mailboxID string, msg *Message) {
	h.mu.RLock()
	clients := h.mailboxes[mailboxID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送 ping
func (h *Hub) pingAllClients() {
	msg := &Message{
		Type:      MessageTypePing,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.mailboxes = make(map[string]map[string]*Client)
}

// HandleWebSocket 处理 WebSocket 连接。
// 路由形如 GET /api/mailboxes/:address/ws，按路径中的地址解析邮箱，
// 地址不存在或已过期时拒绝连接。
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		mailbox, err := hub.resolver.Resolve(c.Param("address"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "mailbox not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:        uuid.NewString(),
			MailboxID: mailbox.ID,
			conn:      conn,
			send:      make(chan []byte, 256),
			hub:       hub,
			log:       hub.log,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// detach 把连接从 Hub 注销。Hub 已停止时直接返回，避免永久阻塞。
func (c *Client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.detach()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket closed", zap.Error(err))
			}
			break
		}

		if msg.Type == MessageTypePong {
			c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
