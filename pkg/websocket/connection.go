package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Connection 表示一个WebSocket连接
type Connection struct {
	ID       string
	UserID   string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
	LastPing time.Time
	IsAlive  bool
	mu       sync.RWMutex
	Groups   map[string]bool
}

// newUpgrader 根据配置创建WebSocket升级器
func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// 生产环境由网关校验 Origin
			return true
		},
	}
}

// HandleWebSocket 升级HTTP连接并启动读写循环，groups 为初始加入的房间
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID string, groups []string) {
	upgrader := newUpgrader(hub.config)
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("WebSocket升级失败: %v", err)
		return
	}

	conn := &Connection{
		ID:       uuid.NewString(),
		UserID:   userID,
		Conn:     wsConn,
		Send:     make(chan []byte, hub.config.MessageBufferSize),
		Hub:      hub,
		LastPing: time.Now(),
		IsAlive:  true,
		Groups:   make(map[string]bool),
	}
	for _, group := range groups {
		conn.Groups[group] = true
	}

	hub.register <- conn

	go conn.writePump()
	go conn.readPump()
}

// readPump 读取客户端消息
func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.LastPing = time.Now()
		return c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Warnf("连接 %s 异常关闭: %v", c.ID, err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		c.handleMessage(msg)
	}
}

// writePump 将消息写回客户端
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Hub.config.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 客户端控制消息
func (c *Connection) handleMessage(msg Message) {
	switch msg.Type {
	case MessageTypePing:
		c.handlePing()
	case MessageTypeJoinGroup:
		c.handleJoinGroup(msg)
	case MessageTypeLeaveGroup:
		c.handleLeaveGroup(msg)
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

func (c *Connection) handlePing() {
	c.LastPing = time.Now()
	c.reply(Message{Type: MessageTypePong})
}

func (c *Connection) handleJoinGroup(msg Message) {
	group, ok := msg.Data.(string)
	if !ok || group == "" {
		c.sendError("group name required")
		return
	}
	c.JoinGroup(group)
}

func (c *Connection) handleLeaveGroup(msg Message) {
	group, ok := msg.Data.(string)
	if !ok || group == "" {
		c.sendError("group name required")
		return
	}
	c.LeaveGroup(group)
}

// JoinGroup 加入组
func (c *Connection) JoinGroup(group string) {
	c.mu.Lock()
	c.Groups[group] = true
	c.mu.Unlock()
	if c.Hub != nil {
		c.Hub.joinGroup(c, group)
	}
}

// LeaveGroup 离开组
func (c *Connection) LeaveGroup(group string) {
	c.mu.Lock()
	delete(c.Groups, group)
	c.mu.Unlock()
	if c.Hub != nil {
		c.Hub.leaveGroup(c, group)
	}
}

// IsInGroup 是否在组内
func (c *Connection) IsInGroup(group string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Groups[group]
}

// GetGroups 当前加入的组
func (c *Connection) GetGroups() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	groups := make([]string, 0, len(c.Groups))
	for g := range c.Groups {
		groups = append(groups, g)
	}
	return groups
}

func (c *Connection) reply(msg Message) {
	msg.Timestamp = time.Now().Unix()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Connection) sendError(text string) {
	c.reply(Message{Type: MessageTypeError, Data: text})
}
