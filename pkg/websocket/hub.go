package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// 消息类型常量
const (
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
	MessageTypeJoinGroup  = "join_group"
	MessageTypeLeaveGroup = "leave_group"
	MessageTypeEvent      = "event"
	MessageTypeError      = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      string      `json:"type"`
	Event     string      `json:"event,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
	From      string      `json:"from,omitempty"`
	To        string      `json:"to,omitempty"`
	Group     string      `json:"group,omitempty"`
}

// Config WebSocket配置
type Config struct {
	MaxConnections    int64
	HeartbeatInterval time.Duration
	ConnectionTimeout time.Duration
	MessageBufferSize int
	ReadBufferSize    int
	WriteBufferSize   int
	MaxMessageSize    int64
	MessageQueueSize  int
	// 发送缓冲区满时直接丢弃（慢消费者不拖垮广播）
	DropOnFull  bool
	SendTimeout time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:    10000,
		HeartbeatInterval: 30 * time.Second,
		ConnectionTimeout: 60 * time.Second,
		MessageBufferSize: 256,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		MaxMessageSize:    4096,
		MessageQueueSize:  1000,
		DropOnFull:        true,
		SendTimeout:       50 * time.Millisecond,
	}
}

// Hub 管理所有WebSocket连接，按用户和组（房间）做定向推送
type Hub struct {
	connections      map[string]*Connection
	userConnections  map[string]map[string]bool // 用户ID -> 连接ID集合
	groupConnections map[string]map[string]bool // 组 -> 连接ID集合

	broadcast  chan *Message
	register   chan *Connection
	unregister chan *Connection

	connectionCount int64
	config          *Config

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub 创建新的Hub实例
func NewHub(config *Config) *Hub {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := &Hub{
		connections:      make(map[string]*Connection),
		userConnections:  make(map[string]map[string]bool),
		groupConnections: make(map[string]map[string]bool),
		broadcast:        make(chan *Message, config.MessageQueueSize),
		register:         make(chan *Connection, 256),
		unregister:       make(chan *Connection, 256),
		config:           config,
		ctx:              ctx,
		cancel:           cancel,
	}

	go hub.run()
	return hub
}

// Publish 将消息投递到广播队列；队列满时丢弃并返回 false
func (h *Hub) Publish(message *Message) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		logrus.Warnf("广播队列已满，消息被丢弃: %s/%s", message.Group, message.Event)
		return false
	}
}

// run Hub主循环
func (h *Hub) run() {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case conn := <-h.register:
			h.registerConnection(conn)
		case conn := <-h.unregister:
			h.unregisterConnection(conn)
		case message := <-h.broadcast:
			h.dispatch(message)
		case <-ticker.C:
			h.checkHeartbeats()
		}
	}
}

// dispatch 单次序列化后按目标投递
func (h *Hub) dispatch(message *Message) {
	if message.Timestamp == 0 {
		message.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("消息序列化失败: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	switch {
	case message.To != "":
		h.sendToUser(message.To, data)
	case message.Group != "":
		h.sendToGroup(message.Group, data)
	default:
		for _, conn := range h.connections {
			if conn.IsAlive {
				h.trySend(conn, data)
			}
		}
	}
}

// registerConnection 注册连接
func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if atomic.LoadInt64(&h.connectionCount) >= h.config.MaxConnections {
		conn.Conn.Close()
		logrus.Warnf("达到最大连接数限制: %d", h.config.MaxConnections)
		return
	}

	h.connections[conn.ID] = conn
	atomic.AddInt64(&h.connectionCount, 1)

	if conn.UserID != "" {
		if h.userConnections[conn.UserID] == nil {
			h.userConnections[conn.UserID] = make(map[string]bool)
		}
		h.userConnections[conn.UserID][conn.ID] = true
	}

	for group := range conn.Groups {
		if h.groupConnections[group] == nil {
			h.groupConnections[group] = make(map[string]bool)
		}
		h.groupConnections[group][conn.ID] = true
	}

	logrus.Infof("WebSocket连接已注册: %s, 用户: %s, 当前连接数: %d",
		conn.ID, conn.UserID, atomic.LoadInt64(&h.connectionCount))
}

// unregisterConnection 注销连接
func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.connections[conn.ID]; !exists {
		return
	}
	delete(h.connections, conn.ID)
	atomic.AddInt64(&h.connectionCount, -1)

	if conn.UserID != "" && h.userConnections[conn.UserID] != nil {
		delete(h.userConnections[conn.UserID], conn.ID)
		if len(h.userConnections[conn.UserID]) == 0 {
			delete(h.userConnections, conn.UserID)
		}
	}

	for group := range conn.Groups {
		if h.groupConnections[group] != nil {
			delete(h.groupConnections[group], conn.ID)
			if len(h.groupConnections[group]) == 0 {
				delete(h.groupConnections, group)
			}
		}
	}

	close(conn.Send)
	logrus.Infof("WebSocket连接已注销: %s, 当前连接数: %d",
		conn.ID, atomic.LoadInt64(&h.connectionCount))
}

// sendToUser 发送消息给特定用户的全部连接
func (h *Hub) sendToUser(userID string, data []byte) {
	for connID := range h.userConnections[userID] {
		if conn, ok := h.connections[connID]; ok && conn.IsAlive {
			h.trySend(conn, data)
		}
	}
}

// sendToGroup 发送消息给特定组
func (h *Hub) sendToGroup(group string, data []byte) {
	for connID := range h.groupConnections[group] {
		if conn, ok := h.connections[connID]; ok && conn.IsAlive {
			h.trySend(conn, data)
		}
	}
}

// trySend 背压策略：丢弃或限时等待
func (h *Hub) trySend(conn *Connection, data []byte) {
	if h.config.DropOnFull {
		select {
		case conn.Send <- data:
		default:
			logrus.Debugf("连接 %s 发送缓冲区满，消息被丢弃", conn.ID)
		}
		return
	}
	timeout := h.config.SendTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	select {
	case conn.Send <- data:
	case <-time.After(timeout):
		logrus.Debugf("连接 %s 发送超时，消息被丢弃", conn.ID)
	}
}

// checkHeartbeats 检查心跳
func (h *Hub) checkHeartbeats() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	for _, conn := range h.connections {
		if now.Sub(conn.LastPing) > h.config.ConnectionTimeout {
			logrus.Warnf("连接 %s 心跳超时，准备关闭", conn.ID)
			conn.IsAlive = false
			conn.Conn.Close()
		}
	}
}

// GetConnectionCount 获取当前连接数
func (h *Hub) GetConnectionCount() int64 {
	return atomic.LoadInt64(&h.connectionCount)
}

// GetUserConnections 获取用户的连接数
func (h *Hub) GetUserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConnections[userID])
}

// GetGroupConnections 获取组的连接数
func (h *Hub) GetGroupConnections(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groupConnections[group])
}

// joinGroup 将连接加入组（Connection.JoinGroup 调用）
func (h *Hub) joinGroup(conn *Connection, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groupConnections[group] == nil {
		h.groupConnections[group] = make(map[string]bool)
	}
	h.groupConnections[group][conn.ID] = true
}

// leaveGroup 将连接移出组
func (h *Hub) leaveGroup(conn *Connection, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groupConnections[group] != nil {
		delete(h.groupConnections[group], conn.ID)
		if len(h.groupConnections[group]) == 0 {
			delete(h.groupConnections, group)
		}
	}
}

// Close 关闭Hub
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	for _, conn := range h.connections {
		conn.Conn.Close()
	}
	h.mu.Unlock()

	logrus.Info("WebSocket Hub已关闭")
}
