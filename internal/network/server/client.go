package server

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/palemoky/party-games/internal/protocol"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// ping 发送间隔（必须小于心跳静默上限）
	pingPeriod = 4 * time.Second

	// 消息最大大小
	maxMessageSize = 4096
)

// Client 代表一个连接的玩家
type Client struct {
	ID   string // 玩家 ID，重连后继承原会话的稳定 ID
	Name string // 玩家昵称
	IP   string // 客户端 IP 地址

	roomCode string // 当前所在房间

	server *Server
	conn   *websocket.Conn
	send   chan []byte

	// 心跳静默上限，超时未收到任何消息则强制断开
	liveness time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewClient 创建新客户端
func NewClient(s *Server, conn *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.New().String(),
		Name:     GenerateNickname(),
		server:   s,
		conn:     conn,
		send:     make(chan []byte, 256),
		liveness: s.config.Game.HeartbeatWindowDuration(),
	}
}

// ReadPump 从 WebSocket 读取消息
// 任何入站消息（包括 Ping 探测）都会重置心跳期限；静默超时触发的读错误
// 与网络断开走同一条掉线路径，Room 不区分两者。
func (c *Client) ReadPump() {
	defer func() {
		c.handleDisconnect()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.liveness))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.liveness))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("读取错误: %v", err)
			}
			break
		}

		// 收到消息即视为存活，重置心跳期限
		c.conn.SetReadDeadline(time.Now().Add(c.liveness))

		// 解析消息
		msg, err := protocol.Decode(message)
		if err != nil {
			log.Printf("消息解析错误 (玩家 %s): %v", c.Name, err)
			c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
			continue
		}

		// 交给处理器处理
		c.server.handler.Handle(c, msg)
	}
}

// WritePump 向 WebSocket 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端
func (c *Client) SendMessage(msg *protocol.Message) {
	data, err := msg.Encode()
	if err != nil {
		log.Printf("消息编码错误: %v", err)
		return
	}

	// 入队期间持读锁，Close 持写锁关闭通道，两者互斥
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	select {
	case c.send <- data:
		c.mu.RUnlock()
	default:
		c.mu.RUnlock()
		// 发送缓冲区已满，关闭连接
		log.Printf("客户端 %s 发送缓冲区已满", c.GetID())
		c.Close()
	}
}

// handleDisconnect 处理断开连接
// 清理必须尽力完成：任何一步异常都不能阻止后续登记的移除。
func (c *Client) handleDisconnect() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PANIC] 掉线清理异常: %v", r)
		}
		// 从服务器注销连接（但保留会话以便重连）
		c.server.unregisterClient(c)
	}()

	// 标记会话为离线状态
	c.server.sessionManager.SetOffline(c.ID)

	// 如果在匹配队列中，移除
	c.server.lobby.Cancel(c)

	// 如果在房间中，通知房间该玩家已掉线（但不移除）
	if c.GetRoom() != "" {
		c.server.roomRegistry.PlayerOffline(c)
	}
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// GetID 获取玩家 ID
func (c *Client) GetID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ID
}

// GetName 获取玩家昵称
func (c *Client) GetName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Name
}

// SetIdentity 重连时继承原会话身份
func (c *Client) SetIdentity(playerID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ID = playerID
	c.Name = name
}

// SetRoom 设置客户端所在房间
func (c *Client) SetRoom(roomCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = roomCode
}

// GetRoom 获取客户端所在房间
func (c *Client) GetRoom() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode
}
