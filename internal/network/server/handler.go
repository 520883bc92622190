package server

import (
	"log"
	"time"

	"github.com/palemoky/party-games/internal/network/server/types"
	"github.com/palemoky/party-games/internal/protocol"
)

// Handler 消息处理器
type Handler struct {
	server *Server
}

// NewHandler 创建处理器
func NewHandler(s *Server) *Handler {
	return &Handler{server: s}
}

// Handle 处理消息
func (h *Handler) Handle(client *Client, msg *protocol.Message) {
	switch msg.Type {
	// 连接操作
	case protocol.MsgPing:
		h.handlePing(client, msg)
	case protocol.MsgRespawnMe:
		h.handleRespawn(client, msg)

	// 匹配操作
	case protocol.MsgSearch:
		h.handleSearch(client, msg)
	case protocol.MsgCancelSearch:
		h.handleCancelSearch(client)

	// 房间协议
	case protocol.MsgAck:
		if room := h.roomOf(client); room != nil {
			room.HandleAck(client.GetID())
		}
	case protocol.MsgClientTS:
		h.handleClientTS(client, msg)
	case protocol.MsgGameRendered:
		if room := h.roomOf(client); room != nil {
			room.HandleRendered(client.GetID())
		}
	case protocol.MsgQuit:
		if room := h.roomOf(client); room != nil {
			room.HandleQuit(client.GetID())
		}

	// 游戏操作，交给房间内的状态机
	case protocol.MsgPickChit, protocol.MsgSelection, protocol.MsgMarkCell:
		if room := h.roomOf(client); room != nil {
			room.HandleGameMessage(client.GetID(), msg)
		}

	default:
		log.Printf("⚠️ 未知消息类型: '%s' (来自玩家: %s)", msg.Type, client.GetName())
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
	}
}

// roomOf 获取客户端所在房间，不在房间时返回 nil
func (h *Handler) roomOf(client *Client) types.RoomInterface {
	code := client.GetRoom()
	if code == "" {
		return nil
	}
	return h.server.roomRegistry.Get(code)
}

// handlePing 处理心跳消息
func (h *Handler) handlePing(client *Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.PingPayload](msg)
	if err != nil {
		return
	}

	// 立即回复 pong
	client.SendMessage(protocol.MustNewMessage(protocol.MsgPong, protocol.PongPayload{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	}))
}

// handleSearch 处理匹配请求
func (h *Handler) handleSearch(client *Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.SearchPayload](msg)
	if err != nil {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	if h.server.lobby.Request(client, payload.GameID, payload.PartySize) {
		client.SendMessage(protocol.MustNewMessage(protocol.MsgGotoLobby, nil))
	} else {
		client.SendMessage(protocol.MustNewMessage(protocol.MsgLobbyCancel, nil))
	}
}

// handleCancelSearch 处理取消匹配
func (h *Handler) handleCancelSearch(client *Client) {
	client.SendMessage(protocol.MustNewMessage(protocol.MsgSearchCancelled, nil))
	h.server.lobby.Cancel(client)
}

// handleClientTS 处理延迟探测应答，回执双端时钟
func (h *Handler) handleClientTS(client *Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.ClientTSPayload](msg)
	if err != nil {
		return
	}

	room := h.roomOf(client)
	if room == nil {
		return
	}
	room.HandleClientTS(client.GetID(), payload)
}

// handleRespawn 处理断线重连
func (h *Handler) handleRespawn(client *Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.RespawnMePayload](msg)
	if err != nil {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	session := h.server.sessionManager.GetSession(payload.PlayerID)
	if session == nil || session.GetRoom() == "" {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeBadRespawn))
		return
	}

	// 会话令牌须与玩家 ID 匹配且在重连窗口内，防止冒用他人 ID
	if !h.server.sessionManager.CanReconnect(payload.SessionToken, payload.PlayerID) {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeBadRespawn))
		return
	}

	room := h.server.roomRegistry.Get(session.GetRoom())
	if room == nil {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeBadRespawn))
		return
	}

	oldID := client.GetID()
	// 房间校验重生令牌并接回参与者；失败时不动当前连接的身份
	if !room.HandleRespawn(client, payload.PlayerID, payload.Token) {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeBadRespawn))
		return
	}

	// 重连成功：丢弃本次连接的临时会话，连接登记改挂到稳定 ID 下
	h.server.sessionManager.DeleteSession(oldID)
	h.server.UnregisterClient(oldID)
	h.server.RegisterClient(payload.PlayerID, client)
	h.server.sessionManager.SetOnline(payload.PlayerID)

	log.Printf("📶 玩家 %s 重连回房间 %s", client.GetName(), session.GetRoom())
}
