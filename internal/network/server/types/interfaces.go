package types

import (
	"context"
	"time"

	"github.com/palemoky/party-games/internal/protocol"
)

// ServerContext 服务器上下文接口 - 避免循环依赖
type ServerContext interface {
	GetSessionManager() SessionManagerInterface
	GetLobby() LobbyInterface
	GetRoomRegistry() RoomRegistryInterface
	GetResultStore() ResultStoreInterface
	GetGameConfig() GameConfigInterface
	GetClientByID(id string) ClientInterface
	RegisterClient(id string, client ClientInterface)
	UnregisterClient(id string)
	// SetPlayerStatus 更新玩家状态并向其他在线玩家广播 Status-Update
	SetPlayerStatus(playerID string, status PlayerStatus)
}

// SessionManagerInterface 会话管理器接口
type SessionManagerInterface interface {
	CreateSession(playerID, playerName string) SessionInterface
	GetSession(playerID string) SessionInterface
	CanReconnect(token, playerID string) bool
	SetOnline(playerID string)
	SetOffline(playerID string)
	SetRoom(playerID, roomCode string)
	DeleteSession(playerID string)
}

// SessionInterface 单个玩家会话（稳定身份，跨连接存活）
type SessionInterface interface {
	GetPlayerID() string
	GetPlayerName() string
	GetToken() string
	GetRoom() string
	GetStatus() PlayerStatus
}

// LobbyInterface 匹配大厅接口
type LobbyInterface interface {
	Request(client ClientInterface, gameID string, partySize int) bool
	Cancel(client ClientInterface)
}

// RoomRegistryInterface 活跃房间注册表接口
type RoomRegistryInterface interface {
	Get(code string) RoomInterface
	Remove(code string)
	PlayerOffline(client ClientInterface)
	ActiveCount() int
}

// RoomInterface Handler 依赖的房间操作面
type RoomInterface interface {
	HandleAck(playerID string)
	HandleClientTS(playerID string, payload *protocol.ClientTSPayload)
	HandleRendered(playerID string)
	HandleQuit(playerID string)
	HandleRespawn(client ClientInterface, playerID, token string) bool
	HandleGameMessage(playerID string, msg *protocol.Message)
}

// RoomContext Round 状态机依赖的房间能力（每个房间恰好一个状态机）
type RoomContext interface {
	// Broadcast 给所有未掉线的参与者发消息，except 中的除外
	Broadcast(msg *protocol.Message, except ...string)
	// SendTo 给单个参与者发消息，掉线时为 no-op
	SendTo(playerID string, msg *protocol.Message)
	// ToOpponents 给发起者的所有对手发消息
	ToOpponents(senderID string, msg *protocol.Message)
	ParticipantIDs() []string
	// AnyHalted 当前是否有参与者掉线未归
	AnyHalted() bool
	GameConfig() GameConfigInterface
	// Finish 广播最终结果并销毁房间，只会生效一次
	Finish(results *protocol.GameEndsPayload)
}

// PlayerData 状态机初始化时拿到的参与者身份
type PlayerData struct {
	ID   string
	Name string
}

// Machine 游戏回合状态机接口，由 Room 持有并驱动
type Machine interface {
	Start()
	HandleMessage(playerID string, msg *protocol.Message)
	PlayerOffline(playerID string)
	Resume()
	Snapshot(viewerID string) *protocol.RenderGamePayload
	ForceEnd(reason string)
}

// ResultStoreInterface 比赛结果存储接口
type ResultStoreInterface interface {
	RecordResult(ctx context.Context, playerID, playerName string, points, rank int) error
}

// GameConfigInterface 游戏参数接口
type GameConfigInterface interface {
	SelectionTimeoutDuration() time.Duration
	TimerResyncDuration() time.Duration
	RoundResetDelayDuration() time.Duration
	DestroyWindowDuration() time.Duration
	ReconnectGraceDuration() time.Duration
	QuitGraceDuration() time.Duration
	GetRoundsPerGame() int
}

// ClientInterface 客户端连接接口
type ClientInterface interface {
	GetID() string
	GetName() string
	GetRoom() string
	SetRoom(roomCode string)
	SetIdentity(playerID, name string)
	SendMessage(msg *protocol.Message)
	Close()
}

// PlayerStatus 玩家状态
type PlayerStatus string

const (
	StatusIdle      PlayerStatus = "idle"
	StatusSearching PlayerStatus = "searching"
	StatusPlaying   PlayerStatus = "playing"
)

// RoomState 房间状态
type RoomState int

const (
	RoomStateAwaitingAck RoomState = iota // 等待所有参与者确认
	RoomStateStarted                      // 握手完成，游戏进行中
	RoomStateEnded                        // 已出结果，等待销毁
)

// GameError 游戏错误
type GameError struct {
	Code    int
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}
