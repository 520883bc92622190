package server

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/palemoky/party-games/internal/network/server/types"
)

const (
	// 离线会话清理扫描间隔
	sessionSweepInterval = time.Minute
)

// Session 玩家会话（稳定身份，跨连接存活）
type Session struct {
	PlayerID       string             // 稳定玩家 ID（区别于连接 ID）
	PlayerName     string             // 昵称
	Token          string             // 会话令牌，重连时验证身份
	Status         types.PlayerStatus // idle / searching / playing
	RoomCode       string             // 当前所在房间，空表示不在房间
	IsOnline       bool               // 是否有活跃连接
	DisconnectedAt time.Time          // 掉线时刻，在线时为零值
	CreatedAt      time.Time
}

// GetPlayerID implements types.SessionInterface
func (s *Session) GetPlayerID() string { return s.PlayerID }

// GetPlayerName implements types.SessionInterface
func (s *Session) GetPlayerName() string { return s.PlayerName }

// GetToken implements types.SessionInterface
func (s *Session) GetToken() string { return s.Token }

// GetRoom implements types.SessionInterface
func (s *Session) GetRoom() string { return s.RoomCode }

// GetStatus implements types.SessionInterface
func (s *Session) GetStatus() types.PlayerStatus { return s.Status }

// SessionManager 全局会话注册表
type SessionManager struct {
	sessions map[string]*Session // key: PlayerID
	byToken  map[string]*Session
	idleTTL  time.Duration // 无房间离线会话保留时长
	mu       sync.RWMutex
}

// NewSessionManager 创建会话管理器
func NewSessionManager(idleTTL time.Duration) *SessionManager {
	sm := &SessionManager{
		sessions: make(map[string]*Session),
		byToken:  make(map[string]*Session),
		idleTTL:  idleTTL,
	}

	// 启动离线会话清理协程
	go sm.sweepLoop()

	return sm
}

// CreateSession 创建会话
func (sm *SessionManager) CreateSession(playerID, playerName string) types.SessionInterface {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session := &Session{
		PlayerID:   playerID,
		PlayerName: playerName,
		Token:      uuid.New().String(),
		Status:     types.StatusIdle,
		IsOnline:   true,
		CreatedAt:  time.Now(),
	}
	sm.sessions[playerID] = session
	sm.byToken[session.Token] = session
	return session
}

// GetSession 按玩家 ID 获取会话
func (sm *SessionManager) GetSession(playerID string) types.SessionInterface {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[playerID]
	if !exists {
		return nil
	}
	return session
}

// GetSessionByToken 按令牌获取会话
func (sm *SessionManager) GetSessionByToken(token string) types.SessionInterface {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.byToken[token]
	if !exists {
		return nil
	}
	return session
}

// CanReconnect 校验重连请求：令牌与玩家 ID 匹配，且未超出重连窗口
func (sm *SessionManager) CanReconnect(token, playerID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.byToken[token]
	if !exists || session.PlayerID != playerID {
		return false
	}
	if !session.IsOnline && time.Since(session.DisconnectedAt) > sm.idleTTL {
		return false
	}
	return true
}

// SetOnline 标记会话上线
func (sm *SessionManager) SetOnline(playerID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[playerID]; exists {
		session.IsOnline = true
		session.DisconnectedAt = time.Time{}
	}
}

// SetOffline 标记会话离线
func (sm *SessionManager) SetOffline(playerID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[playerID]; exists {
		session.IsOnline = false
		session.DisconnectedAt = time.Now()
	}
}

// SetStatus 更新玩家状态
func (sm *SessionManager) SetStatus(playerID string, status types.PlayerStatus) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[playerID]; exists {
		session.Status = status
	}
}

// SetRoom 记录玩家所在房间
func (sm *SessionManager) SetRoom(playerID, roomCode string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[playerID]; exists {
		session.RoomCode = roomCode
	}
}

// DeleteSession 删除会话
func (sm *SessionManager) DeleteSession(playerID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[playerID]; exists {
		delete(sm.byToken, session.Token)
		delete(sm.sessions, playerID)
	}
}

// sweepLoop 定期清理超时的离线会话
func (sm *SessionManager) sweepLoop() {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		sm.sweep()
	}
}

// sweep 清理无房间且离线超时的会话
func (sm *SessionManager) sweep() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for id, session := range sm.sessions {
		if session.IsOnline || session.RoomCode != "" {
			continue
		}
		if now.Sub(session.DisconnectedAt) > sm.idleTTL {
			delete(sm.byToken, session.Token)
			delete(sm.sessions, id)
			log.Printf("🧹 会话 %s (%s) 离线超时已清理", session.PlayerName, id)
		}
	}
}
