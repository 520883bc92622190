package game

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/palemoky/party-games/internal/network/server/types"
	"github.com/palemoky/party-games/internal/protocol"
)

// probeInterval 延迟探测的发送间隔
const probeInterval = 10 * time.Second

// tokenSalt 重连令牌的 HMAC 密钥
const tokenSalt = "party-games-respawn"

// Participant 房间内的一名参与者
type Participant struct {
	Client   types.ClientInterface // 掉线期间为 nil
	ID       string
	Name     string
	Seat     int
	Acked    bool // 是否已完成握手确认
	Halted   bool // 是否掉线待归
	Rendered bool // 重连快照是否已确认渲染
}

// Room 一局游戏的会话载体
// 锁序约定：Room 的任何方法都不得在持有 r.mu 时调用状态机，
// 状态机回调 Room（Broadcast / Finish 等）时才允许拿 r.mu。
type Room struct {
	Code      string
	GameID    string
	Token     string // 重连令牌，全房间共享
	CreatedAt time.Time

	server   types.ServerContext
	registry *RoomRegistry
	machine  types.Machine

	state        types.RoomState
	participants map[string]*Participant
	order        []string            // 座位顺序
	opponents    map[string][]string // playerID -> 对手列表

	destroyTimer *time.Timer
	quitTimer    *time.Timer
	probeStop    chan struct{}
	probeOnce    sync.Once
	finalized    bool
	mu           sync.RWMutex
}

// NewRoom 创建房间，参与者按匹配顺序落座
func NewRoom(s types.ServerContext, registry *RoomRegistry, code, gameID string, clients []types.ClientInterface) *Room {
	r := &Room{
		Code:         code,
		GameID:       gameID,
		CreatedAt:    time.Now(),
		server:       s,
		registry:     registry,
		state:        types.RoomStateAwaitingAck,
		participants: make(map[string]*Participant, len(clients)),
		order:        make([]string, 0, len(clients)),
		opponents:    make(map[string][]string, len(clients)),
		probeStop:    make(chan struct{}),
	}

	ids := make([]string, 0, len(clients))
	for seat, c := range clients {
		r.participants[c.GetID()] = &Participant{
			Client:   c,
			ID:       c.GetID(),
			Name:     c.GetName(),
			Seat:     seat,
			Rendered: true,
		}
		r.order = append(r.order, c.GetID())
		ids = append(ids, c.GetID())
	}
	for _, id := range ids {
		for _, other := range ids {
			if other != id {
				r.opponents[id] = append(r.opponents[id], other)
			}
		}
	}
	r.Token = computeRespawnToken(ids)
	return r
}

// computeRespawnToken 由参与者 ID 与随机因子派生重连令牌
func computeRespawnToken(ids []string) string {
	mac := hmac.New(sha256.New, []byte(tokenSalt))
	mac.Write([]byte(strings.Join(ids, "")))
	mac.Write([]byte(fmt.Sprintf("%d", rand.Int63())))
	return hex.EncodeToString(mac.Sum(nil))
}

// beginHandshake 绑定参与者与房间并下发握手请求
func (r *Room) beginHandshake() {
	r.mu.Lock()
	defer r.mu.Unlock()

	sm := r.server.GetSessionManager()
	ackMsg := protocol.MustNewMessage(protocol.MsgSendACK, protocol.SendACKPayload{RespawnToken: r.Token})
	for _, p := range r.participants {
		p.Client.SetRoom(r.Code)
		sm.SetRoom(p.ID, r.Code)
		r.server.SetPlayerStatus(p.ID, types.StatusPlaying)
		p.Client.SendMessage(ackMsg)
	}
	log.Printf("🏠 房间 %s 创建 (%s)，等待 %d 名玩家确认", r.Code, r.GameID, len(r.participants))
}

// HandleAck 参与者握手确认，集齐后开局
func (r *Room) HandleAck(playerID string) {
	r.mu.Lock()
	if r.state != types.RoomStateAwaitingAck || r.finalized {
		r.mu.Unlock()
		return
	}
	p, ok := r.participants[playerID]
	if !ok || p.Acked {
		r.mu.Unlock()
		return
	}
	p.Acked = true

	acked := 0
	for _, q := range r.participants {
		if q.Acked {
			acked++
		}
	}
	if acked < len(r.participants) {
		r.mu.Unlock()
		return
	}

	// 全员确认，进入游戏
	r.state = types.RoomStateStarted
	players := append([]string(nil), r.order...)
	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgGotoGame, protocol.GotoGamePayload{
		GameID:  r.GameID,
		Players: players,
	}))
	r.mu.Unlock()

	log.Printf("🎮 房间 %s 全员确认，开局", r.Code)
	r.startProbes()
	r.machine.Start()
}

// startProbes 启动延迟探测循环
func (r *Room) startProbes() {
	r.probeOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(probeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.Broadcast(protocol.MustNewMessage(protocol.MsgServerTS, protocol.ServerTSPayload{
						ServerTime: time.Now().UnixMilli(),
					}))
				case <-r.probeStop:
					return
				}
			}
		}()
	})
}

// HandleClientTS 延迟探测回包，原样附带双方时间戳回给客户端
func (r *Room) HandleClientTS(playerID string, payload *protocol.ClientTSPayload) {
	r.SendTo(playerID, protocol.MustNewMessage(protocol.MsgServerACK, protocol.ServerACKPayload{
		ClientTime: payload.ClientTime,
		ServerTime: time.Now().UnixMilli(),
	}))
}

// MarkOffline 参与者掉线：挂起、广播、首个掉线者启动销毁计时
func (r *Room) MarkOffline(playerID string) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return
	}
	p, ok := r.participants[playerID]
	if !ok || p.Halted {
		r.mu.Unlock()
		return
	}
	p.Halted = true
	p.Client = nil
	p.Rendered = false

	window := r.server.GetGameConfig().DestroyWindowDuration()
	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgDisconnected, protocol.DisconnectedPayload{
		PlayerID:   playerID,
		PlayerName: p.Name,
		Timeout:    int(window.Seconds()),
	}), playerID)

	if r.destroyTimer == nil {
		r.destroyTimer = time.AfterFunc(window, r.destroyExpired)
	}
	r.mu.Unlock()

	log.Printf("📴 房间 %s 玩家 %s 掉线，%v 内可重连", r.Code, p.Name, window)
	r.machine.PlayerOffline(playerID)
}

// destroyExpired 重连窗口耗尽，按超时终局
func (r *Room) destroyExpired() {
	log.Printf("🧹 房间 %s 重连窗口耗尽，强制终局", r.Code)
	r.machine.ForceEnd("timeout")
}

// HandleRespawn 重连请求，令牌与挂起状态校验通过后重新接线
// 返回 true 时由调用方完成连接层的身份交接。
func (r *Room) HandleRespawn(client types.ClientInterface, playerID, token string) bool {
	r.mu.Lock()
	if r.finalized || token != r.Token {
		r.mu.Unlock()
		return false
	}
	p, ok := r.participants[playerID]
	if !ok || !p.Halted {
		r.mu.Unlock()
		return false
	}

	p.Client = client
	p.Halted = false
	p.Rendered = false
	client.SetIdentity(playerID, p.Name)
	client.SetRoom(r.Code)

	needAck := r.state == types.RoomStateAwaitingAck && !p.Acked
	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgReJoined, protocol.ReJoinedPayload{
		PlayerID:   playerID,
		PlayerName: p.Name,
	}), playerID)
	r.mu.Unlock()

	log.Printf("📶 房间 %s 玩家 %s 重连成功", r.Code, p.Name)

	// 先补快照，收到 Game-Rendered 后才恢复计时
	snap := r.machine.Snapshot(playerID)
	client.SendMessage(protocol.MustNewMessage(protocol.MsgRenderGame, snap))
	if needAck {
		client.SendMessage(protocol.MustNewMessage(protocol.MsgSendACK, protocol.SendACKPayload{RespawnToken: r.Token}))
	}
	return true
}

// HandleRendered 重连方确认已渲染快照，全员就绪后恢复游戏
func (r *Room) HandleRendered(playerID string) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return
	}
	p, ok := r.participants[playerID]
	if !ok || p.Halted {
		r.mu.Unlock()
		return
	}
	p.Rendered = true

	for _, q := range r.participants {
		if q.Halted || !q.Rendered {
			r.mu.Unlock()
			return
		}
	}

	// 无人挂起且全员渲染完毕，恢复
	if r.destroyTimer != nil {
		r.destroyTimer.Stop()
		r.destroyTimer = nil
	}
	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgReStart, nil))
	r.mu.Unlock()

	log.Printf("▶️ 房间 %s 全员就绪，恢复游戏", r.Code)
	r.machine.Resume()
}

// HandleQuit 参与者主动退出，宽限期后按退出终局
func (r *Room) HandleQuit(playerID string) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return
	}
	p, ok := r.participants[playerID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if p.Client != nil {
		p.Client.SendMessage(protocol.MustNewMessage(protocol.MsgQuitSuccess, nil))
	}
	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgQuit, protocol.QuitNoticePayload{
		PlayerID:   playerID,
		PlayerName: p.Name,
	}), playerID)

	if r.quitTimer == nil {
		grace := r.server.GetGameConfig().QuitGraceDuration()
		r.quitTimer = time.AfterFunc(grace, func() {
			r.machine.ForceEnd("quit")
		})
	}
	r.mu.Unlock()

	log.Printf("🚪 房间 %s 玩家 %s 退出", r.Code, p.Name)
}

// HandleGameMessage 游戏内消息，挂起期间以及快照未确认时整体冻结
func (r *Room) HandleGameMessage(playerID string, msg *protocol.Message) {
	r.mu.RLock()
	open := r.state == types.RoomStateStarted && !r.finalized
	if open {
		for _, p := range r.participants {
			if p.Halted || !p.Rendered {
				open = false
				break
			}
		}
	}
	_, member := r.participants[playerID]
	r.mu.RUnlock()

	if !open || !member {
		return
	}
	r.machine.HandleMessage(playerID, msg)
}

// Broadcast 给所有在线参与者发消息，except 中的除外
func (r *Room) Broadcast(msg *protocol.Message, except ...string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.broadcastLocked(msg, except...)
}

// broadcastLocked 调用方需持有 r.mu
func (r *Room) broadcastLocked(msg *protocol.Message, except ...string) {
	skip := make(map[string]struct{}, len(except))
	for _, id := range except {
		skip[id] = struct{}{}
	}
	for _, p := range r.participants {
		if p.Halted || p.Client == nil {
			continue
		}
		if _, excluded := skip[p.ID]; excluded {
			continue
		}
		p.Client.SendMessage(msg)
	}
}

// SendTo 给单个在线参与者发消息
func (r *Room) SendTo(playerID string, msg *protocol.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[playerID]
	if !ok || p.Halted || p.Client == nil {
		return
	}
	p.Client.SendMessage(msg)
}

// ToOpponents 给发起者的所有对手发消息
func (r *Room) ToOpponents(senderID string, msg *protocol.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.opponents[senderID] {
		p, ok := r.participants[id]
		if !ok || p.Halted || p.Client == nil {
			continue
		}
		p.Client.SendMessage(msg)
	}
}

// ParticipantIDs 按座位顺序返回参与者 ID
func (r *Room) ParticipantIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// AnyHalted 当前是否有参与者掉线未归
func (r *Room) AnyHalted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.participants {
		if p.Halted {
			return true
		}
	}
	return false
}

// GameConfig 暴露游戏参数给状态机
func (r *Room) GameConfig() types.GameConfigInterface {
	return r.server.GetGameConfig()
}

// State 当前房间状态
func (r *Room) State() types.RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Finish 广播最终结果并销毁房间，只会生效一次
func (r *Room) Finish(results *protocol.GameEndsPayload) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return
	}
	r.finalized = true
	r.state = types.RoomStateEnded

	if r.destroyTimer != nil {
		r.destroyTimer.Stop()
		r.destroyTimer = nil
	}
	if r.quitTimer != nil {
		r.quitTimer.Stop()
		r.quitTimer = nil
	}
	close(r.probeStop)

	results.GameID = r.GameID
	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgGameEnds, results))

	sm := r.server.GetSessionManager()
	for _, p := range r.participants {
		if p.Client != nil {
			p.Client.SetRoom("")
		}
		sm.SetRoom(p.ID, "")
		if sess := sm.GetSession(p.ID); sess != nil && sess.GetStatus() == types.StatusPlaying {
			r.server.SetPlayerStatus(p.ID, types.StatusIdle)
		}
	}
	r.mu.Unlock()

	// 结果落库不阻塞销毁
	if store := r.server.GetResultStore(); store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for _, res := range results.Results {
				if err := store.RecordResult(ctx, res.PlayerID, res.PlayerName, res.Points, res.Rank); err != nil {
					log.Printf("⚠️ 房间 %s 结果落库失败: %v", r.Code, err)
				}
			}
		}()
	}

	r.registry.Remove(r.Code)
	log.Printf("🏁 房间 %s 终局 (%s)，已销毁", r.Code, results.Reason)
}
