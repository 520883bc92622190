package rmcs

import (
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/palemoky/party-games/internal/network/server/types"
	"github.com/palemoky/party-games/internal/protocol"
)

// phase 回合内阶段
type phase string

const (
	phaseInit          phase = "init"
	phaseRoleSelection phase = "role_selection" // 抽签定角色
	phaseTurn          phase = "turn"           // 捕快限时指认
	phaseScoring       phase = "scoring"        // 结算展示
	phaseEnded         phase = "ended"
)

// playerState 单个玩家的对局状态
type playerState struct {
	ID     string
	Name   string
	Seat   int
	Points int  // 累计得分
	Slot   int  // 本回合认领的签位，-1 表示未选
	Role   Role // 本回合角色
}

// Machine 抽王八（Raja-Mantri-Chor-Sipahi）回合状态机
// 锁序约定：持有 m.mu 时可以回调 Room，反向不允许。
type Machine struct {
	room types.RoomContext
	cfg  types.GameConfigInterface

	players map[string]*playerState
	order   []string // 座位顺序

	phase      phase
	round      int
	chits      [4]Role        // 本回合洗好的签面
	claimed    map[int]string // 签位 -> 认领者
	sipahiID   string
	candidates []string // 捕快的指认候选，随机顺序
	leaderID   string

	// 对抗阶段计时，挂起时保存剩余量
	turnTimer   *time.Timer
	resyncTimer *time.Timer
	resetTimer  *time.Timer
	deadline    time.Time
	remaining   time.Duration

	paused       bool
	pendingReset bool // 挂起期间被推迟的回合切换
	resolved     bool // 本回合对抗是否已裁决
	finished     bool
	mu           sync.Mutex
}

// NewMachine 创建状态机，参与者按座位顺序传入
func NewMachine(room types.RoomContext, players []types.PlayerData) *Machine {
	m := &Machine{
		room:    room,
		cfg:     room.GameConfig(),
		players: make(map[string]*playerState, len(players)),
		order:   make([]string, 0, len(players)),
		phase:   phaseInit,
		claimed: make(map[int]string),
	}
	for seat, p := range players {
		m.players[p.ID] = &playerState{ID: p.ID, Name: p.Name, Seat: seat, Slot: -1}
		m.order = append(m.order, p.ID)
	}
	return m
}

// Start 开始第一回合
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != phaseInit {
		return
	}
	m.round = 1
	m.startRoundLocked()
}

// startRoundLocked 洗签并进入选签阶段
func (m *Machine) startRoundLocked() {
	m.phase = phaseRoleSelection
	m.claimed = make(map[int]string)
	m.sipahiID = ""
	m.candidates = nil
	m.resolved = false
	for _, p := range m.players {
		p.Slot = -1
		p.Role = ""
	}

	m.chits = allRoles
	rand.Shuffle(len(m.chits), func(i, j int) {
		m.chits[i], m.chits[j] = m.chits[j], m.chits[i]
	})

	m.room.Broadcast(protocol.MustNewMessage(protocol.MsgPickChit, protocol.PickChitPromptPayload{
		Round: m.round,
		Slots: len(m.chits),
	}))
	log.Printf("🎲 第 %d 回合开始，等待选签", m.round)
}

// HandleMessage 处理游戏内消息，挂起与终局后全部忽略
func (m *Machine) HandleMessage(playerID string, msg *protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished || m.paused {
		return
	}

	switch msg.Type {
	case protocol.MsgPickChit:
		payload, err := protocol.ParsePayload[protocol.PickChitPayload](msg)
		if err != nil {
			return
		}
		m.handlePickLocked(playerID, payload.Slot)
	case protocol.MsgSelection:
		payload, err := protocol.ParsePayload[protocol.SelectionPayload](msg)
		if err != nil {
			return
		}
		m.handleSelectionLocked(playerID, payload.AccusedID)
	}
}

// handlePickLocked 处理选签：先到先得，一人一签
func (m *Machine) handlePickLocked(playerID string, slot int) {
	if m.phase != phaseRoleSelection {
		return
	}
	if slot < 0 || slot >= len(m.chits) {
		return
	}
	p, ok := m.players[playerID]
	if !ok || p.Slot != -1 {
		return
	}
	if _, taken := m.claimed[slot]; taken {
		return
	}

	m.claimed[slot] = playerID
	p.Slot = slot
	p.Role = m.chits[slot]

	// 认领结果公示，角色按遮蔽规则分发
	m.room.Broadcast(protocol.MustNewMessage(protocol.MsgChitID, protocol.ChitIDPayload{
		Slot:     slot,
		PlayerID: playerID,
	}))
	m.room.SendTo(playerID, protocol.MustNewMessage(protocol.MsgPersona, protocol.PersonaPayload{
		PlayerID: playerID,
		Slot:     slot,
		Role:     string(p.Role),
		Masked:   false,
	}))
	opponentView := protocol.PersonaPayload{PlayerID: playerID, Slot: slot, Masked: true}
	if p.Role.IsLookout() {
		opponentView.Role = string(p.Role)
		opponentView.Masked = false
	}
	m.room.ToOpponents(playerID, protocol.MustNewMessage(protocol.MsgPersona, opponentView))

	if len(m.claimed) == len(m.players) {
		m.beginTurnLocked()
	}
}

// beginTurnLocked 全员有角色后进入捕快指认阶段
func (m *Machine) beginTurnLocked() {
	m.phase = phaseTurn
	m.resolved = false

	for _, p := range m.players {
		if p.Role == RoleSipahi {
			m.sipahiID = p.ID
		}
	}
	// 候选即暗牌角色，顺序打乱避免泄露签位
	m.candidates = nil
	for _, id := range m.order {
		if !m.players[id].Role.IsLookout() {
			m.candidates = append(m.candidates, id)
		}
	}
	rand.Shuffle(len(m.candidates), func(i, j int) {
		m.candidates[i], m.candidates[j] = m.candidates[j], m.candidates[i]
	})

	timeout := m.cfg.SelectionTimeoutDuration()
	m.room.ToOpponents(m.sipahiID, protocol.MustNewMessage(protocol.MsgStartRound, protocol.StartRoundPayload{
		SipahiID: m.sipahiID,
		Timeout:  int(timeout.Seconds()),
	}))
	m.room.SendTo(m.sipahiID, protocol.MustNewMessage(protocol.MsgStartRound, protocol.StartRoundPayload{
		SipahiID:   m.sipahiID,
		Candidates: append([]string(nil), m.candidates...),
		Timeout:    int(timeout.Seconds()),
	}))

	m.armTurnTimersLocked(timeout)
	log.Printf("⏱️ 第 %d 回合指认开始，捕快 %s，限时 %v", m.round, m.players[m.sipahiID].Name, timeout)
}

// armTurnTimersLocked 启动指认倒计时与周期校正
func (m *Machine) armTurnTimersLocked(d time.Duration) {
	m.deadline = time.Now().Add(d)
	m.turnTimer = time.AfterFunc(d, m.turnTimeout)
	m.resyncTimer = time.AfterFunc(m.cfg.TimerResyncDuration(), m.resyncTick)
}

// resyncTick 周期下发剩余秒数，吸收客户端时钟漂移
func (m *Machine) resyncTick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished || m.paused || m.resolved || m.phase != phaseTurn {
		return
	}
	remaining := time.Until(m.deadline)
	if remaining <= 0 {
		return
	}
	m.room.Broadcast(protocol.MustNewMessage(protocol.MsgCorrectTimer, protocol.CorrectTimerPayload{
		Remaining: int(remaining.Round(time.Second).Seconds()),
	}))
	m.resyncTimer = time.AfterFunc(m.cfg.TimerResyncDuration(), m.resyncTick)
}

// turnTimeout 指认超时，判捕快失败
// 与 Selection 的竞争由 resolved 裁决，只有一方生效。
func (m *Machine) turnTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished || m.paused || m.resolved || m.phase != phaseTurn {
		return
	}
	m.resolveLocked("", true)
}

// handleSelectionLocked 捕快指认
func (m *Machine) handleSelectionLocked(playerID, accusedID string) {
	if m.phase != phaseTurn || m.resolved {
		return
	}
	if playerID != m.sipahiID {
		return
	}
	valid := false
	for _, id := range m.candidates {
		if id == accusedID {
			valid = true
			break
		}
	}
	if !valid {
		return
	}
	m.resolveLocked(accusedID, false)
}

// resolveLocked 裁决本回合：计分、公布全部角色、安排下一回合
func (m *Machine) resolveLocked(accusedID string, timedOut bool) {
	m.resolved = true
	m.stopTurnTimersLocked()
	m.phase = phaseScoring

	caught := !timedOut && accusedID != "" && m.players[accusedID].Role == RoleChor

	for _, p := range m.players {
		pts := rolePoints[p.Role]
		if !caught {
			// 捕快失手，自身得分转给飞贼
			switch p.Role {
			case RoleSipahi:
				pts = 0
			case RoleChor:
				pts = rolePoints[RoleSipahi]
			}
		}
		p.Points += pts
	}
	m.leaderID = m.leadingPlayerLocked()

	roles := make([]protocol.RoleReveal, 0, len(m.order))
	scores := make([]protocol.PlayerScore, 0, len(m.order))
	for _, id := range m.order {
		p := m.players[id]
		roundPts := rolePoints[p.Role]
		if !caught {
			switch p.Role {
			case RoleSipahi:
				roundPts = 0
			case RoleChor:
				roundPts = rolePoints[RoleSipahi]
			}
		}
		roles = append(roles, protocol.RoleReveal{PlayerID: id, Slot: p.Slot, Role: string(p.Role)})
		scores = append(scores, protocol.PlayerScore{
			PlayerID:    id,
			RoundPoints: roundPts,
			Points:      p.Points,
			Leading:     id == m.leaderID,
		})
	}

	lastRound := m.round >= m.cfg.GetRoundsPerGame()
	m.room.Broadcast(protocol.MustNewMessage(protocol.MsgRoundEnds, protocol.RoundEndsPayload{
		Round:     m.round,
		Roles:     roles,
		Scores:    scores,
		LeaderID:  m.leaderID,
		Caught:    caught,
		TmrLoss:   timedOut,
		LastRound: lastRound,
	}))
	log.Printf("📊 第 %d 回合结算，caught=%v timeout=%v", m.round, caught, timedOut)

	// 留出展示时间再切换
	m.resetTimer = time.AfterFunc(m.cfg.RoundResetDelayDuration(), m.advance)
}

// leadingPlayerLocked 当前领先者，同分取座位靠前者
func (m *Machine) leadingPlayerLocked() string {
	leader := m.order[0]
	for _, id := range m.order[1:] {
		if m.players[id].Points > m.players[leader].Points {
			leader = id
		}
	}
	return leader
}

// advance 结算展示结束，进入下一回合或终局
func (m *Machine) advance() {
	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return
	}
	if m.paused {
		m.pendingReset = true
		m.mu.Unlock()
		return
	}
	m.advanceLocked()
}

// advanceLocked 解锁由本函数或其被调者负责
func (m *Machine) advanceLocked() {
	if m.round >= m.cfg.GetRoundsPerGame() {
		m.finishLocked("complete")
		return
	}
	m.round++
	m.startRoundLocked()
	m.mu.Unlock()
}

// PlayerOffline 参与者掉线，冻结全部计时
func (m *Machine) PlayerOffline(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished || m.paused {
		return
	}
	m.paused = true

	if m.phase == phaseTurn && !m.resolved {
		m.remaining = time.Until(m.deadline)
		if m.remaining < 0 {
			m.remaining = 0
		}
		m.stopTurnTimersLocked()
	}
	if m.resetTimer != nil {
		if m.resetTimer.Stop() {
			m.pendingReset = true
		}
		m.resetTimer = nil
	}
	log.Printf("⏸️ 对局挂起，玩家 %s 掉线", playerID)
}

// Resume 全员归位，恢复计时
// 指认阶段按剩余量加宽限恢复，上限为完整倒计时。
func (m *Machine) Resume() {
	m.mu.Lock()
	if m.finished || !m.paused {
		m.mu.Unlock()
		return
	}
	m.paused = false

	if m.phase == phaseTurn && !m.resolved {
		d := m.resumeBudgetLocked()
		m.room.Broadcast(protocol.MustNewMessage(protocol.MsgCorrectTimer, protocol.CorrectTimerPayload{
			Remaining: int(d.Round(time.Second).Seconds()),
		}))
		m.armTurnTimersLocked(d)
		log.Printf("▶️ 对局恢复，指认剩余 %v", d)
		m.mu.Unlock()
		return
	}
	if m.pendingReset {
		m.pendingReset = false
		log.Printf("▶️ 对局恢复，补切回合")
		// advanceLocked 负责释放锁
		m.advanceLocked()
		return
	}
	log.Printf("▶️ 对局恢复")
	m.mu.Unlock()
}

// resumeBudgetLocked 恢复后的指认预算：剩余量加宽限，不超过完整倒计时
func (m *Machine) resumeBudgetLocked() time.Duration {
	d := m.remaining + m.cfg.ReconnectGraceDuration()
	if full := m.cfg.SelectionTimeoutDuration(); d > full {
		d = full
	}
	return d
}

// Snapshot 按观察者视角构建重连快照
func (m *Machine) Snapshot(viewerID string) *protocol.RenderGamePayload {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &protocol.RenderGamePayload{
		GameID:  "rmcs",
		InRound: m.phase == phaseRoleSelection || m.phase == phaseTurn || m.phase == phaseScoring,
		Phase:   string(m.phase),
		Round:   m.round,
		Players: append([]string(nil), m.order...),
	}

	for _, id := range m.order {
		p := m.players[id]
		if p.Slot == -1 {
			continue
		}
		// 结算阶段全部明牌，其余阶段按遮蔽规则
		masked := id != viewerID && !p.Role.IsLookout() && m.phase != phaseScoring
		persona := protocol.PersonaPayload{PlayerID: id, Slot: p.Slot, Masked: masked}
		if !masked {
			persona.Role = string(p.Role)
		}
		snap.Personas = append(snap.Personas, persona)
	}

	for _, id := range m.order {
		snap.Scores = append(snap.Scores, protocol.PlayerScore{
			PlayerID: id,
			Points:   m.players[id].Points,
			Leading:  id == m.leaderID && m.leaderID != "",
		})
	}

	if m.phase == phaseTurn && !m.resolved {
		var d time.Duration
		if m.paused {
			d = m.resumeBudgetLocked()
		} else {
			d = time.Until(m.deadline)
		}
		if d < 0 {
			d = 0
		}
		snap.Remaining = int(d.Round(time.Second).Seconds())
		if viewerID == m.sipahiID {
			snap.Candidates = append([]string(nil), m.candidates...)
		}
	}
	return snap
}

// ForceEnd 立即终局并出榜，幂等
func (m *Machine) ForceEnd(reason string) {
	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return
	}
	m.finishLocked(reason)
}

// finishLocked 终局：停表、密集排名、交回 Room 收尾
// 调用方需持有 m.mu，本函数负责释放。
func (m *Machine) finishLocked(reason string) {
	m.finished = true
	m.phase = phaseEnded
	m.stopTurnTimersLocked()
	if m.resetTimer != nil {
		m.resetTimer.Stop()
		m.resetTimer = nil
	}

	results := m.rankedResultsLocked()
	m.mu.Unlock()

	m.room.Finish(&protocol.GameEndsPayload{
		Reason:  reason,
		Results: results,
	})
}

// rankedResultsLocked 按累计分降序出榜，同分共享名次（密集排名）
func (m *Machine) rankedResultsLocked() []protocol.RankedResult {
	ordered := make([]*playerState, 0, len(m.order))
	for _, id := range m.order {
		ordered = append(ordered, m.players[id])
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Points > ordered[j].Points
	})

	results := make([]protocol.RankedResult, 0, len(ordered))
	rank := 0
	prevPoints := -1
	for _, p := range ordered {
		if p.Points != prevPoints {
			rank++
			prevPoints = p.Points
		}
		results = append(results, protocol.RankedResult{
			Rank:       rank,
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Points:     p.Points,
		})
	}
	return results
}

// stopTurnTimersLocked 停掉指认相关计时器
func (m *Machine) stopTurnTimersLocked() {
	if m.turnTimer != nil {
		m.turnTimer.Stop()
		m.turnTimer = nil
	}
	if m.resyncTimer != nil {
		m.resyncTimer.Stop()
		m.resyncTimer = nil
	}
}
