package ttt

import (
	"log"
	"sync"

	"github.com/palemoky/party-games/internal/network/server/types"
	"github.com/palemoky/party-games/internal/protocol"
)

const gridSize = 3

// marks 按座位分配执子，先手执 X
var marks = [2]string{"X", "O"}

// winLines 所有连线的格子下标
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // 行
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // 列
	{0, 4, 8}, {2, 4, 6}, // 对角
}

// playerState 单个玩家的对局状态
type playerState struct {
	ID   string
	Name string
	Mark string
	Won  bool
}

// Machine 井字棋状态机：共享 3x3 棋盘，轮流落子，三连即胜
type Machine struct {
	room types.RoomContext

	players map[string]*playerState
	order   []string
	grid    [gridSize * gridSize]string
	turn    int // order 中的当前行动者下标
	moves   int

	paused   bool
	started  bool
	finished bool
	mu       sync.Mutex
}

// NewMachine 创建状态机，先入座者执 X
func NewMachine(room types.RoomContext, players []types.PlayerData) *Machine {
	m := &Machine{
		room:    room,
		players: make(map[string]*playerState, len(players)),
		order:   make([]string, 0, len(players)),
	}
	for i, p := range players {
		m.players[p.ID] = &playerState{ID: p.ID, Name: p.Name, Mark: marks[i%len(marks)]}
		m.order = append(m.order, p.ID)
	}
	return m
}

// Start 下发空棋盘和各自的执子
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	for _, id := range m.order {
		m.room.SendTo(id, protocol.MustNewMessage(protocol.MsgBoard, protocol.BoardPayload{
			Board: m.renderLocked(),
			Mark:  m.players[id].Mark,
		}))
	}
	log.Printf("⭕ 井字棋开局，%s 先手", m.players[m.order[0]].Name)
}

// HandleMessage 处理落子请求，仅当前行动者对空格有效
func (m *Machine) HandleMessage(playerID string, msg *protocol.Message) {
	m.mu.Lock()
	if m.finished || m.paused || !m.started || msg.Type != protocol.MsgMarkCell || playerID != m.order[m.turn] {
		m.mu.Unlock()
		return
	}
	payload, err := protocol.ParsePayload[protocol.MarkCellPayload](msg)
	if err != nil {
		m.mu.Unlock()
		return
	}
	if payload.Row < 0 || payload.Row >= gridSize || payload.Col < 0 || payload.Col >= gridSize {
		m.mu.Unlock()
		return
	}
	idx := payload.Row*gridSize + payload.Col
	if m.grid[idx] != "" {
		m.mu.Unlock()
		return
	}

	p := m.players[playerID]
	m.grid[idx] = p.Mark
	m.moves++
	m.turn = (m.turn + 1) % len(m.order)

	m.room.Broadcast(protocol.MustNewMessage(protocol.MsgCellMarked, protocol.CellMarkedPayload{
		PlayerID: playerID,
		Cell:     idx,
		Value:    p.Mark,
	}))

	if m.hasLineLocked(p.Mark) {
		p.Won = true
		// finishLocked 负责释放锁
		m.finishLocked("complete")
		return
	}
	if m.moves == len(m.grid) {
		// 平局
		m.finishLocked("complete")
		return
	}
	m.mu.Unlock()
}

// PlayerOffline 参与者掉线，冻结行动
func (m *Machine) PlayerOffline(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return
	}
	m.paused = true
}

// Resume 全员归位
func (m *Machine) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return
	}
	m.paused = false
}

// Snapshot 按观察者视角构建重连快照，棋盘全员可见
func (m *Machine) Snapshot(viewerID string) *protocol.RenderGamePayload {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &protocol.RenderGamePayload{
		GameID:  "ttt",
		InRound: m.started && !m.finished,
		Phase:   "turn",
		Round:   m.moves,
		Players: append([]string(nil), m.order...),
		Board:   m.renderLocked(),
	}
	for _, id := range m.order {
		snap.Scores = append(snap.Scores, protocol.PlayerScore{
			PlayerID: id,
			Points:   m.pointsLocked(id),
		})
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

func (m *Machine) renderLocked() []string {
	return append([]string(nil), m.grid[:]...)
}

// hasLineLocked 指定执子是否已有三连
func (m *Machine) hasLineLocked(mark string) bool {
	for _, line := range winLines {
		if m.grid[line[0]] == mark && m.grid[line[1]] == mark && m.grid[line[2]] == mark {
			return true
		}
	}
	return false
}

func (m *Machine) pointsLocked(playerID string) int {
	if m.players[playerID].Won {
		return 1
	}
	return 0
}

// finishLocked 胜者居首出榜，平局同列第一，调用方需持有 m.mu，本函数负责释放
func (m *Machine) finishLocked(reason string) {
	m.finished = true

	ordered := make([]*playerState, 0, len(m.order))
	for _, id := range m.order {
		ordered = append(ordered, m.players[id])
	}
	if len(ordered) == 2 && ordered[1].Won {
		ordered[0], ordered[1] = ordered[1], ordered[0]
	}

	results := make([]protocol.RankedResult, 0, len(ordered))
	rank := 0
	prev := -1
	for _, p := range ordered {
		points := m.pointsLocked(p.ID)
		if points != prev {
			rank++
			prev = points
		}
		results = append(results, protocol.RankedResult{
			Rank:       rank,
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Points:     points,
		})
	}
	m.mu.Unlock()

	m.room.Finish(&protocol.GameEndsPayload{
		GameID:  "ttt",
		Reason:  reason,
		Results: results,
	})
}
