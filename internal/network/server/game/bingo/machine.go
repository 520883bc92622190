package bingo

import (
	"log"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	"github.com/palemoky/party-games/internal/network/server/types"
	"github.com/palemoky/party-games/internal/protocol"
)

const (
	boardSize    = 5
	winningLines = 5 // 集齐五条线（行/列/对角）即胜
)

// board 一名玩家的 5x5 棋盘
type board struct {
	values [boardSize * boardSize]int
	marked [boardSize * boardSize]bool
}

// newBoard 生成 1-25 乱序棋盘
func newBoard() *board {
	b := &board{}
	perm := rand.Perm(boardSize * boardSize)
	for i, v := range perm {
		b.values[i] = v + 1
	}
	return b
}

// mark 标记指定数字，棋盘上没有时为 no-op
func (b *board) mark(value int) {
	for i, v := range b.values {
		if v == value {
			b.marked[i] = true
			return
		}
	}
}

// cellAt 取指定格的数字，越界返回 0
func (b *board) cellAt(row, col int) int {
	if row < 0 || row >= boardSize || col < 0 || col >= boardSize {
		return 0
	}
	return b.values[row*boardSize+col]
}

// lines 已完成的行、列、对角线总数
func (b *board) lines() int {
	total := 0
	for i := 0; i < boardSize; i++ {
		rowDone, colDone := true, true
		for j := 0; j < boardSize; j++ {
			if !b.marked[i*boardSize+j] {
				rowDone = false
			}
			if !b.marked[j*boardSize+i] {
				colDone = false
			}
		}
		if rowDone {
			total++
		}
		if colDone {
			total++
		}
	}
	diag, anti := true, true
	for i := 0; i < boardSize; i++ {
		if !b.marked[i*boardSize+i] {
			diag = false
		}
		if !b.marked[i*boardSize+(boardSize-1-i)] {
			anti = false
		}
	}
	if diag {
		total++
	}
	if anti {
		total++
	}
	return total
}

// render 输出格子列表，已标记的格子带 * 前缀
func (b *board) render() []string {
	out := make([]string, 0, len(b.values))
	for i, v := range b.values {
		s := strconv.Itoa(v)
		if b.marked[i] {
			s = "*" + s
		}
		out = append(out, s)
	}
	return out
}

// playerState 单个玩家的对局状态
type playerState struct {
	ID    string
	Name  string
	Board *board
}

// Machine Bingo 回合状态机：轮流报数，先连满五线者胜
type Machine struct {
	room types.RoomContext

	players map[string]*playerState
	order   []string
	turn    int // order 中的当前行动者下标
	moves   int

	paused   bool
	started  bool
	finished bool
	mu       sync.Mutex
}

// NewMachine 创建状态机并为每人发一张乱序棋盘
func NewMachine(room types.RoomContext, players []types.PlayerData) *Machine {
	m := &Machine{
		room:    room,
		players: make(map[string]*playerState, len(players)),
		order:   make([]string, 0, len(players)),
	}
	for _, p := range players {
		m.players[p.ID] = &playerState{ID: p.ID, Name: p.Name, Board: newBoard()}
		m.order = append(m.order, p.ID)
	}
	return m
}

// Start 下发各自的棋盘，第一个座位先手
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	for _, id := range m.order {
		m.room.SendTo(id, protocol.MustNewMessage(protocol.MsgBoard, protocol.BoardPayload{
			Board: m.players[id].Board.render(),
		}))
	}
	log.Printf("🎲 Bingo 开局，%d 名玩家", len(m.order))
}

// HandleMessage 处理标记请求，仅当前行动者有效
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

	p := m.players[playerID]
	value := p.Board.cellAt(payload.Row, payload.Col)
	if value == 0 {
		m.mu.Unlock()
		return
	}
	idx := payload.Row*boardSize + payload.Col
	if p.Board.marked[idx] {
		m.mu.Unlock()
		return
	}

	// 报出的数字在所有人的棋盘上生效
	for _, q := range m.players {
		q.Board.mark(value)
	}
	m.moves++
	m.turn = (m.turn + 1) % len(m.order)

	// 同一数字改变所有棋盘，广播携带每人最新的完成线数
	scores := make([]protocol.PlayerScore, 0, len(m.order))
	for _, id := range m.order {
		scores = append(scores, protocol.PlayerScore{
			PlayerID: id,
			Points:   m.players[id].Board.lines(),
		})
	}
	m.room.Broadcast(protocol.MustNewMessage(protocol.MsgCellMarked, protocol.CellMarkedPayload{
		PlayerID: playerID,
		Cell:     idx,
		Value:    strconv.Itoa(value),
		Scores:   scores,
	}))

	for _, id := range m.order {
		if m.players[id].Board.lines() >= winningLines {
			// finishLocked 负责释放锁
			m.finishLocked("complete")
			return
		}
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

// Snapshot 按观察者视角构建重连快照，只含自己的棋盘
func (m *Machine) Snapshot(viewerID string) *protocol.RenderGamePayload {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &protocol.RenderGamePayload{
		GameID:  "bgo",
		InRound: m.started && !m.finished,
		Phase:   "turn",
		Round:   m.moves,
		Players: append([]string(nil), m.order...),
	}
	for _, id := range m.order {
		snap.Scores = append(snap.Scores, protocol.PlayerScore{
			PlayerID: id,
			Points:   m.players[id].Board.lines(),
		})
	}
	if p, ok := m.players[viewerID]; ok {
		snap.Board = p.Board.render()
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

// finishLocked 按完成线数出榜，调用方需持有 m.mu，本函数负责释放
func (m *Machine) finishLocked(reason string) {
	m.finished = true

	ordered := make([]*playerState, 0, len(m.order))
	for _, id := range m.order {
		ordered = append(ordered, m.players[id])
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Board.lines() > ordered[j].Board.lines()
	})

	results := make([]protocol.RankedResult, 0, len(ordered))
	rank := 0
	prev := -1
	for _, p := range ordered {
		lines := p.Board.lines()
		if lines != prev {
			rank++
			prev = lines
		}
		results = append(results, protocol.RankedResult{
			Rank:       rank,
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Points:     lines,
		})
	}
	m.mu.Unlock()

	m.room.Finish(&protocol.GameEndsPayload{
		Reason:  reason,
		Results: results,
	})
}
