package bingo

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/palemoky/party-games/internal/config"
	"github.com/palemoky/party-games/internal/network/server/types"
	"github.com/palemoky/party-games/internal/protocol"
)

type mockRoom struct {
	cfg *config.GameConfig

	mu         sync.Mutex
	broadcasts []*protocol.Message
	direct     map[string][]*protocol.Message
	finishWith *protocol.GameEndsPayload
}

func newMockRoom() *mockRoom {
	cfg := config.Default()
	return &mockRoom{
		cfg:    &cfg.Game,
		direct: make(map[string][]*protocol.Message),
	}
}

func (r *mockRoom) Broadcast(msg *protocol.Message, except ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, msg)
}

func (r *mockRoom) SendTo(playerID string, msg *protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[playerID] = append(r.direct[playerID], msg)
}

func (r *mockRoom) ToOpponents(senderID string, msg *protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, msg)
}

func (r *mockRoom) ParticipantIDs() []string              { return nil }
func (r *mockRoom) AnyHalted() bool                       { return false }
func (r *mockRoom) GameConfig() types.GameConfigInterface { return r.cfg }

func (r *mockRoom) Finish(results *protocol.GameEndsPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finishWith == nil {
		r.finishWith = results
	}
}

func testPlayers(n int) []types.PlayerData {
	players := make([]types.PlayerData, n)
	for i := range players {
		players[i] = types.PlayerData{ID: fmt.Sprintf("p%d", i+1), Name: fmt.Sprintf("Player%d", i+1)}
	}
	return players
}

func TestBoard_Lines(t *testing.T) {
	b := newBoard()
	assert.Equal(t, 0, b.lines())

	// Complete the first row
	for col := 0; col < boardSize; col++ {
		b.mark(b.cellAt(0, col))
	}
	assert.Equal(t, 1, b.lines())

	// Complete the first column, it shares one cell with the row
	for row := 0; row < boardSize; row++ {
		b.mark(b.cellAt(row, 0))
	}
	assert.Equal(t, 2, b.lines())

	// Diagonal
	for i := 0; i < boardSize; i++ {
		b.mark(b.cellAt(i, i))
	}
	assert.Equal(t, 3, b.lines())
}

func TestBoard_ContainsAllValues(t *testing.T) {
	b := newBoard()
	seen := make(map[int]bool)
	for row := 0; row < boardSize; row++ {
		for col := 0; col < boardSize; col++ {
			seen[b.cellAt(row, col)] = true
		}
	}
	assert.Len(t, seen, boardSize*boardSize)
	assert.False(t, seen[0])
	assert.True(t, seen[1])
	assert.True(t, seen[25])
}

func TestMachine_StartDealsBoards(t *testing.T) {
	room := newMockRoom()
	m := NewMachine(room, testPlayers(2))
	m.Start()

	for _, id := range []string{"p1", "p2"} {
		msgs := room.direct[id]
		assert.Len(t, msgs, 1)
		assert.Equal(t, protocol.MsgBoard, msgs[0].Type)
		payload, err := protocol.ParsePayload[protocol.BoardPayload](msgs[0])
		assert.NoError(t, err)
		assert.Len(t, payload.Board, boardSize*boardSize)
	}

	// Start is idempotent
	m.Start()
	assert.Len(t, room.direct["p1"], 1)
}

func TestMachine_TurnOrderEnforced(t *testing.T) {
	room := newMockRoom()
	m := NewMachine(room, testPlayers(2))
	m.Start()

	// p2 cannot move first
	m.HandleMessage("p2", protocol.MustNewMessage(protocol.MsgMarkCell, protocol.MarkCellPayload{Row: 0, Col: 0}))
	assert.Empty(t, room.broadcasts)

	// p1 moves, the call is broadcast and the turn passes
	m.HandleMessage("p1", protocol.MustNewMessage(protocol.MsgMarkCell, protocol.MarkCellPayload{Row: 0, Col: 0}))
	assert.Len(t, room.broadcasts, 1)
	assert.Equal(t, protocol.MsgCellMarked, room.broadcasts[0].Type)

	// The broadcast carries every player's current line count
	call, err := protocol.ParsePayload[protocol.CellMarkedPayload](room.broadcasts[0])
	assert.NoError(t, err)
	assert.Len(t, call.Scores, 2)
	scored := make(map[string]bool)
	for _, score := range call.Scores {
		scored[score.PlayerID] = true
	}
	assert.True(t, scored["p1"])
	assert.True(t, scored["p2"])

	// The called value is marked on every board
	value := m.players["p1"].Board.cellAt(0, 0)
	found := false
	for i, v := range m.players["p2"].Board.values {
		if v == value {
			assert.True(t, m.players["p2"].Board.marked[i])
			found = true
		}
	}
	assert.True(t, found)

	// p1 cannot move twice in a row
	m.HandleMessage("p1", protocol.MustNewMessage(protocol.MsgMarkCell, protocol.MarkCellPayload{Row: 0, Col: 1}))
	assert.Len(t, room.broadcasts, 1)

	// p2 may now move on any cell that is still open
	row2, col2 := -1, -1
	for i, marked := range m.players["p2"].Board.marked {
		if !marked {
			row2, col2 = i/boardSize, i%boardSize
			break
		}
	}
	m.HandleMessage("p2", protocol.MustNewMessage(protocol.MsgMarkCell, protocol.MarkCellPayload{Row: row2, Col: col2}))
	assert.Len(t, room.broadcasts, 2)

	// An already marked cell is rejected
	m.HandleMessage("p1", protocol.MustNewMessage(protocol.MsgMarkCell, protocol.MarkCellPayload{Row: 0, Col: 0}))
	assert.Len(t, room.broadcasts, 2)
}

func TestMachine_PauseBlocksMoves(t *testing.T) {
	room := newMockRoom()
	m := NewMachine(room, testPlayers(2))
	m.Start()

	m.PlayerOffline("p2")
	m.HandleMessage("p1", protocol.MustNewMessage(protocol.MsgMarkCell, protocol.MarkCellPayload{Row: 0, Col: 0}))
	assert.Empty(t, room.broadcasts)

	m.Resume()
	m.HandleMessage("p1", protocol.MustNewMessage(protocol.MsgMarkCell, protocol.MarkCellPayload{Row: 0, Col: 0}))
	assert.Len(t, room.broadcasts, 1)
}

func TestMachine_WinByLines(t *testing.T) {
	room := newMockRoom()
	m := NewMachine(room, testPlayers(2))
	m.Start()

	// Keep calling open cells until someone reaches five lines
	for attempts := 0; attempts < 2*boardSize*boardSize && room.finishWith == nil; attempts++ {
		id := m.order[m.turn]
		idx := -1
		for i, marked := range m.players[id].Board.marked {
			if !marked {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		m.HandleMessage(id, protocol.MustNewMessage(protocol.MsgMarkCell, protocol.MarkCellPayload{
			Row: idx / boardSize,
			Col: idx % boardSize,
		}))
	}

	results := room.finishWith
	assert.NotNil(t, results)
	assert.Equal(t, "complete", results.Reason)
	assert.Len(t, results.Results, 2)
	assert.Equal(t, 1, results.Results[0].Rank)
	assert.GreaterOrEqual(t, results.Results[0].Points, winningLines)
}

func TestMachine_SnapshotShowsOwnBoard(t *testing.T) {
	room := newMockRoom()
	m := NewMachine(room, testPlayers(2))
	m.Start()

	snap := m.Snapshot("p1")
	assert.Equal(t, "bgo", snap.GameID)
	assert.True(t, snap.InRound)
	assert.Len(t, snap.Board, boardSize*boardSize)
	assert.Len(t, snap.Scores, 2)

	// Unknown viewers get no board
	stranger := m.Snapshot("nobody")
	assert.Nil(t, stranger.Board)
}

func TestMachine_ForceEndRanksByLines(t *testing.T) {
	room := newMockRoom()
	m := NewMachine(room, testPlayers(3))
	m.Start()

	// p2 completes a full row on their own board
	for i := 0; i < boardSize; i++ {
		m.players["p2"].Board.marked[i] = true
	}

	m.ForceEnd("timeout")
	results := room.finishWith
	assert.NotNil(t, results)
	assert.Equal(t, "timeout", results.Reason)
	assert.Equal(t, "p2", results.Results[0].PlayerID)
	assert.Equal(t, 1, results.Results[0].Rank)
	// The tied zero-line players share the next dense rank
	assert.Equal(t, 2, results.Results[1].Rank)
	assert.Equal(t, 2, results.Results[2].Rank)
}
