package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/palemoky/party-games/internal/network/server/types"
	"github.com/palemoky/party-games/internal/protocol"
)

func newTestRoom(t *testing.T) (*Room, []*MockClient, *mockServer, *RoomRegistry) {
	t.Helper()
	srv := newMockServer()
	registry := NewRoomRegistry(srv)

	clients := make([]*MockClient, 4)
	members := make([]types.ClientInterface, 4)
	for i := range clients {
		clients[i] = &MockClient{ID: fmt.Sprintf("p%d", i+1), Name: fmt.Sprintf("Player%d", i+1)}
		srv.sessions.CreateSession(clients[i].ID, clients[i].Name)
		members[i] = clients[i]
	}

	room, err := registry.CreateRoom("rmcs", members)
	assert.NoError(t, err)
	return room, clients, srv, registry
}

func ackAll(room *Room, clients []*MockClient) {
	for _, c := range clients {
		room.HandleAck(c.ID)
	}
}

func TestRoom_HandshakeStartsOnce(t *testing.T) {
	room, clients, _, _ := newTestRoom(t)

	// Every participant got the handshake request with the shared token
	for _, c := range clients {
		msg := c.LastOfType(protocol.MsgSendACK)
		assert.NotNil(t, msg)
		payload, err := protocol.ParsePayload[protocol.SendACKPayload](msg)
		assert.NoError(t, err)
		assert.Equal(t, room.Token, payload.RespawnToken)
		assert.Equal(t, room.Code, c.RoomCode)
	}

	// Duplicate acks from the same player do not count
	room.HandleAck("p1")
	room.HandleAck("p1")
	room.HandleAck("p2")
	room.HandleAck("p3")
	assert.Equal(t, types.RoomStateAwaitingAck, room.State())
	assert.Equal(t, 0, clients[0].CountType(protocol.MsgGotoGame))

	// Fourth distinct ack fires Goto-Game exactly once and starts the machine
	room.HandleAck("p4")
	assert.Equal(t, types.RoomStateStarted, room.State())
	for _, c := range clients {
		assert.Equal(t, 1, c.CountType(protocol.MsgGotoGame))
		assert.Equal(t, 1, c.CountType(protocol.MsgPickChit))
	}

	// Late acks change nothing
	room.HandleAck("p1")
	assert.Equal(t, 1, clients[0].CountType(protocol.MsgGotoGame))
}

func TestRoom_ClientTSEcho(t *testing.T) {
	room, clients, _, _ := newTestRoom(t)
	ackAll(room, clients)

	room.HandleClientTS("p1", &protocol.ClientTSPayload{ServerTime: 100, ClientTime: 200})

	msg := clients[0].LastOfType(protocol.MsgServerACK)
	assert.NotNil(t, msg)
	payload, err := protocol.ParsePayload[protocol.ServerACKPayload](msg)
	assert.NoError(t, err)
	assert.Equal(t, int64(200), payload.ClientTime)
	assert.NotZero(t, payload.ServerTime)
}

func TestRoom_OfflineHaltsAndGates(t *testing.T) {
	room, clients, _, _ := newTestRoom(t)
	ackAll(room, clients)

	room.MarkOffline("p2")
	assert.True(t, room.AnyHalted())

	// Everyone else is told who dropped and for how long they may return
	for i, c := range clients {
		if c.ID == "p2" {
			continue
		}
		msg := c.LastOfType(protocol.MsgDisconnected)
		assert.NotNil(t, msg, "client %d", i)
		payload, err := protocol.ParsePayload[protocol.DisconnectedPayload](msg)
		assert.NoError(t, err)
		assert.Equal(t, "p2", payload.PlayerID)
		assert.Equal(t, 300, payload.Timeout)
	}

	// Gameplay is frozen while anyone is halted
	before := clients[0].CountType(protocol.MsgChitID)
	room.HandleGameMessage("p1", protocol.MustNewMessage(protocol.MsgPickChit, protocol.PickChitPayload{Slot: 0}))
	assert.Equal(t, before, clients[0].CountType(protocol.MsgChitID))

	// Second offline does not reset the destroy timer
	room.MarkOffline("p3")
	assert.True(t, room.AnyHalted())
}

func TestRoom_RespawnValidation(t *testing.T) {
	room, clients, _, _ := newTestRoom(t)
	ackAll(room, clients)
	room.MarkOffline("p2")

	comeback := &MockClient{ID: "conn-9", Name: "Guest"}

	// Wrong token is rejected
	assert.False(t, room.HandleRespawn(comeback, "p2", "wrong-token"))

	// A participant who never dropped cannot be adopted
	assert.False(t, room.HandleRespawn(comeback, "p1", room.Token))

	// Valid respawn rewires the participant
	assert.True(t, room.HandleRespawn(comeback, "p2", room.Token))
	assert.Equal(t, "p2", comeback.ID)
	assert.Equal(t, "Player2", comeback.Name)
	assert.Equal(t, room.Code, comeback.RoomCode)
	assert.False(t, room.AnyHalted())

	// The returner gets a snapshot, the others a Re-Joined notice
	assert.Equal(t, 1, comeback.CountType(protocol.MsgRenderGame))
	assert.Equal(t, 1, clients[0].CountType(protocol.MsgReJoined))

	// Gameplay stays frozen until the snapshot is confirmed
	before := clients[0].CountType(protocol.MsgChitID)
	room.HandleGameMessage("p1", protocol.MustNewMessage(protocol.MsgPickChit, protocol.PickChitPayload{Slot: 0}))
	assert.Equal(t, before, clients[0].CountType(protocol.MsgChitID))

	room.HandleRendered("p2")
	assert.Equal(t, 1, clients[0].CountType(protocol.MsgReStart))

	room.HandleGameMessage("p1", protocol.MustNewMessage(protocol.MsgPickChit, protocol.PickChitPayload{Slot: 0}))
	assert.Equal(t, before+1, clients[0].CountType(protocol.MsgChitID))
}

func TestRoom_RespawnAfterFinishRejected(t *testing.T) {
	room, clients, _, registry := newTestRoom(t)
	ackAll(room, clients)

	room.Finish(&protocol.GameEndsPayload{Reason: "complete"})
	assert.Equal(t, 0, registry.ActiveCount())

	comeback := &MockClient{ID: "conn-9", Name: "Guest"}
	assert.False(t, room.HandleRespawn(comeback, "p2", room.Token))
}

func TestRoom_QuitEndsGame(t *testing.T) {
	room, clients, srv, registry := newTestRoom(t)
	ackAll(room, clients)

	room.HandleQuit("p1")
	assert.Equal(t, 1, clients[0].CountType(protocol.MsgQuitSuccess))
	assert.Equal(t, 1, clients[1].CountType(protocol.MsgQuit))
	assert.Equal(t, 0, clients[0].CountType(protocol.MsgQuit))

	// After the grace period the game is force-ended with reason "quit"
	assert.Eventually(t, func() bool {
		return clients[1].CountType(protocol.MsgGameEnds) == 1
	}, 3*time.Second, 50*time.Millisecond)

	msg := clients[1].LastOfType(protocol.MsgGameEnds)
	payload, err := protocol.ParsePayload[protocol.GameEndsPayload](msg)
	assert.NoError(t, err)
	assert.Equal(t, "quit", payload.Reason)
	assert.Len(t, payload.Results, 4)

	assert.Equal(t, 0, registry.ActiveCount())
	assert.Equal(t, types.StatusIdle, srv.statusOf("p2"))
	assert.Empty(t, clients[1].RoomCode)
}

func TestRoom_FinishIsIdempotent(t *testing.T) {
	room, clients, _, _ := newTestRoom(t)
	ackAll(room, clients)

	room.Finish(&protocol.GameEndsPayload{Reason: "complete"})
	room.Finish(&protocol.GameEndsPayload{Reason: "timeout"})

	for _, c := range clients {
		assert.Equal(t, 1, c.CountType(protocol.MsgGameEnds))
	}
}

func TestComputeRespawnToken_Unique(t *testing.T) {
	ids := []string{"p1", "p2", "p3", "p4"}
	t1 := computeRespawnToken(ids)
	t2 := computeRespawnToken(ids)
	assert.NotEmpty(t, t1)
	// Random factor keeps tokens unique across rooms with the same members
	assert.NotEqual(t, t1, t2)
}
