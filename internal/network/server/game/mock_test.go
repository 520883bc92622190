package game

import (
	"sync"

	"github.com/palemoky/party-games/internal/config"
	"github.com/palemoky/party-games/internal/network/server/types"
	"github.com/palemoky/party-games/internal/protocol"
)

type MockClient struct {
	ID       string
	Name     string
	RoomCode string

	mu       sync.Mutex
	messages []*protocol.Message
}

func (m *MockClient) GetID() string {
	return m.ID
}

func (m *MockClient) GetName() string {
	return m.Name
}

func (m *MockClient) GetRoom() string {
	return m.RoomCode
}

func (m *MockClient) SetRoom(roomCode string) {
	m.RoomCode = roomCode
}

func (m *MockClient) SetIdentity(playerID, name string) {
	m.ID = playerID
	m.Name = name
}

func (m *MockClient) SendMessage(msg *protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *MockClient) Close() {
	// No-op for mock
}

// CountType counts received messages of the given type.
func (m *MockClient) CountType(t protocol.MessageType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Type == t {
			n++
		}
	}
	return n
}

// LastOfType returns the most recent message of the given type, or nil.
func (m *MockClient) LastOfType(t protocol.MessageType) *protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Type == t {
			return m.messages[i]
		}
	}
	return nil
}

type mockSession struct {
	id     string
	name   string
	room   string
	status types.PlayerStatus
}

func (s *mockSession) GetPlayerID() string           { return s.id }
func (s *mockSession) GetPlayerName() string         { return s.name }
func (s *mockSession) GetToken() string              { return "mock-token" }
func (s *mockSession) GetRoom() string               { return s.room }
func (s *mockSession) GetStatus() types.PlayerStatus { return s.status }

type mockSessionManager struct {
	mu       sync.Mutex
	sessions map[string]*mockSession
}

func newMockSessionManager() *mockSessionManager {
	return &mockSessionManager{sessions: make(map[string]*mockSession)}
}

func (sm *mockSessionManager) CreateSession(playerID, playerName string) types.SessionInterface {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s := &mockSession{id: playerID, name: playerName, status: types.StatusIdle}
	sm.sessions[playerID] = s
	return s
}

func (sm *mockSessionManager) GetSession(playerID string) types.SessionInterface {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[playerID]; ok {
		return s
	}
	return nil
}

func (sm *mockSessionManager) CanReconnect(token, playerID string) bool { return true }

func (sm *mockSessionManager) SetOnline(playerID string)  {}
func (sm *mockSessionManager) SetOffline(playerID string) {}

func (sm *mockSessionManager) SetRoom(playerID, roomCode string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[playerID]; ok {
		s.room = roomCode
	}
}

func (sm *mockSessionManager) DeleteSession(playerID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, playerID)
}

func (sm *mockSessionManager) setStatus(playerID string, status types.PlayerStatus) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[playerID]; ok {
		s.status = status
	}
}

// mockServer implements types.ServerContext for lobby and room tests.
type mockServer struct {
	cfg      *config.GameConfig
	sessions *mockSessionManager

	mu       sync.Mutex
	statuses map[string]types.PlayerStatus
}

func newMockServer() *mockServer {
	return &mockServer{
		cfg: &config.GameConfig{
			HeartbeatWindow:  12,
			SelectionTimeout: 60,
			TimerResync:      60,
			RoundResetDelay:  60,
			DestroyWindow:    5,
			ReconnectGrace:   5,
			QuitGrace:        1,
			RoundsPerGame:    5,
			SessionIdle:      30,
		},
		sessions: newMockSessionManager(),
		statuses: make(map[string]types.PlayerStatus),
	}
}

func (s *mockServer) GetSessionManager() types.SessionManagerInterface { return s.sessions }
func (s *mockServer) GetLobby() types.LobbyInterface                   { return nil }
func (s *mockServer) GetRoomRegistry() types.RoomRegistryInterface     { return nil }
func (s *mockServer) GetResultStore() types.ResultStoreInterface       { return nil }
func (s *mockServer) GetGameConfig() types.GameConfigInterface         { return s.cfg }
func (s *mockServer) GetClientByID(id string) types.ClientInterface    { return nil }

func (s *mockServer) RegisterClient(id string, client types.ClientInterface) {}
func (s *mockServer) UnregisterClient(id string)                             {}

func (s *mockServer) SetPlayerStatus(playerID string, status types.PlayerStatus) {
	s.mu.Lock()
	s.statuses[playerID] = status
	s.mu.Unlock()
	s.sessions.setStatus(playerID, status)
}

func (s *mockServer) statusOf(playerID string) types.PlayerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[playerID]
}
