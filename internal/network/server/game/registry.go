package game

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/palemoky/party-games/internal/network/server/game/bingo"
	"github.com/palemoky/party-games/internal/network/server/game/rmcs"
	"github.com/palemoky/party-games/internal/network/server/game/ttt"
	"github.com/palemoky/party-games/internal/network/server/types"
)

// RoomRegistry 活跃房间注册表
type RoomRegistry struct {
	server types.ServerContext
	rooms  map[string]*Room
	mu     sync.RWMutex
}

// NewRoomRegistry 创建房间注册表
func NewRoomRegistry(s types.ServerContext) *RoomRegistry {
	return &RoomRegistry{
		server: s,
		rooms:  make(map[string]*Room),
	}
}

// CreateRoom 建房并装配对应的游戏状态机
func (rr *RoomRegistry) CreateRoom(gameID string, clients []types.ClientInterface) (*Room, error) {
	rr.mu.Lock()
	code := rr.generateCode()
	rr.mu.Unlock()

	room := NewRoom(rr.server, rr, code, gameID, clients)

	players := make([]types.PlayerData, 0, len(clients))
	for _, c := range clients {
		players = append(players, types.PlayerData{ID: c.GetID(), Name: c.GetName()})
	}

	machine, err := buildMachine(gameID, room, players)
	if err != nil {
		return nil, err
	}
	room.machine = machine

	rr.mu.Lock()
	rr.rooms[code] = room
	rr.mu.Unlock()

	room.beginHandshake()
	return room, nil
}

// buildMachine 按游戏种类装配状态机
func buildMachine(gameID string, room types.RoomContext, players []types.PlayerData) (types.Machine, error) {
	switch gameID {
	case "rmcs":
		return rmcs.NewMachine(room, players), nil
	case "bgo":
		return bingo.NewMachine(room, players), nil
	case "ttt":
		return ttt.NewMachine(room, players), nil
	default:
		return nil, fmt.Errorf("未知的游戏种类: %s", gameID)
	}
}

// Get 按房间号查找，未找到返回 nil
func (rr *RoomRegistry) Get(code string) types.RoomInterface {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	if room, ok := rr.rooms[code]; ok {
		return room
	}
	return nil
}

// Remove 从注册表移除房间
func (rr *RoomRegistry) Remove(code string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.rooms, code)
}

// PlayerOffline 把断线事件转给玩家所在的房间
func (rr *RoomRegistry) PlayerOffline(client types.ClientInterface) {
	code := client.GetRoom()
	if code == "" {
		return
	}
	rr.mu.RLock()
	room, ok := rr.rooms[code]
	rr.mu.RUnlock()
	if !ok {
		return
	}
	room.MarkOffline(client.GetID())
}

// ActiveCount 当前活跃房间数
func (rr *RoomRegistry) ActiveCount() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.rooms)
}

// generateCode 生成 6 位数字房间号，调用方需持有写锁
func (rr *RoomRegistry) generateCode() string {
	for {
		code := fmt.Sprintf("%06d", rand.Intn(1000000))
		if _, exists := rr.rooms[code]; !exists {
			return code
		}
	}
}
