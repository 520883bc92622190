package game

import (
	"log"
	"sync"

	"github.com/palemoky/party-games/internal/network/server/types"
	"github.com/palemoky/party-games/internal/protocol"
)

// GameKind 一种游戏的匹配约束
type GameKind struct {
	MinPlayers int
	MaxPlayers int
	FixedSize  bool // 是否只允许满编开局
}

// Kinds 支持的游戏种类
var Kinds = map[string]GameKind{
	"rmcs": {MinPlayers: 4, MaxPlayers: 4, FixedSize: true},
	"bgo":  {MinPlayers: 2, MaxPlayers: 4, FixedSize: false},
	"ttt":  {MinPlayers: 2, MaxPlayers: 2, FixedSize: true},
}

// searchEntry 玩家当前的匹配请求
type searchEntry struct {
	gameID    string
	partySize int
}

// Lobby 匹配大厅，按（游戏种类，人数）分桶
type Lobby struct {
	server   types.ServerContext
	registry *RoomRegistry
	buckets  map[string]map[int][]types.ClientInterface
	entries  map[string]searchEntry // playerID -> 所在桶
	mu       sync.Mutex
}

// NewLobby 创建匹配大厅
func NewLobby(s types.ServerContext, registry *RoomRegistry) *Lobby {
	buckets := make(map[string]map[int][]types.ClientInterface, len(Kinds))
	for id := range Kinds {
		buckets[id] = make(map[int][]types.ClientInterface)
	}
	return &Lobby{
		server:   s,
		registry: registry,
		buckets:  buckets,
		entries:  make(map[string]searchEntry),
	}
}

// Request 处理匹配请求，返回是否接受
// 拒绝条件：未知游戏、人数越界、定编游戏人数不符、玩家已在匹配中。
func (l *Lobby) Request(client types.ClientInterface, gameID string, partySize int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	kind, known := Kinds[gameID]
	if !known {
		return false
	}
	if partySize < kind.MinPlayers || partySize > kind.MaxPlayers {
		return false
	}
	if kind.FixedSize && partySize != kind.MaxPlayers {
		return false
	}
	if _, searching := l.entries[client.GetID()]; searching {
		return false
	}

	l.entries[client.GetID()] = searchEntry{gameID: gameID, partySize: partySize}
	l.server.SetPlayerStatus(client.GetID(), types.StatusSearching)

	bucket := l.buckets[gameID][partySize]

	// 通知桶内已有玩家来了新对手
	joinedMsg := protocol.MustNewMessage(protocol.MsgNewOpponent, protocol.NewOpponentPayload{
		PlayerID:   client.GetID(),
		PlayerName: client.GetName(),
	})
	for _, waiting := range bucket {
		waiting.SendMessage(joinedMsg)
	}

	bucket = append(bucket, client)
	l.buckets[gameID][partySize] = bucket

	// 给新玩家同步当前队列成员
	client.SendMessage(protocol.MustNewMessage(protocol.MsgInLobby, l.lobbySnapshot(gameID, partySize)))

	log.Printf("🔍 玩家 %s 加入匹配队列 (%s, %d 人)，当前 %d/%d",
		client.GetName(), gameID, partySize, len(bucket), partySize)

	l.tryMatch(gameID, partySize)
	return true
}

// Cancel 取消匹配，不在队列时为 no-op
func (l *Lobby) Cancel(client types.ClientInterface) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, searching := l.entries[client.GetID()]
	if !searching {
		return
	}
	delete(l.entries, client.GetID())

	bucket := l.buckets[entry.gameID][entry.partySize]
	for i, c := range bucket {
		if c.GetID() == client.GetID() {
			l.buckets[entry.gameID][entry.partySize] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}

	l.server.SetPlayerStatus(client.GetID(), types.StatusIdle)

	// 给剩余玩家刷新队列成员
	remainMsg := protocol.MustNewMessage(protocol.MsgInLobby, l.lobbySnapshot(entry.gameID, entry.partySize))
	for _, waiting := range l.buckets[entry.gameID][entry.partySize] {
		waiting.SendMessage(remainMsg)
	}

	log.Printf("🔍 玩家 %s 离开匹配队列 (%s, %d 人)", client.GetName(), entry.gameID, entry.partySize)
}

// tryMatch 尝试匹配，桶内人数凑齐时整桶取出建房
// 桶的变更与凑齐检查在同一把锁内完成，任何玩家不会被重复匹配。
func (l *Lobby) tryMatch(gameID string, partySize int) {
	bucket := l.buckets[gameID][partySize]
	if len(bucket) != partySize {
		return
	}

	// 整桶取出并清空监视列表
	matched := bucket
	l.buckets[gameID][partySize] = nil
	for _, c := range matched {
		delete(l.entries, c.GetID())
	}

	room, err := l.registry.CreateRoom(gameID, matched)
	if err != nil {
		// 建房失败，按原顺序放回队列
		log.Printf("匹配建房失败: %v", err)
		l.buckets[gameID][partySize] = append(matched, l.buckets[gameID][partySize]...)
		for _, c := range matched {
			l.entries[c.GetID()] = searchEntry{gameID: gameID, partySize: partySize}
		}
		return
	}

	log.Printf("🎮 匹配成功！房间 %s (%s)，%d 名玩家", room.Code, gameID, len(matched))
}

// lobbySnapshot 构建桶内成员列表
func (l *Lobby) lobbySnapshot(gameID string, partySize int) protocol.InLobbyPayload {
	bucket := l.buckets[gameID][partySize]
	players := make([]protocol.PlayerInfo, 0, len(bucket))
	for _, c := range bucket {
		players = append(players, protocol.PlayerInfo{
			ID:   c.GetID(),
			Name: c.GetName(),
		})
	}
	return protocol.InLobbyPayload{
		GameID:    gameID,
		PartySize: partySize,
		Players:   players,
	}
}

// QueueLength 获取指定桶的长度
func (l *Lobby) QueueLength(gameID string, partySize int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets[gameID][partySize])
}
