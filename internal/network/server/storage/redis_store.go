package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKey = "party:leaderboard" // 总积分榜 zset
	playerKeyFmt   = "party:player:%s"   // 玩家战绩 hash
	playerKeyTTL   = 30 * 24 * time.Hour // 不活跃玩家的战绩保留期
)

// ResultStore 比赛结果的 Redis 持久化
type ResultStore struct {
	rdb *redis.Client
}

// NewResultStore 创建结果存储
func NewResultStore(rdb *redis.Client) *ResultStore {
	return &ResultStore{rdb: rdb}
}

// RecordResult 记录一局的结果：累加积分榜并更新玩家战绩
func (s *ResultStore) RecordResult(ctx context.Context, playerID, playerName string, points, rank int) error {
	key := fmt.Sprintf(playerKeyFmt, playerID)

	pipe := s.rdb.TxPipeline()
	pipe.ZIncrBy(ctx, leaderboardKey, float64(points), playerID)
	pipe.HSet(ctx, key, "name", playerName)
	pipe.HIncrBy(ctx, key, "games", 1)
	pipe.HIncrBy(ctx, key, "points", int64(points))
	if rank == 1 {
		pipe.HIncrBy(ctx, key, "wins", 1)
	}
	pipe.Expire(ctx, key, playerKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("记录比赛结果失败: %w", err)
	}
	return nil
}

// PlayerEntry 积分榜条目
type PlayerEntry struct {
	PlayerID string `json:"player_id"`
	Points   int    `json:"points"`
}

// TopPlayers 积分榜前 N 名
func (s *ResultStore) TopPlayers(ctx context.Context, n int) ([]PlayerEntry, error) {
	zs, err := s.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取积分榜失败: %w", err)
	}
	entries := make([]PlayerEntry, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		entries = append(entries, PlayerEntry{PlayerID: id, Points: int(z.Score)})
	}
	return entries, nil
}

// PlayerStats 玩家战绩
type PlayerStats struct {
	Name   string `redis:"name" json:"name"`
	Games  int    `redis:"games" json:"games"`
	Wins   int    `redis:"wins" json:"wins"`
	Points int    `redis:"points" json:"points"`
}

// GetPlayerStats 读取玩家战绩，未入库的玩家返回零值
func (s *ResultStore) GetPlayerStats(ctx context.Context, playerID string) (*PlayerStats, error) {
	var stats PlayerStats
	key := fmt.Sprintf(playerKeyFmt, playerID)
	if err := s.rdb.HGetAll(ctx, key).Scan(&stats); err != nil {
		return nil, fmt.Errorf("读取玩家战绩失败: %w", err)
	}
	return &stats, nil
}
