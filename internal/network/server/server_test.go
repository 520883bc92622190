package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/palemoky/party-games/internal/network/server/storage"
)

func newStatsServer(t *testing.T) *Server {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &Server{resultStore: storage.NewResultStore(rdb)}
}

func TestServer_LeaderboardEndpoint(t *testing.T) {
	s := newStatsServer(t)
	ctx := context.Background()
	assert.NoError(t, s.resultStore.RecordResult(ctx, "p1", "Alice", 1000, 1))
	assert.NoError(t, s.resultStore.RecordResult(ctx, "p2", "Bob", 500, 2))

	rec := httptest.NewRecorder()
	s.handleLeaderboard(rec, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var entries []storage.PlayerEntry
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)
	assert.Equal(t, "p1", entries[0].PlayerID)
	assert.Equal(t, 1000, entries[0].Points)
}

func TestServer_LeaderboardPlayerStats(t *testing.T) {
	s := newStatsServer(t)
	ctx := context.Background()
	assert.NoError(t, s.resultStore.RecordResult(ctx, "p1", "Alice", 1000, 1))
	assert.NoError(t, s.resultStore.RecordResult(ctx, "p1", "Alice", 800, 2))

	rec := httptest.NewRecorder()
	s.handleLeaderboard(rec, httptest.NewRequest(http.MethodGet, "/leaderboard?player=p1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var stats storage.PlayerStats
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "Alice", stats.Name)
	assert.Equal(t, 2, stats.Games)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 1800, stats.Points)
}

func TestServer_LeaderboardEmpty(t *testing.T) {
	s := newStatsServer(t)

	rec := httptest.NewRecorder()
	s.handleLeaderboard(rec, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var entries []storage.PlayerEntry
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Empty(t, entries)
}
