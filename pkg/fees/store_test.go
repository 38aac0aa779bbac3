package fees

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRedisAddr = "127.0.0.1:6379"

// 创建测试用的 Redis 客户端，本机无 Redis 时跳过
func createTestRedis(t *testing.T) *redis.Client {
	conn, err := net.DialTimeout("tcp", testRedisAddr, 200*time.Millisecond)
	if err != nil {
		t.Skipf("Redis not reachable at %s: %v", testRedisAddr, err)
	}
	_ = conn.Close()
	return redis.NewClient(&redis.Options{Addr: testRedisAddr})
}

// 测试状态快照的 Redis 存取往返
func TestStore_SaveLoad_RealRedis(t *testing.T) {
	rdb := createTestRedis(t)
	defer rdb.Close()

	store := NewStore(rdb)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	network := "test-" + time.Now().Format("20060102150405")

	// 不存在的键返回空而不是错误
	snaps, err := store.Load(ctx, network)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	// 写入后读回
	key := testKey(TierUrgent)
	e := NewEstimator(Config{})
	e.RecordOutcome(key, Sample{Latency: time.Second, Outcome: OutcomeTimedOut, PriceUsed: 80_000})

	want := e.Snapshot()
	require.NoError(t, store.Save(ctx, network, want))

	got, err := store.Load(ctx, network)
	require.NoError(t, err)
	assert.Equal(t, want, got, "快照应完整还原")

	// 恢复到新实例后建议价一致
	fresh := NewEstimator(Config{})
	fresh.Restore(got)
	assert.Equal(t, e.Suggest(key), fresh.Suggest(key))

	// 清理
	rdb.Del(ctx, store.getKey(network))
}
