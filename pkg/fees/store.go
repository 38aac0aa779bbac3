package fees

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/near/borsh-go"
	"github.com/redis/go-redis/v9"

	"tx-sender-sol/pkg/types"
)

// Redis key 前缀与 TTL
const (
	statePrefix = "fees:state"
	stateTTL    = 24 * time.Hour
)

// KeySnapshot 单个 Key 的可持久化状态（borsh 编码）
type KeySnapshot struct {
	Network   string
	Program   [32]uint8
	Tier      uint8
	Current   uint64 // 当前建议价（微单位，四舍五入）
	LastPrice uint64
}

type stateSnapshot struct {
	Entries []KeySnapshot
}

// Snapshot 导出全部 Key 的当前状态，供跨进程温启动
func (e *Estimator) Snapshot() []KeySnapshot {
	var out []KeySnapshot
	for _, shard := range e.shards {
		shard.mu.Lock()
		for key, st := range shard.state {
			if st.current <= 0 {
				continue
			}
			out = append(out, KeySnapshot{
				Network:   key.Network,
				Program:   key.Program,
				Tier:      uint8(key.Tier),
				Current:   uint64(math.Round(st.current)),
				LastPrice: st.lastPrice,
			})
		}
		shard.mu.Unlock()
	}
	return out
}

// Restore 以快照恢复建议价。只恢复价格状态，样本窗口从零重新积累。
func (e *Estimator) Restore(snaps []KeySnapshot) {
	for _, snap := range snaps {
		key := Key{
			Network: snap.Network,
			Program: types.Pubkey(snap.Program),
			Tier:    Tier(snap.Tier),
		}
		shard := e.shardFor(key)
		shard.mu.Lock()
		st := e.stateFor(shard, key)
		st.current = float64(snap.Current)
		st.lastPrice = snap.LastPrice
		shard.mu.Unlock()
	}
}

// Store 估价状态的 Redis 持久化，按网络维度存取
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// getKey 构造 Redis key，按网络区分
func (s *Store) getKey(network string) string {
	return fmt.Sprintf("%s:%s", statePrefix, network)
}

// Save 持久化快照，覆盖旧值并刷新 TTL
func (s *Store) Save(ctx context.Context, network string, snaps []KeySnapshot) error {
	data, err := borsh.Serialize(stateSnapshot{Entries: snaps})
	if err != nil {
		return fmt.Errorf("fees: serialize state snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.getKey(network), data, stateTTL).Err(); err != nil {
		return fmt.Errorf("fees: save state to redis: %w", err)
	}
	return nil
}

// Load 读取快照；键不存在时返回空而不是错误
func (s *Store) Load(ctx context.Context, network string) ([]KeySnapshot, error) {
	data, err := s.rdb.Get(ctx, s.getKey(network)).Bytes()
	switch {
	case err == redis.Nil:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("fees: load state from redis: %w", err)
	}
	var snap stateSnapshot
	if err := borsh.Deserialize(&snap, data); err != nil {
		return nil, fmt.Errorf("fees: decode state snapshot: %w", err)
	}
	return snap.Entries, nil
}
