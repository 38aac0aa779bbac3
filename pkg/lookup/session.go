package lookup

import (
	"sort"
	"sync"

	"tx-sender-sol/pkg/tx"
	"tx-sender-sol/pkg/types"
)

// DefaultSessionCapacity 会话可跟踪的不同地址数上限
const DefaultSessionCapacity = 2048

// Session 跟踪一段会话内候选地址的出现频次，为查找表维护提供依据。
// 只统计可被表解析的地址：签名者与被调用程序不会被观察进来。
// 并发安全；观察结果最终可见即可，不与任何提交强一致。
type Session struct {
	mu       sync.Mutex
	capacity int
	entries  map[types.Pubkey]*sessionEntry
	nextSeen int64
}

type sessionEntry struct {
	count     uint64
	firstSeen int64
}

func NewSession(capacity int) *Session {
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	return &Session{
		capacity: capacity,
		entries:  make(map[types.Pubkey]*sessionEntry, 64),
	}
}

// Observe 记录一批地址出现一次。
// 容量已满时忽略未见过的新地址（已跟踪地址仍正常累加），保证 O(1) 摊销成本。
func (s *Session) Observe(addrs ...types.Pubkey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, addr := range addrs {
		if e, ok := s.entries[addr]; ok {
			e.count++
			continue
		}
		if len(s.entries) >= s.capacity {
			continue
		}
		s.entries[addr] = &sessionEntry{count: 1, firstSeen: s.nextSeen}
		s.nextSeen++
	}
}

// ObserveMessage 从已编译消息中提取可表化地址：静态表中非签名、
// 未被任何操作调用的地址。已被路由进表引用的地址只有槽位下标，不再统计。
func (s *Session) ObserveMessage(msg *tx.Message) {
	if msg == nil {
		return
	}
	invoked := make(map[uint8]struct{}, len(msg.Instructions))
	for _, ins := range msg.Instructions {
		invoked[ins.ProgramIDIndex] = struct{}{}
	}

	var addrs []types.Pubkey
	for i := int(msg.Header.NumRequiredSignatures); i < len(msg.AccountKeys); i++ {
		if _, ok := invoked[uint8(i)]; ok {
			continue
		}
		addrs = append(addrs, msg.AccountKeys[i])
	}
	s.Observe(addrs...)
}

// Len 返回当前跟踪的不同地址数
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Count 返回某地址的累计出现次数，未跟踪时为 0
func (s *Session) Count(addr types.Pubkey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[addr]; ok {
		return e.count
	}
	return 0
}

// SessionStat 单个地址的会话统计快照
type SessionStat struct {
	Addr      types.Pubkey
	Count     uint64
	FirstSeen int64
}

// Snapshot 导出全部跟踪条目，排序规则与 Propose 一致，供巡检或落盘
func (s *Session) Snapshot() []SessionStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Propose 产出至多 limit 个建议入表地址：先按频次降序，频次相同按首次出现先后。
// 排序键完备，同一会话状态下重复调用结果逐字节一致。
func (s *Session) Propose(limit int) []types.Pubkey {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.sortedLocked()
	if limit <= 0 || limit > len(stats) {
		limit = len(stats)
	}
	out := make([]types.Pubkey, 0, limit)
	for _, st := range stats[:limit] {
		out = append(out, st.Addr)
	}
	return out
}

func (s *Session) sortedLocked() []SessionStat {
	out := make([]SessionStat, 0, len(s.entries))
	for addr, e := range s.entries {
		out = append(out, SessionStat{Addr: addr, Count: e.count, FirstSeen: e.firstSeen})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].FirstSeen < out[j].FirstSeen
	})
	return out
}

// Reset 清空会话统计
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[types.Pubkey]*sessionEntry, 64)
	s.nextSeen = 0
}
