package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tx-sender-sol/pkg/tx"
	"tx-sender-sol/pkg/types"
)

func seedPubkey(seed byte) types.Pubkey {
	var p types.Pubkey
	for i := range p {
		p[i] = seed
	}
	return p
}

// 测试提案排序：频次降序、同频次按首次出现先后，重复调用结果一致
func TestSession_ProposeOrdering(t *testing.T) {
	s := NewSession(0)
	a, b, c := seedPubkey(1), seedPubkey(2), seedPubkey(3)

	s.Observe(a)       // a 首次出现最早
	s.Observe(b, b)    // b 频次最高
	s.Observe(c)       // c 与 a 同频，但出现晚
	s.Observe(b)       // b: 3 次

	want := []types.Pubkey{b, a, c}
	got := s.Propose(0)
	assert.Equal(t, want, got)

	// 重复调用结果逐项一致
	for i := 0; i < 5; i++ {
		assert.Equal(t, want, s.Propose(0), "第 %d 次调用结果应一致", i)
	}

	// limit 截断
	assert.Equal(t, []types.Pubkey{b, a}, s.Propose(2))

	assert.Equal(t, uint64(3), s.Count(b))
	assert.Equal(t, uint64(0), s.Count(seedPubkey(9)))
}

// 测试快照导出：排序与 Propose 一致，携带频次与首见序号
func TestSession_Snapshot(t *testing.T) {
	s := NewSession(0)
	a, b := seedPubkey(1), seedPubkey(2)

	s.Observe(a)
	s.Observe(b, b)

	stats := s.Snapshot()
	require.Len(t, stats, 2)
	assert.Equal(t, b, stats[0].Addr)
	assert.Equal(t, uint64(2), stats[0].Count)
	assert.Equal(t, a, stats[1].Addr)
	assert.Equal(t, uint64(1), stats[1].Count)
	assert.Less(t, stats[1].FirstSeen, stats[0].FirstSeen, "a 比 b 先出现")

	// 快照与提案次序一致
	prop := s.Propose(0)
	require.Len(t, prop, len(stats))
	for i, st := range stats {
		assert.Equal(t, prop[i], st.Addr)
	}
}

// 测试容量上限：满员后新地址被忽略，已跟踪地址仍累加
func TestSession_Capacity(t *testing.T) {
	s := NewSession(2)
	a, b, c := seedPubkey(1), seedPubkey(2), seedPubkey(3)

	s.Observe(a, b)
	s.Observe(c) // 容量已满，忽略
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, uint64(0), s.Count(c))

	s.Observe(a)
	assert.Equal(t, uint64(2), s.Count(a), "已跟踪地址不受容量限制")

	s.Reset()
	assert.Equal(t, 0, s.Len())
	s.Observe(c)
	assert.Equal(t, uint64(1), s.Count(c), "重置后恢复跟踪新地址")
}

// 测试从已编译消息提取候选地址：签名者与被调用程序被排除
func TestSession_ObserveMessage(t *testing.T) {
	payer := seedPubkey(1)
	program := seedPubkey(2)
	plain1, plain2 := seedPubkey(3), seedPubkey(4)

	ins := []tx.Instruction{{
		ProgramID: program,
		Accounts: []tx.AccountMeta{
			tx.WritableMeta(payer, true),
			tx.WritableMeta(plain1, false),
			tx.Meta(plain2),
		},
	}}
	msg, err := tx.CompileMessage(payer, ins, types.Blockhash{9}, nil)
	require.NoError(t, err)

	s := NewSession(0)
	s.ObserveMessage(msg)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, uint64(1), s.Count(plain1))
	assert.Equal(t, uint64(1), s.Count(plain2))
	assert.Equal(t, uint64(0), s.Count(payer), "签名者不可入表")
	assert.Equal(t, uint64(0), s.Count(program), "被调用程序不可入表")
}
