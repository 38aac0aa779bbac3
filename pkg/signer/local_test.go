package signer

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tx-sender-sol/pkg/types"
)

func TestLocal_Generate(t *testing.T) {
	l := Generate(2)
	addrs := l.Addresses()
	require.Len(t, addrs, 2)
	assert.True(t, l.Holds(addrs[0]))
	assert.True(t, l.Holds(addrs[1]))
	assert.False(t, l.Holds(types.Pubkey{}), "不应持有未生成的地址")

	caps := l.Capabilities()
	assert.True(t, caps.SupportsPartialSign)
	assert.True(t, caps.SupportsFreshnessRefreshResign)
	assert.True(t, caps.SupportsFeePayerSwap)
}

func TestLocal_FromSeed(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}

	l1, err := FromSeed(seed)
	require.NoError(t, err)
	l2, err := FromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, l1.Addresses(), l2.Addresses(), "相同种子应派生相同地址")

	// 地址应与 ed25519 标准派生一致
	want := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	addr := l1.Addresses()[0]
	assert.Equal(t, []byte(want), addr.Bytes())
}

func TestLocal_Sign(t *testing.T) {
	l := Generate(1)
	addr := l.Addresses()[0]
	msg := []byte("message bytes to sign")

	sigs, err := l.Sign(context.Background(), msg, []types.Pubkey{addr})
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	// 签名可用标准库验证
	ok := ed25519.Verify(ed25519.PublicKey(addr.Bytes()), msg, sigs[addr].Bytes())
	assert.True(t, ok, "签名应通过 ed25519 验证")
}

func TestLocal_Sign_Partial(t *testing.T) {
	l := Generate(1)
	held := l.Addresses()[0]
	var other types.Pubkey
	other[0] = 0xEE

	// 未持有的地址跳过，持有的正常出签
	sigs, err := l.Sign(context.Background(), []byte("m"), []types.Pubkey{held, other})
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
	_, ok := sigs[other]
	assert.False(t, ok)

	// 一个都未持有：返回 ErrNoKeyHeld
	_, err = l.Sign(context.Background(), []byte("m"), []types.Pubkey{other})
	assert.ErrorIs(t, err, ErrNoKeyHeld)
}

func TestLocal_Sign_Invalid(t *testing.T) {
	l := Generate(1)
	addr := l.Addresses()[0]

	// 空消息拒签
	_, err := l.Sign(context.Background(), nil, []types.Pubkey{addr})
	assert.Error(t, err)

	// 已取消的 context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Sign(ctx, []byte("m"), []types.Pubkey{addr})
	assert.ErrorIs(t, err, context.Canceled)
}
