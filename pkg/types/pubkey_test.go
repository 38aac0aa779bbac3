package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPubkeyStr    = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	testSystemStr    = "11111111111111111111111111111111"
	testBadBase58    = "0OIl+/=" // 含非 base58 字符
	testShortPayload = "2gsW"    // 合法 base58 但长度不足 32 字节
)

// 测试 base58 解析与 String 往返
func TestPubkeyFromBase58_RoundTrip(t *testing.T) {
	p, err := TryPubkeyFromBase58(testPubkeyStr)
	require.NoError(t, err)
	assert.Equal(t, testPubkeyStr, p.String(), "String 应还原原始 base58")

	// panic 版本与 Try 版本结果一致
	assert.Equal(t, p, PubkeyFromBase58(testPubkeyStr))
}

// 测试非法输入
func TestTryPubkeyFromBase58_Invalid(t *testing.T) {
	_, err := TryPubkeyFromBase58(testBadBase58)
	assert.Error(t, err, "非 base58 字符应返回错误")

	_, err = TryPubkeyFromBase58(testShortPayload)
	assert.Error(t, err, "长度不足 32 字节应返回错误")

	assert.Panics(t, func() { PubkeyFromBase58(testBadBase58) }, "panic 版本应 panic")
}

// 测试全零地址
func TestPubkey_IsZero(t *testing.T) {
	var zero Pubkey
	assert.True(t, zero.IsZero())

	p := PubkeyFromBase58(testPubkeyStr)
	assert.False(t, p.IsZero())

	// 系统程序地址 base58 为全 1，但字节为全零
	sys := PubkeyFromBase58(testSystemStr)
	assert.True(t, sys.IsZero(), "系统程序地址字节应为全零")
}

// 测试批量解析
func TestPubkeysFromBase58(t *testing.T) {
	keys := PubkeysFromBase58([]string{testPubkeyStr, testSystemStr})
	require.Len(t, keys, 2)
	assert.Equal(t, testPubkeyStr, keys[0].String())
}

// 测试字节构造
func TestPubkeyFromBytes(t *testing.T) {
	src := PubkeyFromBase58(testPubkeyStr)
	p, err := PubkeyFromBytes(src.Bytes())
	require.NoError(t, err)
	assert.Equal(t, src, p)

	_, err = PubkeyFromBytes(make([]byte, 31))
	assert.Error(t, err, "31 字节输入应返回错误")
}

// 测试 Blockhash 与 Signature 解析
func TestBlockhashAndSignature(t *testing.T) {
	bh, err := TryBlockhashFromBase58(testPubkeyStr) // 32 字节 payload 可复用
	require.NoError(t, err)
	assert.Equal(t, testPubkeyStr, bh.String())
	assert.False(t, bh.IsZero())

	_, err = TryBlockhashFromBase58(testShortPayload)
	assert.Error(t, err)

	var sigBytes [64]byte
	for i := range sigBytes {
		sigBytes[i] = byte(i)
	}
	sig, err := SignatureFromBytes(sigBytes[:])
	require.NoError(t, err)
	back, err := TrySignatureFromBase58(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, back, "签名 base58 往返应一致")

	var zeroSig Signature
	assert.True(t, zeroSig.IsZero())
	assert.False(t, sig.IsZero())
}
