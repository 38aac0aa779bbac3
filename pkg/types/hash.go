package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

type Hash [32]byte

func (h Hash) String() string {
	return base58.Encode(h[:])
}

func (h Hash) Equals(other Hash) bool {
	return h == other
}

func HashFromBase58(s string) (Hash, error) {
	var h Hash
	data, err := base58.Decode(s)
	if err != nil {
		return h, err
	}
	if len(data) != 32 {
		return h, fmt.Errorf("invalid hash length")
	}
	copy(h[:], data)
	return h, nil
}

// Blockhash 近期区块哈希，作为交易的新鲜度凭证：进入序列化消息并参与签名，
// 过期后同一消息无法再被账本接受。
type Blockhash [32]byte

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

func (b Blockhash) Equals(other Blockhash) bool {
	return b == other
}

func (b Blockhash) IsZero() bool {
	return b == Blockhash{}
}

// TryBlockhashFromBase58 解析 base58 字符串为 Blockhash，失败时返回 error
func TryBlockhashFromBase58(s string) (Blockhash, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return Blockhash{}, fmt.Errorf("failed to decode base58 blockhash %q: %w", s, err)
	}
	if len(data) != 32 {
		return Blockhash{}, fmt.Errorf("invalid blockhash length: got %d, want 32, input=%q", len(data), s)
	}
	var b Blockhash
	copy(b[:], data)
	return b, nil
}

func BlockhashFromBase58(s string) Blockhash {
	b, err := TryBlockhashFromBase58(s)
	if err != nil {
		panic(err)
	}
	return b
}
