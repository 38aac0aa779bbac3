package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Signature 64 字节 ed25519 签名。零值表示"未签名"占位，序列化时原样写出。
type Signature [64]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (s Signature) Equals(other Signature) bool {
	return s == other
}

func (s Signature) IsZero() bool {
	return s == Signature{}
}

func (s Signature) Bytes() []byte {
	return s[:]
}

// TrySignatureFromBase58 解析 base58 字符串为 Signature，失败时返回 error
func TrySignatureFromBase58(str string) (Signature, error) {
	data, err := base58.Decode(str)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to decode base58 signature %q: %w", str, err)
	}
	if len(data) != 64 {
		return Signature{}, fmt.Errorf("invalid signature length: got %d, want 64, input=%q", len(data), str)
	}
	var s Signature
	copy(s[:], data)
	return s, nil
}

func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != 64 {
		return Signature{}, fmt.Errorf("invalid signature length: got %d, want 64", len(b))
	}
	var s Signature
	copy(s[:], b)
	return s, nil
}
