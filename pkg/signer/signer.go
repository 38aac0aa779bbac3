package signer

import (
	"context"

	"tx-sender-sol/pkg/types"
)

// Capabilities 签名方声明的能力集。管线在动用某项能力前先检查声明，
// 缺失时立即报错，不做任何可能改变交易语义的静默降级。
type Capabilities struct {
	// SupportsPartialSign 可以只为所需签名者的一个子集出签
	// （其余签名由调用方另行收集）
	SupportsPartialSign bool

	// SupportsFreshnessRefreshResign blockhash 刷新重建消息后可以重签
	SupportsFreshnessRefreshResign bool

	// SupportsFeePayerSwap 更换付费者重建消息后可以重签
	SupportsFeePayerSwap bool
}

// Signer 对编译后的消息字节出签。
type Signer interface {
	Capabilities() Capabilities

	// Sign 为 addrs 中本方掌握的地址出签，返回地址到签名的映射。
	// 允许只覆盖部分地址（调用方负责校验完整性）；
	// 一个都覆盖不了视为调用错误，返回 ErrNoKeyHeld。
	Sign(ctx context.Context, message []byte, addrs []types.Pubkey) (map[types.Pubkey]types.Signature, error)
}
