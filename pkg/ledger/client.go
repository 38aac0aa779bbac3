package ledger

import (
	"context"

	"tx-sender-sol/pkg/types"
)

// State 一次提交在账本侧的观测状态。
type State uint8

const (
	// StatePending 已进入网络但尚未确认
	StatePending State = iota
	// StateConfirmed 已确认上链
	StateConfirmed
	// StateFailed 账本明确报告失败（含程序错误与 blockhash 过期）
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SimulationResult 预演执行的结果。Err 为空表示执行成功。
type SimulationResult struct {
	Err           string
	Logs          []string
	UnitsConsumed uint64
}

// OK 预演是否成功
func (r SimulationResult) OK() bool { return r.Err == "" }

// SubmissionStatus 状态查询结果。Reason 仅在 StateFailed 时有值。
type SubmissionStatus struct {
	State  State
	Slot   uint64
	Reason string
}

// Client 提交管线消费的账本访问能力。实现方负责网络传输与超时；
// 此处所有方法都以 context 承载调用方超时与取消。
type Client interface {
	// LatestBlockhash 获取最新 blockhash 及其 slot（slot 供查找表派生使用）
	LatestBlockhash(ctx context.Context) (types.Blockhash, uint64, error)

	// Simulate 预演交易字节，返回账本报告的执行结果
	Simulate(ctx context.Context, txBytes []byte) (SimulationResult, error)

	// Submit 提交已签名交易字节，返回交易签名作为查询句柄
	Submit(ctx context.Context, txBytes []byte) (types.Signature, error)

	// Status 查询一笔已提交交易的状态
	Status(ctx context.Context, sig types.Signature) (SubmissionStatus, error)

	// AccountData 读取账户数据；账户不存在时返回 (nil, nil)
	AccountData(ctx context.Context, addr types.Pubkey) ([]byte, error)

	// IsBlockhashValid 查询 blockhash 是否仍在有效窗口内，
	// 用于区分「结果歧义」与「确定已过期」
	IsBlockhashValid(ctx context.Context, hash types.Blockhash) (bool, error)
}
