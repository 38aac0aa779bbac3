package fees

import (
	"fmt"
	"time"

	"tx-sender-sol/pkg/types"
)

// Tier 紧急程度分层，决定基准价倍率
type Tier uint8

const (
	TierBackground Tier = iota // 后台任务，可慢
	TierNormal                 // 常规提交
	TierUrgent                 // 抢时效，如清算、套利
)

func (t Tier) String() string {
	switch t {
	case TierBackground:
		return "background"
	case TierNormal:
		return "normal"
	case TierUrgent:
		return "urgent"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Multiplier 该层级对基准价的放大倍数
func (t Tier) Multiplier() float64 {
	switch t {
	case TierUrgent:
		return 4
	case TierNormal:
		return 2
	default:
		return 1
	}
}

// Key 估价状态的维度：网络 × 目标程序 × 紧急层级。
// 目标程序是拥堵信号的主要来源，不同程序的账户争用互不相干。
type Key struct {
	Network string
	Program types.Pubkey
	Tier    Tier
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Network, k.Program, k.Tier)
}

// Outcome 一次提交尝试的最终去向
type Outcome uint8

const (
	OutcomeConfirmed Outcome = iota // 已确认
	OutcomeTimedOut                 // 确认窗口内未见结果
	OutcomeDropped                  // 新鲜度过期或被丢弃
)

// Sample 单次提交尝试的观测样本
type Sample struct {
	At        time.Time     // 观测时间
	Latency   time.Duration // 提交到确认的耗时（未确认则为等待耗时）
	Outcome   Outcome       //
	PriceUsed uint64        // 本次使用的每计算单元报价（微单位）
}
