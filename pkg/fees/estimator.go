package fees

import (
	"math"
	"sync"
	"time"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/internal/utils"
)

// 估价默认参数
const (
	DefaultBaselinePrice    = 10_000 // 微单位/计算单元
	DefaultMinPrice         = 1_000
	DefaultMaxPrice         = 2_000_000
	DefaultWindowSize       = 32
	DefaultReferenceLatency = 800 * time.Millisecond

	// MinUnitLimit 建议计算单元的下限，防止窗口内全是极小消耗导致预算不足
	MinUnitLimit = 50_000

	// 失败后报价至少抬升到上次用价的该倍数
	failureBumpFactor = 1.35
	// 窗口全部确认时允许向下松动到当前建议的该倍数
	healthyEaseFactor = 0.95
	// 延迟因子的上下限
	latencyFactorMin = 0.5
	latencyFactorMax = 6.0
	// 非对称 EMA：上行快、下行慢
	alphaUp   = 0.35
	alphaDown = 0.15
	// 建议计算单元 = p90 消耗 × 安全余量
	unitSafetyMargin = 1.15

	shardCount = 16
)

// Config 估价器参数，零值字段取默认
type Config struct {
	BaselinePrice    uint64        // 基准价（微单位/计算单元）
	MinPrice         uint64        // 报价下限
	MaxPrice         uint64        // 报价上限
	WindowSize       int           // 滚动窗口样本数
	ReferenceLatency time.Duration // 延迟因子的参照耗时
}

func (c Config) withDefaults() Config {
	if c.BaselinePrice == 0 {
		c.BaselinePrice = DefaultBaselinePrice
	}
	if c.MinPrice == 0 {
		c.MinPrice = DefaultMinPrice
	}
	if c.MaxPrice == 0 {
		c.MaxPrice = DefaultMaxPrice
	}
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.ReferenceLatency <= 0 {
		c.ReferenceLatency = DefaultReferenceLatency
	}
	return c
}

// Estimator 自适应费用与计算单元估计。
// 状态按 Key 维度独立演化；分片锁避免高频程序之间互相拖慢。
type Estimator struct {
	cfg    Config
	shards [shardCount]*feeShard
}

type feeShard struct {
	mu    sync.Mutex
	state map[Key]*keyState
}

type keyState struct {
	samples []Sample // 环形窗口
	head    int
	full    bool

	current   float64 // EMA 维护的当前建议价
	lastPrice uint64  // 最近一次实际用价

	units     []uint64 // 计算单元消耗窗口
	unitsHead int
	unitsFull bool
}

func NewEstimator(cfg Config) *Estimator {
	e := &Estimator{cfg: cfg.withDefaults()}
	for i := range e.shards {
		e.shards[i] = &feeShard{state: make(map[Key]*keyState)}
	}
	return e
}

// shardFor 以程序地址哈希选分片：同一程序的状态互斥，不同程序大概率并行
func (e *Estimator) shardFor(key Key) *feeShard {
	return e.shards[utils.PartitionHashBytes(key.Program[:], shardCount)]
}

func (e *Estimator) stateFor(shard *feeShard, key Key) *keyState {
	st, ok := shard.state[key]
	if !ok {
		st = &keyState{
			samples: make([]Sample, 0, e.cfg.WindowSize),
			units:   make([]uint64, 0, e.cfg.WindowSize),
		}
		shard.state[key] = st
	}
	return st
}

// RecordOutcome 记录一次提交尝试的结果并推进该 Key 的建议价。
//
// 目标价 = 基准 × 层级倍率 × 延迟因子 × (1 + 3 × 健康惩罚)：
//   - 延迟因子 = clamp(窗口 p80 延迟 / 参照延迟, 0.5, 6.0)
//   - 健康惩罚 = clamp(1 - 确认率, 0, 1)
//
// 本次失败时目标价至少抬到 1.35 × 本次用价；窗口全确认时
// 目标价至多为当前建议的 0.95 倍，让报价能缓慢回落。
// 目标价经非对称 EMA（上行 0.35 / 下行 0.15）汇入当前建议并做区间钳制。
func (e *Estimator) RecordOutcome(key Key, sample Sample) {
	shard := e.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	st := e.stateFor(shard, key)
	st.push(sample, e.cfg.WindowSize)
	st.lastPrice = sample.PriceUsed

	window := st.window()
	p80 := utils.PercentileU64(latenciesOf(window), 80)
	health := healthOf(window)

	latencyFactor := utils.ClampF64(
		float64(p80)/float64(e.cfg.ReferenceLatency),
		latencyFactorMin, latencyFactorMax,
	)
	healthPenalty := utils.ClampF64(1-health, 0, 1)

	target := float64(e.cfg.BaselinePrice) * key.Tier.Multiplier() * latencyFactor * (1 + 3*healthPenalty)

	if sample.Outcome != OutcomeConfirmed {
		if bumped := failureBumpFactor * float64(sample.PriceUsed); target < bumped {
			target = bumped
		}
	} else if health == 1 && st.current > 0 {
		if eased := healthyEaseFactor * st.current; target > eased {
			target = eased
		}
	}

	if st.current == 0 {
		st.current = target
	} else {
		alpha := alphaDown
		if target > st.current {
			alpha = alphaUp
		}
		st.current += alpha * (target - st.current)
	}
	st.current = utils.ClampF64(st.current, float64(e.cfg.MinPrice), float64(e.cfg.MaxPrice))
}

// Suggest 返回该 Key 当前的建议报价（微单位/计算单元）。
// 没有任何状态时回落到层级默认：基准 × 层级倍率。
func (e *Estimator) Suggest(key Key) uint64 {
	shard := e.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if st, ok := shard.state[key]; ok && st.current > 0 {
		return uint64(math.Round(st.current))
	}
	return utils.ClampU64(
		uint64(math.Round(float64(e.cfg.BaselinePrice)*key.Tier.Multiplier())),
		e.cfg.MinPrice, e.cfg.MaxPrice,
	)
}

// Clamp 将外部产生的报价（如重试抬价）钳回配置区间
func (e *Estimator) Clamp(price uint64) uint64 {
	return utils.ClampU64(price, e.cfg.MinPrice, e.cfg.MaxPrice)
}

// LastPrice 最近一次记录的实际用价，无记录时为 0
func (e *Estimator) LastPrice(key Key) uint64 {
	shard := e.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if st, ok := shard.state[key]; ok {
		return st.lastPrice
	}
	return 0
}

// RecordUnitsConsumed 记录一次真实的计算单元消耗
func (e *Estimator) RecordUnitsConsumed(key Key, units uint64) {
	if units == 0 {
		return
	}
	shard := e.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	st := e.stateFor(shard, key)
	if len(st.units) < e.cfg.WindowSize {
		st.units = append(st.units, units)
		return
	}
	st.units[st.unitsHead] = units
	st.unitsHead = (st.unitsHead + 1) % e.cfg.WindowSize
	st.unitsFull = true
}

// SuggestUnitLimit 建议的计算单元上限：窗口 p90 消耗 × 1.15 安全余量，
// 钳制在 [MinUnitLimit, 协议单笔上限]。没有消耗记录时返回账本默认值。
func (e *Estimator) SuggestUnitLimit(key Key) uint32 {
	shard := e.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	st, ok := shard.state[key]
	if !ok || len(st.units) == 0 {
		return consts.DefaultComputeUnitLimit
	}
	p90 := utils.PercentileU64(st.units, 90)
	suggested := uint64(math.Ceil(float64(p90) * unitSafetyMargin))
	return uint32(utils.ClampU64(suggested, MinUnitLimit, consts.MaxComputeUnitsPerTx))
}

// TightenUnitLimit 按单次真实消耗推算预算：消耗 × 安全余量，钳入协议区间。
// 供调用方在模拟得到确切消耗后收紧单笔预算。
func TightenUnitLimit(consumed uint64) uint32 {
	suggested := uint64(math.Ceil(float64(consumed) * unitSafetyMargin))
	return uint32(utils.ClampU64(suggested, MinUnitLimit, consts.MaxComputeUnitsPerTx))
}

// push 写入环形窗口
func (st *keyState) push(s Sample, capacity int) {
	if len(st.samples) < capacity {
		st.samples = append(st.samples, s)
		return
	}
	st.samples[st.head] = s
	st.head = (st.head + 1) % capacity
	st.full = true
}

// window 当前窗口的全部样本（顺序无关，统计量对顺序不敏感）
func (st *keyState) window() []Sample {
	return st.samples
}

func latenciesOf(samples []Sample) []uint64 {
	out := make([]uint64, 0, len(samples))
	for _, s := range samples {
		if s.Latency > 0 {
			out = append(out, uint64(s.Latency))
		}
	}
	return out
}

func healthOf(samples []Sample) float64 {
	if len(samples) == 0 {
		return 1
	}
	confirmed := 0
	for _, s := range samples {
		if s.Outcome == OutcomeConfirmed {
			confirmed++
		}
	}
	return float64(confirmed) / float64(len(samples))
}
