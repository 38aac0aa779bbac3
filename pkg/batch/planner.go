package batch

import (
	"errors"
	"fmt"
	"sort"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/pkg/tx"
	"tx-sender-sol/pkg/types"
	"tx-sender-sol/pkg/utils"
)

// ErrJobTooLarge 单个任务即使独占一笔交易也超出上限，无法规划。
var ErrJobTooLarge = errors.New("batch: job exceeds single-transaction limits")

// Strategy 打包顺序策略。涉及排序的策略均为稳定排序，同序任务保持到达顺序。
type Strategy uint8

const (
	// ArrivalOrder 按任务到达顺序打包，不重排。
	ArrivalOrder Strategy = iota
	// PriorityFirst 优先级高者先打包（Priority 降序）。
	PriorityFirst
	// ComputeMinimizing 计算量小者先打包，降低单批计算量波动。
	ComputeMinimizing
)

// Job 一个待打包任务：一组指令及其预估资源占用。
type Job struct {
	ID           string
	Instructions []tx.Instruction
	ComputeUnits uint32 // 预估计算单元，0 表示未估算，按账本默认预算计
	Priority     int    // 仅 PriorityFirst 使用，大者优先
	Idempotent   bool   // 非幂等任务在结果歧义窗口内不允许重发
}

// AccountCount 该任务触达的去重地址数（跨指令合并，含目标程序）。
func (j Job) AccountCount() int {
	seen := make(map[types.Pubkey]struct{}, len(j.Instructions)*4)
	for _, ins := range j.Instructions {
		seen[ins.ProgramID] = struct{}{}
		for _, m := range ins.Accounts {
			seen[m.Pubkey] = struct{}{}
		}
	}
	return len(seen)
}

// Limits 单笔交易的打包上限。零值字段取协议默认。
type Limits struct {
	MaxComputeUnits  uint32 // 单批计算单元上限，默认 1_400_000
	MaxAccounts      int    // 单批账户数上限，默认静态表上限 64
	ReservedAccounts int    // 为付费者与预算程序预留的槽位，默认 2
}

const defaultReservedAccounts = 2

func (l Limits) normalized() Limits {
	if l.MaxComputeUnits == 0 {
		l.MaxComputeUnits = consts.MaxComputeUnitsPerTx
	}
	if l.MaxAccounts <= 0 {
		l.MaxAccounts = consts.MaxStaticAccountKeys
	}
	if l.ReservedAccounts <= 0 {
		l.ReservedAccounts = defaultReservedAccounts
	}
	return l
}

// PlannedBatch 已封批的任务组及资源占用合计。
// 账户数为各任务之和的保守估计，编译期跨任务去重后只会更小。
type PlannedBatch struct {
	Jobs         []Job
	AccountCount int
	ComputeUnits uint32
	AtCapacity   bool // 计算单元占用超过上限的 90%，调用方可据此在提交前预警
}

// Instructions 按任务顺序串接批内全部指令，供编译为一笔交易。
func (b PlannedBatch) Instructions() []tx.Instruction {
	total := 0
	for _, j := range b.Jobs {
		total += len(j.Instructions)
	}
	out := make([]tx.Instruction, 0, total)
	for _, j := range b.Jobs {
		out = append(out, j.Instructions...)
	}
	return out
}

// Idempotent 批内任务全部幂等时为真；含非幂等任务的批不得在歧义窗口内重发。
func (b PlannedBatch) Idempotent() bool {
	for _, j := range b.Jobs {
		if !j.Idempotent {
			return false
		}
	}
	return true
}

// Plan 一次打包规划的结果，生成后不再变更。
type Plan struct {
	Batches []PlannedBatch
}

// JobCount 规划内任务总数。
func (p *Plan) JobCount() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b.Jobs)
	}
	return n
}

// BuildPlan 将任务按策略排序后贪心装箱：当前批放得下就放入，
// 放不下则封批并以溢出任务开启新批。首次命中式装箱，O(n) 规划时间，
// 不追求最优装箱。任何一条任务单独成批仍超限时返回 ErrJobTooLarge。
func BuildPlan(jobs []Job, strategy Strategy, limits Limits) (*Plan, error) {
	limits = limits.normalized()
	if len(jobs) == 0 {
		return &Plan{}, nil
	}

	ordered := orderJobs(jobs, strategy)
	available := limits.MaxAccounts - limits.ReservedAccounts

	// 账户数统计是纯 CPU 的逐任务去重，任务多时并行预计算
	accountCounts := utils.ParallelMap(ordered, planWorkers(len(ordered)), func(j Job) int {
		return j.AccountCount()
	})

	var (
		batches []PlannedBatch
		cur     PlannedBatch
	)
	seal := func() {
		if len(cur.Jobs) == 0 {
			return
		}
		cur.AtCapacity = uint64(cur.ComputeUnits)*10 > uint64(limits.MaxComputeUnits)*9
		batches = append(batches, cur)
		cur = PlannedBatch{}
	}

	for i, job := range ordered {
		compute := effectiveCompute(job)
		accounts := accountCounts[i]

		if compute > limits.MaxComputeUnits {
			return nil, fmt.Errorf("job %s: compute %d > ceiling %d: %w",
				job.ID, compute, limits.MaxComputeUnits, ErrJobTooLarge)
		}
		if accounts > available {
			return nil, fmt.Errorf("job %s: accounts %d > available %d: %w",
				job.ID, accounts, available, ErrJobTooLarge)
		}

		// 任一维度放不下即封批，溢出任务进入下一批
		if len(cur.Jobs) > 0 &&
			(cur.ComputeUnits+compute > limits.MaxComputeUnits ||
				cur.AccountCount+accounts > available) {
			seal()
		}
		cur.Jobs = append(cur.Jobs, job)
		cur.ComputeUnits += compute
		cur.AccountCount += accounts
	}
	seal()

	return &Plan{Batches: batches}, nil
}

// orderJobs 按策略返回新的任务序列，不修改入参切片。
func orderJobs(jobs []Job, strategy Strategy) []Job {
	ordered := make([]Job, len(jobs))
	copy(ordered, jobs)
	switch strategy {
	case PriorityFirst:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Priority > ordered[j].Priority
		})
	case ComputeMinimizing:
		sort.SliceStable(ordered, func(i, j int) bool {
			return effectiveCompute(ordered[i]) < effectiveCompute(ordered[j])
		})
	}
	return ordered
}

// effectiveCompute 未显式估算的任务按账本默认预算参与装箱。
func effectiveCompute(j Job) uint32 {
	if j.ComputeUnits == 0 {
		return consts.DefaultComputeUnitLimit
	}
	return j.ComputeUnits
}

// planWorkers 小任务量时顺序统计即可，起协程反而更慢
func planWorkers(n int) int {
	if n < 64 {
		return 1
	}
	return consts.CpuCount + 2
}
