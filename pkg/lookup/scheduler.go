package lookup

import (
	"errors"
	"fmt"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/pkg/tx"
	"tx-sender-sol/pkg/types"
)

// DefaultMaxEntriesPerStep 单步扩表的地址数上限。
// 每个地址占 32 字节载荷，过大的分片会把扩表交易本身顶到体积上限。
const DefaultMaxEntriesPerStep = 20

var (
	// ErrTableFull 追加后将超过表容量
	ErrTableFull = errors.New("lookup: table capacity exceeded")

	// ErrNoAuthority 表权限已销毁，无法再变更
	ErrNoAuthority = errors.New("lookup: table authority has been revoked")

	// ErrWrongAuthority 调用方不是表的权限账户
	ErrWrongAuthority = errors.New("lookup: authority mismatch")
)

// MaintenanceStep 一步维护操作，意图上对应一笔独立交易
type MaintenanceStep struct {
	Label        string // create+extend / extend
	Instructions []tx.Instruction
}

// MaintenancePlan 表维护计划。步骤必须按序提交：建表步骤先于后续扩表。
type MaintenancePlan struct {
	TableAddress types.Pubkey
	Bump         uint8 // 仅建新表时有效
	CreatesTable bool
	Added        []types.Pubkey
	Steps        []MaintenanceStep
}

// Empty 计划不包含任何链上操作
func (p *MaintenancePlan) Empty() bool {
	return len(p.Steps) == 0
}

// SchedulerConfig 调度参数
type SchedulerConfig struct {
	MaxEntriesPerStep int // 单步扩表地址数，<=0 取默认值
}

// Scheduler 把建议地址集合转化为分步的建表/扩表指令序列
type Scheduler struct {
	maxPerStep int
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	maxPerStep := cfg.MaxEntriesPerStep
	if maxPerStep <= 0 {
		maxPerStep = DefaultMaxEntriesPerStep
	}
	return &Scheduler{maxPerStep: maxPerStep}
}

// PlanMaintenance 规划把 proposal 中的地址纳入查找表所需的操作。
//
// existing 为 nil 时建新表：表地址按 (authority, recentSlot) 推导，
// 建表指令与第一片扩表合并为一步。existing 非空时只做增量扩表，
// 已在表中的地址自动跳过。追加后超容量、权限不符都返回错误。
func (s *Scheduler) PlanMaintenance(authority, payer types.Pubkey, recentSlot uint64,
	proposal []types.Pubkey, existing *TableAccount) (*MaintenancePlan, error) {

	var tableAddr types.Pubkey
	var bump uint8
	var existingCount int
	creates := existing == nil

	known := make(map[types.Pubkey]struct{})
	if existing != nil {
		if existing.Authority == nil {
			return nil, fmt.Errorf("%w: table %s", ErrNoAuthority, existing.Address)
		}
		if *existing.Authority != authority {
			return nil, fmt.Errorf("%w: table %s owned by %s", ErrWrongAuthority, existing.Address, existing.Authority)
		}
		tableAddr = existing.Address
		existingCount = len(existing.Addresses)
		for _, addr := range existing.Addresses {
			known[addr] = struct{}{}
		}
	}

	// 去重：跳过表内已有与 proposal 内部重复的地址
	added := make([]types.Pubkey, 0, len(proposal))
	for _, addr := range proposal {
		if _, ok := known[addr]; ok {
			continue
		}
		known[addr] = struct{}{}
		added = append(added, addr)
	}

	if len(added) == 0 {
		// 没有新地址时不值得建表，也无需扩表
		return &MaintenancePlan{TableAddress: tableAddr, Added: nil}, nil
	}
	if existingCount+len(added) > consts.MaxLookupTableEntries {
		return nil, fmt.Errorf("%w: %d existing + %d new (max %d)",
			ErrTableFull, existingCount, len(added), consts.MaxLookupTableEntries)
	}

	if creates {
		derived, derivedBump, err := DeriveTableAddress(authority, recentSlot)
		if err != nil {
			return nil, err
		}
		tableAddr = derived
		bump = derivedBump
	}

	var steps []MaintenanceStep
	for start := 0; start < len(added); start += s.maxPerStep {
		end := start + s.maxPerStep
		if end > len(added) {
			end = len(added)
		}
		extend, err := ExtendTableInstruction(tableAddr, authority, payer, added[start:end])
		if err != nil {
			return nil, err
		}

		if creates && start == 0 {
			create := CreateTableInstruction(tableAddr, authority, payer, recentSlot, bump)
			steps = append(steps, MaintenanceStep{
				Label:        "create+extend",
				Instructions: []tx.Instruction{create, extend},
			})
			continue
		}
		steps = append(steps, MaintenanceStep{
			Label:        "extend",
			Instructions: []tx.Instruction{extend},
		})
	}

	return &MaintenancePlan{
		TableAddress: tableAddr,
		Bump:         bump,
		CreatesTable: creates,
		Added:        added,
		Steps:        steps,
	}, nil
}
