package fees

import (
	"fmt"

	"github.com/near/borsh-go"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/pkg/tx"
)

// 计算预算程序的指令判别值（u8）
const (
	budgetIxUnitLimit = 2
	budgetIxUnitPrice = 3
)

type setUnitLimitPayload struct {
	Discriminator uint8
	Units         uint32
}

type setUnitPricePayload struct {
	Discriminator uint8
	MicroPrice    uint64
}

// SetComputeUnitLimit 申请本笔交易的计算单元上限。
// 超过协议单笔上限时报错而不是静默截断。
func SetComputeUnitLimit(units uint32) (tx.Instruction, error) {
	if units == 0 || units > consts.MaxComputeUnitsPerTx {
		return tx.Instruction{}, fmt.Errorf("fees: unit limit %d out of range (1..%d)", units, consts.MaxComputeUnitsPerTx)
	}
	data, err := borsh.Serialize(setUnitLimitPayload{Discriminator: budgetIxUnitLimit, Units: units})
	if err != nil {
		return tx.Instruction{}, fmt.Errorf("fees: serialize unit limit: %w", err)
	}
	return tx.Instruction{ProgramID: consts.ComputeBudgetProgram, Data: data}, nil
}

// SetComputeUnitPrice 设置每计算单元的附加报价（微单位）。
// 预算指令不触达任何账户，只有程序与载荷。
func SetComputeUnitPrice(microPrice uint64) (tx.Instruction, error) {
	data, err := borsh.Serialize(setUnitPricePayload{Discriminator: budgetIxUnitPrice, MicroPrice: microPrice})
	if err != nil {
		return tx.Instruction{}, fmt.Errorf("fees: serialize unit price: %w", err)
	}
	return tx.Instruction{ProgramID: consts.ComputeBudgetProgram, Data: data}, nil
}

// BudgetInstructions 按建议产出前置预算指令对：先限额后报价
func BudgetInstructions(unitLimit uint32, microPrice uint64) ([]tx.Instruction, error) {
	limit, err := SetComputeUnitLimit(unitLimit)
	if err != nil {
		return nil, err
	}
	price, err := SetComputeUnitPrice(microPrice)
	if err != nil {
		return nil, err
	}
	return []tx.Instruction{limit, price}, nil
}
