package lookup

import (
	"fmt"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/pkg/encoding"
	"tx-sender-sol/pkg/tx"
	"tx-sender-sol/pkg/types"
)

// 地址查找表程序的指令判别值（u32 小端）
const (
	ixCreateTable     = 0
	ixFreezeTable     = 1
	ixExtendTable     = 2
	ixDeactivateTable = 3
	ixCloseTable      = 4
)

// CreateTableInstruction 建表指令。
// recentSlot 与 bump 必须与 DeriveTableAddress 的推导输入一致，链上会复核。
func CreateTableInstruction(table, authority, payer types.Pubkey, recentSlot uint64, bump uint8) tx.Instruction {
	data := encoding.AppendU32(nil, ixCreateTable)
	data = encoding.AppendU64(data, recentSlot)
	data = append(data, bump)

	return tx.Instruction{
		ProgramID: consts.AddressLookupTableProgram,
		Accounts: []tx.AccountMeta{
			tx.WritableMeta(table, false),
			tx.SignerMeta(authority),
			tx.WritableMeta(payer, true),
			tx.Meta(consts.SystemProgram),
		},
		Data: data,
	}
}

// ExtendTableInstruction 扩表指令：载荷为 u64 地址数 + 拼接的 32 字节地址。
// 单条指令的地址数受交易体积约束，由调度器分片控制。
func ExtendTableInstruction(table, authority, payer types.Pubkey, addrs []types.Pubkey) (tx.Instruction, error) {
	if len(addrs) == 0 {
		return tx.Instruction{}, fmt.Errorf("lookup: extend with no addresses")
	}
	data := encoding.AppendU32(nil, ixExtendTable)
	data = encoding.AppendU64(data, uint64(len(addrs)))
	for _, addr := range addrs {
		data = append(data, addr[:]...)
	}

	return tx.Instruction{
		ProgramID: consts.AddressLookupTableProgram,
		Accounts: []tx.AccountMeta{
			tx.WritableMeta(table, false),
			tx.SignerMeta(authority),
			tx.WritableMeta(payer, true),
			tx.Meta(consts.SystemProgram),
		},
		Data: data,
	}, nil
}

// FreezeTableInstruction 冻结表，此后不可再扩表或改权限
func FreezeTableInstruction(table, authority types.Pubkey) tx.Instruction {
	return tx.Instruction{
		ProgramID: consts.AddressLookupTableProgram,
		Accounts: []tx.AccountMeta{
			tx.WritableMeta(table, false),
			tx.SignerMeta(authority),
		},
		Data: encoding.AppendU32(nil, ixFreezeTable),
	}
}

// DeactivateTableInstruction 停用表，冷却期结束后方可关闭
func DeactivateTableInstruction(table, authority types.Pubkey) tx.Instruction {
	return tx.Instruction{
		ProgramID: consts.AddressLookupTableProgram,
		Accounts: []tx.AccountMeta{
			tx.WritableMeta(table, false),
			tx.SignerMeta(authority),
		},
		Data: encoding.AppendU32(nil, ixDeactivateTable),
	}
}

// CloseTableInstruction 关闭已停用的表并将租金退给 recipient
func CloseTableInstruction(table, authority, recipient types.Pubkey) tx.Instruction {
	return tx.Instruction{
		ProgramID: consts.AddressLookupTableProgram,
		Accounts: []tx.AccountMeta{
			tx.WritableMeta(table, false),
			tx.SignerMeta(authority),
			tx.WritableMeta(recipient, false),
		},
		Data: encoding.AppendU32(nil, ixCloseTable),
	}
}
