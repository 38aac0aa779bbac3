package consts

import "tx-sender-sol/pkg/types"

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	// Programs
	SystemProgramStr             = "11111111111111111111111111111111"
	ComputeBudgetProgramIdStr    = "ComputeBudget111111111111111111111111111111"
	AddressLookupTableProgramStr = "AddressLookupTab1e1111111111111111111111111"
	TokenProgramStr              = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	MemoProgramStr               = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
)

var (
	// 特殊语义地址
	InvalidAddress = types.Pubkey{ // 表示无效地址（全 0xFF）
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	}

	// Programs
	SystemProgram             = types.PubkeyFromBase58(SystemProgramStr)
	ComputeBudgetProgram      = types.PubkeyFromBase58(ComputeBudgetProgramIdStr)
	AddressLookupTableProgram = types.PubkeyFromBase58(AddressLookupTableProgramStr)
	TokenProgram              = types.PubkeyFromBase58(TokenProgramStr)
	MemoProgram               = types.PubkeyFromBase58(MemoProgramStr)
)
