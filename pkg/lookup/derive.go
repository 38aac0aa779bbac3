package lookup

import (
	"fmt"

	sdkcommon "github.com/blocto/solana-go-sdk/common"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/pkg/encoding"
	"tx-sender-sol/pkg/types"
)

// DeriveTableAddress 推导查找表的程序派生地址：
// 种子为 authority ‖ LE(recentSlot)，推导程序为地址查找表程序。
// 同一 (authority, slot) 组合恒得同一地址，bump 需随建表指令上链。
func DeriveTableAddress(authority types.Pubkey, recentSlot uint64) (types.Pubkey, uint8, error) {
	seeds := [][]byte{
		authority.Bytes(),
		encoding.AppendU64(nil, recentSlot),
	}
	pda, bump, err := sdkcommon.FindProgramAddress(
		seeds,
		sdkcommon.PublicKeyFromBytes(consts.AddressLookupTableProgram.Bytes()),
	)
	if err != nil {
		return types.Pubkey{}, 0, fmt.Errorf("lookup: derive table address for %s at slot %d: %w",
			authority, recentSlot, err)
	}
	addr, err := types.PubkeyFromBytes(pda.Bytes())
	if err != nil {
		return types.Pubkey{}, 0, err
	}
	return addr, bump, nil
}
