package lookup

import (
	"fmt"
	"math"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/pkg/encoding"
	"tx-sender-sol/pkg/tx"
	"tx-sender-sol/pkg/types"
)

// 链上查找表账户布局：56 字节元数据头 + 32 字节地址紧密排列。
// 头部 = u32 账户类型判别值（1 = 已初始化）+ u64 停用槽位 + u64 最近扩表槽位
// + u8 扩表起始下标 + 1 字节 authority 标志 + 32 字节 authority + u16 填充。
const (
	tableMetaSize        = 56
	tableStateLookup     = 1
	neverDeactivatedSlot = math.MaxUint64
)

// TableAccount 解析后的查找表账户状态
type TableAccount struct {
	Address           types.Pubkey
	DeactivationSlot  uint64
	LastExtendedSlot  uint64
	LastExtendedStart uint8
	Authority         *types.Pubkey // nil 表示权限已销毁（表不可再变更）
	Addresses         []types.Pubkey
}

// IsActive 表仍可被交易引用（未进入停用流程）
func (t *TableAccount) IsActive() bool {
	return t.DeactivationSlot == neverDeactivatedSlot
}

// AsAddressTable 转换为编译器可用的表内容
func (t *TableAccount) AsAddressTable() tx.AddressTable {
	return tx.AddressTable{Address: t.Address, Entries: t.Addresses}
}

// ParseTableAccount 解析链上查找表账户数据。
// 任何长度或判别值不符都报错；地址区长度必须是 32 的整数倍。
func ParseTableAccount(addr types.Pubkey, data []byte) (*TableAccount, error) {
	if len(data) < tableMetaSize {
		return nil, fmt.Errorf("lookup: table account %s too short: %d bytes", addr, len(data))
	}
	r := encoding.NewReader(data)

	state, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if state != tableStateLookup {
		return nil, fmt.Errorf("lookup: account %s is not an initialized table (state=%d)", addr, state)
	}

	deactivationSlot, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	lastExtendedSlot, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	lastExtendedStart, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	authorityTag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	authorityBytes, err := r.ReadBytes(consts.PubkeyLength)
	if err != nil {
		return nil, err
	}
	var authority *types.Pubkey
	if authorityTag != 0 {
		p, err := types.PubkeyFromBytes(authorityBytes)
		if err != nil {
			return nil, err
		}
		authority = &p
	}

	// 2 字节填充
	if _, err := r.ReadBytes(2); err != nil {
		return nil, err
	}

	rest := r.Remaining()
	if rest%consts.PubkeyLength != 0 {
		return nil, fmt.Errorf("lookup: table %s address region not 32-aligned: %d bytes", addr, rest)
	}
	count := rest / consts.PubkeyLength
	if count > consts.MaxLookupTableEntries {
		return nil, fmt.Errorf("%w: %d entries in %s", tx.ErrTableTooLarge, count, addr)
	}

	addrs := make([]types.Pubkey, count)
	for i := range addrs {
		b, err := r.ReadBytes(consts.PubkeyLength)
		if err != nil {
			return nil, err
		}
		copy(addrs[i][:], b)
	}

	return &TableAccount{
		Address:           addr,
		DeactivationSlot:  deactivationSlot,
		LastExtendedSlot:  lastExtendedSlot,
		LastExtendedStart: lastExtendedStart,
		Authority:         authority,
		Addresses:         addrs,
	}, nil
}
