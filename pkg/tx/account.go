package tx

import (
	"fmt"

	"tx-sender-sol/pkg/types"
)

// AccountMeta 描述一次操作对某账户的访问方式。
// 同一地址在多个操作中出现时权限取并集：任一处要求签名/可写，合并结果即要求签名/可写。
type AccountMeta struct {
	Pubkey     types.Pubkey // 账户地址
	IsSigner   bool         // 本次访问是否要求该账户签名
	IsWritable bool         // 本次访问是否修改该账户
}

// Meta 构造只读、无签名要求的账户引用
func Meta(addr types.Pubkey) AccountMeta {
	return AccountMeta{Pubkey: addr}
}

// WritableMeta 构造可写账户引用
func WritableMeta(addr types.Pubkey, signer bool) AccountMeta {
	return AccountMeta{Pubkey: addr, IsSigner: signer, IsWritable: true}
}

// SignerMeta 构造只读签名账户引用
func SignerMeta(addr types.Pubkey) AccountMeta {
	return AccountMeta{Pubkey: addr, IsSigner: true}
}

// Merge 合并同一地址的两个账户引用，标志位取逻辑或。
// 地址不同是调用方错误，返回 ErrAccountMismatch。
func Merge(a, b AccountMeta) (AccountMeta, error) {
	if a.Pubkey != b.Pubkey {
		return AccountMeta{}, fmt.Errorf("%w: %s vs %s", ErrAccountMismatch, a.Pubkey, b.Pubkey)
	}
	return AccountMeta{
		Pubkey:     a.Pubkey,
		IsSigner:   a.IsSigner || b.IsSigner,
		IsWritable: a.IsWritable || b.IsWritable,
	}, nil
}
