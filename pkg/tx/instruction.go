package tx

import "tx-sender-sol/pkg/types"

// Instruction 一次程序调用：目标程序、账户引用列表与不透明数据。
// 构造后视为不可变，编译过程只读不改。
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// UniqueAccounts 返回该操作触达的去重地址数（含被调用程序），用于打包估算。
func (ins Instruction) UniqueAccounts() int {
	seen := map[types.Pubkey]struct{}{ins.ProgramID: {}}
	for _, m := range ins.Accounts {
		seen[m.Pubkey] = struct{}{}
	}
	return len(seen)
}
