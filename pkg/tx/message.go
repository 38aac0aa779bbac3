package tx

import (
	"fmt"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/pkg/types"
)

// MessageHeader 三个计数描述静态账户表的权限布局（只覆盖静态表，不含查找表解析部分）：
// - NumRequiredSignatures：表头部需要签名的账户数
// - NumReadonlySignedAccounts：签名账户中只读的个数（排在签名段尾部）
// - NumReadonlyUnsignedAccounts：非签名账户中只读的个数（排在整表尾部）
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction 账户引用已替换为合并索引空间下标的操作
type CompiledInstruction struct {
	ProgramIDIndex uint8   // 程序在静态表中的下标（程序不可经查找表解析）
	AccountIndexes []uint8 // 各账户在合并索引空间中的下标，保持操作声明顺序
	Data           []byte
}

// TableLookup 对单张地址查找表的引用：槽位下标指向表内容，不携带地址本身
type TableLookup struct {
	TableAddress    types.Pubkey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// AddressTable 已解析的链上查找表内容，由调用方提供给编译器
type AddressTable struct {
	Address types.Pubkey
	Entries []types.Pubkey
}

// Message v0 版本化消息。
//
// 静态账户表按四段排列，段内保持首次出现顺序：
//  1. 签名 + 可写（付费者恒为第一位）
//  2. 签名 + 只读
//  3. 非签名 + 可写
//  4. 非签名 + 只读
//
// 合并索引空间 = 静态表 ++ 各表可写槽（按表顺序）++ 各表只读槽（按表顺序），
// 操作中的账户下标一律指向该空间。
type Message struct {
	Header          MessageHeader
	AccountKeys     []types.Pubkey
	RecentBlockhash types.Blockhash
	Instructions    []CompiledInstruction
	TableLookups    []TableLookup
}

// RequiredSigners 返回必须签名的静态账户（表头 NumRequiredSignatures 个）
func (m *Message) RequiredSigners() []types.Pubkey {
	n := int(m.Header.NumRequiredSignatures)
	if n > len(m.AccountKeys) {
		n = len(m.AccountKeys)
	}
	out := make([]types.Pubkey, n)
	copy(out, m.AccountKeys[:n])
	return out
}

// LookupAddressCount 查找表解析出的地址总数（可写 + 只读）
func (m *Message) LookupAddressCount() int {
	n := 0
	for _, tl := range m.TableLookups {
		n += len(tl.WritableIndexes) + len(tl.ReadonlyIndexes)
	}
	return n
}

// ResolveTables 按表内容展开合并账户列表：静态表 ++ 可写解析段 ++ 只读解析段。
// 引用的表缺失或槽位越界时报错。
func (m *Message) ResolveTables(tables []AddressTable) ([]types.Pubkey, error) {
	byAddr := make(map[types.Pubkey]AddressTable, len(tables))
	for _, t := range tables {
		byAddr[t.Address] = t
	}

	combined := make([]types.Pubkey, 0, len(m.AccountKeys)+m.LookupAddressCount())
	combined = append(combined, m.AccountKeys...)

	resolve := func(tl TableLookup, slots []uint8) error {
		table, ok := byAddr[tl.TableAddress]
		if !ok {
			return fmt.Errorf("tx: lookup table %s not provided", tl.TableAddress)
		}
		for _, slot := range slots {
			if int(slot) >= len(table.Entries) {
				return fmt.Errorf("tx: slot %d out of range for table %s (%d entries)",
					slot, tl.TableAddress, len(table.Entries))
			}
			combined = append(combined, table.Entries[slot])
		}
		return nil
	}

	for _, tl := range m.TableLookups {
		if err := resolve(tl, tl.WritableIndexes); err != nil {
			return nil, err
		}
	}
	for _, tl := range m.TableLookups {
		if err := resolve(tl, tl.ReadonlyIndexes); err != nil {
			return nil, err
		}
	}
	return combined, nil
}

// compiledAccount 编译期账户收集条目
type compiledAccount struct {
	meta    AccountMeta
	invoked bool // 是否作为程序被调用过（程序必须留在静态表）
	order   int  // 首次出现序号
}

// accountCollector 按首次出现顺序收集账户，重复出现时权限取并集
type accountCollector struct {
	byKey map[types.Pubkey]*compiledAccount
	seen  []types.Pubkey
}

func newAccountCollector(capacity int) *accountCollector {
	return &accountCollector{
		byKey: make(map[types.Pubkey]*compiledAccount, capacity),
		seen:  make([]types.Pubkey, 0, capacity),
	}
}

func (c *accountCollector) add(meta AccountMeta, invoked bool) {
	if acc, ok := c.byKey[meta.Pubkey]; ok {
		acc.meta.IsSigner = acc.meta.IsSigner || meta.IsSigner
		acc.meta.IsWritable = acc.meta.IsWritable || meta.IsWritable
		acc.invoked = acc.invoked || invoked
		return
	}
	c.byKey[meta.Pubkey] = &compiledAccount{meta: meta, invoked: invoked, order: len(c.seen)}
	c.seen = append(c.seen, meta.Pubkey)
}

// pendingLookup 编译期的查找表路由中间态：同时记录地址与槽位
type pendingLookup struct {
	table         AddressTable
	writableAddrs []types.Pubkey
	writableSlots []uint8
	readonlyAddrs []types.Pubkey
	readonlySlots []uint8
}

// CompileMessage 将操作列表编译为 v0 消息。
//
// 收集顺序：付费者最先，随后逐操作记录程序地址、再记录其账户引用；
// 同一地址只记录首次出现位置，权限逐次并集。程序地址按只读非签名收集，
// 除非其它操作以更高权限引用它。
//
// 非签名、未被调用、且出现在某张给定表中的地址会被路由到查找表引用
// （取第一张命中的表），其余留在静态表。签名者与被调用程序永不路由。
func CompileMessage(payer types.Pubkey, instructions []Instruction, recent types.Blockhash, tables []AddressTable) (*Message, error) {
	if payer.IsZero() {
		return nil, fmt.Errorf("tx: payer must be set")
	}
	for _, t := range tables {
		if len(t.Entries) > consts.MaxLookupTableEntries {
			return nil, fmt.Errorf("%w: table %s has %d entries", ErrTableTooLarge, t.Address, len(t.Entries))
		}
	}

	collector := newAccountCollector(1 + len(instructions)*4)
	collector.add(AccountMeta{Pubkey: payer, IsSigner: true, IsWritable: true}, false)
	for _, ins := range instructions {
		collector.add(AccountMeta{Pubkey: ins.ProgramID}, true)
		for _, m := range ins.Accounts {
			collector.add(m, false)
		}
	}

	// 四段划分，段内保持首次出现顺序
	var signerW, signerR, plainW, plainR []*compiledAccount
	for _, key := range collector.seen {
		acc := collector.byKey[key]
		switch {
		case acc.meta.IsSigner && acc.meta.IsWritable:
			signerW = append(signerW, acc)
		case acc.meta.IsSigner:
			signerR = append(signerR, acc)
		case acc.meta.IsWritable:
			plainW = append(plainW, acc)
		default:
			plainR = append(plainR, acc)
		}
	}

	// 查找表路由：非签名、未被调用、表中存在的地址移出静态表
	pending := make([]*pendingLookup, len(tables))
	route := func(acc *compiledAccount, writable bool) bool {
		if acc.invoked {
			return false
		}
		for ti, table := range tables {
			for slot, entry := range table.Entries {
				if entry != acc.meta.Pubkey {
					continue
				}
				if pending[ti] == nil {
					pending[ti] = &pendingLookup{table: table}
				}
				p := pending[ti]
				if writable {
					p.writableAddrs = append(p.writableAddrs, entry)
					p.writableSlots = append(p.writableSlots, uint8(slot))
				} else {
					p.readonlyAddrs = append(p.readonlyAddrs, entry)
					p.readonlySlots = append(p.readonlySlots, uint8(slot))
				}
				return true
			}
		}
		return false
	}

	staticW := make([]*compiledAccount, 0, len(plainW))
	for _, acc := range plainW {
		if !route(acc, true) {
			staticW = append(staticW, acc)
		}
	}
	staticR := make([]*compiledAccount, 0, len(plainR))
	for _, acc := range plainR {
		if !route(acc, false) {
			staticR = append(staticR, acc)
		}
	}

	// 防御校验：签名者与被调用程序绝不允许出现在路由结果中
	for _, p := range pending {
		if p == nil {
			continue
		}
		for _, addrs := range [][]types.Pubkey{p.writableAddrs, p.readonlyAddrs} {
			for _, addr := range addrs {
				acc := collector.byKey[addr]
				if acc.meta.IsSigner {
					return nil, fmt.Errorf("%w: %s", ErrSignerInLookupTable, addr)
				}
				if acc.invoked {
					return nil, fmt.Errorf("%w: %s", ErrProgramInLookupTable, addr)
				}
			}
		}
	}

	staticKeys := make([]types.Pubkey, 0, len(signerW)+len(signerR)+len(staticW)+len(staticR))
	for _, group := range [][]*compiledAccount{signerW, signerR, staticW, staticR} {
		for _, acc := range group {
			staticKeys = append(staticKeys, acc.meta.Pubkey)
		}
	}
	if len(staticKeys) > consts.MaxStaticAccountKeys {
		return nil, fmt.Errorf("%w: %d static keys (max %d)", ErrTooManyAccounts, len(staticKeys), consts.MaxStaticAccountKeys)
	}

	// 合并索引空间：静态表 ++ 各表可写槽 ++ 各表只读槽
	index := make(map[types.Pubkey]int, len(collector.seen))
	for i, k := range staticKeys {
		index[k] = i
	}
	next := len(staticKeys)
	for _, p := range pending {
		if p == nil {
			continue
		}
		for _, addr := range p.writableAddrs {
			index[addr] = next
			next++
		}
	}
	for _, p := range pending {
		if p == nil {
			continue
		}
		for _, addr := range p.readonlyAddrs {
			index[addr] = next
			next++
		}
	}
	if next > consts.MaxCombinedAccounts {
		return nil, fmt.Errorf("%w: %d combined accounts (max %d)", ErrAccountIndexOverflow, next, consts.MaxCombinedAccounts)
	}

	compiled := make([]CompiledInstruction, 0, len(instructions))
	for _, ins := range instructions {
		ci := CompiledInstruction{
			ProgramIDIndex: uint8(index[ins.ProgramID]),
			AccountIndexes: make([]uint8, 0, len(ins.Accounts)),
			Data:           append([]byte(nil), ins.Data...),
		}
		for _, m := range ins.Accounts {
			ci.AccountIndexes = append(ci.AccountIndexes, uint8(index[m.Pubkey]))
		}
		compiled = append(compiled, ci)
	}

	lookups := make([]TableLookup, 0, len(pending))
	for _, p := range pending {
		if p == nil {
			continue
		}
		lookups = append(lookups, TableLookup{
			TableAddress:    p.table.Address,
			WritableIndexes: p.writableSlots,
			ReadonlyIndexes: p.readonlySlots,
		})
	}

	return &Message{
		Header: MessageHeader{
			NumRequiredSignatures:       uint8(len(signerW) + len(signerR)),
			NumReadonlySignedAccounts:   uint8(len(signerR)),
			NumReadonlyUnsignedAccounts: uint8(len(staticR)),
		},
		AccountKeys:     staticKeys,
		RecentBlockhash: recent,
		Instructions:    compiled,
		TableLookups:    lookups,
	}, nil
}
