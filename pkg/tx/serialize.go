package tx

import (
	"fmt"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/pkg/encoding"
	"tx-sender-sol/pkg/types"
)

// Serialize 输出 v0 消息的线格式：
//
//	[版本标记 0x80][3 字节 header][compact-u16 账户数][32B 地址...]
//	[32B blockhash][compact-u16 操作数][操作...][compact-u16 表引用数][表引用...]
//
// 操作 = u8 程序下标 + compact-u16 账户下标数 + u8 下标... + compact-u16 数据长 + 数据。
// 表引用 = 32B 表地址 + compact-u16 可写槽数 + u8... + compact-u16 只读槽数 + u8...
func (m *Message) Serialize() ([]byte, error) {
	if len(m.AccountKeys) > consts.MaxStaticAccountKeys {
		return nil, fmt.Errorf("%w: %d static keys (max %d)", ErrTooManyAccounts, len(m.AccountKeys), consts.MaxStaticAccountKeys)
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, consts.MessageVersionPrefix)
	buf = append(buf,
		m.Header.NumRequiredSignatures,
		m.Header.NumReadonlySignedAccounts,
		m.Header.NumReadonlyUnsignedAccounts,
	)

	var err error
	if buf, err = encoding.AppendCompactU16(buf, len(m.AccountKeys)); err != nil {
		return nil, err
	}
	for _, key := range m.AccountKeys {
		buf = append(buf, key[:]...)
	}
	buf = append(buf, m.RecentBlockhash[:]...)

	if buf, err = encoding.AppendCompactU16(buf, len(m.Instructions)); err != nil {
		return nil, err
	}
	for _, ins := range m.Instructions {
		buf = append(buf, ins.ProgramIDIndex)
		if buf, err = encoding.AppendCompactBytes(buf, ins.AccountIndexes); err != nil {
			return nil, err
		}
		if buf, err = encoding.AppendCompactBytes(buf, ins.Data); err != nil {
			return nil, err
		}
	}

	if buf, err = encoding.AppendCompactU16(buf, len(m.TableLookups)); err != nil {
		return nil, err
	}
	for _, tl := range m.TableLookups {
		buf = append(buf, tl.TableAddress[:]...)
		if buf, err = encoding.AppendCompactBytes(buf, tl.WritableIndexes); err != nil {
			return nil, err
		}
		if buf, err = encoding.AppendCompactBytes(buf, tl.ReadonlyIndexes); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// DeserializeMessage 严格解析 v0 消息：任何长度前缀与剩余字节不符、
// 下标越界或版本不符都报错，不接受尾随字节。
func DeserializeMessage(data []byte) (*Message, error) {
	r := encoding.NewReader(data)
	m, err := readMessage(r)
	if err != nil {
		return nil, err
	}
	if err := r.ExpectEOF(); err != nil {
		return nil, err
	}
	return m, nil
}

func readMessage(r *encoding.Reader) (*Message, error) {
	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version&0x80 == 0 {
		return nil, fmt.Errorf("%w: legacy message", ErrUnsupportedVersion)
	}
	if v := version & 0x7F; v != 0 {
		return nil, fmt.Errorf("%w: v%d", ErrUnsupportedVersion, v)
	}

	headerBytes, err := r.ReadBytes(3)
	if err != nil {
		return nil, err
	}
	header := MessageHeader{
		NumRequiredSignatures:       headerBytes[0],
		NumReadonlySignedAccounts:   headerBytes[1],
		NumReadonlyUnsignedAccounts: headerBytes[2],
	}

	accountCount, err := r.ReadCompactU16()
	if err != nil {
		return nil, err
	}
	if accountCount > consts.MaxStaticAccountKeys {
		return nil, fmt.Errorf("%w: %d static keys", ErrTooManyAccounts, accountCount)
	}
	if int(header.NumRequiredSignatures) > accountCount {
		return nil, fmt.Errorf("tx: header requires %d signers but message has %d accounts",
			header.NumRequiredSignatures, accountCount)
	}
	if header.NumRequiredSignatures == 0 {
		return nil, fmt.Errorf("tx: header requires at least one signer")
	}
	if header.NumReadonlySignedAccounts >= header.NumRequiredSignatures {
		return nil, fmt.Errorf("tx: payer cannot be readonly (%d readonly of %d signers)",
			header.NumReadonlySignedAccounts, header.NumRequiredSignatures)
	}
	if int(header.NumReadonlyUnsignedAccounts) > accountCount-int(header.NumRequiredSignatures) {
		return nil, fmt.Errorf("tx: readonly unsigned count %d exceeds unsigned accounts",
			header.NumReadonlyUnsignedAccounts)
	}

	keys := make([]types.Pubkey, accountCount)
	for i := range keys {
		b, err := r.ReadBytes(consts.PubkeyLength)
		if err != nil {
			return nil, err
		}
		copy(keys[i][:], b)
	}

	var blockhash types.Blockhash
	b, err := r.ReadBytes(consts.PubkeyLength)
	if err != nil {
		return nil, err
	}
	copy(blockhash[:], b)

	insCount, err := r.ReadCompactU16()
	if err != nil {
		return nil, err
	}
	instructions := make([]CompiledInstruction, insCount)
	for i := range instructions {
		programIdx, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if int(programIdx) >= accountCount {
			return nil, fmt.Errorf("tx: program index %d out of static range %d", programIdx, accountCount)
		}
		idxBytes, err := r.ReadCompactBytes()
		if err != nil {
			return nil, err
		}
		dataBytes, err := r.ReadCompactBytes()
		if err != nil {
			return nil, err
		}
		instructions[i] = CompiledInstruction{
			ProgramIDIndex: programIdx,
			AccountIndexes: append([]uint8(nil), idxBytes...),
			Data:           append([]byte(nil), dataBytes...),
		}
	}

	lookupCount, err := r.ReadCompactU16()
	if err != nil {
		return nil, err
	}
	lookups := make([]TableLookup, lookupCount)
	for i := range lookups {
		addrBytes, err := r.ReadBytes(consts.PubkeyLength)
		if err != nil {
			return nil, err
		}
		var addr types.Pubkey
		copy(addr[:], addrBytes)
		writable, err := r.ReadCompactBytes()
		if err != nil {
			return nil, err
		}
		readonly, err := r.ReadCompactBytes()
		if err != nil {
			return nil, err
		}
		lookups[i] = TableLookup{
			TableAddress:    addr,
			WritableIndexes: append([]uint8(nil), writable...),
			ReadonlyIndexes: append([]uint8(nil), readonly...),
		}
	}

	m := &Message{
		Header:          header,
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
		Instructions:    instructions,
		TableLookups:    lookups,
	}

	// 操作下标必须落在合并索引空间内
	combined := accountCount + m.LookupAddressCount()
	for i, ins := range m.Instructions {
		for _, idx := range ins.AccountIndexes {
			if int(idx) >= combined {
				return nil, fmt.Errorf("tx: instruction %d references account %d beyond combined space %d",
					i, idx, combined)
			}
		}
	}
	return m, nil
}
