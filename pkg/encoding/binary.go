package encoding

import "encoding/binary"

// 定宽整数一律小端序。

func AppendU16(buf []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(buf, v)
}

func AppendU32(buf []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, v)
}

func AppendU64(buf []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(buf, v)
}

// AppendCompactBytes 追加变长字节串：compact-u16 长度前缀 + 原始字节。
func AppendCompactBytes(buf []byte, b []byte) ([]byte, error) {
	buf, err := AppendCompactU16(buf, len(b))
	if err != nil {
		return buf, err
	}
	return append(buf, b...), nil
}
