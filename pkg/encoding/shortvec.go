package encoding

import (
	"errors"
	"fmt"
)

// compact-u16（shortvec）变长编码：每字节低 7 位为数据位、最高位为续延位，
// 按小端分组，最多 3 字节，可编码 [0, 0xFFFF]。
const (
	// MaxCompactU16 可编码的最大值
	MaxCompactU16 = 0xFFFF

	maxCompactU16Bytes = 3
)

var (
	ErrValueTooLarge = errors.New("encoding: value exceeds compact-u16 range")
	ErrTruncated     = errors.New("encoding: unexpected end of data")
	ErrNonMinimal    = errors.New("encoding: non-minimal compact-u16 encoding")
	ErrOverflow      = errors.New("encoding: compact-u16 overflow")
)

// AppendCompactU16 将 v 以 compact-u16 格式追加到 buf。v 超出范围时返回错误。
func AppendCompactU16(buf []byte, v int) ([]byte, error) {
	if v < 0 || v > MaxCompactU16 {
		return buf, fmt.Errorf("%w: %d", ErrValueTooLarge, v)
	}
	rem := uint32(v)
	for {
		b := byte(rem & 0x7F)
		rem >>= 7
		if rem == 0 {
			return append(buf, b), nil
		}
		buf = append(buf, b|0x80)
	}
}

// CompactU16Len 返回 v 编码后的字节数（1~3），越界输入返回 0。
func CompactU16Len(v int) int {
	switch {
	case v < 0 || v > MaxCompactU16:
		return 0
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	default:
		return 3
	}
}

// ReadCompactU16 解析 data 开头的 compact-u16，返回值与消耗的字节数。
// 拒绝截断、溢出（值超过 0xFFFF）与非最短编码。
func ReadCompactU16(data []byte) (int, int, error) {
	var value uint32
	for i := 0; i < maxCompactU16Bytes; i++ {
		if i >= len(data) {
			return 0, 0, ErrTruncated
		}
		elem := data[i]
		// 第三字节只剩 2 个有效数据位，高于 0x03 即溢出 16 位
		if i == maxCompactU16Bytes-1 && elem > 0x03 {
			return 0, 0, ErrOverflow
		}
		value |= uint32(elem&0x7F) << (7 * i)
		if elem&0x80 == 0 {
			// 续延之后跟全零字节属于非最短编码（同一值存在更短写法）
			if i != 0 && elem == 0 {
				return 0, 0, ErrNonMinimal
			}
			return int(value), i + 1, nil
		}
	}
	return 0, 0, ErrOverflow
}
