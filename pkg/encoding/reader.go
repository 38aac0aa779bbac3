package encoding

import (
	"encoding/binary"
	"fmt"
)

// Reader 带边界检查的顺序读取器。所有长度前缀在消费前与剩余字节数核对，
// 任何不一致都报错而不是 panic，用于解析不可信的线格式数据。
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining 返回尚未消费的字节数
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Done 判断是否已消费全部输入
func (r *Reader) Done() bool {
	return r.pos >= len(r.data)
}

// ExpectEOF 要求输入已被完整消费，存在尾随字节时报错
func (r *Reader) ExpectEOF() error {
	if rem := r.Remaining(); rem != 0 {
		return fmt.Errorf("encoding: %d trailing bytes after message", rem)
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes 读取 n 个字节。返回的切片引用内部缓冲，调用方需要持有时应自行拷贝。
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("encoding: negative length %d", n)
	}
	if r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, r.Remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) ReadCompactU16() (int, error) {
	v, n, err := ReadCompactU16(r.data[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

// ReadCompactBytes 读取 compact-u16 长度前缀的字节串，长度超过剩余数据时报错
func (r *Reader) ReadCompactBytes() ([]byte, error) {
	n, err := r.ReadCompactU16()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(n)
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
