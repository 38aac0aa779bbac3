package utils

import (
	"testing"

	"github.com/near/borsh-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试分区哈希的边界与稳定性
func TestPartitionHashBytes(t *testing.T) {
	// 长度不足 28 字节 / mod 为 0 时回落到分区 0
	assert.Equal(t, uint32(0), PartitionHashBytes(make([]byte, 27), 8))
	assert.Equal(t, uint32(0), PartitionHashBytes(make([]byte, 64), 0))

	// 同一输入稳定返回同一分区
	b := make([]byte, 64)
	for i := range b {
		b[i] = byte(i * 7)
	}
	p1 := PartitionHashBytes(b, 8)
	p2 := PartitionHashBytes(b, 8)
	assert.Equal(t, p1, p2, "同一输入应得到稳定分区")
	assert.Less(t, p1, uint32(8))
}

// 测试百分位计算
func TestPercentileU64(t *testing.T) {
	assert.Equal(t, uint64(0), PercentileU64(nil, 80), "空样本应返回 0")

	samples := []uint64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000}
	assert.Equal(t, uint64(800), PercentileU64(samples, 80))
	assert.Equal(t, uint64(100), PercentileU64(samples, 0))
	assert.Equal(t, uint64(1000), PercentileU64(samples, 100))
	assert.Equal(t, uint64(500), PercentileU64(samples, 50))

	// 输入切片不被修改
	shuffled := []uint64{900, 100, 500}
	_ = PercentileU64(shuffled, 50)
	assert.Equal(t, []uint64{900, 100, 500}, shuffled)
}

// 测试 clamp 边界
func TestClamp(t *testing.T) {
	assert.Equal(t, 2.0, ClampF64(1.0, 2.0, 6.0))
	assert.Equal(t, 6.0, ClampF64(9.0, 2.0, 6.0))
	assert.Equal(t, 3.5, ClampF64(3.5, 2.0, 6.0))
	assert.Equal(t, uint64(10), ClampU64(5, 10, 20))
	assert.Equal(t, uint64(20), ClampU64(25, 10, 20))
}

// 测试事件编码：4 字节小端类型前缀 + borsh payload
func TestEncodeEvent(t *testing.T) {
	type payload struct {
		A uint64
		B string
	}
	in := payload{A: 42, B: "ok"}

	data, err := EncodeEvent(7, in)
	require.NoError(t, err)

	eventType, rest, err := DecodeEventType(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), eventType)

	var out payload
	require.NoError(t, borsh.Deserialize(&out, rest))
	assert.Equal(t, in, out, "payload 应完整还原")

	_, _, err = DecodeEventType([]byte{1, 2})
	assert.Error(t, err, "不足 4 字节应报错")
}
