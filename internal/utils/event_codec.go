package utils

import (
	"encoding/binary"
	"fmt"

	"github.com/near/borsh-go"
)

// EncodeEvent 将事件编码为带事件类型前缀的二进制数据：
// - 前 4 字节为事件类型（uint32，小端序）
// - 后续为 borsh 序列化数据
func EncodeEvent(eventType uint32, payload interface{}) ([]byte, error) {
	data, err := borsh.Serialize(payload)
	if err != nil {
		return nil, fmt.Errorf("EncodeEvent: serialize %T: %w", payload, err)
	}
	buf := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint32(buf[:4], eventType)
	return append(buf, data...), nil
}

// DecodeEventType 拆出事件类型前缀与 payload，消费侧按类型再做 borsh 反序列化
func DecodeEventType(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("DecodeEventType: data too short: %d", len(data))
	}
	return binary.LittleEndian.Uint32(data[:4]), data[4:], nil
}
