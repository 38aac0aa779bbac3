package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/near/borsh-go"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/internal/utils"
	"tx-sender-sol/pkg/logger"
	"tx-sender-sol/pkg/sender"
)

// 事件类型前缀（4 字节小端，编码见 utils.EncodeEvent）
const (
	EventTypeTxOutcome uint32 = 1
)

const defaultPublishTimeout = 5 * time.Second

// OutcomeEvent 一笔交易发送终局的审计事件。
// 字段均为 borsh 原生类型，消费侧可跨语言解码；同签名事件落在同一分区，
// 消费侧按到达顺序即可还原该交易的重试历史。
type OutcomeEvent struct {
	Version   uint8
	ChainID   uint32
	Network   string
	Signature [64]uint8
	State     uint8 // sender.State
	Slot      uint64
	Attempts  uint32
	PriceUsed uint64
	UnitLimit uint32
	Submitted bool
	LatencyMs uint64
	FailKind  uint8 // sender.Kind，0 表示无失败
	FailMsg   string
}

// BuildOutcomeEvent 从管线回执构造审计事件
func BuildOutcomeEvent(network string, rec *sender.Receipt) OutcomeEvent {
	ev := OutcomeEvent{
		Version:   1,
		ChainID:   consts.ChainIDSolana,
		Network:   network,
		Signature: rec.Signature,
		State:     uint8(rec.State),
		Slot:      rec.Slot,
		Attempts:  uint32(rec.Attempts),
		PriceUsed: rec.PriceUsed,
		UnitLimit: rec.UnitLimit,
		Submitted: rec.Submitted,
		LatencyMs: uint64(rec.Latency / time.Millisecond),
	}
	if rec.Failure != nil {
		ev.FailKind = uint8(rec.Failure.Kind)
		ev.FailMsg = rec.Failure.Reason
	}
	return ev
}

// EncodeOutcome 编码为线上格式：类型前缀 + borsh payload
func EncodeOutcome(ev OutcomeEvent) ([]byte, error) {
	return utils.EncodeEvent(EventTypeTxOutcome, ev)
}

// DecodeOutcome 消费侧解码，校验类型前缀
func DecodeOutcome(data []byte) (OutcomeEvent, error) {
	eventType, payload, err := utils.DecodeEventType(data)
	if err != nil {
		return OutcomeEvent{}, err
	}
	if eventType != EventTypeTxOutcome {
		return OutcomeEvent{}, fmt.Errorf("DecodeOutcome: unexpected event type %d", eventType)
	}
	var ev OutcomeEvent
	if err := borsh.Deserialize(&ev, payload); err != nil {
		return OutcomeEvent{}, fmt.Errorf("DecodeOutcome: deserialize: %w", err)
	}
	return ev, nil
}

// BuildOutcomeJobs 将一组审计事件编码为 Kafka 发送任务。
// 分区按交易签名哈希选取，保证同一交易的事件串行落盘。
func BuildOutcomeJobs(topic string, partitions uint32, events []OutcomeEvent) ([]*KafkaJob, error) {
	jobs := make([]*KafkaJob, 0, len(events))
	for i := range events {
		value, err := EncodeOutcome(events[i])
		if err != nil {
			return nil, fmt.Errorf("encode outcome %d: %w", i, err)
		}
		jobs = append(jobs, &KafkaJob{
			Topic:     topic,
			Partition: int32(utils.PartitionHashBytes(events[i].Signature[:], partitions)),
			Value:     value,
		})
	}
	return jobs, nil
}

// KafkaOutcomeSink 把终局回执旁路发布到 Kafka，实现 sender.OutcomeSink。
// 发布失败只记日志，审计链路绝不反向影响发送主流程。
type KafkaOutcomeSink struct {
	producer   *kafka.Producer
	topic      string
	partitions uint32
	network    string
	timeout    time.Duration
}

func NewKafkaOutcomeSink(producer *kafka.Producer, topic string, partitions uint32, network string) *KafkaOutcomeSink {
	if partitions == 0 {
		partitions = 1
	}
	return &KafkaOutcomeSink{
		producer:   producer,
		topic:      topic,
		partitions: partitions,
		network:    network,
		timeout:    defaultPublishTimeout,
	}
}

// Publish 实现 sender.OutcomeSink
func (s *KafkaOutcomeSink) Publish(rec *sender.Receipt) {
	if rec == nil {
		return
	}
	jobs, err := BuildOutcomeJobs(s.topic, s.partitions, []OutcomeEvent{BuildOutcomeEvent(s.network, rec)})
	if err != nil {
		logger.Errorf("[mq] 审计事件编码失败: sig=%s err=%v", rec.Signature, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, failed := SendKafkaJobs(ctx, s.producer, jobs, s.timeout)
	for _, f := range failed {
		logger.Warnf("[mq] 审计事件投递失败: topic=%s sig=%s err=%v", f.Job.Topic, rec.Signature, f.Err)
	}
}
