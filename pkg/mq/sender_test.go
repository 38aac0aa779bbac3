package mq

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBrokers = "127.0.0.1:9092"
	testTopic   = "tx-sender-test-topic"
)

// 创建测试用的生产者，本机无 Kafka 时跳过
func createTestProducer(t *testing.T) *kafka.Producer {
	conn, err := net.DialTimeout("tcp", testBrokers, 200*time.Millisecond)
	if err != nil {
		t.Skipf("Kafka not reachable at %s: %v", testBrokers, err)
	}
	_ = conn.Close()

	producer, err := NewKafkaProducer(KafkaProducerOption{
		Brokers: testBrokers,
		Topics:  []TopicSpec{{Topic: testTopic, Partitions: 1}},
	})
	if err != nil {
		t.Fatalf("Failed to create producer: %v", err)
	}
	return producer
}

func createTestConsumer(t *testing.T) *kafka.Consumer {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": testBrokers,
		"group.id":          "tx-sender-test-group-" + time.Now().Format("20060102150405"),
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		t.Fatalf("Failed to create consumer: %v", err)
	}
	return consumer
}

// 测试正常发送消息
func TestSendKafkaJobs_RealKafka(t *testing.T) {
	producer := createTestProducer(t)
	defer producer.Close()

	consumer := createTestConsumer(t)
	defer consumer.Close()

	err := consumer.Subscribe(testTopic, nil)
	require.NoError(t, err)

	jobs := []*KafkaJob{
		{Topic: testTopic, Value: []byte("test message 1")},
		{Topic: testTopic, Value: []byte("test message 2")},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, failed := SendKafkaJobs(ctx, producer, jobs, 2*time.Second)
	assert.Equal(t, 2, len(ok), "应该成功发送 2 条消息")
	assert.Equal(t, 0, len(failed), "不应该有失败的消息")

	producer.Flush(1000)

	received := make(map[string]bool)
	for i := 0; i < 2; i++ {
		msg, err := consumer.ReadMessage(5 * time.Second)
		require.NoError(t, err)
		received[string(msg.Value)] = true
	}
	assert.True(t, received["test message 1"], "未收到第一条消息")
	assert.True(t, received["test message 2"], "未收到第二条消息")
}

// 测试超时场景
func TestSendKafkaJobs_RealKafka_Timeout(t *testing.T) {
	producer := createTestProducer(t)
	defer func() {
		producer.Flush(1000)
		producer.Close()
	}()

	jobs := []*KafkaJob{{Topic: testTopic, Value: []byte("timeout probe")}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ok, failed := SendKafkaJobs(ctx, producer, jobs, 5*time.Millisecond)
	assert.Equal(t, 0, len(ok), "由于超时，不应该有成功的消息")
	assert.Equal(t, 1, len(failed), "应该有 1 条失败的消息")
}

// 测试空消息列表
func TestSendKafkaJobs_RealKafka_Empty(t *testing.T) {
	producer := createTestProducer(t)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, failed := SendKafkaJobs(ctx, producer, []*KafkaJob{}, 2*time.Second)
	assert.Equal(t, 0, len(ok))
	assert.Equal(t, 0, len(failed))
}

// 端到端：回执经 sink 发布后可在消费侧完整还原
func TestKafkaOutcomeSink_RealKafka(t *testing.T) {
	producer := createTestProducer(t)
	defer producer.Close()

	consumer := createTestConsumer(t)
	defer consumer.Close()

	err := consumer.Subscribe(testTopic, nil)
	require.NoError(t, err)

	sink := NewKafkaOutcomeSink(producer, testTopic, 1, "devnet")
	rec := confirmedReceipt(0x33)
	sink.Publish(rec)
	producer.Flush(2000)

	// 同 topic 可能残留此前用例的消息，取到目标事件为止
	deadline := time.Now().Add(10 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "未在期限内收到审计事件")
		msg, err := consumer.ReadMessage(5 * time.Second)
		require.NoError(t, err)

		ev, err := DecodeOutcome(msg.Value)
		if err != nil {
			continue // 非审计事件
		}
		if ev.Signature != [64]uint8(rec.Signature) {
			continue
		}
		assert.Equal(t, "devnet", ev.Network)
		assert.Equal(t, uint8(0), ev.FailKind)
		assert.Equal(t, rec.Slot, ev.Slot)
		return
	}
}
