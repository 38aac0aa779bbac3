package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYaml = `
logger:
  format: json
  log_dir: /tmp/tx-sender-logs
  level: debug
  compress: true

fees:
  baseline_price: 12000
  window_size: 16
  reference_latency_ms: 600

retry:
  network: devnet
  max_attempts: 5
  retry_delay_ms: 250
  escalation_factor: 1.5
  simulate_first: true
  confirm_timeout_ms: 15000

kafka_producer:
  brokers: 127.0.0.1:9092
  linger_ms: 10
  topics:
    outcome: tx-outcome-test
  partitions:
    outcome: 4

redis_addr: 127.0.0.1:6379
`

// 测试 YAML 解析与选项转换：给出的键生效，缺省的键保持零值交由下游取默认
func TestLoadFromYamlBytes(t *testing.T) {
	c, err := LoadFromYamlBytes([]byte(sampleYaml))
	require.NoError(t, err)

	opt := c.LogConf.ToLogOption()
	assert.Equal(t, "json", opt.Format)
	assert.Equal(t, "/tmp/tx-sender-logs", opt.LogDir)
	assert.Equal(t, "debug", opt.Level)
	assert.True(t, opt.Compress)

	fc := c.FeesConf.ToEstimatorConfig()
	assert.Equal(t, uint64(12000), fc.BaselinePrice)
	assert.Equal(t, 16, fc.WindowSize)
	assert.Equal(t, 600*time.Millisecond, fc.ReferenceLatency)
	assert.Equal(t, uint64(0), fc.MinPrice, "未配置的键保持零值")

	ro := c.RetryConf.ToOptions()
	assert.Equal(t, "devnet", ro.Network)
	assert.Equal(t, 5, ro.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, ro.RetryDelay)
	assert.Equal(t, 1.5, ro.EscalationFactor)
	assert.True(t, ro.SimulateFirst)
	assert.False(t, ro.TightenUnits)
	assert.Equal(t, 15*time.Second, ro.ConfirmTimeout)

	ko := c.KafkaProducerConf.ToKafkaOption()
	assert.Equal(t, "127.0.0.1:9092", ko.Brokers)
	assert.Equal(t, 10, ko.LingerMs)
	require.Len(t, ko.Topics, 1)
	assert.Equal(t, "tx-outcome-test", ko.Topics[0].Topic)
	assert.Equal(t, 4, ko.Topics[0].Partitions)

	assert.Equal(t, "127.0.0.1:6379", c.RedisAddr)
	assert.NotNil(t, c.NewRedisClient())

	lim := c.BatchConf.ToLimits()
	assert.Equal(t, uint32(0), lim.MaxComputeUnits, "未配置时交由打包器取协议默认")
}

// 测试示例渲染：ExampleYAML 的输出必须能被自身的加载器解析
func TestExampleYAML_RoundTrip(t *testing.T) {
	raw, err := ExampleYAML()
	require.NoError(t, err)

	c, err := LoadFromYamlBytes(raw)
	require.NoError(t, err)

	assert.Equal(t, uint64(10_000), c.FeesConf.BaselinePrice)
	assert.Equal(t, "mainnet", c.RetryConf.Network)
	assert.Equal(t, 3, c.RetryConf.MaxAttempts)
	assert.Equal(t, "tx-sender-outcome", c.KafkaProducerConf.Topics.Outcome)
	assert.Equal(t, 8, c.KafkaProducerConf.Partitions.Outcome)
	assert.Equal(t, 2048, c.LookupConf.SessionCapacity)
}

// 测试随库附带的示例文件可被加载
func TestLoad_ExampleFile(t *testing.T) {
	c, err := Load("../../etc/sender.yaml")
	require.NoError(t, err)

	assert.Equal(t, "console", c.LogConf.Format)
	assert.Equal(t, uint32(1_400_000), c.BatchConf.MaxComputeUnits)
	assert.Equal(t, 64, c.BatchConf.MaxAccounts)
	assert.Equal(t, 30*time.Second, c.RetryConf.ToOptions().ConfirmTimeout)
	assert.Equal(t, "tx-sender-outcome", c.KafkaProducerConf.Topics.Outcome)
}

// 测试空地址不建连接，会话容量零值取默认
func TestZeroValues(t *testing.T) {
	var c SenderConfig
	assert.Nil(t, c.NewRedisClient())

	s := c.LookupConf.NewSession()
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Len())
}
