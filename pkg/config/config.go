package config

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/conf"
	"gopkg.in/yaml.v3"

	"tx-sender-sol/internal/consts"
	"tx-sender-sol/pkg/batch"
	"tx-sender-sol/pkg/fees"
	"tx-sender-sol/pkg/logger"
	"tx-sender-sol/pkg/lookup"
	"tx-sender-sol/pkg/mq"
	"tx-sender-sol/pkg/sender"
)

// LogConfig 日志配置
type LogConfig struct {
	Format   string `json:"format,optional" yaml:"format"`     // 日志格式，支持 "console" 或 "json"
	LogDir   string `json:"log_dir,optional" yaml:"log_dir"`   // 日志目录（可为相对路径或绝对路径）
	Level    string `json:"level,optional" yaml:"level"`       // 日志级别：debug / info / warn / error
	Compress bool   `json:"compress,optional" yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// FeesConfig 费用估计器配置，零值字段由估计器取默认
type FeesConfig struct {
	BaselinePrice      uint64 `json:"baseline_price,optional" yaml:"baseline_price"`             // 常规档基准价（微单位/计算单元）
	MinPrice           uint64 `json:"min_price,optional" yaml:"min_price"`                       // 报价下限
	MaxPrice           uint64 `json:"max_price,optional" yaml:"max_price"`                       // 报价上限
	WindowSize         int    `json:"window_size,optional" yaml:"window_size"`                   // 滚动窗口样本数
	ReferenceLatencyMs int    `json:"reference_latency_ms,optional" yaml:"reference_latency_ms"` // 延迟因子的参照耗时（毫秒）
}

func (c *FeesConfig) ToEstimatorConfig() fees.Config {
	return fees.Config{
		BaselinePrice:    c.BaselinePrice,
		MinPrice:         c.MinPrice,
		MaxPrice:         c.MaxPrice,
		WindowSize:       c.WindowSize,
		ReferenceLatency: time.Duration(c.ReferenceLatencyMs) * time.Millisecond,
	}
}

// BatchConfig 打包上限配置，零值字段取协议默认
type BatchConfig struct {
	MaxComputeUnits  uint32 `json:"max_compute_units,optional" yaml:"max_compute_units"` // 单批计算单元上限
	MaxAccounts      int    `json:"max_accounts,optional" yaml:"max_accounts"`           // 单批账户数上限
	ReservedAccounts int    `json:"reserved_accounts,optional" yaml:"reserved_accounts"` // 为付费者与预算程序预留的槽位
}

func (c *BatchConfig) ToLimits() batch.Limits {
	return batch.Limits{
		MaxComputeUnits:  c.MaxComputeUnits,
		MaxAccounts:      c.MaxAccounts,
		ReservedAccounts: c.ReservedAccounts,
	}
}

// RetryConfig 提交管线行为配置
type RetryConfig struct {
	Network          string  `json:"network,optional" yaml:"network"`                       // 费率键的网络标签
	MaxAttempts      int     `json:"max_attempts,optional" yaml:"max_attempts"`             // 尝试次数预算（含首次）
	RetryDelayMs     int     `json:"retry_delay_ms,optional" yaml:"retry_delay_ms"`         // 两次尝试之间的固定延迟（毫秒）
	EscalationFactor float64 `json:"escalation_factor,optional" yaml:"escalation_factor"`   // 重建时报价抬升系数，0 或 1 关闭
	SimulateFirst    bool    `json:"simulate_first,optional" yaml:"simulate_first"`         // 签名前预演，拒绝的交易不消耗签名与提交
	TightenUnits     bool    `json:"tighten_units,optional" yaml:"tighten_units"`           // 预演成功后按真实消耗收紧计算单元预算
	PollIntervalMs   int     `json:"poll_interval_ms,optional" yaml:"poll_interval_ms"`     // 确认轮询间隔（毫秒）
	ConfirmTimeoutMs int     `json:"confirm_timeout_ms,optional" yaml:"confirm_timeout_ms"` // 单次尝试的确认窗口（毫秒）
}

func (c *RetryConfig) ToOptions() sender.Options {
	return sender.Options{
		Network:          c.Network,
		MaxAttempts:      c.MaxAttempts,
		RetryDelay:       time.Duration(c.RetryDelayMs) * time.Millisecond,
		EscalationFactor: c.EscalationFactor,
		SimulateFirst:    c.SimulateFirst,
		TightenUnits:     c.TightenUnits,
		PollInterval:     time.Duration(c.PollIntervalMs) * time.Millisecond,
		ConfirmTimeout:   time.Duration(c.ConfirmTimeoutMs) * time.Millisecond,
	}
}

// LookupConfig 查找表会话配置
type LookupConfig struct {
	SessionCapacity int `json:"session_capacity,optional" yaml:"session_capacity"` // 会话跟踪的不同地址数上限，0 取默认
}

func (c *LookupConfig) NewSession() *lookup.Session {
	return lookup.NewSession(c.SessionCapacity)
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置
type KafkaProducerConfig struct {
	Brokers   string `json:"brokers,optional" yaml:"brokers"`       // Kafka broker 地址，多个用英文逗号分隔
	BatchSize int    `json:"batch_size,optional" yaml:"batch_size"` // 批处理大小（单位字节）
	LingerMs  int    `json:"linger_ms,optional" yaml:"linger_ms"`   // 批处理最大延迟（毫秒）

	Topics struct {
		Outcome string `json:"outcome,optional" yaml:"outcome"` // 终态回执事件的 Kafka topic
	} `json:"topics,optional" yaml:"topics"`

	Partitions struct {
		Outcome int `json:"outcome,optional" yaml:"outcome"` // outcome topic 的分区数
	} `json:"partitions,optional" yaml:"partitions"`
}

func (c *KafkaProducerConfig) ToKafkaOption() mq.KafkaProducerOption {
	return mq.KafkaProducerOption{
		Brokers:   c.Brokers,
		BatchSize: c.BatchSize,
		LingerMs:  c.LingerMs,
		Topics: []mq.TopicSpec{
			{Topic: c.Topics.Outcome, Partitions: c.Partitions.Outcome},
		},
	}
}

// SenderConfig 是主配置结构体，汇总提交库的全部可调参数
type SenderConfig struct {
	LogConf           LogConfig           `json:"logger,optional" yaml:"logger"`                 // 日志配置
	FeesConf          FeesConfig          `json:"fees,optional" yaml:"fees"`                     // 费用估计器配置
	BatchConf         BatchConfig         `json:"batch,optional" yaml:"batch"`                   // 打包上限配置
	RetryConf         RetryConfig         `json:"retry,optional" yaml:"retry"`                   // 提交管线配置
	LookupConf        LookupConfig        `json:"lookup,optional" yaml:"lookup"`                 // 查找表会话配置
	KafkaProducerConf KafkaProducerConfig `json:"kafka_producer,optional" yaml:"kafka_producer"` // Kafka 生产者配置

	RedisAddr string `json:"redis_addr,optional" yaml:"redis_addr"` // Redis 地址，空值关闭费率状态持久化
}

// NewRedisClient 按 RedisAddr 创建 Redis 客户端；地址为空返回 nil
func (c *SenderConfig) NewRedisClient() *redis.Client {
	if c.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr: c.RedisAddr, // eg: "127.0.0.1:6379"
		// 可按需添加密码/数据库等参数
	})
}

// MustLoad 读取并解析配置文件，失败直接 panic
func MustLoad(path string) SenderConfig {
	var c SenderConfig
	conf.MustLoad(path, &c)
	return c
}

// Load 读取并解析配置文件
func Load(path string) (SenderConfig, error) {
	var c SenderConfig
	if err := conf.Load(path, &c); err != nil {
		return SenderConfig{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return c, nil
}

// LoadFromYamlBytes 从内存中的 YAML 内容解析配置，测试与嵌入场景用
func LoadFromYamlBytes(content []byte) (SenderConfig, error) {
	var c SenderConfig
	if err := conf.LoadFromYamlBytes(content, &c); err != nil {
		return SenderConfig{}, fmt.Errorf("load config from yaml: %w", err)
	}
	return c, nil
}

// ExampleYAML 渲染一份填好默认值的示例配置，可直接写入 etc/ 作为起点
func ExampleYAML() ([]byte, error) {
	c := SenderConfig{
		LogConf: LogConfig{
			Format: "console",
			LogDir: "logs",
			Level:  "info",
		},
		FeesConf: FeesConfig{
			BaselinePrice:      fees.DefaultBaselinePrice,
			MinPrice:           fees.DefaultMinPrice,
			MaxPrice:           fees.DefaultMaxPrice,
			WindowSize:         fees.DefaultWindowSize,
			ReferenceLatencyMs: int(fees.DefaultReferenceLatency / time.Millisecond),
		},
		BatchConf: BatchConfig{
			MaxComputeUnits: consts.MaxComputeUnitsPerTx,
			MaxAccounts:     consts.MaxStaticAccountKeys,
		},
		RetryConf: RetryConfig{
			Network:          sender.DefaultNetwork,
			MaxAttempts:      sender.DefaultMaxAttempts,
			RetryDelayMs:     int(sender.DefaultRetryDelay / time.Millisecond),
			EscalationFactor: 1.5,
			SimulateFirst:    true,
			TightenUnits:     true,
			PollIntervalMs:   int(sender.DefaultPollInterval / time.Millisecond),
			ConfirmTimeoutMs: int(sender.DefaultConfirmTimeout / time.Millisecond),
		},
		LookupConf: LookupConfig{
			SessionCapacity: lookup.DefaultSessionCapacity,
		},
		RedisAddr: "127.0.0.1:6379",
	}
	c.KafkaProducerConf.Brokers = "127.0.0.1:9092"
	c.KafkaProducerConf.Topics.Outcome = "tx-sender-outcome"
	c.KafkaProducerConf.Partitions.Outcome = 8

	return yaml.Marshal(&c)
}
