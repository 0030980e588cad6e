package mq

import "time"

/* ========================================================================
 * MQ 配置
 * ========================================================================
 * 职责: 定义 Kafka 连接与生产/消费配置
 * ======================================================================== */

// Config Kafka 配置
type Config struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Version string   `yaml:"version" mapstructure:"version"` // Kafka 版本

	// SASL 认证
	SASL SASLConfig `yaml:"sasl" mapstructure:"sasl"`

	// TLS 配置
	TLS TLSConfig `yaml:"tls" mapstructure:"tls"`

	Producer ProducerConfig `yaml:"producer" mapstructure:"producer"`
	Consumer ConsumerConfig `yaml:"consumer" mapstructure:"consumer"`
}

// SASLConfig Kafka SASL 认证配置
type SASLConfig struct {
	Enable    bool   `yaml:"enable" mapstructure:"enable"`
	Mechanism string `yaml:"mechanism" mapstructure:"mechanism"` // PLAIN / SCRAM-SHA-256 / SCRAM-SHA-512
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password" mapstructure:"password"`
}

// TLSConfig Kafka TLS 配置
type TLSConfig struct {
	Enable   bool   `yaml:"enable" mapstructure:"enable"`
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`
	CAFile   string `yaml:"ca_file" mapstructure:"ca_file"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"` // 跳过证书验证
}

// ProducerConfig Kafka 生产者配置
type ProducerConfig struct {
	RequiredAcks    string        `yaml:"required_acks" mapstructure:"required_acks"` // none / leader / all
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxMessageBytes int           `yaml:"max_message_bytes" mapstructure:"max_message_bytes"`
	Compression     string        `yaml:"compression" mapstructure:"compression"` // none / gzip / snappy / lz4 / zstd
	Idempotent      bool          `yaml:"idempotent" mapstructure:"idempotent"`
	RetryMax        int           `yaml:"retry_max" mapstructure:"retry_max"`
}

// ConsumerConfig Kafka 消费者配置
type ConsumerConfig struct {
	GroupID            string        `yaml:"group_id" mapstructure:"group_id"`
	InitialOffset      string        `yaml:"initial_offset" mapstructure:"initial_offset"` // newest / oldest
	AutoCommit         bool          `yaml:"auto_commit" mapstructure:"auto_commit"`
	AutoCommitInterval time.Duration `yaml:"auto_commit_interval" mapstructure:"auto_commit_interval"`
	SessionTimeout     time.Duration `yaml:"session_timeout" mapstructure:"session_timeout"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	MaxWaitTime        time.Duration `yaml:"max_wait_time" mapstructure:"max_wait_time"`
	MaxProcessingTime  time.Duration `yaml:"max_processing_time" mapstructure:"max_processing_time"`
	FetchMin           int32         `yaml:"fetch_min" mapstructure:"fetch_min"`
	FetchMax           int32         `yaml:"fetch_max" mapstructure:"fetch_max"`
	FetchDefault       int32         `yaml:"fetch_default" mapstructure:"fetch_default"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Brokers: []string{"127.0.0.1:9092"},
		Version: "2.8.0",
		Producer: ProducerConfig{
			RequiredAcks:    "all",
			Timeout:         10 * time.Second,
			MaxMessageBytes: 1024 * 1024,
			Compression:     "none",
			Idempotent:      true,
			RetryMax:        3,
		},
		Consumer: ConsumerConfig{
			GroupID:            "edge-cache-warmer",
			InitialOffset:      "newest",
			AutoCommit:         true,
			AutoCommitInterval: 1 * time.Second,
			SessionTimeout:     10 * time.Second,
			HeartbeatInterval:  3 * time.Second,
			MaxWaitTime:        250 * time.Millisecond,
			MaxProcessingTime:  100 * time.Millisecond,
			FetchMin:           1,
			FetchMax:           10485760,
			FetchDefault:       1048576,
		},
	}
}
