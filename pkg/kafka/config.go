package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

const (
	DefaultMaxAttempts  = 3
	DefaultBatchTimeout = 10 * time.Millisecond
	DefaultWriteTimeout = 5 * time.Second
)

// ProducerConfig describes a single-topic writer.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	Compression  string // "none", "gzip", "snappy", "lz4", "zstd"
}

func (c ProducerConfig) withDefaults() ProducerConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

func compression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Gzip
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	case "none":
		return compress.None
	default:
		return compress.Snappy
	}
}

func (c ProducerConfig) writer() *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  compression(c.Compression),
		MaxAttempts:  c.MaxAttempts,
		BatchTimeout: c.BatchTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}
