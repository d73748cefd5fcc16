package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Producer publishes upload report events.
type Producer struct {
	writer *kafkago.Writer
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	Compression  kafkago.Compression
	MaxAttempts  int
}

// NewProducer constructs a Producer. Messages with the same key (the file
// name) land on the same partition.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}

	return &Producer{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafkago.Hash{},
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafkago.RequireAll,
			Compression:  cfg.Compression,
			MaxAttempts:  cfg.MaxAttempts,
		},
	}, nil
}

// Publish sends a Kafka message with optional headers.
func (p *Producer) Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error {
	msg := kafkago.Message{
		Key:   key,
		Value: value,
		Time:  time.Now().UTC(),
	}

	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafkago.Header{Key: k, Value: []byte(v)})
	}

	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close(ctx context.Context) error {
	return p.writer.Close()
}

// CompressionFromString maps textual codec to kafka-go value.
func CompressionFromString(name string) kafkago.Compression {
	switch strings.ToLower(name) {
	case "gzip":
		return kafkago.Gzip
	case "snappy":
		return kafkago.Snappy
	case "lz4":
		return kafkago.Lz4
	case "zstd":
		return kafkago.Zstd
	default:
		return kafkago.Snappy
	}
}
