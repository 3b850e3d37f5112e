// Package kafka implements the kafka action.
// Publishes dissected messages to Kafka as JSON records with batching,
// compression and retry support.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/log"
	"firestige.xyz/tzspd/pkg/plugin"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// messageWriter is the part of *kafka.Writer the reporter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReporter sends messages to Kafka.
type KafkaReporter struct {
	name   string
	writer messageWriter
	config Config

	// Statistics
	queuedCount   atomic.Uint64
	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

// Config represents kafka action options.
type Config struct {
	Brokers        []string      `mapstructure:"brokers"`         // required
	Topic          string        `mapstructure:"topic"`           // required
	BatchSize      int           `mapstructure:"batch_size"`      // optional, default 100
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`   // optional, default 100ms
	Compression    string        `mapstructure:"compression"`     // optional: none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts    int           `mapstructure:"max_attempts"`    // optional, default 3
	IncludePayload bool          `mapstructure:"include_payload"` // carry the payload bytes, default true
}

// record is the JSON value written for every message.
type record struct {
	Profile    string      `json:"profile"`
	ListenerID int         `json:"listener_id"`
	ProtoType  uint8       `json:"proto_type"`
	Sender     string      `json:"sender,omitempty"`
	Timestamp  int64       `json:"timestamp"`
	SrcMAC     string      `json:"src_mac,omitempty"`
	DstMAC     string      `json:"dst_mac,omitempty"`
	IPFamily   uint8       `json:"ip_family"`
	Protocol   uint8       `json:"protocol"`
	SrcIP      string      `json:"src_ip"`
	DstIP      string      `json:"dst_ip"`
	SrcPort    uint16      `json:"src_port"`
	DstPort    uint16      `json:"dst_port"`
	TCPFlags   uint8       `json:"tcp_flags,omitempty"`
	Fragmented bool        `json:"fragmented,omitempty"`
	PayloadLen int         `json:"payload_len"`
	Payload    []byte      `json:"payload,omitempty"`
	Labels     core.Labels `json:"labels,omitempty"`
}

// NewKafkaReporter creates a new kafka action.
func NewKafkaReporter() plugin.Action {
	return &KafkaReporter{
		name: "kafka",
	}
}

// Name returns the plugin name.
func (r *KafkaReporter) Name() string {
	return r.name
}

// Init initializes the reporter with configuration.
func (r *KafkaReporter) Init(options map[string]any) error {
	cfg := Config{
		BatchSize:      defaultBatchSize,
		BatchTimeout:   defaultBatchTimeout,
		Compression:    defaultCompression,
		MaxAttempts:    defaultMaxAttempts,
		IncludePayload: true,
	}
	if err := plugin.DecodeOptions(options, &cfg); err != nil {
		return fmt.Errorf("kafka reporter: %w", err)
	}
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("kafka reporter: brokers is required")
	}
	if cfg.Topic == "" {
		return fmt.Errorf("kafka reporter: topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // same flow key, same partition
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		RequiredAcks: kafka.RequireOne,
		// WriteMessages only queues; batch outcomes reach completion.
		Async:      true,
		Completion: r.completion,
	}

	switch cfg.Compression {
	case "none", "":
	case "gzip":
		w.Compression = compress.Gzip
	case "snappy":
		w.Compression = compress.Snappy
	case "lz4":
		w.Compression = compress.Lz4
	case "zstd":
		w.Compression = compress.Zstd
	default:
		return fmt.Errorf("kafka reporter: invalid compression type: %s", cfg.Compression)
	}

	r.config = cfg
	r.writer = w
	return nil
}

// Start starts the reporter.
func (r *KafkaReporter) Start(ctx context.Context) error {
	log.GetLogger().WithFields(map[string]interface{}{
		"brokers":       r.config.Brokers,
		"topic":         r.config.Topic,
		"batch_size":    r.config.BatchSize,
		"batch_timeout": r.config.BatchTimeout,
		"compression":   r.config.Compression,
	}).Info("kafka reporter started")
	return nil
}

// Stop flushes pending messages and closes the writer. Close waits for the
// outstanding completion calls.
func (r *KafkaReporter) Stop(ctx context.Context) error {
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			log.GetLogger().WithError(err).Error("error closing kafka writer")
			return err
		}
	}

	log.GetLogger().WithField("total_queued", r.queuedCount.Load()).
		WithField("total_reported", r.reportedCount.Load()).
		WithField("total_errors", r.errorCount.Load()).
		Info("kafka reporter stopped")
	return nil
}

// Handle queues msg keyed by its flow, with labels as record headers.
// Delivered means the record was accepted by the writer; broker outcomes
// are counted asynchronously.
func (r *KafkaReporter) Handle(ctx context.Context, msg *core.Message) (plugin.Result, error) {
	if msg == nil {
		return plugin.Continue, fmt.Errorf("kafka reporter: nil message")
	}

	value, err := r.serialize(msg)
	if err != nil {
		r.errorCount.Add(1)
		return plugin.Continue, fmt.Errorf("kafka reporter: serialize: %w", err)
	}

	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:     flowKey(msg),
		Value:   value,
		Time:    msg.Timestamp,
		Headers: headers(msg.Labels),
	})
	if err != nil {
		r.errorCount.Add(1)
		return plugin.Continue, fmt.Errorf("kafka reporter: write failed: %w", err)
	}

	r.queuedCount.Add(1)
	return plugin.Delivered, nil
}

// completion is called by the writer once per produced batch.
func (r *KafkaReporter) completion(msgs []kafka.Message, err error) {
	if err != nil {
		r.errorCount.Add(uint64(len(msgs)))
		log.GetLogger().WithError(err).
			WithField("topic", r.config.Topic).
			WithField("messages", len(msgs)).
			Warn("kafka batch write failed")
		return
	}
	r.reportedCount.Add(uint64(len(msgs)))
}

// serialize converts msg to JSON bytes.
func (r *KafkaReporter) serialize(msg *core.Message) ([]byte, error) {
	rec := record{
		Profile:    msg.ProfileName,
		ListenerID: msg.ListenerID,
		ProtoType:  msg.ProtoType,
		Timestamp:  msg.Timestamp.UnixMilli(),
		SrcMAC:     msg.SrcMAC,
		DstMAC:     msg.DstMAC,
		IPFamily:   msg.IPFamily,
		Protocol:   msg.IPProto,
		SrcIP:      msg.SrcIP,
		DstIP:      msg.DstIP,
		SrcPort:    msg.SrcPort,
		DstPort:    msg.DstPort,
		TCPFlags:   msg.TCPFlags,
		Fragmented: msg.Fragmented,
		PayloadLen: msg.PayloadLen(),
		Labels:     msg.Labels,
	}
	if msg.Sender != nil {
		rec.Sender = msg.Sender.String()
	}
	if r.config.IncludePayload {
		rec.Payload = msg.Payload()
	}
	return json.Marshal(rec)
}

func flowKey(msg *core.Message) []byte {
	return []byte(fmt.Sprintf("%s:%d-%s:%d", msg.SrcIP, msg.SrcPort, msg.DstIP, msg.DstPort))
}

// headers renders labels as record headers, sorted by key.
func headers(labels core.Labels) []kafka.Header {
	if len(labels) == 0 {
		return nil
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(labels[k])})
	}
	return out
}
