// Package kafkamap runs the key generator against Kafka or Redpanda topics.
package kafkamap

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/wehubfusion/keygen/pkg/embedded/processors/keygen"
	sdkerrors "github.com/wehubfusion/keygen/pkg/errors"
	"github.com/wehubfusion/keygen/pkg/metrics"
)

// Record headers written by the service.
const (
	KeyHeader         = "keygen-key"
	ErrorHeader       = "keygen-error"
	SourceTopicHeader = "keygen-source-topic"
)

// Client is the part of *kgo.Client the service uses.
type Client interface {
	PollFetches(ctx context.Context) kgo.Fetches
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	SetOffsets(offsets map[string]map[int32]kgo.EpochOffset)
	Close()
}

// Config holds topic and consumer settings.
type Config struct {
	Brokers       []string
	InputTopic    string
	ConsumerGroup string
	OutputTopic   string
	// ErrorTopic receives records that could not be transformed. Empty drops
	// them after logging.
	ErrorTopic string

	// ConsumeFromStart makes a new consumer group start at the oldest offset.
	ConsumeFromStart bool

	PublishMaxRetries int
	RetryInterval     time.Duration
}

// Validate checks the topics and retry settings.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Brokers, validation.Required),
		validation.Field(&c.InputTopic, validation.Required),
		validation.Field(&c.OutputTopic, validation.Required,
			validation.NotIn(c.InputTopic).Error("must differ from the input topic")),
		validation.Field(&c.ErrorTopic,
			validation.NotIn(c.InputTopic).Error("must differ from the input topic")),
		validation.Field(&c.PublishMaxRetries, validation.Min(0)),
	)
}

// NewClient creates a franz-go client consuming config.InputTopic as part of
// config.ConsumerGroup. Offsets are committed by the service.
func NewClient(config Config) (*kgo.Client, error) {
	if err := config.Validate(); err != nil {
		return nil, sdkerrors.NewError(sdkerrors.CodeConfig, "invalid Kafka map configuration", err)
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "keygen"
	}

	offset := kgo.NewOffset().AtEnd()
	if config.ConsumeFromStart {
		offset = kgo.NewOffset().AtStart()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(config.Brokers...),
		kgo.ClientID("keygen-"+uuid.NewString()),
		kgo.ConsumerGroup(config.ConsumerGroup),
		kgo.ConsumeTopics(config.InputTopic),
		kgo.ConsumeResetOffset(offset),
		kgo.SessionTimeout(10*time.Second),
		kgo.RebalanceTimeout(30*time.Second),
		kgo.DisableAutoCommit(),
		kgo.FetchMaxWait(500*time.Millisecond),
	)
	if err != nil {
		return nil, sdkerrors.NewError(sdkerrors.CodeConnection, "failed to create kafka client", err)
	}
	return client, nil
}

// Service consumes, transforms and produces records.
type Service struct {
	client    Client
	transform *keygen.Transform
	config    Config
	logger    *zap.Logger
	recorder  *metrics.Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder records publish metrics.
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// NewService validates config and creates a service around client.
func NewService(client Client, transform *keygen.Transform, config Config, opts ...Option) (*Service, error) {
	if client == nil {
		return nil, sdkerrors.NewError(sdkerrors.CodeConnection, "kafka client is required", sdkerrors.ErrNotConnected)
	}
	if transform == nil {
		return nil, sdkerrors.NewError(sdkerrors.CodeConfig, "transform is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, sdkerrors.NewError(sdkerrors.CodeConfig, "invalid Kafka map configuration", err)
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 200 * time.Millisecond
	}

	s := &Service{
		client:    client,
		transform: transform,
		config:    config,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run polls until ctx is done. Each record's offset is committed once its
// outcome has been produced. A record whose outcome cannot be produced stops
// its partition for the poll and is fetched again.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("Kafka map service started",
		zap.String("input", s.config.InputTopic),
		zap.String("output", s.config.OutputTopic),
		zap.String("errors", s.config.ErrorTopic))

	for {
		if ctx.Err() != nil {
			s.logger.Info("Kafka map service stopped")
			return nil
		}

		fetches := s.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			s.logger.Info("Kafka client closed")
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if ctx.Err() == nil {
				s.logger.Error("Kafka fetch error",
					zap.String("topic", topic),
					zap.Int32("partition", partition),
					zap.Error(err))
			}
		})

		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			for _, record := range p.Records {
				if err := s.HandleRecord(ctx, record); err != nil {
					s.logger.Error("Failed to handle record, rewinding partition",
						zap.Int32("partition", record.Partition),
						zap.Int64("offset", record.Offset),
						zap.Error(err))
					s.rewind(p.Topic, record)
					return
				}
				if err := s.client.CommitRecords(ctx, record); err != nil {
					s.logger.Warn("Failed to commit offset",
						zap.Int32("partition", record.Partition),
						zap.Int64("offset", record.Offset),
						zap.Error(err))
				}
			}
		})
	}
}

// rewind makes record the next one fetched from its partition. Records after
// it in the current poll are left unhandled and uncommitted.
func (s *Service) rewind(topic string, record *kgo.Record) {
	s.client.SetOffsets(map[string]map[int32]kgo.EpochOffset{
		topic: {record.Partition: {Epoch: record.LeaderEpoch, Offset: record.Offset}},
	})
}

// HandleRecord transforms one record and produces the outcome. Rejected
// records go to the error topic; the returned error concerns delivery only.
func (s *Service) HandleRecord(ctx context.Context, record *kgo.Record) error {
	res, err := s.transform.Apply(record.Value)
	if err != nil {
		if s.config.ErrorTopic == "" {
			s.logger.Warn("Record rejected",
				zap.String("topic", record.Topic),
				zap.Int64("offset", record.Offset),
				zap.Error(err))
			return nil
		}
		return s.produce(ctx, RejectRecord(record, s.config.ErrorTopic, err))
	}
	return s.produce(ctx, MapRecord(record, s.config.OutputTopic, res))
}

// MapRecord builds the output record for res. The input key and headers are
// kept and the key header is set to the digest.
func MapRecord(in *kgo.Record, topic string, res *keygen.Result) *kgo.Record {
	return &kgo.Record{
		Topic:   topic,
		Key:     in.Key,
		Value:   res.Record,
		Headers: withHeader(in.Headers, KeyHeader, res.Key),
	}
}

// RejectRecord builds the error topic record for a record that failed with
// cause. The original value is kept untouched.
func RejectRecord(in *kgo.Record, topic string, cause error) *kgo.Record {
	headers := withHeader(in.Headers, ErrorHeader, cause.Error())
	headers = withHeader(headers, SourceTopicHeader, in.Topic)
	return &kgo.Record{
		Topic:   topic,
		Key:     in.Key,
		Value:   in.Value,
		Headers: headers,
	}
}

func withHeader(headers []kgo.RecordHeader, key, value string) []kgo.RecordHeader {
	out := make([]kgo.RecordHeader, 0, len(headers)+1)
	for _, h := range headers {
		if h.Key != key {
			out = append(out, h)
		}
	}
	return append(out, kgo.RecordHeader{Key: key, Value: []byte(value)})
}

func (s *Service) produce(ctx context.Context, record *kgo.Record) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.config.RetryInterval
	policy.Reset()

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		return s.client.ProduceSync(ctx, record).FirstErr()
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.config.PublishMaxRetries)), ctx))
	if err != nil {
		return sdkerrors.NewError(sdkerrors.CodePublish,
			fmt.Sprintf("cannot produce to %s after %d attempts", record.Topic, attempt),
			fmt.Errorf("%w: %w", sdkerrors.ErrPublishFailed, err))
	}

	s.recorder.ObservePublish(record.Topic)
	return nil
}
