// Package natsmap runs the key generator as a NATS service: records arriving
// on an input subject are augmented with their key and republished.
package natsmap

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/keygen/pkg/concurrency"
	"github.com/wehubfusion/keygen/pkg/embedded/processors/keygen"
	sdkerrors "github.com/wehubfusion/keygen/pkg/errors"
	"github.com/wehubfusion/keygen/pkg/metrics"
)

// Headers set on published messages.
const (
	// ErrorHeader carries the rejection reason on the error subject.
	ErrorHeader = "Keygen-Error"
	// SourceSubjectHeader carries the subject a rejected record arrived on.
	SourceSubjectHeader = "Keygen-Source-Subject"
)

// Conn is the part of *nats.Conn the service uses.
type Conn interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
	PublishMsg(msg *nats.Msg) error
}

// Config describes where records come from and where they go.
type Config struct {
	InputSubject  string
	Queue         string
	OutputSubject string
	// ErrorSubject receives records that could not be transformed. Empty
	// drops them after logging.
	ErrorSubject string

	// PublishMaxRetries bounds retries after a failed publish.
	PublishMaxRetries int
	// RetryInterval is the first backoff interval between publish attempts.
	RetryInterval time.Duration
}

// Validate checks the subjects and retry settings.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.InputSubject, validation.Required),
		validation.Field(&c.OutputSubject, validation.Required,
			validation.NotIn(c.InputSubject).Error("must differ from the input subject")),
		validation.Field(&c.ErrorSubject,
			validation.NotIn(c.InputSubject).Error("must differ from the input subject")),
		validation.Field(&c.PublishMaxRetries, validation.Min(0)),
	)
}

// Service consumes, transforms and republishes records.
type Service struct {
	conn      Conn
	transform *keygen.Transform
	config    Config
	limiter   *concurrency.Limiter
	logger    *zap.Logger
	recorder  *metrics.Recorder
	tracer    trace.Tracer
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

// WithLimiter bounds concurrent message handling.
func WithLimiter(limiter *concurrency.Limiter) Option {
	return func(s *Service) {
		if limiter != nil {
			s.limiter = limiter
		}
	}
}

// WithRecorder records publish metrics.
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// WithTracer sets the tracer used for per-message spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewService validates config and creates a service.
func NewService(conn Conn, transform *keygen.Transform, config Config, opts ...Option) (*Service, error) {
	if conn == nil {
		return nil, sdkerrors.NewError(sdkerrors.CodeConnection, "NATS connection is required", sdkerrors.ErrNotConnected)
	}
	if transform == nil {
		return nil, sdkerrors.NewError(sdkerrors.CodeConfig, "transform is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, sdkerrors.NewError(sdkerrors.CodeConfig, "invalid NATS map configuration", err)
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 200 * time.Millisecond
	}

	s := &Service{
		conn:      conn,
		transform: transform,
		config:    config,
		limiter:   concurrency.NewLimiter(1, nil),
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("keygen/natsmap"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run subscribes to the input subject and handles messages until ctx is done.
// In-flight messages are finished before Run returns.
func (s *Service) Run(ctx context.Context) error {
	sub, err := s.conn.QueueSubscribe(s.config.InputSubject, s.config.Queue, func(msg *nats.Msg) {
		s.dispatch(ctx, msg)
	})
	if err != nil {
		return sdkerrors.NewError(sdkerrors.CodeSubscribe,
			fmt.Sprintf("cannot subscribe to %s", s.config.InputSubject),
			fmt.Errorf("%w: %w", sdkerrors.ErrSubscriptionFailed, err))
	}

	s.logger.Info("NATS map service started",
		zap.String("input", s.config.InputSubject),
		zap.String("queue", s.config.Queue),
		zap.String("output", s.config.OutputSubject),
		zap.String("errors", s.config.ErrorSubject))

	<-ctx.Done()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("Failed to unsubscribe", zap.Error(err))
		}
	}
	s.limiter.Wait()
	s.logger.Info("NATS map service stopped")
	return nil
}

func (s *Service) dispatch(ctx context.Context, msg *nats.Msg) {
	// Publishing outlives shutdown of the subscription.
	msgCtx := otel.GetTextMapPropagator().Extract(context.WithoutCancel(ctx), propagation.HeaderCarrier(msg.Header))
	err := s.limiter.Go(ctx, func() error {
		return s.HandleMessage(msgCtx, msg)
	})
	if err != nil {
		s.logger.Warn("Dropping message",
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

// HandleMessage transforms one message and publishes the outcome. A record
// that cannot be transformed is routed to the error subject and does not
// produce an error; the returned error always concerns delivery.
func (s *Service) HandleMessage(ctx context.Context, msg *nats.Msg) error {
	ctx, span := s.tracer.Start(ctx, "keygen.HandleMessage",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.source.name", msg.Subject),
			attribute.Int("messaging.message.body.size", len(msg.Data)),
		))
	defer span.End()

	res, err := s.transform.Apply(msg.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record rejected")
		return s.reject(ctx, msg, err)
	}

	span.SetAttributes(
		attribute.String("keygen.key", res.Key),
		attribute.Int("keygen.missing_paths", len(res.Missing)))

	out := nats.NewMsg(s.config.OutputSubject)
	out.Data = res.Record
	out.Header.Set(nats.MsgIdHdr, res.Key)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))

	if err := s.publish(ctx, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *Service) reject(ctx context.Context, msg *nats.Msg, cause error) error {
	if s.config.ErrorSubject == "" {
		s.logger.Warn("Record rejected",
			zap.String("subject", msg.Subject),
			zap.Error(cause))
		return nil
	}

	out := nats.NewMsg(s.config.ErrorSubject)
	out.Data = msg.Data
	out.Header.Set(ErrorHeader, cause.Error())
	out.Header.Set(SourceSubjectHeader, msg.Subject)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))

	return s.publish(ctx, out)
}

func (s *Service) publish(ctx context.Context, msg *nats.Msg) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.config.RetryInterval
	policy.Reset()

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := s.conn.PublishMsg(msg)
		if err != nil && attempt <= s.config.PublishMaxRetries {
			s.logger.Warn("Failed to publish, retrying",
				zap.String("subject", msg.Subject),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", s.config.PublishMaxRetries),
				zap.Error(err))
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.config.PublishMaxRetries)), ctx))

	if err != nil {
		s.logger.Error("Failed to publish after all retries",
			zap.String("subject", msg.Subject),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return sdkerrors.NewError(sdkerrors.CodePublish,
			fmt.Sprintf("cannot publish to %s", msg.Subject),
			fmt.Errorf("%w: %w", sdkerrors.ErrPublishFailed, err))
	}

	s.recorder.ObservePublish(msg.Subject)
	return nil
}
