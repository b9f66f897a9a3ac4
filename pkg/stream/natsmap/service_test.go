package natsmap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wehubfusion/keygen/pkg/concurrency"
	"github.com/wehubfusion/keygen/pkg/embedded/processors/keygen"
	sdkerrors "github.com/wehubfusion/keygen/pkg/errors"
	"github.com/wehubfusion/keygen/pkg/metrics"
)

const feedKey = "3193200642d322d171dd4c05875741ff7a4fc0f7a467b52d514d5ce273d4f762"

var feedRecord = []byte(`{"pub_date":"Mon, 17 Apr 2023 16:08:23 GMT","last_build_date":"Tue, 18 Apr 2023 15:00:01 GMT"}`)

// mockConn records published messages and can fail the first N publishes.
type mockConn struct {
	mu        sync.Mutex
	published []*nats.Msg
	failures  int
	handler   nats.MsgHandler
	subject   string
	queue     string
	subErr    error
}

func (m *mockConn) QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return nil, m.subErr
	}
	m.subject, m.queue, m.handler = subject, queue, cb
	return nil, nil
}

func (m *mockConn) PublishMsg(msg *nats.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return nats.ErrConnectionClosed
	}
	m.published = append(m.published, msg)
	return nil
}

func (m *mockConn) messages() []*nats.Msg {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*nats.Msg, len(m.published))
	copy(out, m.published)
	return out
}

func (m *mockConn) deliver(msg *nats.Msg) {
	m.mu.Lock()
	cb := m.handler
	m.mu.Unlock()
	cb(msg)
}

func newTransform(t *testing.T) *keygen.Transform {
	t.Helper()
	transform, err := keygen.New(keygen.Config{
		Lookup:  []string{"/pub_date", "/last_build_date"},
		KeyName: "dedup_key",
	})
	require.NoError(t, err)
	return transform
}

func testConfig() Config {
	return Config{
		InputSubject:      "feeds.raw",
		Queue:             "keygen",
		OutputSubject:     "feeds.keyed",
		ErrorSubject:      "feeds.rejected",
		PublishMaxRetries: 2,
		RetryInterval:     time.Millisecond,
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := testConfig()
	assert.NoError(t, cfg.Validate())

	cfg.OutputSubject = cfg.InputSubject
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.ErrorSubject = ""
	assert.NoError(t, cfg.Validate())

	cfg.InputSubject = ""
	assert.Error(t, cfg.Validate())
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(nil, newTransform(t), testConfig())
	assert.True(t, sdkerrors.IsNotConnected(err))

	_, err = NewService(&mockConn{}, nil, testConfig())
	assert.Equal(t, sdkerrors.CodeConfig, sdkerrors.CodeOf(err))

	_, err = NewService(&mockConn{}, newTransform(t), Config{})
	assert.Equal(t, sdkerrors.CodeConfig, sdkerrors.CodeOf(err))
}

func TestHandleMessage_PublishesKeyedRecord(t *testing.T) {
	conn := &mockConn{}
	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry, "nats")
	require.NoError(t, err)

	svc, err := NewService(conn, newTransform(t), testConfig(), WithRecorder(recorder))
	require.NoError(t, err)

	require.NoError(t, svc.HandleMessage(context.Background(), &nats.Msg{Subject: "feeds.raw", Data: feedRecord}))

	msgs := conn.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "feeds.keyed", msgs[0].Subject)
	assert.Equal(t, feedKey, msgs[0].Header.Get(nats.MsgIdHdr))
	assert.JSONEq(t, `{
		"pub_date":"Mon, 17 Apr 2023 16:08:23 GMT",
		"last_build_date":"Tue, 18 Apr 2023 15:00:01 GMT",
		"dedup_key":"`+feedKey+`"
	}`, string(msgs[0].Data))

	count, err := testutil.GatherAndCount(registry, "keygen_stream_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandleMessage_RoutesRejectedRecords(t *testing.T) {
	conn := &mockConn{}
	svc, err := NewService(conn, newTransform(t), testConfig())
	require.NoError(t, err)

	require.NoError(t, svc.HandleMessage(context.Background(), &nats.Msg{Subject: "feeds.raw", Data: []byte(`[1,2]`)}))

	msgs := conn.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "feeds.rejected", msgs[0].Subject)
	assert.Equal(t, []byte(`[1,2]`), msgs[0].Data)
	assert.Contains(t, msgs[0].Header.Get(ErrorHeader), "expected object")
	assert.Equal(t, "feeds.raw", msgs[0].Header.Get(SourceSubjectHeader))
}

func TestHandleMessage_DropsRejectedWithoutErrorSubject(t *testing.T) {
	conn := &mockConn{}
	cfg := testConfig()
	cfg.ErrorSubject = ""
	svc, err := NewService(conn, newTransform(t), cfg)
	require.NoError(t, err)

	require.NoError(t, svc.HandleMessage(context.Background(), &nats.Msg{Subject: "feeds.raw", Data: []byte(`oops`)}))
	assert.Empty(t, conn.messages())
}

func TestHandleMessage_RetriesPublish(t *testing.T) {
	conn := &mockConn{failures: 2}
	svc, err := NewService(conn, newTransform(t), testConfig())
	require.NoError(t, err)

	require.NoError(t, svc.HandleMessage(context.Background(), &nats.Msg{Subject: "feeds.raw", Data: feedRecord}))
	assert.Len(t, conn.messages(), 1)
}

func TestHandleMessage_GivesUpAfterRetries(t *testing.T) {
	conn := &mockConn{failures: 10}
	svc, err := NewService(conn, newTransform(t), testConfig())
	require.NoError(t, err)

	err = svc.HandleMessage(context.Background(), &nats.Msg{Subject: "feeds.raw", Data: feedRecord})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerrors.ErrPublishFailed)
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
	assert.Equal(t, sdkerrors.CodePublish, sdkerrors.CodeOf(err))

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Equal(t, 7, conn.failures)
}

func TestHandleMessage_RecordsSpans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	conn := &mockConn{}
	svc, err := NewService(conn, newTransform(t), testConfig(), WithTracer(provider.Tracer("test")))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.HandleMessage(ctx, &nats.Msg{Subject: "feeds.raw", Data: feedRecord}))
	require.NoError(t, svc.HandleMessage(ctx, &nats.Msg{Subject: "feeds.raw", Data: []byte(`{`)}))

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "keygen.HandleMessage", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	conn := &mockConn{}
	svc, err := NewService(conn, newTransform(t), testConfig(),
		WithLimiter(concurrency.NewLimiter(4, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.handler != nil
	}, time.Second, time.Millisecond)
	assert.Equal(t, "feeds.raw", conn.subject)
	assert.Equal(t, "keygen", conn.queue)

	for i := 0; i < 5; i++ {
		conn.deliver(&nats.Msg{Subject: "feeds.raw", Data: feedRecord})
	}
	require.Eventually(t, func() bool { return len(conn.messages()) == 5 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_SubscribeFailure(t *testing.T) {
	conn := &mockConn{subErr: errors.New("permission denied")}
	svc, err := NewService(conn, newTransform(t), testConfig())
	require.NoError(t, err)

	err = svc.Run(context.Background())
	assert.ErrorIs(t, err, sdkerrors.ErrSubscriptionFailed)
	assert.Equal(t, sdkerrors.CodeSubscribe, sdkerrors.CodeOf(err))
}
