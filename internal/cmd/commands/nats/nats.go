package nats

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wehubfusion/keygen/internal/cmd/base"
	natsconn "github.com/wehubfusion/keygen/internal/nats"
	"github.com/wehubfusion/keygen/internal/tracing"
	"github.com/wehubfusion/keygen/internal/version"
	"github.com/wehubfusion/keygen/pkg/concurrency"
	"github.com/wehubfusion/keygen/pkg/embedded/processors/keygen"
	"github.com/wehubfusion/keygen/pkg/logging"
	"github.com/wehubfusion/keygen/pkg/metrics"
	"github.com/wehubfusion/keygen/pkg/stream/natsmap"
)

type Command struct {
	*base.Command

	flagSpec           string
	flagURL            string
	flagInput          string
	flagQueue          string
	flagOutput         string
	flagErrors         string
	flagToken          string
	flagUser           string
	flagPassword       string
	flagPublishRetries int
	flagMetricsAddr    string
	flagOTLPEndpoint   string
}

func (c *Command) Synopsis() string {
	return "Add keys to records flowing through NATS subjects"
}

func (c *Command) Help() string {
	return `Usage: keygen nats -spec=spec.yaml -input=records.raw -output=records.keyed

Queue-subscribes to the input subject and republishes every record with its
key field set. Published messages carry the key in the Nats-Msg-Id header so a
JetStream stream on the output subject drops duplicates.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("nats", flag.ContinueOnError))

	f.StringVar(&c.flagSpec, "spec", "", "[KEYGEN_SPEC] Path to the specification file (JSON or YAML)")
	f.StringVar(&c.flagURL, "url", "", "[KEYGEN_NATS_URL] NATS server URL")
	f.StringVar(&c.flagInput, "input", "", "[KEYGEN_NATS_INPUT] Subject to consume records from")
	f.StringVar(&c.flagQueue, "queue", "keygen", "Queue group shared by service instances")
	f.StringVar(&c.flagOutput, "output", "", "[KEYGEN_NATS_OUTPUT] Subject to publish keyed records to")
	f.StringVar(&c.flagErrors, "errors", "", "[KEYGEN_NATS_ERRORS] Subject for records that cannot be transformed")
	f.StringVar(&c.flagToken, "token", "", "[KEYGEN_NATS_TOKEN] Authentication token")
	f.StringVar(&c.flagUser, "user", "", "[KEYGEN_NATS_USER] Username")
	f.StringVar(&c.flagPassword, "password", "", "[KEYGEN_NATS_PASSWORD] Password")
	f.IntVar(&c.flagPublishRetries, "publish-retries", 3, "Retries after a failed publish")
	f.StringVar(&c.flagMetricsAddr, "metrics-addr", "", "[KEYGEN_METRICS_ADDR] Address for the Prometheus /metrics endpoint")
	f.StringVar(&c.flagOTLPEndpoint, "otlp-endpoint", "", "[KEYGEN_OTLP_ENDPOINT] OTLP HTTP collector host:port")

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	url := base.FromEnv(c.flagURL, "KEYGEN_NATS_URL")
	if url == "" {
		url = "nats://127.0.0.1:4222"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	undo := concurrency.InitializeForKubernetes(c.Log)
	defer undo()
	conc := concurrency.LoadConfig()

	shutdown, err := tracing.SetupTracing(ctx, tracing.TracingConfig{
		ServiceName:    "keygen-nats",
		ServiceVersion: version.Version,
		Environment:    base.FromEnv("", "KEYGEN_ENVIRONMENT"),
		OTLPEndpoint:   base.FromEnv(c.flagOTLPEndpoint, "KEYGEN_OTLP_ENDPOINT"),
		SampleRatio:    1.0,
	}, c.Log)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error setting up tracing: %v", err))
		return 1
	}
	defer tracing.ShutdownTracing(shutdown, c.Log)

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry, "nats")
	if err != nil {
		c.UI.Error(fmt.Sprintf("error registering metrics: %v", err))
		return 1
	}
	base.ServeMetrics(ctx, base.FromEnv(c.flagMetricsAddr, "KEYGEN_METRICS_ADDR"), registry, c.Log)

	cfg, err := c.LoadSpec(base.FromEnv(c.flagSpec, "KEYGEN_SPEC"))
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	transform, err := keygen.New(cfg,
		keygen.WithLogger(logging.NewZapLogger(c.Log)),
		keygen.WithRecorder(recorder))
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	connCfg := natsconn.DefaultConnectionConfig(url)
	connCfg.Token = base.FromEnv(c.flagToken, "KEYGEN_NATS_TOKEN")
	connCfg.Username = base.FromEnv(c.flagUser, "KEYGEN_NATS_USER")
	connCfg.Password = base.FromEnv(c.flagPassword, "KEYGEN_NATS_PASSWORD")
	conn, err := natsconn.Connect(ctx, connCfg, c.Log)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer func() {
		if err := natsconn.Close(conn); err != nil {
			c.Log.Warn("Error closing NATS connection", zap.Error(err))
		}
	}()

	svc, err := natsmap.NewService(conn, transform, natsmap.Config{
		InputSubject:      base.FromEnv(c.flagInput, "KEYGEN_NATS_INPUT"),
		Queue:             c.flagQueue,
		OutputSubject:     base.FromEnv(c.flagOutput, "KEYGEN_NATS_OUTPUT"),
		ErrorSubject:      base.FromEnv(c.flagErrors, "KEYGEN_NATS_ERRORS"),
		PublishMaxRetries: c.flagPublishRetries,
	},
		natsmap.WithLogger(c.Log),
		natsmap.WithRecorder(recorder),
		natsmap.WithLimiter(concurrency.NewLimiter(conc.MaxConcurrent, nil)),
	)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	c.Log.Info("Starting keygen NATS service",
		zap.String("version", version.Version),
		zap.Int("max_concurrent", conc.MaxConcurrent))
	if err := svc.Run(ctx); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}
