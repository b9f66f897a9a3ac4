package kafka

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wehubfusion/keygen/internal/cmd/base"
	"github.com/wehubfusion/keygen/internal/version"
	"github.com/wehubfusion/keygen/pkg/concurrency"
	"github.com/wehubfusion/keygen/pkg/embedded/processors/keygen"
	"github.com/wehubfusion/keygen/pkg/logging"
	"github.com/wehubfusion/keygen/pkg/metrics"
	"github.com/wehubfusion/keygen/pkg/stream/kafkamap"
)

type Command struct {
	*base.Command

	flagSpec           string
	flagBrokers        string
	flagInput          string
	flagGroup          string
	flagOutput         string
	flagErrors         string
	flagFromStart      bool
	flagPublishRetries int
	flagMetricsAddr    string
}

func (c *Command) Synopsis() string {
	return "Add keys to records flowing through Kafka or Redpanda topics"
}

func (c *Command) Help() string {
	return `Usage: keygen kafka -spec=spec.yaml -brokers=localhost:9092 -input=records.raw -output=records.keyed

Consumes the input topic as part of a consumer group and produces every record
with its key field set. Output records keep the input record key and carry the
digest in the keygen-key header.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("kafka", flag.ContinueOnError))

	f.StringVar(&c.flagSpec, "spec", "", "[KEYGEN_SPEC] Path to the specification file (JSON or YAML)")
	f.StringVar(&c.flagBrokers, "brokers", "", "[KEYGEN_KAFKA_BROKERS] Comma-separated seed brokers")
	f.StringVar(&c.flagInput, "input", "", "[KEYGEN_KAFKA_INPUT] Topic to consume records from")
	f.StringVar(&c.flagGroup, "group", "keygen", "Consumer group")
	f.StringVar(&c.flagOutput, "output", "", "[KEYGEN_KAFKA_OUTPUT] Topic to produce keyed records to")
	f.StringVar(&c.flagErrors, "errors", "", "[KEYGEN_KAFKA_ERRORS] Topic for records that cannot be transformed")
	f.BoolVar(&c.flagFromStart, "from-start", false, "Start a new consumer group at the oldest offset")
	f.IntVar(&c.flagPublishRetries, "publish-retries", 3, "Retries after a failed produce")
	f.StringVar(&c.flagMetricsAddr, "metrics-addr", "", "[KEYGEN_METRICS_ADDR] Address for the Prometheus /metrics endpoint")

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	undo := concurrency.InitializeForKubernetes(c.Log)
	defer undo()

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry, "kafka")
	if err != nil {
		c.UI.Error(fmt.Sprintf("error registering metrics: %v", err))
		return 1
	}
	base.ServeMetrics(ctx, base.FromEnv(c.flagMetricsAddr, "KEYGEN_METRICS_ADDR"), registry, c.Log)

	spec, err := c.LoadSpec(base.FromEnv(c.flagSpec, "KEYGEN_SPEC"))
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	transform, err := keygen.New(spec,
		keygen.WithLogger(logging.NewZapLogger(c.Log)),
		keygen.WithRecorder(recorder))
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	cfg := kafkamap.Config{
		Brokers:           base.SplitList(base.FromEnv(c.flagBrokers, "KEYGEN_KAFKA_BROKERS")),
		InputTopic:        base.FromEnv(c.flagInput, "KEYGEN_KAFKA_INPUT"),
		ConsumerGroup:     c.flagGroup,
		OutputTopic:       base.FromEnv(c.flagOutput, "KEYGEN_KAFKA_OUTPUT"),
		ErrorTopic:        base.FromEnv(c.flagErrors, "KEYGEN_KAFKA_ERRORS"),
		ConsumeFromStart:  c.flagFromStart,
		PublishMaxRetries: c.flagPublishRetries,
	}
	client, err := kafkamap.NewClient(cfg)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer client.Close()

	svc, err := kafkamap.NewService(client, transform, cfg,
		kafkamap.WithLogger(c.Log),
		kafkamap.WithRecorder(recorder))
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	c.Log.Info("Starting keygen Kafka service",
		zap.String("version", version.Version),
		zap.Strings("brokers", cfg.Brokers))
	if err := svc.Run(ctx); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}
