package run

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/wehubfusion/keygen/internal/cmd/base"
	"github.com/wehubfusion/keygen/pkg/concurrency"
	"github.com/wehubfusion/keygen/pkg/embedded/processors/keygen"
	"github.com/wehubfusion/keygen/pkg/logging"
)

// maxLineSize bounds a single NDJSON record.
const maxLineSize = 16 << 20

type Command struct {
	*base.Command

	// In and Out default to stdin and stdout.
	In  io.Reader
	Out io.Writer

	flagSpec      string
	flagBatchSize int
}

func (c *Command) Synopsis() string {
	return "Add keys to newline-delimited JSON records"
}

func (c *Command) Help() string {
	return `Usage: keygen run -spec=spec.yaml < records.ndjson

Reads one JSON object per line from standard input, adds the configured key
field and writes the result to standard output in input order. Records that
cannot be transformed are reported on standard error and the command exits
with status 1 after processing all input.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("run", flag.ContinueOnError))

	f.StringVar(
		&c.flagSpec, "spec", "",
		"[KEYGEN_SPEC] Path to the specification file (JSON or YAML)",
	)
	f.IntVar(
		&c.flagBatchSize, "batch-size", 256,
		"Records transformed together; KEYGEN_BATCH_MODE selects sequential or parallel",
	)

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfg, err := c.LoadSpec(base.FromEnv(c.flagSpec, "KEYGEN_SPEC"))
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	transform, err := keygen.New(cfg, keygen.WithLogger(logging.NewZapLogger(c.Log)))
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	in, out := c.In, c.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	batchSize := c.flagBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	conc := concurrency.LoadConfig()
	c.Log.Debug("Concurrency configuration", zap.Stringer("config", conc))

	result := c.process(context.Background(), transform, in, out, batchSize, conc)
	if result.ErrorOrNil() != nil {
		c.UI.Error(result.Error())
		return 1
	}
	return 0
}

func (c *Command) process(ctx context.Context, transform *keygen.Transform, in io.Reader, out io.Writer, batchSize int, conc *concurrency.Config) *multierror.Error {
	var result *multierror.Error
	w := bufio.NewWriter(out)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		batch [][]byte
		lines []int
		line  int
	)
	flush := func() {
		for i, r := range transform.ApplyBatch(ctx, batch, conc.IterationConfig()) {
			if r.Err != nil {
				result = multierror.Append(result, fmt.Errorf("line %d: %w", lines[i], r.Err))
				continue
			}
			// write errors stick to w and surface at Flush
			_, _ = w.Write(r.Result.Record)
			_ = w.WriteByte('\n')
		}
		batch, lines = batch[:0], lines[:0]
	}

	for scanner.Scan() {
		line++
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		record := make([]byte, len(scanner.Bytes()))
		copy(record, scanner.Bytes())
		batch = append(batch, record)
		lines = append(lines, line)
		if len(batch) >= batchSize {
			flush()
		}
	}
	if len(batch) > 0 {
		flush()
	}
	if err := scanner.Err(); err != nil {
		result = multierror.Append(result, fmt.Errorf("reading input: %w", err))
	}
	if err := w.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("writing output: %w", err))
	}
	return result
}
