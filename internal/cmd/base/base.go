// Package base holds what every keygen subcommand shares: the UI, the logger
// and helpers for flags, the transform specification and metrics.
package base

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/cli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wehubfusion/keygen/pkg/embedded/processors/keygen"
)

// Command is embedded by every subcommand.
type Command struct {
	UI  cli.Ui
	Log *zap.Logger
	// Fs is where specification files are read from.
	Fs afero.Fs
}

// NewCommand creates a Command reading files from the OS file system.
func NewCommand(log *zap.Logger, ui cli.Ui) *Command {
	if log == nil {
		log = zap.NewNop()
	}
	return &Command{UI: ui, Log: log, Fs: afero.NewOsFs()}
}

// LoadSpec reads and parses the specification file at path.
func (c *Command) LoadSpec(path string) (keygen.Config, error) {
	if path == "" {
		return keygen.Config{}, errors.New("specification file is required (-spec or KEYGEN_SPEC)")
	}
	return keygen.LoadConfigFile(c.Fs, path)
}

// FlagSet wraps flag.FlagSet to render help text.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet wraps f. Flag output is discarded so errors surface through the UI.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	f.SetOutput(&bytes.Buffer{})
	return &FlagSet{FlagSet: f}
}

// Help lists the flags with their usage and defaults.
func (f *FlagSet) Help() string {
	var b strings.Builder
	b.WriteString("\n\nOptions:\n")
	f.VisitAll(func(fl *flag.Flag) {
		fmt.Fprintf(&b, "\n  -%s\n      %s", fl.Name, fl.Usage)
		if fl.DefValue != "" && fl.DefValue != "false" {
			fmt.Fprintf(&b, " (default: %s)", fl.DefValue)
		}
		b.WriteString("\n")
	})
	return b.String()
}

// FromEnv returns value, or the environment variable env when value is empty.
func FromEnv(value, env string) string {
	if val, ok := os.LookupEnv(env); ok && value == "" {
		return val
	}
	return value
}

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ServeMetrics exposes registry on addr at /metrics until ctx is done. An
// empty addr disables the endpoint.
func ServeMetrics(ctx context.Context, addr string, registry *prometheus.Registry, log *zap.Logger) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
