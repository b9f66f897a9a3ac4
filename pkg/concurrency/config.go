package concurrency

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/wehubfusion/keygen/pkg/iteration"
)

// Environment variables read by LoadConfig.
const (
	EnvMaxConcurrent         = "KEYGEN_MAX_CONCURRENT"
	EnvConcurrencyMultiplier = "KEYGEN_CONCURRENCY_MULTIPLIER"
	EnvBatchMode             = "KEYGEN_BATCH_MODE"
)

// ConfigSource indicates where the configuration came from
type ConfigSource string

const (
	ConfigSourceEnvVar     ConfigSource = "environment_variable"
	ConfigSourceAutoDetect ConfigSource = "auto_detect"
)

// Config holds concurrency settings for stream services and batch runs.
type Config struct {
	MaxConcurrent int
	BatchMode     iteration.Strategy
	Source        ConfigSource
	IsKubernetes  bool
	EffectiveCPUs int
}

// LoadConfig reads the concurrency settings. Explicit values win over the
// multiplier, which wins over auto-detection.
func LoadConfig() *Config {
	config := &Config{
		IsKubernetes:  isKubernetes(),
		EffectiveCPUs: runtime.GOMAXPROCS(0),
	}

	if maxConcurrent := getEnvInt(EnvMaxConcurrent, 0); maxConcurrent > 0 {
		config.MaxConcurrent = maxConcurrent
		config.Source = ConfigSourceEnvVar
	} else if multiplier := getEnvInt(EnvConcurrencyMultiplier, 0); multiplier > 0 {
		config.MaxConcurrent = config.EffectiveCPUs * multiplier
		config.Source = ConfigSourceEnvVar
	} else {
		config.MaxConcurrent = defaultMaxConcurrent(config.IsKubernetes, config.EffectiveCPUs)
		config.Source = ConfigSourceAutoDetect
	}
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}

	switch mode := iteration.Strategy(strings.ToLower(os.Getenv(EnvBatchMode))); mode {
	case iteration.StrategyParallel, iteration.StrategySequential:
		config.BatchMode = mode
	default:
		config.BatchMode = iteration.StrategySequential
	}

	return config
}

// IterationConfig returns the settings for keygen.Transform.ApplyBatch.
func (c *Config) IterationConfig() iteration.Config {
	return iteration.Config{Strategy: c.BatchMode, MaxConcurrent: c.MaxConcurrent}
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{MaxConcurrent: %d, BatchMode: %s, IsK8s: %t, CPUs: %d, Source: %s}",
		c.MaxConcurrent,
		c.BatchMode,
		c.IsKubernetes,
		c.EffectiveCPUs,
		c.Source,
	)
}

// Kubernetes sets this in every container.
func isKubernetes() bool {
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}

func defaultMaxConcurrent(isK8s bool, cpus int) int {
	if isK8s {
		return cpus * 2
	}
	return cpus * 4
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
