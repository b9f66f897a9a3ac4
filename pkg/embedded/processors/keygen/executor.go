package keygen

import (
	"context"
	"encoding/json"

	"github.com/wehubfusion/keygen/pkg/embedded"
)

const (
	// PluginType is the embedded node type handled by Executor.
	PluginType = "plugin-keygen"
	// LegacyPluginType is accepted for nodes configured with the short name.
	LegacyPluginType = "keygen"
)

// Executor implements embedded.NodeExecutor for key generation. The node
// configuration is a Config in JSON form and the node input is the record.
type Executor struct{}

// NewExecutor creates a new key generation executor
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute transforms config.Input with the transform described by
// config.Configuration.
func (e *Executor) Execute(ctx context.Context, config embedded.NodeConfig) ([]byte, error) {
	var cfg Config
	if err := json.Unmarshal(config.Configuration, &cfg); err != nil {
		return nil, &ConfigError{Message: "failed to parse keygen configuration", Cause: err}
	}

	transform, err := New(cfg)
	if err != nil {
		return nil, err
	}

	res, err := transform.Apply(config.Input)
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

// PluginType returns the plugin type this executor handles
func (e *Executor) PluginType() string {
	return PluginType
}

var _ embedded.NodeExecutor = (*Executor)(nil)
