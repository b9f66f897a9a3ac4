package registry

import (
	"github.com/wehubfusion/keygen/pkg/embedded"
	"github.com/wehubfusion/keygen/pkg/embedded/processors/keygen"
)

// NewRegistry creates a new executor registry with all built-in executors registered
func NewRegistry() *embedded.ExecutorRegistry {
	registry := embedded.NewDefaultRegistry()

	// Register key generator executor (with both new and legacy names)
	keygenExecutor := keygen.NewExecutor()
	registry.Register(keygenExecutor)
	registry.RegisterWithName(keygenExecutor, keygen.LegacyPluginType)

	return registry
}
