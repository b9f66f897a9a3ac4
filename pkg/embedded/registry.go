package embedded

// NewDefaultRegistry creates an empty executor registry.
// Note: Executors must be registered manually to avoid import cycles.
// See pkg/embedded/processors/registry for a pre-configured registry.
func NewDefaultRegistry() *ExecutorRegistry {
	return NewExecutorRegistry()
}
