// Package embedded runs embedded node executors by plugin type.
package embedded

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// NodeConfig contains configuration for executing a single embedded node
type NodeConfig struct {
	NodeID        string
	PluginType    string
	Configuration json.RawMessage
	Input         []byte
}

// NodeExecutor defines the interface for executing embedded nodes
type NodeExecutor interface {
	// Execute executes a node with the given configuration
	Execute(ctx context.Context, config NodeConfig) ([]byte, error)

	// PluginType returns the plugin type this executor handles
	PluginType() string
}

// ExecutorRegistry manages executors for different plugin types
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[string]NodeExecutor
}

// NewExecutorRegistry creates a new executor registry
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		executors: make(map[string]NodeExecutor),
	}
}

// Register registers a node executor for its own plugin type
func (r *ExecutorRegistry) Register(executor NodeExecutor) {
	r.RegisterWithName(executor, executor.PluginType())
}

// RegisterWithName registers executor under an additional plugin type name
func (r *ExecutorRegistry) RegisterWithName(executor NodeExecutor, pluginType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[pluginType] = executor
}

// Execute executes a node using the appropriate executor for its plugin type
func (r *ExecutorRegistry) Execute(ctx context.Context, config NodeConfig) ([]byte, error) {
	r.mu.RLock()
	executor, ok := r.executors[config.PluginType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no executor registered for plugin type: %s", config.PluginType)
	}

	return executor.Execute(ctx, config)
}

// HasExecutor checks if an executor exists for a plugin type
func (r *ExecutorRegistry) HasExecutor(pluginType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[pluginType]
	return ok
}

// RegisteredTypes returns all registered plugin types, sorted
func (r *ExecutorRegistry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.executors))
	for pluginType := range r.executors {
		types = append(types, pluginType)
	}
	sort.Strings(types)
	return types
}
