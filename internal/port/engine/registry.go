package engine

import (
	"context"
	"fmt"
	"sync"
)

// Factory is a constructor function that creates a new Engine instance.
type Factory func() Engine

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// autoOrder is the probe order used by Detect.
var autoOrder = []string{"docker", "podman", "apple"}

// Register makes an engine factory available by name.
// It is typically called from an init() function in the adapter package.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("engine: duplicate registration for %q", name))
	}
	factories[name] = factory
}

// New creates an Engine by name using the registered factory.
func New(name string) (Engine, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("engine: unknown backend %q", name)
	}
	return factory(), nil
}

// Detect resolves "auto" by probing registered backends in priority order
// (docker, podman, apple) and returns the first available one. An explicit
// backend name bypasses probing.
func Detect(ctx context.Context, backend string) (Engine, error) {
	if backend != "" && backend != "auto" {
		return New(backend)
	}

	for _, name := range autoOrder {
		eng, err := New(name)
		if err != nil {
			continue
		}
		if eng.IsAvailable(ctx) {
			return eng, nil
		}
	}
	return nil, fmt.Errorf("engine: no available backend (probed %v)", autoOrder)
}

// Available returns the names of all registered backends.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
