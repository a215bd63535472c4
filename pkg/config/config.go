package config

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNoValue is returned by Get when no value is set, which callers treat
	// as a signal to use their default.
	ErrNoValue = errors.New("config: no value set")

	// ErrShutdown is returned by Get after Shutdown.
	ErrShutdown = errors.New("config: shutdown")
)

// Config is an untyped configuration source. Hosts read their limits through
// the typed Bool and Uint64 wrappers rather than through Config directly.
type Config interface {
	// Get returns the current value, or ErrNoValue when unset.
	Get(ctx context.Context) (interface{}, error)

	Shutdown()
}

// NoopConfig never holds a value, so a typed wrapper over it always yields
// its default.
var NoopConfig Config = noopConfig{}

type noopConfig struct{}

func (noopConfig) Get(_ context.Context) (interface{}, error) {
	return nil, ErrNoValue
}

func (noopConfig) Shutdown() {}

// Bool is a config.Config typed as a bool.
type Bool interface {
	Get(ctx context.Context) bool
	GetSafe(ctx context.Context) (bool, error)
	Shutdown()
}

// Uint64 is a config.Config typed as a uint64.
type Uint64 interface {
	Get(ctx context.Context) uint64
	GetSafe(ctx context.Context) (uint64, error)
	Shutdown()
}
