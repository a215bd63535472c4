package wrapper

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/code-payments/code-program-sdk/pkg/config"
)

// ErrUnsuportedConversion indicates the wrapper does not implement conversion from the source type
var ErrUnsuportedConversion = errors.New("config: wrapper conversion from source type not implemented")

// converter turns a raw override into a typed value. ok is false when the
// source type is not supported.
type converter[T any] func(raw interface{}) (value T, ok bool, err error)

// typed tracks the last value observed from an untyped override and falls
// back to a default when the override has no value.
type typed[T any] struct {
	override     config.Config
	defaultValue T
	convert      converter[T]

	stateMu   sync.RWMutex
	lastValue T
}

func newTyped[T any](override config.Config, defaultValue T, convert converter[T]) *typed[T] {
	return &typed[T]{
		override:     override,
		defaultValue: defaultValue,
		convert:      convert,
		lastValue:    defaultValue,
	}
}

// GetSafe gets a config value and propagates any errors that arise. A best-effort
// attempt is made to return the last known value
func (c *typed[T]) GetSafe(ctx context.Context) (T, error) {
	override, err := c.override.Get(ctx)

	c.stateMu.RLock()
	lastValue := c.lastValue
	c.stateMu.RUnlock()

	if err == config.ErrNoValue {
		c.set(c.defaultValue)
		return c.defaultValue, nil
	} else if err != nil {
		return lastValue, err
	}

	newValue, ok, err := c.convert(override)
	if !ok {
		return lastValue, ErrUnsuportedConversion
	} else if err != nil {
		return lastValue, err
	}

	c.set(newValue)
	return newValue, nil
}

func (c *typed[T]) set(v T) {
	c.stateMu.Lock()
	c.lastValue = v
	c.stateMu.Unlock()
}

// Get is a wrapper for GetSafe that ignores the returned error
func (c *typed[T]) Get(ctx context.Context) T {
	val, _ := c.GetSafe(ctx)
	return val
}

// Shutdown signals the config to stop all underlying resources
func (c *typed[T]) Shutdown() {
	c.override.Shutdown()
}

// NewBoolConfig returns a new bool config utility wrapper
func NewBoolConfig(override config.Config, defaultValue bool) config.Bool {
	return newTyped(override, defaultValue, func(raw interface{}) (bool, bool, error) {
		switch v := raw.(type) {
		case []byte:
			parsed, err := strconv.ParseBool(string(v))
			return parsed, true, err
		case bool:
			return v, true, nil
		default:
			return false, false, nil
		}
	})
}

// NewUint64Config returns a new uint64 config utility wrapper
func NewUint64Config(override config.Config, defaultValue uint64) config.Uint64 {
	return newTyped(override, defaultValue, func(raw interface{}) (uint64, bool, error) {
		switch v := raw.(type) {
		case []byte:
			parsed, err := strconv.ParseUint(string(v), 10, 64)
			return parsed, true, err
		case uint64:
			return v, true, nil
		case uint:
			return uint64(v), true, nil
		case int:
			if v < 0 {
				return 0, true, errors.Errorf("negative value: %d", v)
			}
			return uint64(v), true, nil
		default:
			return 0, false, nil
		}
	})
}
