package memory

import (
	"github.com/code-payments/code-program-sdk/pkg/config"
	"github.com/code-payments/code-program-sdk/pkg/config/env"
	memory_config "github.com/code-payments/code-program-sdk/pkg/config/memory"
	"github.com/code-payments/code-program-sdk/pkg/config/wrapper"
	"github.com/code-payments/code-program-sdk/pkg/solana/entrypoint"
	"github.com/code-payments/code-program-sdk/pkg/solana/vm"
)

// MaxInvokeDepth is the default bound on the invocation stack, counting the
// top level instruction.
const MaxInvokeDepth = 4

const (
	envConfigPrefix = "PROGRAM_HOST_"

	MaxInvokeDepthConfigEnvName = envConfigPrefix + "MAX_INVOKE_DEPTH"
	defaultMaxInvokeDepth       = MaxInvokeDepth

	HeapSizeConfigEnvName = envConfigPrefix + "HEAP_SIZE"
	defaultHeapSize       = vm.DefaultHeapSize

	MaxAccountsConfigEnvName = envConfigPrefix + "MAX_ACCOUNTS"
	defaultMaxAccounts       = entrypoint.MaxAccounts

	VerifyBalancesConfigEnvName = envConfigPrefix + "VERIFY_BALANCES"
	defaultVerifyBalances       = true
)

type conf struct {
	maxInvokeDepth config.Uint64
	heapSize       config.Uint64
	maxAccounts    config.Uint64
	verifyBalances config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			maxInvokeDepth: env.NewUint64Config(MaxInvokeDepthConfigEnvName, defaultMaxInvokeDepth),
			heapSize:       env.NewUint64Config(HeapSizeConfigEnvName, defaultHeapSize),
			maxAccounts:    env.NewUint64Config(MaxAccountsConfigEnvName, defaultMaxAccounts),
			verifyBalances: env.NewBoolConfig(VerifyBalancesConfigEnvName, defaultVerifyBalances),
		}
	}
}

// Overrides are fixed configuration values. Zero values keep the default.
type Overrides struct {
	MaxInvokeDepth   uint64
	HeapSize         uint64
	MaxAccounts      uint64
	SkipVerification bool
}

// WithOverrides returns configuration with the provided values in place of
// the defaults.
func WithOverrides(overrides *Overrides) ConfigProvider {
	return func() *conf {
		verifyBalances := config.NoopConfig
		if overrides.SkipVerification {
			verifyBalances = memory_config.NewConfig(false)
		}

		return &conf{
			maxInvokeDepth: wrapper.NewUint64Config(uint64Override(overrides.MaxInvokeDepth), defaultMaxInvokeDepth),
			heapSize:       wrapper.NewUint64Config(uint64Override(overrides.HeapSize), defaultHeapSize),
			maxAccounts:    wrapper.NewUint64Config(uint64Override(overrides.MaxAccounts), defaultMaxAccounts),
			verifyBalances: wrapper.NewBoolConfig(verifyBalances, defaultVerifyBalances),
		}
	}
}

// uint64Override leaves zero values unset so the wrapper falls back to its
// default.
func uint64Override(v uint64) config.Config {
	if v == 0 {
		return config.NoopConfig
	}
	return memory_config.NewConfig(v)
}
