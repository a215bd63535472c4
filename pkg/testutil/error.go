package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-program-sdk/pkg/solana"
)

// AssertStatusWithKey verifies that the provided status is a failure that
// decodes to the provided instruction error.
func AssertStatusWithKey(t *testing.T, status uint64, key solana.InstructionErrorKey) {
	require.NotEqual(t, solana.StatusSuccess, status)
	actual, _ := solana.KeyFromStatus(status)
	assert.Equal(t, key, actual, "status %#x", status)
}

// AssertStatusWithCustomCode verifies that the provided status is a custom
// program error with the provided code.
func AssertStatusWithCustomCode(t *testing.T, status uint64, code solana.CustomError) {
	require.NotEqual(t, solana.StatusSuccess, status)
	key, custom := solana.KeyFromStatus(status)
	require.Equal(t, solana.InstructionErrorCustom, key)
	require.NotNil(t, custom)
	assert.Equal(t, code, *custom)
}
