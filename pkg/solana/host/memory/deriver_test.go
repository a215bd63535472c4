package memory

import (
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-program-sdk/pkg/solana"
)

func randomSeeds(r *rand.Rand, maxSeeds, maxLen int) [][]byte {
	seeds := make([][]byte, r.IntN(maxSeeds+1))
	for i := range seeds {
		seeds[i] = make([]byte, r.IntN(maxLen+1))
		for j := range seeds[i] {
			seeds[i][j] = byte(r.Uint32())
		}
	}
	return seeds
}

func TestDeriver_Parity(t *testing.T) {
	env := setup(t, nil)
	hostDeriver := env.host.Deriver()
	local := solana.LocalDeriver{}
	r := rand.New(rand.NewPCG(7, 11))

	var onCurve, offCurve int
	for i := 0; i < 512; i++ {
		program := env.keys.Next()

		// Mostly valid seed sets, with the occasional oversized one.
		seeds := randomSeeds(r, solana.MaxSeeds, solana.MaxSeedLength)
		if i%16 == 0 {
			seeds = randomSeeds(r, solana.MaxSeeds+2, solana.MaxSeedLength+2)
		}

		expected, expectedErr := local.CreateProgramAddress(program, seeds...)
		actual, actualErr := hostDeriver.CreateProgramAddress(program, seeds...)

		if expectedErr != nil {
			require.Error(t, actualErr, "iteration %d", i)
			for _, sentinel := range []error{solana.ErrTooManySeeds, solana.ErrMaxSeedLengthExceeded, solana.ErrInvalidPublicKey} {
				assert.Equal(t, errors.Is(expectedErr, sentinel), errors.Is(actualErr, sentinel), "iteration %d: %v vs %v", i, expectedErr, actualErr)
			}
			if errors.Is(expectedErr, solana.ErrInvalidPublicKey) {
				onCurve++
			}
			continue
		}

		require.NoError(t, actualErr, "iteration %d", i)
		assert.Equal(t, expected, actual, "iteration %d", i)
		offCurve++
	}

	assert.NotZero(t, onCurve)
	assert.NotZero(t, offCurve)
}

func TestDeriver_FindProgramAddressParity(t *testing.T) {
	env := setup(t, nil)
	r := rand.New(rand.NewPCG(3, 5))

	for i := 0; i < 32; i++ {
		program := env.keys.Next()
		seeds := randomSeeds(r, solana.MaxSeeds-1, solana.MaxSeedLength)

		expected, expectedBump, err := solana.FindProgramAddressAndBump(program, seeds...)
		require.NoError(t, err)

		actual, actualBump, err := solana.FindProgramAddressAndBumpWith(env.host.Deriver(), program, seeds...)
		require.NoError(t, err)

		assert.Equal(t, expected, actual)
		assert.Equal(t, expectedBump, actualBump)
		assert.False(t, solana.IsOnCurve(actual))
	}
}

func TestFrame_CreateProgramAddressStatus(t *testing.T) {
	env := setup(t, nil)
	f := &frame{h: env.host, log: env.host.log}
	program := env.keys.Next()

	_, status := f.CreateProgramAddress(nil, program[:31])
	assert.Equal(t, solana.StatusFromKey(solana.InstructionErrorInvalidArgument), status)

	_, status = f.CreateProgramAddress([][]byte{make([]byte, solana.MaxSeedLength+1)}, program)
	assert.Equal(t, solana.StatusFromKey(solana.InstructionErrorMaxSeedLengthExceeded), status)

	_, status = f.CreateProgramAddress(make([][]byte, solana.MaxSeeds+1), program)
	assert.Equal(t, solana.StatusFromKey(solana.InstructionErrorMaxSeedLengthExceeded), status)

	addr, bump, err := solana.FindProgramAddressAndBump(program, []byte("vault"))
	require.NoError(t, err)
	actual, status := f.CreateProgramAddress([][]byte{[]byte("vault"), {bump}}, program)
	require.Equal(t, solana.StatusSuccess, status)
	assert.Equal(t, addr, actual)
}
