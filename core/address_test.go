package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	t.Run("lowercases a checksummed address", func(t *testing.T) {
		got, err := NormalizeAddress("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
		require.NoError(t, err)
		assert.Equal(t, "0xab5801a7d398351b8be11c439e05c5b3259aec9b", got)
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		got, err := NormalizeAddress("  0xab5801a7d398351b8be11c439e05c5b3259aec9b\n")
		require.NoError(t, err)
		assert.Equal(t, "0xab5801a7d398351b8be11c439e05c5b3259aec9b", got)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, in := range []string{
			"",
			"0x123",
			"ab5801a7d398351b8be11c439e05c5b3259aec9b",
			"0xzz5801a7d398351b8be11c439e05c5b3259aec9b",
			"not an address",
		} {
			_, err := NormalizeAddress(in)
			assert.ErrorIs(t, err, ErrMalformedAddress, "input %q", in)
		}
	})
}
