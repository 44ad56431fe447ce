package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Blackstocks/Inlane/internal/domain"
)

func TestParseAmountToMinor(t *testing.T) {
	cases := map[string]int64{
		"499.00": 49900,
		"499":    49900,
		"0.5":    50,
		"10.999": 1099, // truncated, not rounded
	}
	for in, want := range cases {
		got, err := domain.ParseAmountToMinor(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := domain.ParseAmountToMinor("banana")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = domain.ParseAmountToMinor("")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestFormatAmountMinor(t *testing.T) {
	require.Equal(t, "499.00", domain.FormatAmountMinor(49900))
	require.Equal(t, "0.05", domain.FormatAmountMinor(5))
	require.Equal(t, "10.50", domain.FormatAmountMinor(1050))
	require.Equal(t, "-1.25", domain.FormatAmountMinor(-125))
}

func TestStateTerminal(t *testing.T) {
	require.False(t, domain.StatePending.Terminal())
	require.True(t, domain.StateSucceeded.Terminal())
	require.True(t, domain.StateFailed.Terminal())
}
