package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatTokenAmount(t *testing.T) {
	tests := []struct {
		amount  string
		display int
		want    string
	}{
		{"0", 2, "0"},
		{"10000000000000000000", 2, "10.00"},
		{"5500000000000000000", 2, "5.50"},
		{"1234567890000000000000", 2, "1,234.56"},
		{"1", 4, "0.0000"},
		{"123000000000000000000000", 0, "123,000"},
	}
	for _, tt := range tests {
		amount, _ := new(big.Int).SetString(tt.amount, 10)
		require.Equal(t, tt.want, FormatTokenAmount(amount, DefaultDecimals, tt.display), tt.amount)
	}
	require.Equal(t, "0", FormatTokenAmount(nil, DefaultDecimals, 2))
}

func TestParseTokenAmount(t *testing.T) {
	v, err := ParseTokenAmount("10", DefaultDecimals)
	require.NoError(t, err)
	require.Equal(t, "10000000000000000000", v.String())

	v, err = ParseTokenAmount("0.1", DefaultDecimals)
	require.NoError(t, err)
	require.Equal(t, "100000000000000000", v.String())

	v, err = ParseTokenAmount(".5", 2)
	require.NoError(t, err)
	require.Equal(t, "50", v.String())

	v, err = ParseTokenAmount("1.23456", 2)
	require.NoError(t, err)
	require.Equal(t, "123", v.String())

	_, err = ParseTokenAmount("abc", DefaultDecimals)
	require.ErrorIs(t, err, ErrEncoding)
	_, err = ParseTokenAmount("-1", DefaultDecimals)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestShortenAddress(t *testing.T) {
	addr := "0xFBF81bFA463252e25C8883ac0E3EBae99617A52c"
	require.Equal(t, "0xFBF8...A52c", ShortenAddress(addr, 4))
	require.Equal(t, "0x12", ShortenAddress("0x12", 4))
}

func TestSlotDescription(t *testing.T) {
	require.Equal(t, "MAIN JACKPOT", SlotDescription(10))
	require.Equal(t, "MINI JACKPOT", SlotDescription(2))
	require.Equal(t, "MINI JACKPOT", SlotDescription(16))
	require.Equal(t, "3x", SlotDescription(3))
	require.Equal(t, "5x", SlotDescription(11))
	require.Equal(t, "LOSE", SlotDescription(0))
	require.Equal(t, SlotWin, KindOfSlot(7))
	require.Equal(t, uint64(200), SlotMultiplier(18))
}

func TestRandomPoolRemaining(t *testing.T) {
	p := RandomPoolStatus{Size: big.NewInt(1000), Index: big.NewInt(250)}
	require.Equal(t, int64(750), p.Remaining().Int64())

	p = RandomPoolStatus{Size: big.NewInt(10), Index: big.NewInt(12)}
	require.Zero(t, p.Remaining().Sign())
}
