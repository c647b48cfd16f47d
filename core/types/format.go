package types

import (
	"fmt"
	"math/big"
	"strings"
)

// DefaultDecimals is the decimals of the game token.
const DefaultDecimals = 18

// FormatTokenAmount renders amount as a whole part with thousands separators
// followed by display fractional digits, truncated.
func FormatTokenAmount(amount *big.Int, decimals uint8, display int) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, rem := new(big.Int).QuoRem(abs, divisor, new(big.Int))

	out := groupThousands(whole.String())
	if display > 0 && decimals > 0 {
		frac := rem.String()
		frac = strings.Repeat("0", int(decimals)-len(frac)) + frac
		if display < len(frac) {
			frac = frac[:display]
		}
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// ParseTokenAmount converts a decimal string such as "10.5" into base units.
// Extra fractional digits beyond decimals are truncated.
func ParseTokenAmount(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrEncoding)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid amount %q", ErrEncoding, s)
	}
	return v, nil
}

// ShortenAddress renders 0x1234...abcd style addresses.
func ShortenAddress(addr string, chars int) string {
	if len(addr) <= chars*2+2 {
		return addr
	}
	return addr[:chars+2] + "..." + addr[len(addr)-chars:]
}
