package tokens

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount turns user-typed decimal text into raw base units of the
// token. Empty, negative or non-numeric input fails with ErrParse; excess
// fractional digits beyond the token's precision are truncated toward zero.
func ParseAmount(text string, t Token) (*big.Int, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrParse)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrParse, text)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative %q", ErrParse, text)
	}
	raw := d.Shift(int32(t.Decimals)).Truncate(0)
	return raw.BigInt(), nil
}

// FormatAmount renders raw base units as decimal text.
func FormatAmount(raw *big.Int, t Token) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -int32(t.Decimals)).String()
}
