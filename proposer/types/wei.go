// Package types defines the data model of the Lattice proposer node:
// intentions, executions, bundles, deposits, and the closed set of
// user-visible error kinds shared by the pipeline and its transports.
package types

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// weiScale is the fixed decimal scale used for every amount inside the
// node. User-visible decimal strings carry up to 18 fractional digits and
// the store persists NUMERIC(78,18), so one token unit is 1e18 wei.
const weiDecimals = 18

var weiScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(weiDecimals), nil)

// Wei is an amount at the protocol's fixed 18-decimal scale. It marshals
// to JSON as a quoted decimal integer so arbitrary precision survives
// transports that mangle large numbers.
type Wei big.Int

// NewWei copies i into a Wei amount.
func NewWei(i *big.Int) *Wei {
	return (*Wei)(new(big.Int).Set(i))
}

// WeiFromUint64 returns v as a wei amount. Note v is taken verbatim, not
// scaled; callers converting token units should use WeiFromDecimal.
func WeiFromUint64(v uint64) *Wei {
	return (*Wei)(new(big.Int).SetUint64(v))
}

// WeiFromDecimal parses a decimal token-unit string such as "1024" or
// "1.5" into its wei-scale amount. At most 18 fractional digits are
// accepted and the value must be non-negative.
func WeiFromDecimal(s string) (*Wei, error) {
	if s == "" {
		return nil, errors.New("empty amount")
	}
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" || !isDigits(intPart) {
		return nil, errors.Errorf("malformed amount %q", s)
	}
	if len(fracPart) > weiDecimals || (fracPart != "" && !isDigits(fracPart)) {
		return nil, errors.Errorf("malformed amount %q", s)
	}
	units, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, errors.Errorf("malformed amount %q", s)
	}
	out := units.Mul(units, weiScale)
	if fracPart != "" {
		// Right-pad the fraction to the full scale before adding.
		frac, ok := new(big.Int).SetString(fracPart+strings.Repeat("0", weiDecimals-len(fracPart)), 10)
		if !ok {
			return nil, errors.Errorf("malformed amount %q", s)
		}
		out.Add(out, frac)
	}
	return (*Wei)(out), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Int exposes the underlying big integer. The returned pointer aliases the
// amount; callers must not mutate it.
func (w *Wei) Int() *big.Int {
	return (*big.Int)(w)
}

// Cmp compares two amounts like big.Int.Cmp.
func (w *Wei) Cmp(o *Wei) int {
	return w.Int().Cmp(o.Int())
}

// Sign reports -1, 0 or +1 like big.Int.Sign.
func (w *Wei) Sign() int {
	return w.Int().Sign()
}

// Clone returns an independent copy.
func (w *Wei) Clone() *Wei {
	return NewWei(w.Int())
}

// String returns the raw wei integer in base 10.
func (w *Wei) String() string {
	return w.Int().String()
}

// Decimal renders the amount as a token-unit decimal string with trailing
// zeros trimmed, the inverse of WeiFromDecimal. This is also the form the
// store persists in its NUMERIC columns.
func (w *Wei) Decimal() string {
	quo, rem := new(big.Int).QuoRem(w.Int(), weiScale, new(big.Int))
	if rem.Sign() == 0 {
		return quo.String()
	}
	frac := strings.TrimRight(leftPad(rem.String(), weiDecimals), "0")
	return quo.String() + "." + frac
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// MarshalJSON renders the amount as a quoted wei integer.
func (w Wei) MarshalJSON() ([]byte, error) {
	i := big.Int(w)
	return []byte(`"` + i.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted or bare decimal integer.
func (w *Wei) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return errors.Errorf("malformed wei amount %q", s)
	}
	*w = Wei(*i)
	return nil
}
