/**
 * @description
 * This package normalizes the monetary values served by the core-banking API into a
 * definite decimal amount and a definite locale-formatted display string. The upstream
 * API is inconsistent about money: depending on the entity it sends a wrapper object
 * whose single field (`amount`, `balance`, `income` or `price`) holds a decimal string,
 * a bare number, or a numeric string. Every one of those shapes must normalize without
 * ever failing; anything unparseable degrades to zero.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Exact decimal arithmetic for monetary values.
 * - golang.org/x/text: Locale-aware currency and number formatting.
 */

package money

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// wrapperFields are the field names the upstream API uses for its decimal-string
// wrapper, in lookup order. The name varies by entity, the shape does not.
var wrapperFields = [...]string{"amount", "balance", "income", "price"}

// Value is a monetary amount received from the core-banking API. The zero Value is
// a valid zero amount. A Value is immutable once decoded; refetches replace it
// wholesale rather than mutating it.
type Value struct {
	d decimal.Decimal
}

// FromDecimal wraps an exact decimal as a Value.
func FromDecimal(d decimal.Decimal) Value {
	return Value{d: d}
}

// FromFloat converts a float into a Value. NaN and infinities normalize to zero.
func FromFloat(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{d: decimal.NewFromFloat(f)}
}

// Decimal returns the exact decimal amount.
func (v Value) Decimal() decimal.Decimal {
	return v.d
}

// Float64 returns the amount as a float for display heuristics that do not need
// exact arithmetic.
func (v Value) Float64() float64 {
	f, _ := v.d.Float64()
	return f
}

// IsZero reports whether the amount is exactly zero.
func (v Value) IsZero() bool {
	return v.d.IsZero()
}

// String returns the plain decimal representation, e.g. "1234.5".
func (v Value) String() string {
	return v.d.String()
}

// UnmarshalJSON accepts every money shape the upstream API is known to emit:
// null, a JSON number, a numeric string, or a wrapper object holding one of the
// well-known decimal-string fields. It never returns an error; unparseable input
// decodes as zero.
func (v *Value) UnmarshalJSON(data []byte) error {
	v.d = normalizeJSON(data)
	return nil
}

// MarshalJSON emits the amount as a decimal string, the least ambiguous of the
// upstream shapes.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.d.String())
}

func normalizeJSON(data []byte) decimal.Decimal {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return decimal.Decimal{}
	}
	if trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return decimal.Decimal{}
		}
		for _, name := range wrapperFields {
			if raw, ok := fields[name]; ok {
				return normalizeJSON(raw)
			}
		}
		return decimal.Decimal{}
	}

	var d decimal.Decimal
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return decimal.Decimal{}
	}
	return d
}

// Normalize converts an arbitrarily-shaped raw value into a definite decimal. It is
// total: nil, wrapper maps, numbers, numeric strings and already-normalized values
// are all accepted, and anything else degrades to zero. It never panics.
func Normalize(input any) decimal.Decimal {
	switch v := input.(type) {
	case nil:
		return decimal.Decimal{}
	case Value:
		return v.d
	case *Value:
		if v == nil {
			return decimal.Decimal{}
		}
		return v.d
	case decimal.Decimal:
		return v
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Decimal{}
		}
		return d
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}
		}
		return d
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}
		}
		return decimal.NewFromFloat(v)
	case float32:
		return Normalize(float64(v))
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case map[string]any:
		for _, name := range wrapperFields {
			if raw, ok := v[name]; ok {
				return Normalize(raw)
			}
		}
		return decimal.Decimal{}
	default:
		return decimal.Decimal{}
	}
}

// Options selects the locale and ISO currency for display formatting. Deposit views
// and transaction tables use different pairs, so the pair is always an argument and
// never hardcoded at a call site.
type Options struct {
	Locale   string
	Currency string
}

// FormatCurrency renders an amount as a locale-aware currency string with exactly
// two fraction digits, e.g. Q1,234.50 for es-GT/GTQ. Unknown locales fall back to
// the undetermined language and unknown currencies to a bare number, so the
// function stays total.
func FormatCurrency(d decimal.Decimal, opts Options) string {
	tag, err := language.Parse(opts.Locale)
	if err != nil {
		tag = language.Und
	}
	p := message.NewPrinter(tag)

	f, _ := d.Round(2).Float64()
	num := number.Decimal(f, number.Scale(2))

	unit, err := currency.ParseISO(opts.Currency)
	if err != nil {
		return p.Sprintf("%v", num)
	}
	return p.Sprintf("%v%v", currency.NarrowSymbol(unit), num)
}

// Format renders the value with FormatCurrency.
func (v Value) Format(opts Options) string {
	return FormatCurrency(v.d, opts)
}
