package payment

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var nonDigitRegex = regexp.MustCompile(`[^0-9]+`)

// NormalizeAmount coerces a loosely typed amount ("30,000", 30000, "₩30000")
// into whole currency units. Anything it cannot read becomes 0.
func NormalizeAmount(raw any) int64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case string:
		return amountFromString(v)
	case []byte:
		return amountFromString(string(v))
	case *string:
		if v == nil {
			return 0
		}
		return amountFromString(*v)
	case int:
		return nonNegative(int64(v))
	case int32:
		return nonNegative(int64(v))
	case int64:
		return nonNegative(v)
	case uint:
		return clampUint(uint64(v))
	case uint32:
		return int64(v)
	case uint64:
		return clampUint(v)
	case float32:
		return amountFromFloat(float64(v))
	case float64:
		return amountFromFloat(v)
	default:
		return 0
	}
}

func amountFromString(s string) int64 {
	digits := nonDigitRegex.ReplaceAllString(s, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func amountFromFloat(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func clampUint(n uint64) int64 {
	if n > math.MaxInt64 {
		return 0
	}
	return int64(n)
}

// NormalizeState maps the stored status code to a PaymentState. Codes outside
// 0..4, fractional numbers and non-numeric strings map to StateUnknown.
func NormalizeState(raw any) PaymentState {
	var code int64
	switch v := raw.(type) {
	case int:
		code = int64(v)
	case int32:
		code = int64(v)
	case int64:
		code = v
	case uint8:
		code = int64(v)
	case float64:
		if v != math.Trunc(v) {
			return StateUnknown
		}
		code = int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return StateUnknown
		}
		code = n
	default:
		return StateUnknown
	}

	if code < int64(StateCanceled) || code > int64(StateFeeDone) {
		return StateUnknown
	}
	return PaymentState(code)
}
