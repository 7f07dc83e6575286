package xtid

import (
	"math"
	"strconv"
	"strings"
)

const hexDigits = "0123456789ABCDEF"

// floatToHex renders a non-negative float in base 16, fractional digits included.
// Zero yields the empty string and values below one start with ".".
func floatToHex(x float64) string {
	var b strings.Builder
	intPart := int64(x)
	fraction := x - float64(intPart)

	if intPart > 0 {
		b.WriteString(strings.ToUpper(strconv.FormatInt(intPart, 16)))
	}
	if fraction == 0 {
		return b.String()
	}

	b.WriteByte('.')
	for fraction > 0 {
		fraction *= 16
		digit := int(fraction)
		fraction -= float64(digit)
		b.WriteByte(hexDigits[digit])
	}
	return b.String()
}

func isOdd(num int) float64 {
	if num%2 != 0 {
		return -1.0
	}
	return 0.0
}

// solve scales a byte-range value into [minVal, maxVal].
// With rounding the result is floored, otherwise it keeps two decimals.
func solve(value, minVal, maxVal float64, rounding bool) float64 {
	result := value*(maxVal-minVal)/255 + minVal
	if rounding {
		return math.Floor(result)
	}
	return math.RoundToEven(result*100) / 100
}
