package util

import (
	"fmt"
	"math"
)

var prefixes = []struct {
	scale  float64
	symbol string
}{
	{1e9, "G"},
	{1e6, "M"},
	{1e3, "k"},
	{1, ""},
	{1e-3, "m"},
	{1e-6, "u"},
	{1e-9, "n"},
	{1e-12, "p"},
}

// FormatValueFactor prints value with an SI prefix and three decimals.
// Magnitudes below a pico fall back to exponent notation.
func FormatValueFactor(value float64, unit string) string {
	abs := math.Abs(value)
	for _, p := range prefixes {
		if abs >= p.scale {
			return fmt.Sprintf("%.3f %s%s", value/p.scale, p.symbol, unit)
		}
	}
	return fmt.Sprintf("%.3e %s", value, unit)
}
