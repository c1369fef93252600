// Package util provides common utility functions used across the server.
package util

import (
	"strconv"
	"strings"
)

// FormatAmount renders a monetary amount with thousands separators,
// e.g. 250000 -> "250,000".
func FormatAmount(amount int64) string {
	digits := strconv.FormatInt(amount, 10)

	sign := ""
	if amount < 0 {
		sign, digits = "-", digits[1:]
	}

	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
