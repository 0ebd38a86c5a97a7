// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package checked implements overflow-checked unsigned arithmetic.
package checked

import "math/bits"

// Add64 returns a+b and whether the sum did not overflow.
func Add64(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// Sub64 returns a-b and whether the difference did not underflow.
func Sub64(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}

// Mul64 returns a*b and whether the product did not overflow.
func Mul64(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}
