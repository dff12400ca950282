package engine

import "math"

// All amounts are unsigned 64-bit base units. Any sum or product that would
// wrap aborts the surrounding transaction instead of silently truncating.

func addU64(a, b uint64) (uint64, error) {
	if b > math.MaxUint64-a {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

func mulU64(a, b uint64) (uint64, error) {
	if a != 0 && b > math.MaxUint64/a {
		return 0, ErrAmountOverflow
	}
	return a * b, nil
}

// mulDiv computes a*b/den with the multiplication checked. Division truncates
// toward zero; residual units are accepted rounding dust.
func mulDiv(a, b, den uint64) (uint64, error) {
	p, err := mulU64(a, b)
	if err != nil {
		return 0, err
	}
	return p / den, nil
}

// subFloor subtracts without going below zero.
func subFloor(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
