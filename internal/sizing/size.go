// Package sizing provides overflow-safe size arithmetic for on-disk fields.
package sizing

import "math"

// ToInt converts a non-negative int64 to int, returning overflowErr if it
// is negative or does not fit.
func ToInt(size int64, overflowErr error) (int, error) {
	if size < 0 || uint64(size) > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// AddInt64 adds two non-negative int64 values, returning (0, false) on
// overflow or negative input.
func AddInt64(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// InRange reports whether [off, off+n) lies inside [0, size).
func InRange(off, n, size int64) bool {
	end, ok := AddInt64(off, n)
	if !ok {
		return false
	}
	return end <= size
}

// Align16 rounds n up to the next multiple of 16.
func Align16(n int64) int64 {
	return (n + 15) &^ 15
}
