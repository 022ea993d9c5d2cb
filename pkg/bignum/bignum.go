// Package bignum provides exact arithmetic over decimal-string integers.
//
// Gas quantities routinely exceed the int64 range, so they are carried as
// base-10 strings at the storage and API boundaries and as math/big integers
// internally.
package bignum

import "math/big"

// Zero is the canonical zero value for accumulated quantities.
const Zero = "0"

// Parse converts a decimal string into a big integer. Empty or malformed
// input parses as zero rather than failing, matching ingestion behavior where
// bad quantities degrade to zero instead of rejecting the record.
func Parse(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// Add returns the exact sum of two decimal-string integers.
func Add(a, b string) string {
	return new(big.Int).Add(Parse(a), Parse(b)).String()
}

// IsValid reports whether s is a well-formed non-negative decimal integer.
func IsValid(s string) bool {
	if s == "" {
		return false
	}
	n, ok := new(big.Int).SetString(s, 10)
	return ok && n.Sign() >= 0
}
