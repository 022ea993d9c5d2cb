// Package ethaddr normalizes Ethereum addresses to their EIP-55 checksum form.
package ethaddr

import "github.com/ethereum/go-ethereum/common"

// Normalize returns the EIP-55 checksummed form of addr when it is a valid
// hex address. Anything else (opaque test keys, empty strings, truncated
// values) passes through unchanged so lookups stay stable for callers that
// never used real addresses.
func Normalize(addr string) string {
	if !common.IsHexAddress(addr) {
		return addr
	}
	return common.HexToAddress(addr).Hex()
}

// NormalizePtr normalizes through an optional address, preserving nil.
func NormalizePtr(addr *string) *string {
	if addr == nil {
		return nil
	}
	n := Normalize(*addr)
	return &n
}
