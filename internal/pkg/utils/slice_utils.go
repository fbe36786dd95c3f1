package utils

import "strings"

// NormalizeAddress lowercases and trims a hex address for store keys.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// TopN returns at most n leading elements of items.
func TopN[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}
