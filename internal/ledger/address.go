package ledger

import (
	"regexp"
	"strings"
)

var (
	classicAddress = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)
	txHash         = regexp.MustCompile(`^[0-9A-Fa-f]{64}$`)
)

// IsClassicAddress reports whether s looks like a base58 classic account address.
// Checksums are not verified.
func IsClassicAddress(s string) bool {
	return classicAddress.MatchString(s)
}

func IsTxHash(s string) bool {
	return txHash.MatchString(s)
}

func NormalizeTxHash(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
