package usecase

import "strings"

// Order matters: only the first matching suffix and the first matching prefix
// are stripped.
var (
	normalizeSuffixes = []string{"M", "PRO", ".PRO", "_PRO", ".M", "_M", ".", "-", "_"}
	normalizePrefixes = []string{"MT5_", "FX_"}
)

// NormalizeSymbol reduces a symbol name to its upper-case alphanumeric core,
// e.g. "XAUUSDm" -> "XAUUSD" and "FX_EURUSD" -> "EURUSD".
func NormalizeSymbol(s string) string {
	if s == "" {
		return s
	}
	n := strings.ToUpper(s)

	for _, suffix := range normalizeSuffixes {
		if strings.HasSuffix(n, suffix) {
			n = strings.TrimSuffix(n, suffix)
			break
		}
	}
	for _, prefix := range normalizePrefixes {
		if strings.HasPrefix(n, prefix) {
			n = strings.TrimPrefix(n, prefix)
			break
		}
	}

	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, n)
}
