package utils

import "fmt"

// MaskSecret keeps a short prefix of a token for log correlation and hides the rest.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return "*****"
	}
	return fmt.Sprintf("%s*****(%d)", s[:4], len(s))
}
