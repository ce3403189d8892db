package utils

import (
	"os"
	"strings"
)

func GetEnv(name string, def string) string {
	val := os.Getenv(name)
	if len(val) > 0 {
		return val
	} else {
		return def
	}
}

// Abbreviate shortens s to at most n characters, marking the cut with an ellipsis.
func Abbreviate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 3 || len(s) <= n {
		return s
	}

	return s[:n-3] + "..."
}
