package utils

import (
	"path"
	"strings"
	"time"
)

// MinDuration returns the smaller of two durations.
func MinDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// RemoveControlCharacters strips C0 control characters except tab, LF and CR.
func RemoveControlCharacters(text string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, text)
}

// CleanFilename reduces a client supplied upload name to its base name with
// control characters removed. Other characters are kept so the companion
// lookup sees the name the client sent.
func CleanFilename(name string) string {
	name = RemoveControlCharacters(name)
	name = strings.NewReplacer("\t", "", "\n", "", "\r", "").Replace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(strings.TrimSpace(name)))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
