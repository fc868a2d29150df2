package slug

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Make lowercases input and joins its alphanumeric runs with dashes. A
// positive limit cuts the result to that many bytes.
func Make(input string, limit int) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = nonAlphaNum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if limit > 0 && len(s) > limit {
		s = strings.TrimRight(s[:limit], "-")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// FileKey maps a key onto a file name stem. Keys that do not survive Make
// unchanged get a hash suffix, so "P 1" and "p-1" never share a file.
func FileKey(key string) string {
	s := Make(key, 64)
	if s == key {
		return s
	}
	sum := sha256.Sum256([]byte(key))
	return s + "-" + hex.EncodeToString(sum[:4])
}
