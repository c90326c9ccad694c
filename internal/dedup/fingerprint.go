package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const contentPrefixRunes = 500

// Fingerprint hashes the normalized title, URL and first 500 characters of content.
func Fingerprint(title, url, content string) string {
	combined := normalize(title) + "|" + normalize(url) + "|" + normalize(prefix(content, contentPrefixRunes))
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func prefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
