package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// HashContent computes a hex-encoded SHA-256 digest of fetched content.
// Empty input yields an empty digest: an unfetchable link is unhashable,
// not an error.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// NormalizeURL reduces a URL to scheme://host/path for duplicate comparison.
// Query string and fragment are stripped; the host is lowercased. URLs that
// fail to parse are returned unchanged as their own normalized form.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return trimmed
	}

	normalized := u.Scheme + "://" + strings.ToLower(u.Host) + u.Path
	return strings.TrimSuffix(normalized, "/")
}
