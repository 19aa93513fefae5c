package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Fingerprint derives a deterministic cache key from an operation kind, a
// normalized target URL, and any options that affect the operation's output.
// Identical logical requests always map to the same key, so cache hits are
// decided purely by request content.
func Fingerprint(kind string, rawURL string, opts ...string) string {
	parts := make([]string, 0, len(opts)+2)
	parts = append(parts, kind, NormalizeURL(rawURL))

	// Option order must not change the key
	sorted := make([]string, len(opts))
	copy(sorted, opts)
	sort.Strings(sorted)
	parts = append(parts, sorted...)

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return kind + ":" + hex.EncodeToString(sum[:])
}

// NormalizeURL canonicalizes a URL for fingerprinting: scheme and host are
// lowercased, default ports and trailing slashes are stripped, and the
// fragment is dropped. Unparseable input is returned trimmed and lowercased
// so it still fingerprints deterministically.
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return strings.ToLower(trimmed)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	// Strip default ports
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}
