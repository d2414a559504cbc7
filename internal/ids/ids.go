// Package ids derives the stable identifiers used across the dataset.
//
// Identifiers are the first 12 hex characters of a SHA-256 digest over
// normalized text. Scoping is achieved by hashing an entity's name together
// with its ancestor identifiers, so identical leaf names under different
// parents never collide.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Length is the number of hex characters kept from the digest.
const Length = 12

// stripMarks decomposes text and removes combining marks, so accented
// characters fold to their ASCII base before filtering.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Normalize lowercases the input, strips diacritics via Unicode
// decomposition, and drops every character outside [a-z0-9].
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	folded := strings.ToLower(text)
	stripped, _, err := transform.String(stripMarks, folded)
	if err != nil {
		// transform failures leave the input usable as-is; the filter
		// below still guarantees the [a-z0-9] alphabet.
		stripped = folded
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StableID computes the scoped identifier for the ordered parts. Each part
// is normalized independently, the parts are joined with a hyphen, and the
// joined string is hashed through the same normalization. An input that
// normalizes to nothing yields the empty identifier; callers decide whether
// an empty-named entity is acceptable.
func StableID(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, part := range parts {
		normalized[i] = Normalize(part)
	}
	return hashID(strings.Join(normalized, "-"))
}

func hashID(text string) string {
	normalized := Normalize(text)
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:Length]
}
