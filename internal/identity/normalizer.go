// Package identity turns raw contributor mentions into canonical handles and
// reconciles aliases of the same person through a static roster.
package identity

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// EmailPrefix marks a mention derived from an unlinked commit email.
const EmailPrefix = "email::"

// botMarker rejects any handle containing it, on top of the configured
// markers. It also catches humans whose handle contains "bot"; that loss is
// accepted.
const botMarker = "bot"

// Normalizer canonicalizes contributor mentions. It is safe for concurrent use.
type Normalizer struct {
	bots sets.String
}

// NewNormalizer builds a normalizer rejecting any handle that contains one
// of bots, compared case-insensitively.
func NewNormalizer(bots []string) *Normalizer {
	n := &Normalizer{bots: sets.NewString()}
	for _, b := range bots {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			n.bots.Insert(b)
		}
	}
	return n
}

// Normalize strips the email marker, drops an email domain and surrounding
// whitespace, and rejects empty results and bots. Two different people whose
// cleaned handles coincide collapse into one.
func (n *Normalizer) Normalize(mention string) (string, bool) {
	clean := strings.ReplaceAll(mention, EmailPrefix, "")
	if i := strings.IndexByte(clean, '@'); i >= 0 {
		clean = clean[:i]
	}
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return "", false
	}
	if n.IsBot(clean) {
		return "", false
	}
	return clean, true
}

// IsBot reports whether a cleaned handle belongs to automation.
func (n *Normalizer) IsBot(handle string) bool {
	lower := strings.ToLower(handle)
	if strings.Contains(lower, botMarker) {
		return true
	}
	for b := range n.bots {
		if strings.Contains(lower, b) {
			return true
		}
	}
	return false
}
