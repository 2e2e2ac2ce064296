// Package slug derives the human-readable public identifiers used in
// presentation links, and recovers the short record token from them.
// Everything here is pure: no I/O, no clock.
package slug

import (
	"math/rand"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TokenLength is the size of the record-derived suffix appended to every
// presentation slug. Uniqueness is probabilistic over tokenAlphabet; the
// system accepts the collision risk rather than enforcing global uniqueness.
const TokenLength = 8

// tokenAlphabet deliberately omits '0' to reduce visual ambiguity.
const tokenAlphabet = "123456789abcdefghijklmnopqrstuvwxyz"

var tokenPattern = regexp.MustCompile(`presentation/[^/]+-([a-z0-9]{8})$`)

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Make builds the "nom-prenom" slug: lowercased, diacritics stripped, runs of
// non-alphanumeric characters collapsed to single hyphens.
func Make(nom, prenom string) string {
	return clean(nom) + "-" + clean(prenom)
}

// Token derives the short public token for a record ID: its last 8 characters
// lowercased. When no ID is available yet a random token is drawn instead.
func Token(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return randomToken()
	}
	if len(id) > TokenLength {
		id = id[len(id)-TokenLength:]
	}
	return strings.ToLower(id)
}

// PresentationURL returns the absolute public presentation link for a project.
func PresentationURL(baseURL, nom, prenom, id string) string {
	return strings.TrimRight(baseURL, "/") + "/presentation/" + Make(nom, prenom) + "-" + Token(id)
}

// ExtractToken recovers the trailing token from a presentation URL or path.
// It returns ok=false for anything that does not match the exact
// ".../presentation/<slug>-<token>" shape.
func ExtractToken(rawURL string) (string, bool) {
	m := tokenPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func clean(s string) string {
	s = strings.ToLower(s)
	if out, _, err := transform.String(stripDiacritics, s); err == nil {
		s = out
	}
	var b strings.Builder
	lastHyphen := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func randomToken() string {
	b := make([]byte, TokenLength)
	for i := range b {
		b[i] = tokenAlphabet[rand.Intn(len(tokenAlphabet))]
	}
	return string(b)
}
