// Package prompt deterministically converts project fields into the
// natural-language photography prompts sent to the image provider. It is the
// fallback to (and currently the stand-in for) a language-model prompt
// writer, so it must never fail on partial input.
package prompt

import (
	"fmt"
	"strings"

	"github.com/permale/atelier/internal/domain"
)

// jewelryTypeEnglish is the closed lookup table from form categories to the
// English tokens the renderer understands. Unknown types fall back to the
// generic token, never an error.
var jewelryTypeEnglish = map[string]string{
	"Alliance":             "wedding band",
	"Bague de Fiançailles": "engagement ring",
	"Chevalière":           "signet ring",
	"Bague autre":          "ring",
	"Collier":              "necklace",
	"Pendentif":            "pendant",
	"Boucle d'oreille":     "earrings",
	"Bracelet":             "bracelet",
	"Percing":              "piercing jewelry",
	"Bijoux autre":         "jewelry piece",
}

const genericJewelryType = "jewelry piece"

// gemstoneVocabulary maps French keywords found in the free-text description
// to the English tokens appended to the prompt. Matching is case-insensitive
// substring; output order is vocabulary order, one token per entry.
var gemstoneVocabulary = []struct{ keyword, token string }{
	{"diamant", "diamond"},
	{"saphir", "sapphire"},
	{"rubis", "ruby"},
	{"émeraude", "emerald"},
	{"perle", "pearls"},
	{"améthyste", "amethyst"},
	{"topaze", "topaz"},
	{"quartz", "quartz"},
}

var styleVocabulary = []struct{ keyword, token string }{
	{"moderne", "modern"},
	{"vintage", "vintage"},
	{"minimaliste", "minimalist"},
	{"luxe", "luxurious"},
	{"classique", "classic"},
	{"romantique", "romantic"},
	{"art déco", "art deco"},
}

// renderingClauses are always appended; downstream review assumes this fixed
// technical register.
var renderingClauses = []string{
	"ultra-detailed macro photography",
	"studio lighting highlighting reflections and textures",
	"photorealistic rendering",
	"8K resolution",
}

// TripleViewPhrase is the mandatory opening clause. Staff review assumes a
// consistent multi-angle layout, so every prompt starts with it.
func TripleViewPhrase(typeBijou string) string {
	return fmt.Sprintf("Professional jewelry photography showcase displaying a luxury %s design from multiple angles on dark textured background. Show three views: top-down view, side profile view, and three-quarter angle view", TypeEnglish(typeBijou))
}

// TypeEnglish translates a form jewelry category to its English token.
func TypeEnglish(typeBijou string) string {
	if t, ok := jewelryTypeEnglish[strings.TrimSpace(typeBijou)]; ok {
		return t
	}
	return genericJewelryType
}

// BuildJewelryPrompt maps a partial project onto a single prompt string.
// Every optional field absence is silently skipped; the result is never
// empty and always starts with the triple-view phrase.
func BuildJewelryPrompt(p domain.Projet) string {
	parts := []string{TripleViewPhrase(p.TypeBijou)}

	if stones := Gemstones(p.Description); len(stones) > 0 {
		parts = append(parts, "featuring "+strings.Join(stones, ", "))
	}

	parts = append(parts, "crafted in "+MaterialForBudget(p.Budget))

	if styles := extractStyles(p.Description); len(styles) > 0 {
		parts = append(parts, strings.Join(styles, " ")+" design")
	}

	if g := strings.TrimSpace(p.Gravure); g != "" {
		parts = append(parts, fmt.Sprintf("with personalized engraving %q", g))
	}

	parts = append(parts, renderingClauses...)
	return strings.Join(parts, ". ")
}

// MaterialForBudget infers the principal material from a numeric budget via
// fixed breakpoints. A missing or unparseable budget yields the mid-tier
// material.
func MaterialForBudget(budget string) string {
	amount, ok := parseAmount(budget)
	if !ok {
		return "14-carat gold"
	}
	switch {
	case amount < 500:
		return "sterling silver 925"
	case amount < 1000:
		return "9-carat gold"
	case amount < 2000:
		return "14-carat gold"
	case amount < 5000:
		return "18-carat gold"
	default:
		return "18-carat gold with high-quality precious gemstones"
	}
}

// Gemstones extracts the gemstone tokens present in a description, in
// vocabulary order, at most once each.
func Gemstones(description string) []string {
	desc := strings.ToLower(description)
	var out []string
	for _, g := range gemstoneVocabulary {
		if strings.Contains(desc, g.keyword) {
			out = append(out, g.token)
		}
	}
	return out
}

func extractStyles(description string) []string {
	desc := strings.ToLower(description)
	var out []string
	for _, s := range styleVocabulary {
		if strings.Contains(desc, s.keyword) {
			out = append(out, s.token)
		}
	}
	return out
}

// parseAmount keeps only digits so inputs like "1 500 €" still parse.
func parseAmount(budget string) (int, bool) {
	var digits strings.Builder
	for _, r := range budget {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	amount := 0
	for _, r := range digits.String() {
		amount = amount*10 + int(r-'0')
		if amount > 1_000_000_000 {
			return amount, true
		}
	}
	return amount, true
}
