package airtable

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/permale/atelier/internal/domain"
)

// Column names of the projets table. The base predates this service, so the
// names are French, inconsistently accented, and not negotiable: Prenom and
// Telephone carry no accents while "A un modèle" does. Client reference
// photos share the Images attachment column with the defensive multi-valued
// copy of generated images.
const (
	fieldNom             = "Nom"
	fieldPrenom          = "Prenom"
	fieldEmail           = "Email"
	fieldTelephone       = "Telephone"
	fieldTypeBijou       = "Type de bijou (nouveau)"
	fieldDescription     = "Description"
	fieldAUnModele       = "A un modèle"
	fieldOccasion        = "Occasion"
	fieldPourQui         = "Pour qui"
	fieldBudget          = "Budget"
	fieldDateLivraison   = "Date de livraison"
	fieldGravure         = "Gravure"
	fieldImages          = "Images"
	fieldImageChoisie    = "Image choisie"
	fieldURLPresentation = "URL Presentation"
	fieldDateCreation    = "Date de creation"
)

// candidateField returns the column holding candidate slot n (1-based).
func candidateField(n int) string {
	return fmt.Sprintf("imageIA%d", n)
}

// presentationField returns the column holding presentation slot n (1-based).
func presentationField(n int) string {
	return fmt.Sprintf("ImagePres%d", n)
}

type attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

type record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// stringValue tolerates the two shapes image columns occur in across the
// base's history: a plain URL string, or an attachment array.
func stringValue(v any) string {
	switch typed := v.(type) {
	case string:
		return strings.TrimSpace(typed)
	case []any:
		for _, item := range typed {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if u, ok := obj["url"].(string); ok && strings.TrimSpace(u) != "" {
				return strings.TrimSpace(u)
			}
		}
	}
	return ""
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s := stringValue(v); s != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, item := range items {
		switch typed := item.(type) {
		case string:
			if s := strings.TrimSpace(typed); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			if u, ok := typed["url"].(string); ok && strings.TrimSpace(u) != "" {
				out = append(out, strings.TrimSpace(u))
			}
		}
	}
	return out
}

// budgetString renders the Budget column, a number in Airtable, back to the
// string the domain carries.
func budgetString(v any) string {
	switch typed := v.(type) {
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case string:
		return strings.TrimSpace(typed)
	}
	return ""
}

// budgetNumber parses the free-text budget into the number the column
// expects. Currency symbols, spaces and a decimal comma are tolerated; a
// budget with no leading number is dropped rather than sent as text.
func budgetNumber(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ', '€':
			return -1
		case ',':
			return '.'
		}
		return r
	}, strings.TrimSpace(s))
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func boolValue(v any) bool {
	switch typed := v.(type) {
	case bool:
		return typed
	case string:
		lowered := strings.ToLower(strings.TrimSpace(typed))
		return lowered == "oui" || lowered == "true" || lowered == "yes"
	}
	return false
}

func attachments(urls []string) []attachment {
	out := make([]attachment, 0, len(urls))
	for _, u := range urls {
		out = append(out, attachment{URL: u})
	}
	return out
}

// decodeProjet maps a raw record onto the domain entity. Candidate and
// presentation slots are read from the per-slot columns first; records
// written before the per-slot columns existed fall back to the multi-valued
// Images attachment list.
func decodeProjet(rec record) domain.Projet {
	f := rec.Fields
	p := domain.Projet{
		ID:            rec.ID,
		Nom:           stringValue(f[fieldNom]),
		Prenom:        stringValue(f[fieldPrenom]),
		Email:         stringValue(f[fieldEmail]),
		Telephone:     stringValue(f[fieldTelephone]),
		TypeBijou:     stringValue(f[fieldTypeBijou]),
		Description:   stringValue(f[fieldDescription]),
		AUnModele:     boolValue(f[fieldAUnModele]),
		PhotosModele:  stringList(f[fieldImages]),
		Occasion:      stringValue(f[fieldOccasion]),
		PourQui:       stringValue(f[fieldPourQui]),
		Budget:        budgetString(f[fieldBudget]),
		DateLivraison: stringValue(f[fieldDateLivraison]),
		Gravure:       stringValue(f[fieldGravure]),

		ImageSelectionnee: stringValue(f[fieldImageChoisie]),
		URLPresentation:   stringValue(f[fieldURLPresentation]),
	}

	for i := 0; i < domain.CandidateSlots; i++ {
		p.Candidates[i] = stringValue(f[candidateField(i+1)])
	}
	for i := 0; i < domain.PresentationSlots; i++ {
		p.Presentation[i] = stringValue(f[presentationField(i+1)])
	}
	// Records written before the per-slot columns existed carry generated
	// images only in the multi-valued Images list. The same column holds
	// client reference photos, so the fallback applies only when "A un
	// modèle" says no photos were submitted.
	if !p.HasGeneratedImages() && !p.AUnModele {
		for i, u := range stringList(f[fieldImages]) {
			if i >= domain.CandidateSlots {
				break
			}
			p.Candidates[i] = u
		}
	}

	p.DateCreation = stringValue(f[fieldDateCreation])
	if p.DateCreation == "" {
		p.DateCreation = rec.CreatedTime
	}
	return p
}

// encodeCreate maps the intake fields of a new projet. The creation
// timestamp is stamped here because List sorts on it; generated-image slot
// columns are never written at creation time.
func encodeCreate(p domain.Projet, now time.Time) map[string]any {
	f := map[string]any{
		fieldNom:          p.Nom,
		fieldPrenom:       p.Prenom,
		fieldEmail:        p.Email,
		fieldTypeBijou:    p.TypeBijou,
		fieldAUnModele:    p.AUnModele,
		fieldDateCreation: now.UTC().Format(time.RFC3339),
	}
	setIfNotEmpty := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			f[key] = value
		}
	}
	setIfNotEmpty(fieldTelephone, p.Telephone)
	setIfNotEmpty(fieldDescription, p.Description)
	setIfNotEmpty(fieldOccasion, p.Occasion)
	setIfNotEmpty(fieldPourQui, p.PourQui)
	setIfNotEmpty(fieldDateLivraison, p.DateLivraison)
	setIfNotEmpty(fieldGravure, p.Gravure)
	if n, ok := budgetNumber(p.Budget); ok {
		// The Budget column is numeric.
		f[fieldBudget] = n
	}
	if len(p.PhotosModele) > 0 {
		photos := make([]attachment, 0, len(p.PhotosModele))
		for i, u := range p.PhotosModele {
			photos = append(photos, attachment{URL: u, Filename: fmt.Sprintf("photo-%d.jpg", i+1)})
		}
		f[fieldImages] = photos
	}
	return f
}

// encodeUpdate maps a partial update onto the columns it touches. The
// per-slot columns and the multi-valued Images column are written together
// so both shapes stay in sync.
func encodeUpdate(u domain.ProjetUpdate) map[string]any {
	f := map[string]any{}
	for n, url := range u.CandidateSlot {
		f[candidateField(n)] = url
	}
	for n, url := range u.PresentationSlot {
		f[presentationField(n)] = url
	}
	if len(u.Images) > 0 {
		f[fieldImages] = attachments(u.Images)
	}
	if u.ImageSelectionnee != nil {
		// Image choisie is an attachment column, not a text one.
		f[fieldImageChoisie] = []attachment{{URL: *u.ImageSelectionnee}}
	}
	if u.URLPresentation != nil {
		f[fieldURLPresentation] = *u.URLPresentation
	}
	return f
}
