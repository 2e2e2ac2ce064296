package domain

import "strings"

// Slot counts for generated imagery. Candidate slots hold the AI
// visualisations proposed to the client; presentation slots hold the four
// staged shots produced after staff select one candidate.
const (
	CandidateSlots    = 5
	PresentationSlots = 4
)

// JewelryTypes lists the categories offered by the intake form. The record
// store accepts arbitrary strings, so TypeBijou stays a plain string and this
// list is informational only.
var JewelryTypes = []string{
	"Alliance",
	"Bague de Fiançailles",
	"Chevalière",
	"Bague autre",
	"Collier",
	"Pendentif",
	"Boucle d'oreille",
	"Bracelet",
	"Percing",
	"Bijoux autre",
}

// Projet is the central entity: one custom-jewelry request from intake
// through image generation and presentation.
//
// Candidates and Presentation are the single source of truth for generated
// imagery; an empty string marks an unpopulated slot. The record-store
// adapter translates between these ordered slots and whatever field shape
// the store prefers.
type Projet struct {
	ID string

	Nom       string
	Prenom    string
	Email     string
	Telephone string

	TypeBijou     string
	Description   string
	AUnModele     bool
	PhotosModele  []string
	Occasion      string
	PourQui       string
	Budget        string
	DateLivraison string
	Gravure       string

	Candidates        [CandidateSlots]string
	ImageSelectionnee string
	Presentation      [PresentationSlots]string
	URLPresentation   string

	DateCreation string
}

// GeneratedImages returns the populated candidate URLs in slot order.
func (p *Projet) GeneratedImages() []string {
	var urls []string
	for _, u := range p.Candidates {
		if strings.TrimSpace(u) != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// HasGeneratedImages reports whether at least one candidate slot is
// populated. Pollers treat this as "ready".
func (p *Projet) HasGeneratedImages() bool {
	return len(p.GeneratedImages()) > 0
}

// PresentationImages returns the populated presentation URLs in slot order.
func (p *Projet) PresentationImages() []string {
	var urls []string
	for _, u := range p.Presentation {
		if strings.TrimSpace(u) != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// IsCandidate reports whether url matches one of the populated candidate or
// presentation slots.
func (p *Projet) IsCandidate(url string) bool {
	for _, u := range p.Candidates {
		if u != "" && u == url {
			return true
		}
	}
	for _, u := range p.Presentation {
		if u != "" && u == url {
			return true
		}
	}
	return false
}

// ProjetUpdate carries a field-level partial update. Zero-valued members are
// left untouched by the repository; full-record overwrites are never issued.
type ProjetUpdate struct {
	// CandidateSlot writes individual candidate slots, keyed 1-based.
	CandidateSlot map[int]string
	// Images rewrites the multi-valued generated-images field with the full
	// ordered list of populated URLs.
	Images []string
	// PresentationSlot writes individual presentation slots, keyed 1-based.
	PresentationSlot map[int]string

	ImageSelectionnee *string
	URLPresentation   *string
}

// IsZero reports whether the update carries no fields at all.
func (u ProjetUpdate) IsZero() bool {
	return len(u.CandidateSlot) == 0 &&
		len(u.Images) == 0 &&
		len(u.PresentationSlot) == 0 &&
		u.ImageSelectionnee == nil &&
		u.URLPresentation == nil
}
