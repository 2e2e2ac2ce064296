package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/permale/atelier/internal/domain"
	"github.com/permale/atelier/internal/slug"
)

// photoModele is one reference photo from the intake form: a data URI plus
// the client-side filename. Bare strings are accepted for older form
// versions.
type photoModele struct {
	Data     string `json:"data"`
	Filename string `json:"filename"`
}

func (p *photoModele) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		p.Data = s
		return nil
	}
	type alias photoModele
	var a alias
	if err := json.Unmarshal(raw, &a); err != nil {
		return err
	}
	*p = photoModele(a)
	return nil
}

type createProjetRequest struct {
	Nom           string        `json:"nom"`
	Prenom        string        `json:"prenom"`
	Email         string        `json:"email"`
	Telephone     string        `json:"telephone"`
	TypeBijou     string        `json:"typeBijou"`
	Description   string        `json:"description"`
	AUnModele     bool          `json:"aUnModele"`
	PhotosModele  []photoModele `json:"photosModele"`
	Occasion      string        `json:"occasion"`
	PourQui       string        `json:"pourQui"`
	Budget        string        `json:"budget"`
	DateLivraison string        `json:"dateLivraison"`
	Gravure       string        `json:"gravure"`
}

type updateProjetRequest struct {
	ID string `json:"id"`

	ImageSelectionnee *string `json:"imageSelectionnee"`
	URLPresentation   *string `json:"urlPresentation"`

	ImageIA1 *string `json:"imageIA1"`
	ImageIA2 *string `json:"imageIA2"`
	ImageIA3 *string `json:"imageIA3"`
	ImageIA4 *string `json:"imageIA4"`
	ImageIA5 *string `json:"imageIA5"`

	ImagePres1 *string `json:"imagePres1"`
	ImagePres2 *string `json:"imagePres2"`
	ImagePres3 *string `json:"imagePres3"`
	ImagePres4 *string `json:"imagePres4"`
}

// projetResponse serves both image shapes: the ordered list and the
// per-slot fields the admin board binds to.
type projetResponse struct {
	ID            string   `json:"id"`
	Nom           string   `json:"nom"`
	Prenom        string   `json:"prenom"`
	Email         string   `json:"email"`
	Telephone     string   `json:"telephone,omitempty"`
	TypeBijou     string   `json:"typeBijou"`
	Description   string   `json:"description,omitempty"`
	AUnModele     bool     `json:"aUnModele"`
	PhotosModele  []string `json:"photosModele,omitempty"`
	Occasion      string   `json:"occasion,omitempty"`
	PourQui       string   `json:"pourQui,omitempty"`
	Budget        string   `json:"budget,omitempty"`
	DateLivraison string   `json:"dateLivraison,omitempty"`
	Gravure       string   `json:"gravure,omitempty"`

	Images   []string `json:"images"`
	ImageIA1 string   `json:"imageIA1,omitempty"`
	ImageIA2 string   `json:"imageIA2,omitempty"`
	ImageIA3 string   `json:"imageIA3,omitempty"`
	ImageIA4 string   `json:"imageIA4,omitempty"`
	ImageIA5 string   `json:"imageIA5,omitempty"`

	ImageSelectionnee string `json:"imageSelectionnee,omitempty"`
	ImagePres1        string `json:"imagePres1,omitempty"`
	ImagePres2        string `json:"imagePres2,omitempty"`
	ImagePres3        string `json:"imagePres3,omitempty"`
	ImagePres4        string `json:"imagePres4,omitempty"`

	URLPresentation string `json:"urlPresentation,omitempty"`
	DateCreation    string `json:"dateCreation,omitempty"`
}

func toProjetResponse(p domain.Projet) projetResponse {
	resp := projetResponse{
		ID:            p.ID,
		Nom:           p.Nom,
		Prenom:        p.Prenom,
		Email:         p.Email,
		Telephone:     p.Telephone,
		TypeBijou:     p.TypeBijou,
		Description:   p.Description,
		AUnModele:     p.AUnModele,
		PhotosModele:  p.PhotosModele,
		Occasion:      p.Occasion,
		PourQui:       p.PourQui,
		Budget:        p.Budget,
		DateLivraison: p.DateLivraison,
		Gravure:       p.Gravure,

		Images:            p.GeneratedImages(),
		ImageIA1:          p.Candidates[0],
		ImageIA2:          p.Candidates[1],
		ImageIA3:          p.Candidates[2],
		ImageIA4:          p.Candidates[3],
		ImageIA5:          p.Candidates[4],
		ImageSelectionnee: p.ImageSelectionnee,
		ImagePres1:        p.Presentation[0],
		ImagePres2:        p.Presentation[1],
		ImagePres3:        p.Presentation[2],
		ImagePres4:        p.Presentation[3],

		URLPresentation: p.URLPresentation,
		DateCreation:    p.DateCreation,
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}
	return resp
}

// ProjetsCreate handles the public intake form submission.
func (a *App) ProjetsCreate(w http.ResponseWriter, r *http.Request) {
	var req createProjetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Nom) == "" || strings.TrimSpace(req.Prenom) == "" ||
		strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.TypeBijou) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "nom, prenom, email and typeBijou are required")
		return
	}

	p := domain.Projet{
		Nom:           req.Nom,
		Prenom:        req.Prenom,
		Email:         req.Email,
		Telephone:     req.Telephone,
		TypeBijou:     req.TypeBijou,
		Description:   req.Description,
		AUnModele:     req.AUnModele,
		Occasion:      req.Occasion,
		PourQui:       req.PourQui,
		Budget:        req.Budget,
		DateLivraison: req.DateLivraison,
		Gravure:       req.Gravure,
	}

	// Reference photos are nice to have; a storage hiccup must not lose the
	// lead itself.
	if len(req.PhotosModele) > 0 {
		inputs := make([]string, 0, len(req.PhotosModele))
		for _, photo := range req.PhotosModele {
			inputs = append(inputs, photo.Data)
		}
		urls, err := a.Uploads.UploadImages(r.Context(), inputs, "photo-modele")
		if err != nil {
			a.Logger.Warn().Err(err).Int("photos", len(req.PhotosModele)).Msg("projets: reference photo upload failed")
		}
		p.PhotosModele = urls
	}

	created, err := a.Projets.Create(r.Context(), p)
	if err != nil {
		a.Logger.Error().Err(err).Msg("projets: create failed")
		a.error(w, http.StatusInternalServerError, "store_unavailable", "could not save the project")
		return
	}

	a.notifyIntake(*created)
	a.json(w, http.StatusCreated, toProjetResponse(*created))
}

// ProjetsGet returns one projet when an id query parameter is present,
// otherwise the full list newest first.
func (a *App) ProjetsGet(w http.ResponseWriter, r *http.Request) {
	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		p, err := a.Projets.Get(r.Context(), id)
		if err != nil {
			a.respondStoreError(w, err)
			return
		}
		a.json(w, http.StatusOK, toProjetResponse(*p))
		return
	}

	projets, err := a.Projets.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("projets: list failed")
		a.error(w, http.StatusInternalServerError, "store_unavailable", "could not load projects")
		return
	}
	out := make([]projetResponse, 0, len(projets))
	for _, p := range projets {
		out = append(out, toProjetResponse(p))
	}
	a.json(w, http.StatusOK, out)
}

// ProjetsUpdate applies a field-level partial update. Only the fields
// present in the payload are written.
func (a *App) ProjetsUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProjetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id is required")
		return
	}

	update := domain.ProjetUpdate{
		ImageSelectionnee: req.ImageSelectionnee,
		URLPresentation:   req.URLPresentation,
	}
	candidateSlots := map[int]*string{1: req.ImageIA1, 2: req.ImageIA2, 3: req.ImageIA3, 4: req.ImageIA4, 5: req.ImageIA5}
	for n, v := range candidateSlots {
		if v != nil {
			if update.CandidateSlot == nil {
				update.CandidateSlot = map[int]string{}
			}
			update.CandidateSlot[n] = *v
		}
	}
	presentationSlots := map[int]*string{1: req.ImagePres1, 2: req.ImagePres2, 3: req.ImagePres3, 4: req.ImagePres4}
	for n, v := range presentationSlots {
		if v != nil {
			if update.PresentationSlot == nil {
				update.PresentationSlot = map[int]string{}
			}
			update.PresentationSlot[n] = *v
		}
	}
	if update.IsZero() {
		a.error(w, http.StatusBadRequest, "bad_request", "no fields to update")
		return
	}

	if req.ImageSelectionnee != nil && *req.ImageSelectionnee != "" {
		if current, err := a.Projets.Get(r.Context(), id); err == nil && !current.IsCandidate(*req.ImageSelectionnee) {
			a.Logger.Warn().
				Str("projet_id", id).
				Str("url", *req.ImageSelectionnee).
				Msg("projets: selected image is not among generated candidates")
		}
	}

	updated, err := a.Projets.Update(r.Context(), id, update)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	a.PresentationCache.Delete(slug.Token(id))
	a.json(w, http.StatusOK, toProjetResponse(*updated))
}

// ProjetsPresentation resolves a public presentation URL to its projet. The
// endpoint is unauthenticated; the unguessable token in the URL is the
// access control. Responses are cached briefly since clients poll this
// while waiting for images.
func (a *App) ProjetsPresentation(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "url query parameter is required")
		return
	}
	token, ok := slug.ExtractToken(rawURL)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "not a presentation url")
		return
	}

	if cached, ok := a.PresentationCache.Get(token); ok {
		a.json(w, http.StatusOK, cached)
		return
	}

	projets, err := a.Projets.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("projets: presentation lookup failed")
		a.error(w, http.StatusInternalServerError, "store_unavailable", "could not load projects")
		return
	}
	for _, p := range projets {
		if slug.Token(p.ID) == token {
			resp := toProjetResponse(p)
			a.PresentationCache.Set(token, resp)
			a.json(w, http.StatusOK, resp)
			return
		}
	}
	a.error(w, http.StatusNotFound, "not_found", "no project for this presentation url")
}

func (a *App) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "project not found")
	case errors.Is(err, domain.ErrMissingConfig):
		a.Logger.Error().Err(err).Msg("projets: record store misconfigured")
		a.error(w, http.StatusInternalServerError, "store_misconfigured", "record store is not configured")
	default:
		a.Logger.Error().Err(err).Msg("projets: store request failed")
		a.error(w, http.StatusInternalServerError, "store_unavailable", "record store unavailable")
	}
}

// notifyIntake posts the new projet to the configured automation webhook.
// Fire and forget: the lead is already saved, so failures only get a log
// line.
func (a *App) notifyIntake(p domain.Projet) {
	if a.IntakeWebhookURL == "" {
		return
	}
	payload, err := json.Marshal(toProjetResponse(p))
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.IntakeWebhookURL, bytes.NewReader(payload))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := a.httpClient().Do(req)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("projets: intake webhook failed")
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			a.Logger.Warn().Int("status", resp.StatusCode).Msg("projets: intake webhook rejected")
		}
	}()
}
