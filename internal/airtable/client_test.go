package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/permale/atelier/internal/domain"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:        "key-test",
		BaseID:        "appBASE",
		Table:         "Projets",
		BaseURL:       baseURL,
		PublicBaseURL: "https://www.permale.example",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCreateStampsPresentationURL(t *testing.T) {
	var patched map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/appBASE/Projets":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode create body: %v", err)
			}
			fields := body["fields"].(map[string]any)
			if fields["Nom"] != "Lévêque" {
				t.Fatalf("create fields = %v", fields)
			}
			if _, ok := fields["imageIA1"]; ok {
				t.Fatal("create must not write generated-image columns")
			}
			json.NewEncoder(w).Encode(record{ID: "recABCDEF123456", Fields: fields})
		case r.Method == http.MethodPatch && strings.HasSuffix(r.URL.Path, "/recABCDEF123456"):
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode patch body: %v", err)
			}
			patched = body["fields"].(map[string]any)
			json.NewEncoder(w).Encode(record{ID: "recABCDEF123456", Fields: map[string]any{
				"Nom":              "Lévêque",
				"Prenom":           "Marie",
				"URL Presentation": patched["URL Presentation"],
			}})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	created, err := client.Create(context.Background(), domain.Projet{Nom: "Lévêque", Prenom: "Marie", Email: "m@example.com", TypeBijou: "Collier"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := "https://www.permale.example/projets/presentation/leveque-marie-ef123456"
	if patched["URL Presentation"] != want {
		t.Fatalf("stamped url = %v, want %q", patched["URL Presentation"], want)
	}
	if created.URLPresentation != want {
		t.Fatalf("returned url = %q, want %q", created.URLPresentation, want)
	}
}

func TestCreateWritesBaseSchemaColumns(t *testing.T) {
	var fields map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode create body: %v", err)
			}
			fields = body["fields"].(map[string]any)
		}
		json.NewEncoder(w).Encode(record{ID: "rec00000000000DD", Fields: fields})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.now = func() time.Time { return time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC) }

	_, err := client.Create(context.Background(), domain.Projet{
		Nom:          "Lévêque",
		Prenom:       "Marie",
		Email:        "m@example.com",
		Telephone:    "0601020304",
		TypeBijou:    "Collier",
		Budget:       "1 500 €",
		AUnModele:    true,
		PhotosModele: []string{"https://img.example/ref.png"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The base predates this service: Prenom and Telephone carry no accents.
	if fields["Prenom"] != "Marie" {
		t.Fatalf("Prenom = %v", fields["Prenom"])
	}
	if fields["Telephone"] != "0601020304" {
		t.Fatalf("Telephone = %v", fields["Telephone"])
	}
	for _, bad := range []string{"Prénom", "Téléphone", "Photos modèle"} {
		if _, ok := fields[bad]; ok {
			t.Fatalf("unknown column %q written", bad)
		}
	}
	if fields["Budget"] != float64(1500) {
		t.Fatalf("Budget = %v (%T), want number 1500", fields["Budget"], fields["Budget"])
	}
	if fields["Date de creation"] != "2026-08-15T10:30:00Z" {
		t.Fatalf("Date de creation = %v; List sorts on this column", fields["Date de creation"])
	}
	photos, ok := fields["Images"].([]any)
	if !ok || len(photos) != 1 {
		t.Fatalf("Images = %v, want one attachment", fields["Images"])
	}
	photo := photos[0].(map[string]any)
	if photo["url"] != "https://img.example/ref.png" || photo["filename"] != "photo-1.jpg" {
		t.Fatalf("Images[0] = %v", photo)
	}
}

func TestGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"NOT_FOUND","message":"Record not found"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Get(context.Background(), "recMISSING000000")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetDecodesBothImageShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(record{
			ID:          "rec00000000000AA",
			CreatedTime: "2026-08-01T09:00:00.000Z",
			Fields: map[string]any{
				"Nom":        "Durand",
				"A un modèle": true,
				"imageIA1":   "https://img.example/one.png",
				"imageIA3": []any{
					map[string]any{"url": "https://img.example/three.png"},
				},
				"ImagePres2":    "https://img.example/pres2.png",
				"Image choisie": "https://img.example/one.png",
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	p, err := client.Get(context.Background(), "rec00000000000AA")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Candidates[0] != "https://img.example/one.png" {
		t.Fatalf("candidate 1 = %q", p.Candidates[0])
	}
	if p.Candidates[2] != "https://img.example/three.png" {
		t.Fatalf("attachment-shaped candidate 3 = %q", p.Candidates[2])
	}
	if p.Candidates[1] != "" {
		t.Fatalf("candidate 2 should be empty, got %q", p.Candidates[1])
	}
	if p.Presentation[1] != "https://img.example/pres2.png" {
		t.Fatalf("presentation 2 = %q", p.Presentation[1])
	}
	if !p.AUnModele {
		t.Fatal("AUnModele not decoded")
	}
	if p.DateCreation != "2026-08-01T09:00:00.000Z" {
		t.Fatalf("date creation fallback = %q", p.DateCreation)
	}
}

func TestGetLegacyImagesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(record{
			ID: "rec00000000000BB",
			Fields: map[string]any{
				"Images": []any{
					map[string]any{"url": "https://img.example/a.png"},
					map[string]any{"url": "https://img.example/b.png"},
				},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	p, err := client.Get(context.Background(), "rec00000000000BB")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Candidates[0] != "https://img.example/a.png" || p.Candidates[1] != "https://img.example/b.png" {
		t.Fatalf("legacy fallback candidates = %v", p.Candidates)
	}
}

func TestGetClientPhotosAreNotCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(record{
			ID: "rec00000000000EE",
			Fields: map[string]any{
				"A un modèle": true,
				"Budget":      float64(1500),
				"Images": []any{
					map[string]any{"url": "https://img.example/ref.png", "filename": "photo-1.jpg"},
				},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	p, err := client.Get(context.Background(), "rec00000000000EE")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.HasGeneratedImages() {
		t.Fatalf("reference photos misread as candidates: %v", p.Candidates)
	}
	if len(p.PhotosModele) != 1 || p.PhotosModele[0] != "https://img.example/ref.png" {
		t.Fatalf("photos = %v", p.PhotosModele)
	}
	if p.Budget != "1500" {
		t.Fatalf("numeric Budget decoded as %q", p.Budget)
	}
}

func TestUpdateWritesOnlyTouchedColumns(t *testing.T) {
	var fields map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Fatalf("method = %s, want PATCH", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		fields = body["fields"].(map[string]any)
		json.NewEncoder(w).Encode(record{ID: "rec00000000000CC", Fields: fields})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	selected := "https://img.example/two.png"
	_, err := client.Update(context.Background(), "rec00000000000CC", domain.ProjetUpdate{
		CandidateSlot:     map[int]string{2: "https://img.example/two.png"},
		Images:            []string{"https://img.example/one.png", "https://img.example/two.png"},
		ImageSelectionnee: &selected,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if fields["imageIA2"] != "https://img.example/two.png" {
		t.Fatalf("imageIA2 = %v", fields["imageIA2"])
	}
	if _, ok := fields["imageIA1"]; ok {
		t.Fatal("untouched slot column written")
	}
	if _, ok := fields["Nom"]; ok {
		t.Fatal("intake column written by image update")
	}
	images := fields["Images"].([]any)
	if len(images) != 2 {
		t.Fatalf("Images len = %d, want 2", len(images))
	}
	first := images[0].(map[string]any)
	if first["url"] != "https://img.example/one.png" {
		t.Fatalf("Images[0] = %v", first)
	}
	chosen, ok := fields["Image choisie"].([]any)
	if !ok || len(chosen) != 1 {
		t.Fatalf("Image choisie = %v, want one attachment", fields["Image choisie"])
	}
	if chosen[0].(map[string]any)["url"] != "https://img.example/two.png" {
		t.Fatalf("Image choisie url = %v", chosen[0])
	}
}

func TestListFollowsPaginationNewestFirst(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("sort[0][field]"); got != "Date de creation" {
			t.Fatalf("sort field = %q", got)
		}
		if got := r.URL.Query().Get("sort[0][direction]"); got != "desc" {
			t.Fatalf("sort direction = %q", got)
		}
		switch r.URL.Query().Get("offset") {
		case "":
			json.NewEncoder(w).Encode(listResponse{
				Records: []record{{ID: "rec1", Fields: map[string]any{"Nom": "A"}}},
				Offset:  "next-page",
			})
		case "next-page":
			json.NewEncoder(w).Encode(listResponse{
				Records: []record{{ID: "rec2", Fields: map[string]any{"Nom": "B"}}},
			})
		default:
			t.Fatalf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	projets, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if len(projets) != 2 || projets[0].ID != "rec1" || projets[1].ID != "rec2" {
		t.Fatalf("projets = %+v", projets)
	}
}

func TestMissingCredentials(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Get(context.Background(), "rec1"); !errors.Is(err, domain.ErrMissingConfig) {
		t.Fatalf("err = %v, want ErrMissingConfig", err)
	}
}
