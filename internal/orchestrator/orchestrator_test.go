package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/permale/atelier/internal/domain"
	"github.com/permale/atelier/internal/providers/openai"
)

type memRepo struct {
	mu      sync.Mutex
	projets map[string]*domain.Projet
	updates []domain.ProjetUpdate
}

func newMemRepo(projets ...*domain.Projet) *memRepo {
	r := &memRepo{projets: map[string]*domain.Projet{}}
	for _, p := range projets {
		r.projets[p.ID] = p
	}
	return r
}

func (r *memRepo) Create(ctx context.Context, p domain.Projet) (*domain.Projet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := p
	r.projets[p.ID] = &clone
	return &clone, nil
}

func (r *memRepo) Get(ctx context.Context, id string) (*domain.Projet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *memRepo) Update(ctx context.Context, id string, u domain.ProjetUpdate) (*domain.Projet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r.updates = append(r.updates, u)
	for n, url := range u.CandidateSlot {
		p.Candidates[n-1] = url
	}
	for n, url := range u.PresentationSlot {
		p.Presentation[n-1] = url
	}
	if u.ImageSelectionnee != nil {
		p.ImageSelectionnee = *u.ImageSelectionnee
	}
	if u.URLPresentation != nil {
		p.URLPresentation = *u.URLPresentation
	}
	clone := *p
	return &clone, nil
}

func (r *memRepo) List(ctx context.Context) ([]domain.Projet, error) {
	return nil, nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	fail  map[int]error
}

func (g *fakeGenerator) GenerateImage(ctx context.Context, req openai.ImageRequest) (*openai.GeneratedImage, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()
	if err, ok := g.fail[call]; ok {
		return nil, err
	}
	return &openai.GeneratedImage{
		DataURI: fmt.Sprintf("data:image/png;base64,Z2VuLSVk-%d", call),
		CostUSD: 0.04,
	}, nil
}

type fakeUploads struct {
	mu    sync.Mutex
	names []string
}

func (u *fakeUploads) UploadImage(ctx context.Context, input, filename string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.names = append(u.names, filename)
	return "https://cdn.example/" + filename + ".png", nil
}

func TestGenerateCandidatesWritesSlotsIncrementally(t *testing.T) {
	repo := newMemRepo(&domain.Projet{ID: "rec1", TypeBijou: "Collier", Budget: "1500"})
	gen := &fakeGenerator{}
	uploads := &fakeUploads{}
	o := &Orchestrator{Repo: repo, Generator: gen, Uploads: uploads, BatchSize: 4}

	result, err := o.GenerateCandidates(context.Background(), "rec1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Generated != 4 || len(result.URLs) != 4 {
		t.Fatalf("generated = %d, urls = %d", result.Generated, len(result.URLs))
	}
	if result.CostUSD != 0.16 {
		t.Fatalf("cost = %v", result.CostUSD)
	}
	if !strings.Contains(result.Prompt, "Professional jewelry photography showcase") {
		t.Fatalf("prompt = %q", result.Prompt)
	}

	// 4 per-slot writes plus the final consolidation write.
	if len(repo.updates) != 5 {
		t.Fatalf("updates = %d, want 5", len(repo.updates))
	}
	for i, u := range repo.updates[:4] {
		if len(u.CandidateSlot) != 1 {
			t.Fatalf("update %d writes %d slots, want 1", i, len(u.CandidateSlot))
		}
		if _, ok := u.CandidateSlot[i+1]; !ok {
			t.Fatalf("update %d missing slot %d", i, i+1)
		}
		if len(u.Images) != 0 {
			t.Fatalf("per-slot update %d must not rewrite the image list", i)
		}
	}
	final := repo.updates[4]
	if len(final.Images) != 4 || len(final.CandidateSlot) != 4 {
		t.Fatalf("final update = %+v", final)
	}

	p, _ := repo.Get(context.Background(), "rec1")
	if len(p.GeneratedImages()) != 4 {
		t.Fatalf("record candidates = %v", p.Candidates)
	}
}

func TestGenerateCandidatesSkipsFailedSlot(t *testing.T) {
	repo := newMemRepo(&domain.Projet{ID: "rec1", TypeBijou: "Bracelet"})
	gen := &fakeGenerator{fail: map[int]error{3: domain.ErrContentPolicy}}
	o := &Orchestrator{Repo: repo, Generator: gen, Uploads: &fakeUploads{}, BatchSize: 4}

	result, err := o.GenerateCandidates(context.Background(), "rec1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Generated != 3 {
		t.Fatalf("generated = %d, want 3", result.Generated)
	}

	p, _ := repo.Get(context.Background(), "rec1")
	if p.Candidates[2] != "" {
		t.Fatalf("failed slot 3 must stay empty, got %q", p.Candidates[2])
	}
	if p.Candidates[0] == "" || p.Candidates[1] == "" || p.Candidates[3] == "" {
		t.Fatalf("surviving slots missing: %v", p.Candidates)
	}
}

func TestGenerateCandidatesFailsWhenEverySlotFails(t *testing.T) {
	repo := newMemRepo(&domain.Projet{ID: "rec1"})
	gen := &fakeGenerator{fail: map[int]error{1: domain.ErrRateLimited, 2: domain.ErrRateLimited}}
	o := &Orchestrator{Repo: repo, Generator: gen, Uploads: &fakeUploads{}, BatchSize: 2}

	_, err := o.GenerateCandidates(context.Background(), "rec1")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want wrapped ErrRateLimited", err)
	}
	if len(repo.updates) != 0 {
		t.Fatalf("updates = %d, want 0", len(repo.updates))
	}
}

func TestGenerateSlotWritesSingleSlot(t *testing.T) {
	p := &domain.Projet{ID: "rec1"}
	p.Candidates[0] = "https://cdn.example/existing.png"
	repo := newMemRepo(p)
	o := &Orchestrator{Repo: repo, Generator: &fakeGenerator{}, Uploads: &fakeUploads{}}

	url, err := o.GenerateSlot(context.Background(), "rec1", 2)
	if err != nil {
		t.Fatalf("generate slot: %v", err)
	}
	got, _ := repo.Get(context.Background(), "rec1")
	if got.Candidates[1] != url {
		t.Fatalf("slot 2 = %q, want %q", got.Candidates[1], url)
	}
	if got.Candidates[0] != "https://cdn.example/existing.png" {
		t.Fatal("existing slot clobbered")
	}
	if len(repo.updates) != 1 || len(repo.updates[0].Images) != 2 {
		t.Fatalf("updates = %+v", repo.updates)
	}

	if _, err := o.GenerateSlot(context.Background(), "rec1", 0); err == nil {
		t.Fatal("slot 0 must be rejected")
	}
	if _, err := o.GenerateSlot(context.Background(), "rec1", domain.CandidateSlots+1); err == nil {
		t.Fatal("out-of-range slot must be rejected")
	}
}

func TestGeneratePresentationRequiresSelection(t *testing.T) {
	repo := newMemRepo(&domain.Projet{ID: "rec1", TypeBijou: "Collier"})
	o := &Orchestrator{Repo: repo, Generator: &fakeGenerator{}, Uploads: &fakeUploads{}}

	_, err := o.GeneratePresentation(context.Background(), "rec1")
	if !errors.Is(err, domain.ErrUnsupportedInput) {
		t.Fatalf("err = %v, want ErrUnsupportedInput", err)
	}
}

func TestGeneratePresentationFillsFourScenes(t *testing.T) {
	p := &domain.Projet{ID: "rec1", TypeBijou: "Bague de Fiançailles", ImageSelectionnee: "https://cdn.example/chosen.png"}
	repo := newMemRepo(p)
	uploads := &fakeUploads{}
	o := &Orchestrator{Repo: repo, Generator: &fakeGenerator{}, Uploads: uploads}

	result, err := o.GeneratePresentation(context.Background(), "rec1")
	if err != nil {
		t.Fatalf("generate presentation: %v", err)
	}
	if result.Generated != domain.PresentationSlots {
		t.Fatalf("generated = %d, want %d", result.Generated, domain.PresentationSlots)
	}
	got, _ := repo.Get(context.Background(), "rec1")
	for i, u := range got.Presentation {
		if u == "" {
			t.Fatalf("presentation slot %d empty", i+1)
		}
	}
	for i, name := range uploads.names {
		if want := fmt.Sprintf("projet-rec1-pres-%d", i+1); name != want {
			t.Fatalf("upload filename = %q, want %q", name, want)
		}
	}
}

func TestGenerateCandidatesCollapsesConcurrentRuns(t *testing.T) {
	repo := newMemRepo(&domain.Projet{ID: "rec1"})
	gen := &blockingGenerator{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	o := &Orchestrator{Repo: repo, Generator: gen, Uploads: &fakeUploads{}, BatchSize: 1}

	first := make(chan *Result, 1)
	go func() {
		r, _ := o.GenerateCandidates(context.Background(), "rec1")
		first <- r
	}()
	// The first run is now blocked inside the generator, so the second call
	// is guaranteed to join it instead of starting its own.
	<-gen.started

	second := make(chan *Result, 1)
	go func() {
		r, _ := o.GenerateCandidates(context.Background(), "rec1")
		second <- r
	}()
	// Give the second caller time to reach the in-flight group before the
	// first run is released.
	time.Sleep(50 * time.Millisecond)

	close(gen.release)
	r1, r2 := <-first, <-second

	if gen.calls() != 1 {
		t.Fatalf("generator calls = %d, want 1 (runs must collapse)", gen.calls())
	}
	if r1 == nil || r1 != r2 {
		t.Fatal("concurrent callers should share one result")
	}
}

type blockingGenerator struct {
	mu      sync.Mutex
	once    sync.Once
	started chan struct{}
	release chan struct{}
	n       int
}

func (g *blockingGenerator) GenerateImage(ctx context.Context, req openai.ImageRequest) (*openai.GeneratedImage, error) {
	g.mu.Lock()
	g.n++
	g.mu.Unlock()
	g.once.Do(func() { close(g.started) })
	<-g.release
	return &openai.GeneratedImage{DataURI: "data:image/png;base64,AA==", CostUSD: 0.04}, nil
}

func (g *blockingGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}
