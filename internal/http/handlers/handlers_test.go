package handlers

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/permale/atelier/internal/cache"
	"github.com/permale/atelier/internal/domain"
	"github.com/permale/atelier/internal/infra"
	"github.com/permale/atelier/internal/orchestrator"
)

func timeout(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(2 * time.Second)
}

func testLogger() *infra.Logger {
	discard := zerolog.New(io.Discard)
	l := infra.Logger(discard)
	return &l
}

type memRepo struct {
	mu        sync.Mutex
	seq       int
	projets   map[string]*domain.Projet
	updates   []domain.ProjetUpdate
	listErr   error
	createErr error
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
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.seq++
	p.ID = fmt.Sprintf("recTEST%08d", r.seq)
	p.URLPresentation = "https://www.permale.example/projets/presentation/test-" + p.ID[len(p.ID)-8:]
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
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]domain.Projet, 0, len(r.projets))
	for _, p := range r.projets {
		out = append(out, *p)
	}
	return out, nil
}

type fakeUploads struct {
	mu      sync.Mutex
	inputs  []string
	fail    error
	counter int
}

func (u *fakeUploads) UploadImage(ctx context.Context, input, filename string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail != nil {
		return "", u.fail
	}
	u.inputs = append(u.inputs, input)
	u.counter++
	return fmt.Sprintf("https://cdn.example/%s-%d.png", filename, u.counter), nil
}

func (u *fakeUploads) UploadImages(ctx context.Context, inputs []string, baseFilename string) ([]string, error) {
	var urls []string
	for i, input := range inputs {
		url, err := u.UploadImage(ctx, input, fmt.Sprintf("%s-%d", baseFilename, i+1))
		if err != nil {
			return urls, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

type fakePipeline struct {
	mu sync.Mutex

	candidateCalls   []string
	slotCalls        []int
	presentationRuns []string

	candidateErr error
	slotErr      error
	started      chan string
}

func (f *fakePipeline) GenerateCandidates(ctx context.Context, id string) (*orchestrator.Result, error) {
	f.mu.Lock()
	f.candidateCalls = append(f.candidateCalls, id)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- id
	}
	if f.candidateErr != nil {
		return nil, f.candidateErr
	}
	return &orchestrator.Result{
		ProjetID:  id,
		Prompt:    "a prompt",
		URLs:      []string{"https://cdn.example/a.png", "https://cdn.example/b.png"},
		Generated: 2,
		CostUSD:   0.08,
	}, nil
}

func (f *fakePipeline) GenerateSlot(ctx context.Context, id string, slot int) (string, error) {
	f.mu.Lock()
	f.slotCalls = append(f.slotCalls, slot)
	f.mu.Unlock()
	if f.slotErr != nil {
		return "", f.slotErr
	}
	return fmt.Sprintf("https://cdn.example/%s-%d.png", id, slot), nil
}

func (f *fakePipeline) GeneratePresentation(ctx context.Context, id string) (*orchestrator.Result, error) {
	f.mu.Lock()
	f.presentationRuns = append(f.presentationRuns, id)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- id
	}
	return &orchestrator.Result{ProjetID: id, Generated: 4}, nil
}

func newTestApp(repo *memRepo, pipeline *fakePipeline, uploads *fakeUploads) *App {
	return &App{
		Logger:            testLogger(),
		Projets:           repo,
		Pipeline:          pipeline,
		Uploads:           uploads,
		BaseURL:           "http://localhost:8080",
		WebhookBatch:      4,
		PresentationCache: cache.New[projetResponse](5 * time.Minute),
	}
}
