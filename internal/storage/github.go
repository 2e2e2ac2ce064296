package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"

	"github.com/permale/atelier/internal/domain"
)

// GitHubStore commits objects into an image repository via the contents API
// and serves them from raw.githubusercontent.com. The free tier makes it the
// default production backend.
type GitHubStore struct {
	client *github.Client
	owner  string
	repo   string
	branch string
	now    func() time.Time
}

// GitHubOptions configures a GitHubStore.
type GitHubOptions struct {
	Token  string
	Owner  string
	Repo   string
	Branch string
	// BaseURL points the contents API somewhere else, for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// NewGitHubStore validates credentials and builds the store.
func NewGitHubStore(opts GitHubOptions) (*GitHubStore, error) {
	if strings.TrimSpace(opts.Token) == "" || strings.TrimSpace(opts.Owner) == "" || strings.TrimSpace(opts.Repo) == "" {
		return nil, fmt.Errorf("storage: github token, owner and repo are required: %w", domain.ErrMissingConfig)
	}
	branch := strings.TrimSpace(opts.Branch)
	if branch == "" {
		branch = "main"
	}
	client := github.NewClient(opts.HTTPClient).WithAuthToken(opts.Token)
	if opts.BaseURL != "" {
		parsed, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("storage: github base url: %w", err)
		}
		client.BaseURL = parsed
	}
	return &GitHubStore{
		client: client,
		owner:  opts.Owner,
		repo:   opts.Repo,
		branch: branch,
		now:    time.Now,
	}, nil
}

// Upload commits the object at the given key. A conflicting path (another
// writer landed the same key first) is retried exactly once with a fresh
// unique key derived from the original filename.
func (s *GitHubStore) Upload(ctx context.Context, key string, obj Object) (string, error) {
	if s == nil {
		return "", errNoUploader
	}
	rawURL, err := s.createFile(ctx, key, obj)
	if err == nil {
		return rawURL, nil
	}
	if !isConflict(err) {
		return "", err
	}
	retryKey := UniqueKey(s.now(), path.Base(key))
	return s.createFile(ctx, retryKey, obj)
}

func (s *GitHubStore) createFile(ctx context.Context, key string, obj Object) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	opts := &github.RepositoryContentFileOptions{
		Message: github.String("Add " + path.Base(cleanKey)),
		Content: obj.Data,
		Branch:  github.String(s.branch),
	}
	_, _, err = s.client.Repositories.CreateFile(ctx, s.owner, s.repo, cleanKey, opts)
	if err != nil {
		return "", fmt.Errorf("storage: github create file: %w", err)
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", s.owner, s.repo, s.branch, cleanKey), nil
}

func isConflict(err error) bool {
	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return false
	}
	code := ghErr.Response.StatusCode
	return code == http.StatusConflict || code == http.StatusUnprocessableEntity
}
