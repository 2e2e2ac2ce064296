package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/permale/atelier/internal/infra"
)

// interUploadDelay spaces sequential uploads so the GitHub contents API does
// not reject fast bursts against the same branch.
const interUploadDelay = 100 * time.Millisecond

// Service routes uploads to the configured backend and normalizes inputs:
// already-hosted URLs pass through untouched, data URIs and base64 payloads
// are decoded and stored.
type Service struct {
	uploader Uploader
	logger   *infra.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// ServiceOptions configures a storage Service.
type ServiceOptions struct {
	// Provider selects the backend: "local", "github" or "cloudinary".
	Provider string

	StoragePath    string
	StorageBaseURL string

	GitHub     GitHubOptions
	Cloudinary CloudinaryOptions

	Logger *infra.Logger
}

// NewService builds the backend named by Provider.
func NewService(opts ServiceOptions) (*Service, error) {
	var (
		uploader Uploader
		err      error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "local":
		uploader, err = NewFileStore(opts.StoragePath, opts.StorageBaseURL)
	case "github":
		uploader, err = NewGitHubStore(opts.GitHub)
	case "cloudinary":
		uploader, err = NewCloudinaryStore(opts.Cloudinary)
	default:
		return nil, fmt.Errorf("storage: unknown provider %q", opts.Provider)
	}
	if err != nil {
		return nil, err
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Service{
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

// NewServiceWith wires a Service around an existing uploader, for tests and
// custom backends.
func NewServiceWith(uploader Uploader, logger *infra.Logger) *Service {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Service{
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// UploadImage stores a single image given as a data URI, a bare base64
// payload, or an already-hosted URL. Hosted URLs are returned unchanged.
func (s *Service) UploadImage(ctx context.Context, input, filename string) (string, error) {
	if s == nil || s.uploader == nil {
		return "", errNoUploader
	}
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed, nil
	}
	obj, err := Decode(trimmed)
	if err != nil {
		return "", err
	}
	if !strings.Contains(filename, ".") {
		filename += obj.Ext()
	}
	key := UniqueKey(s.now(), filename)
	url, err := s.uploader.Upload(ctx, key, obj)
	if err != nil {
		return "", err
	}
	s.logger.Debug().Str("key", key).Str("url", url).Msg("storage: uploaded image")
	return url, nil
}

// UploadImages stores a batch sequentially, pausing between uploads. The
// first failure aborts the batch.
func (s *Service) UploadImages(ctx context.Context, inputs []string, baseFilename string) ([]string, error) {
	urls := make([]string, 0, len(inputs))
	for i, input := range inputs {
		if i > 0 {
			if err := s.sleep(ctx, interUploadDelay); err != nil {
				return urls, err
			}
		}
		url, err := s.UploadImage(ctx, input, fmt.Sprintf("%s-%d", baseFilename, i+1))
		if err != nil {
			return urls, fmt.Errorf("storage: upload %d of %d: %w", i+1, len(inputs), err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
