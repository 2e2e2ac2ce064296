package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/permale/atelier/internal/domain"
)

// CloudinaryStore uploads objects to a Cloudinary media library.
type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

// CloudinaryOptions configures a CloudinaryStore.
type CloudinaryOptions struct {
	CloudName string
	APIKey    string
	APISecret string
}

// NewCloudinaryStore validates credentials and builds the store.
func NewCloudinaryStore(opts CloudinaryOptions) (*CloudinaryStore, error) {
	if strings.TrimSpace(opts.CloudName) == "" || strings.TrimSpace(opts.APIKey) == "" || strings.TrimSpace(opts.APISecret) == "" {
		return nil, fmt.Errorf("storage: cloudinary cloud name, key and secret are required: %w", domain.ErrMissingConfig)
	}
	cld, err := cloudinary.NewFromParams(opts.CloudName, opts.APIKey, opts.APISecret)
	if err != nil {
		return nil, fmt.Errorf("storage: cloudinary init: %w", err)
	}
	return &CloudinaryStore{cld: cld}, nil
}

// Upload pushes the object under the given key, reusing the key path as the
// Cloudinary public ID.
func (s *CloudinaryStore) Upload(ctx context.Context, key string, obj Object) (string, error) {
	if s == nil {
		return "", errNoUploader
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	publicID := strings.TrimSuffix(cleanKey, path.Ext(cleanKey))
	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(obj.Data), uploader.UploadParams{
		PublicID: publicID,
	})
	if err != nil {
		return "", fmt.Errorf("storage: cloudinary upload: %w", err)
	}
	if resp == nil || resp.SecureURL == "" {
		return "", fmt.Errorf("storage: cloudinary upload returned no url")
	}
	return resp.SecureURL, nil
}
