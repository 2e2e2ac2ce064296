// Package storage persists generated and client-supplied images behind a
// common uploader interface with local, GitHub, and Cloudinary backends.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/permale/atelier/internal/domain"
)

// Object is a decoded image ready for upload.
type Object struct {
	Data []byte
	MIME string
}

// Ext returns the file extension for the object's MIME type, dot included.
func (o Object) Ext() string {
	switch o.MIME {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

// Uploader persists one object at the given storage key and returns its
// public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, obj Object) (string, error)
}

// Decode turns a data URI or a bare base64 string into an Object. The MIME
// type is taken from the data URI header when present, otherwise sniffed
// from the decoded bytes. Anything that is not an image yields
// domain.ErrUnsupportedInput.
func Decode(input string) (Object, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Object{}, fmt.Errorf("storage: empty input: %w", domain.ErrUnsupportedInput)
	}

	declaredMIME := ""
	payload := input
	if strings.HasPrefix(input, "data:") {
		header, rest, ok := strings.Cut(input[len("data:"):], ",")
		if !ok {
			return Object{}, fmt.Errorf("storage: malformed data uri: %w", domain.ErrUnsupportedInput)
		}
		declaredMIME = strings.TrimSuffix(header, ";base64")
		payload = rest
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return Object{}, fmt.Errorf("storage: decode base64: %w", domain.ErrUnsupportedInput)
	}
	if len(data) == 0 {
		return Object{}, fmt.Errorf("storage: empty payload: %w", domain.ErrUnsupportedInput)
	}

	detected := mimetype.Detect(data)
	mime := detected.String()
	if !strings.HasPrefix(mime, "image/") {
		// Trust the declared type only when sniffing finds nothing usable.
		if strings.HasPrefix(declaredMIME, "image/") {
			mime = declaredMIME
		} else {
			return Object{}, fmt.Errorf("storage: %s is not an image: %w", mime, domain.ErrUnsupportedInput)
		}
	}
	return Object{Data: data, MIME: mime}, nil
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}

// UniqueKey builds a collision-resistant storage key, partitioned by year
// and month so the bucket stays browsable.
func UniqueKey(now time.Time, filename string) string {
	return fmt.Sprintf("projets/%04d/%02d/%d-%s-%s",
		now.Year(), int(now.Month()), now.UnixMilli(), randomSuffix(6), sanitizeFilename(filename))
}

func sanitizeFilename(filename string) string {
	filename = path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if filename == "" || filename == "." || filename == "/" {
		return "image.png"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(filename) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "image.png"
	}
	return out
}

var errNoUploader = errors.New("storage: no uploader configured")
