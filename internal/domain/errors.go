package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMissingConfig    = errors.New("missing configuration")
	ErrRateLimited      = errors.New("rate limited")
	ErrContentPolicy    = errors.New("content policy rejection")
	ErrProviderFailure  = errors.New("provider failure")
	ErrUnsupportedInput = errors.New("unsupported input")
)
