package domain

import "errors"

var (
	ErrEmptyInput          = errors.New("provide a Bandcamp username or fan page URL")
	ErrInvalidInput        = errors.New("malformed input: expected a Bandcamp username or fan page URL")
	ErrSubjectNotFound     = errors.New("subject not found")
	ErrUpstreamUnavailable = errors.New("upstream temporarily unavailable")
	ErrMissingScore        = errors.New("total_score missing")
)
