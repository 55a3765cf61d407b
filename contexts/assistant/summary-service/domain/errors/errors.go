package errors

import "errors"

var (
	ErrInvalidInput          = errors.New("summary input is invalid")
	ErrSummarizerUnavailable = errors.New("summarizer is not configured")
	ErrSummarizerFailed      = errors.New("summarizer request failed")
)
