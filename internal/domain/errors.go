package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicate            = errors.New("duplicate")
	ErrInvalidInput         = errors.New("invalid input")
	ErrMissingField         = errors.New("missing required field")
	ErrParse                = errors.New("parse error")
	ErrSourceInactive       = errors.New("source is inactive")
	ErrSourceBusy           = errors.New("source is being polled")
	ErrModelUnavailable     = errors.New("model unavailable")
	ErrStorageNotConfigured = errors.New("model storage is not configured")
)
