package domain

import "errors"

// Sentinel errors forming the taxonomy of spec.md §7: kinds, not concrete
// types, so callers compare with errors.Is and adapters/stores can wrap them
// with context via fmt.Errorf("...: %w", ...).
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrStorage       = errors.New("storage error")
	ErrCooldown      = errors.New("credential in cooldown")
	ErrRateLimited   = errors.New("rate limited")
)
