package services

import "errors"

var (
	// ErrUserNotFound means the profile needed to seed a context does not
	// exist. There is no fallback for this one.
	ErrUserNotFound = errors.New("user not found")

	// ErrUpdateConflict is returned after the bounded CAS retry budget is
	// exhausted on a contended daily context row.
	ErrUpdateConflict = errors.New("concurrent context update conflict")

	// ErrContextNotFound signals a cache miss on a context row. Callers of
	// the facade never see it; it routes to seeding or regeneration.
	ErrContextNotFound = errors.New("context not found")

	// ErrRecordNotFound means an activity record id was not present in the
	// activity store.
	ErrRecordNotFound = errors.New("activity record not found")
)
