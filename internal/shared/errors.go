package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidInput indicates the request was well-formed but semantically wrong.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden indicates the actor is authenticated but not permitted.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserLocked indicates a disabled account attempted to authenticate.
	ErrUserLocked = errors.New("user account is locked")
	// ErrStoreUnavailable indicates the backing cache or database is unreachable.
	ErrStoreUnavailable = errors.New("store unavailable")
)
