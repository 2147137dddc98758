package service

import "errors"

var (
	// ErrOwnerAccessRevoked means the owner's delegated grant is gone or was rejected.
	ErrOwnerAccessRevoked = errors.New("owner access revoked")
	// ErrContentUnavailable means the remote object no longer exists or is not readable.
	ErrContentUnavailable = errors.New("content unavailable")
	// ErrProviderUnavailable covers transient storage-provider failures.
	ErrProviderUnavailable = errors.New("storage provider unavailable")
	// ErrRegistryUnavailable means the link registry or credential vault could not be reached.
	ErrRegistryUnavailable = errors.New("registry unavailable")
	// ErrForbidden is returned when a caller acts on a record it does not own.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput flags malformed management requests.
	ErrInvalidInput = errors.New("invalid input")
)
