package content

import "errors"

// Standard content store errors. Protocol handlers map these to
// protocol-specific status codes (e.g. NFS3ErrNoEnt for ErrContentNotFound).
var (
	ErrContentNotFound         = errors.New("content not found")
	ErrContentExists           = errors.New("content already exists")
	ErrInvalidOffset           = errors.New("invalid offset")
	ErrInvalidSize             = errors.New("invalid size")
	ErrStorageFull             = errors.New("storage full")
	ErrQuotaExceeded           = errors.New("quota exceeded")
	ErrIntegrityCheckFailed    = errors.New("integrity check failed")
	ErrReadOnly                = errors.New("content store is read-only")
	ErrNotSupported            = errors.New("operation not supported")
	ErrConcurrentModification  = errors.New("concurrent modification detected")
	ErrInvalidContentID        = errors.New("invalid content ID")
	ErrTooLarge                = errors.New("content too large")
	ErrUnavailable             = errors.New("storage unavailable")
)
