package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrRunInProgress is returned when a check is requested while
	// another check holds the single run slot.
	ErrRunInProgress = errors.New("check run already in progress")

	// ErrAuthentication covers rejected credentials on both the API
	// and browser login paths.
	ErrAuthentication = errors.New("authentication failed")

	// ErrBlocked marks an explicit denial by the remote service. A
	// blocked API login must not be retried through the browser path.
	ErrBlocked = errors.New("blocked by remote service")

	// ErrTransientNetwork covers timeouts and connection failures that
	// a later run may not see again.
	ErrTransientNetwork = errors.New("transient network failure")

	// ErrScrapeFormat means the roster page no longer matches the
	// structure this system knows how to read.
	ErrScrapeFormat = errors.New("unrecognized roster format")

	// ErrPersistence wraps storage failures during a check batch.
	ErrPersistence = errors.New("persistence failure")
)
