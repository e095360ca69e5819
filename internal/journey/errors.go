package journey

import (
	"errors"
	"fmt"
)

// Error kinds. Every ServiceError wraps exactly one of these.
var (
	ErrValidation     = errors.New("validation_error")
	ErrNotFound       = errors.New("not_found")
	ErrNotYetAllowed  = errors.New("not_yet_allowed")
	ErrNotInitialized = errors.New("system_not_initialized")
	ErrCatalogGap     = errors.New("catalog_gap")
	ErrInternal       = errors.New("internal_error")
)

var (
	errMissingDatabase      = errors.New("database handle is required")
	errConfirmationRequired = errors.New("reset requires explicit confirmation")
	errStarsOutOfRange      = fmt.Errorf("stars must be between %d and %d", MinStars, MaxStars)
	errAlbumNotRateable     = errors.New("cannot rate this album yet")
	errStateAlreadyMoved    = errors.New("global state changed during tick")
)

// ServiceError carries a dotted operation.reason code, an error kind, and the underlying cause.
type ServiceError struct {
	code string
	kind error
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() []error {
	wrapped := []error{e.kind}
	if e.err != nil {
		wrapped = append(wrapped, e.err)
	}
	return wrapped
}

// Code returns the operation.reason identifier.
func (e *ServiceError) Code() string {
	return e.code
}

// Kind returns the error kind sentinel.
func (e *ServiceError) Kind() error {
	return e.kind
}

const (
	opClockNew        = "journey.clock.new"
	opEngineNew       = "journey.engine.new"
	opInitialize      = "journey.initialize"
	opLoadState       = "journey.load_state"
	opTick            = "journey.tick"
	opTogglePause     = "journey.toggle_pause"
	opReset           = "journey.reset"
	opResolveState    = "journey.resolve_state"
	opSubmitRating    = "journey.submit_rating"
	opSkip            = "journey.skip"
	opSaveNote        = "journey.save_listening_note"
	opUserExists      = "journey.user_exists"
	opEnsureUser      = "journey.ensure_user"
	opHistory         = "journey.history"
	opAlbumDetail     = "journey.album_detail"
	opStats           = "journey.stats"
	reasonMissingDB   = "missing_database"
	reasonQueryFailed = "query_failed"
)

func newServiceError(operation, reason string, kind error, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, kind: kind, err: cause}
}

// asServiceError passes ServiceErrors through and classifies everything else as internal.
func asServiceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return newServiceError(operation, reasonQueryFailed, ErrInternal, err)
}

// NewServiceError builds a ServiceError for collaborators that share the journey error kinds.
func NewServiceError(operation, reason string, kind error, cause error) error {
	return newServiceError(operation, reason, kind, cause)
}
