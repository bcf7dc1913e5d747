package backup

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when the addressed backup does not exist.
	ErrNotFound = errors.New("backup not found")
	// ErrInvalidArgument is returned for malformed labels, timestamps or counts.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreUnavailable wraps object-store failures other than NotFound.
	ErrStoreUnavailable = errors.New("object store unavailable")
)

// Reasons reported alongside errors.
const (
	ReasonNotFound            = "not_found"
	ReasonInvalidArgument     = "invalid_argument"
	ReasonStoreUnavailable    = "store_unavailable"
	ReasonPartialPruneFailure = "partial_prune_failure"
	ReasonInternal            = "internal"
)

// PruneError reports backups a prune could not remove.
// Removals that succeeded before or after a failure stay removed.
type PruneError struct {
	Label  string
	Failed []string
	Err    error
}

func (e *PruneError) Error() string {
	return fmt.Sprintf("prune %s: failed to remove %d backup(s) [%s]: %v",
		e.Label, len(e.Failed), strings.Join(e.Failed, ", "), e.Err)
}

func (e *PruneError) Unwrap() error {
	return e.Err
}

// ReasonFor maps an error to its reason code.
func ReasonFor(err error) string {
	var pruneErr *PruneError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pruneErr):
		return ReasonPartialPruneFailure
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrInvalidArgument):
		return ReasonInvalidArgument
	case errors.Is(err, ErrStoreUnavailable):
		return ReasonStoreUnavailable
	default:
		return ReasonInternal
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
