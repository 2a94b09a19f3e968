package stm

import (
	"fmt"

	"github.com/pingcap/errors"
)

var (
	// ErrConflict is returned by Attempt.Commit when a key in the read set changed since it was read. The driver
	// handles it by retrying, callers of RetryTransaction never see it.
	ErrConflict = errors.New("stm: commit conflict")
	// ErrRetryStopped is returned when a custom backoff policy gives up retrying.
	ErrRetryStopped = errors.New("stm: backoff policy stopped retrying")
)

// ErrNotFound is what transaction bodies return when a key they require has never been written.
type ErrNotFound struct {
	Key []byte
}

func NewErrNotFound(key []byte) *ErrNotFound {
	return &ErrNotFound{Key: key}
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("key=%s does not exist", e.Key)
}

// IsConflict reports whether err is (or wraps) ErrConflict.
func IsConflict(err error) bool {
	return errors.Cause(err) == ErrConflict
}

// IsNotFound reports whether err is (or wraps) an *ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*ErrNotFound)
	return ok
}
