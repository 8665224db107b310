package internal

import (
	"github.com/juju/errors"
)

const (
	// ErrBackendUnavailable marks a storage backend that could not be
	// reached or refused the operation (store offline, not signed in,
	// disk I/O failure). Fetch treats it the same as an absent backup.
	ErrBackendUnavailable = errors.ConstError("backend unavailable")

	// ErrStreamFault marks a failure on the daemon push stream. The
	// transport reconnects; the workflow only logs it.
	ErrStreamFault = errors.ConstError("stream fault")
)

// unavailable wraps err so that errors.Is(err, ErrBackendUnavailable)
// holds while keeping the original cause in the message.
func unavailable(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.WithType(errors.Annotatef(err, format, args...), ErrBackendUnavailable)
}
