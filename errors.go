package ydoc

import (
	"github.com/pkg/errors"
)

// Sentinel error kinds per spec §7. Callers should compare with
// errors.Is; BrokenInvariant is additionally wrapped with a stack trace
// via github.com/pkg/errors since, by definition, it indicates a bug in
// the engine rather than a caller mistake worth retrying.
var (
	// ErrBrokenInvariant signals a StructStore contiguity violation, a
	// split past an item's bounds, a missing content-ref, or any other
	// condition the engine itself should never produce. Fatal to the
	// transaction that triggered it.
	ErrBrokenInvariant = errors.New("ydoc: broken invariant")

	// ErrLengthExceeded is returned when a sequence insert/delete reaches
	// past container.Length. The transaction may continue if the caller
	// recovers from it before close.
	ErrLengthExceeded = errors.New("ydoc: length exceeded")

	// ErrUnexpectedContent is returned synchronously from an insert call
	// when a value's runtime type is none of the accepted content
	// variants (spec §4.2's Insert-generics).
	ErrUnexpectedContent = errors.New("ydoc: unexpected content type")

	// ErrTypeMismatch is returned from Document.Get when name already
	// names a root container of an incompatible concrete variant.
	ErrTypeMismatch = errors.New("ydoc: type mismatch")
)

// brokenInvariant wraps ErrBrokenInvariant with a stack trace and a
// human-readable reason.
func brokenInvariant(reason string) error {
	return errors.Wrap(ErrBrokenInvariant, reason)
}
