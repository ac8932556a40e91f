// Package errs implements the snapshot engine's error taxonomy (spec
// §7), built on the module-coded error convention of common/errors (the
// same pattern as runtime/host/protocol.ErrNotReady and
// storage/mkvs/db/api.ErrNodeNotFound).
package errs

import (
	"fmt"

	"github.com/oasislabs/tezos-snapshot/go/common/errors"
)

// ModuleName is the error module name for the snapshot engine.
const ModuleName = "snapshot"

var (
	// ErrInconsistentSnapshotFile indicates a short read, bad tag, or
	// malformed frame.
	ErrInconsistentSnapshotFile = errors.New(ModuleName, 1, "snapshot: inconsistent snapshot file")

	// ErrInconsistentSnapshotData indicates well-formed bytes that are
	// semantically wrong: a command appeared out of the expected state,
	// or set_context returned absent.
	ErrInconsistentSnapshotData = errors.New(ModuleName, 2, "snapshot: inconsistent snapshot data")

	// ErrMissingSnapshotData indicates EOF before End while the importer
	// was still expecting commands.
	ErrMissingSnapshotData = errors.New(ModuleName, 3, "snapshot: missing snapshot data")

	// ErrRestoreContextFailure indicates add_dir returned absent: a Node
	// command referenced a hash not yet installed in the batch.
	ErrRestoreContextFailure = errors.New(ModuleName, 4, "snapshot: restore context failure")

	// errContextNotFoundBase, errInvalidVersionBase, errSystemWriteBase,
	// errSystemReadBase, errBadHashBase are registered once and wrapped
	// with their dynamic detail via fmt.Errorf-style helpers below, since
	// their messages carry per-call data (a header, a version string, an
	// OS error).
	errContextNotFoundBase = errors.New(ModuleName, 5, "snapshot: context not found")
	errInvalidVersionBase  = errors.New(ModuleName, 6, "snapshot: invalid snapshot version")
	errSystemWriteBase     = errors.New(ModuleName, 7, "snapshot: system write error")
	errSystemReadBase      = errors.New(ModuleName, 8, "snapshot: system read error")
	errBadHashBase         = errors.New(ModuleName, 9, "snapshot: bad hash")
)

// detailedError pairs a registered sentinel (for Code/FromCode
// round-tripping) with a dynamic, human-readable detail message.
type detailedError struct {
	sentinel error
	detail   string
}

func (e *detailedError) Error() string { return e.detail }
func (e *detailedError) Unwrap() error { return e.sentinel }

// ContextNotFound reports that the exporter could not find the context
// attached to headerBytes.
func ContextNotFound(headerBytes []byte) error {
	return &detailedError{
		sentinel: errContextNotFoundBase,
		detail:   fmt.Sprintf("snapshot: context not found for header %x", headerBytes),
	}
}

// InvalidSnapshotVersion reports a metadata version mismatch.
func InvalidSnapshotVersion(got, expected string) error {
	return &detailedError{
		sentinel: errInvalidVersionBase,
		detail:   fmt.Sprintf("snapshot: invalid snapshot version (got: %q expected: %q)", got, expected),
	}
}

// SystemWriteError wraps an OS error encountered while writing.
func SystemWriteError(cause error) error {
	return &detailedError{
		sentinel: errSystemWriteBase,
		detail:   fmt.Sprintf("snapshot: system write error: %s", cause),
	}
}

// SystemReadError wraps an OS error encountered while reading.
func SystemReadError(cause error) error {
	return &detailedError{
		sentinel: errSystemReadBase,
		detail:   fmt.Sprintf("snapshot: system read error: %s", cause),
	}
}

// BadHash reports a hash verification mismatch (reserved for
// adapter-layer verification, spec §7).
func BadHash(kind string, got, expected fmt.Stringer) error {
	return &detailedError{
		sentinel: errBadHashBase,
		detail:   fmt.Sprintf("snapshot: bad hash (%s): got %s expected %s", kind, got, expected),
	}
}
