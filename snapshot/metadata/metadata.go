// Package metadata implements the snapshot metadata frame: the version
// string and history mode that open every stream, validated before
// either side touches payload (spec §2, §4.4 step 1). Grounded on
// common/entity.Entity's validate-then-load shape.
package metadata

import (
	"github.com/oasislabs/tezos-snapshot/go/common/cbor"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/codec"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/errs"
)

// CurrentVersion is the snapshot format version literal this engine
// produces and requires on import.
const CurrentVersion = "tezos-snapshot-1.0.0"

// Metadata is the snapshot's identifying header: format version and
// history mode.
type Metadata struct {
	Version string          `cbor:"version"`
	Mode    block.HistoryMode `cbor:"mode"`
}

// Write serializes and emits the metadata frame. It is always the first
// frame of a snapshot stream.
func Write(w *codec.Writer, mode block.HistoryMode) error {
	m := Metadata{Version: CurrentVersion, Mode: mode}
	return w.WriteFrame(cbor.Marshal(&m))
}

// Read consumes and validates the metadata frame, rejecting with
// Invalid_snapshot_version if the version literal doesn't match
// CurrentVersion.
func Read(r *codec.Reader) (*Metadata, error) {
	payload, err := r.ReadFrame()
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := cbor.Unmarshal(payload, &m); err != nil {
		return nil, errs.ErrInconsistentSnapshotFile
	}
	if m.Version != CurrentVersion {
		return nil, errs.InvalidSnapshotVersion(m.Version, CurrentVersion)
	}
	return &m, nil
}
