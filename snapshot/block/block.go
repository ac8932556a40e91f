// Package block defines the chain-metadata types carried by the snapshot
// stream: block headers, pruned blocks, block data, protocol data, commit
// info and the history-mode enum. These are the adapter-supplied,
// self-delimiting binary types referenced by spec §4.1; this repository's
// default encoding for them is CBOR (see common/cbor), the same wire
// format the teacher uses for its own chain-metadata types
// (roothash/api.PrunedBlock, DiscrepancyDetectedEvent).
package block

import (
	"fmt"

	"github.com/oasislabs/tezos-snapshot/go/common/cbor"
	"github.com/oasislabs/tezos-snapshot/go/common/hash"
)

// HistoryMode is the pruning policy recorded in a snapshot. It is opaque
// to the engine: carried through unchanged, never interpreted.
type HistoryMode uint8

const (
	// Full retains full block metadata for the entire retained window.
	Full HistoryMode = iota
	// Rolling retains only a bounded recent window of blocks.
	Rolling
	// Archive retains everything, never pruning.
	Archive
)

// String returns the human-readable name of the history mode.
func (m HistoryMode) String() string {
	switch m {
	case Full:
		return "full"
	case Rolling:
		return "rolling"
	case Archive:
		return "archive"
	default:
		return fmt.Sprintf("[unknown history mode %d]", uint8(m))
	}
}

// CommitHash identifies a persisted commit.
type CommitHash = hash.Hash

// Header is a block header: opaque, length-known, and convertible to and
// from bytes. Its BlockHash is derived from its canonical encoding and is
// used for predecessor linkage throughout the history phase.
type Header struct {
	Level          uint64    `cbor:"level"`
	Predecessor    hash.Hash `cbor:"predecessor"`
	Timestamp      int64     `cbor:"timestamp"`
	ValidationPass uint8     `cbor:"validation_pass"`
	OperationsHash hash.Hash `cbor:"operations_hash"`
	Context        hash.Hash `cbor:"context"`
	Fitness        [][]byte  `cbor:"fitness"`
	ProtocolData   []byte    `cbor:"protocol_data"`
}

// MarshalBinary encodes the header into its canonical byte representation.
func (h *Header) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(h), nil
}

// UnmarshalBinary decodes a header from its canonical byte representation.
func (h *Header) UnmarshalBinary(data []byte) error {
	return cbor.Unmarshal(data, h)
}

// BlockHash derives the header's block hash from its canonical encoding.
func (h *Header) BlockHash() hash.Hash {
	return hash.NewFromBytes(cbor.Marshal(h))
}

// CommitInfo is the commit metadata (author, message, timestamp)
// associated with a context root.
type CommitInfo struct {
	Author  string `cbor:"author"`
	Message string `cbor:"message"`
	Date    int64  `cbor:"date"`
}

// MarshalBinary encodes the commit info.
func (c *CommitInfo) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(c), nil
}

// UnmarshalBinary decodes the commit info.
func (c *CommitInfo) UnmarshalBinary(data []byte) error {
	return cbor.Unmarshal(data, c)
}

// PrunedBlock is a block header plus its auxiliary proof data, with the
// operations contents discarded. Grounded on roothash/api.PrunedBlock.
type PrunedBlock struct {
	Header Header `cbor:"header"`
	Proof  []byte `cbor:"proof"`
}

// MarshalBinary encodes the pruned block.
func (p *PrunedBlock) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(p), nil
}

// UnmarshalBinary decodes the pruned block.
func (p *PrunedBlock) UnmarshalBinary(data []byte) error {
	return cbor.Unmarshal(data, p)
}

// BlockHash returns the hash of the pruned block's header.
func (p *PrunedBlock) BlockHash() hash.Hash {
	return p.Header.BlockHash()
}

// Data is the "caboose" block's header plus its operations payload.
type Data struct {
	Header     Header `cbor:"header"`
	Operations []byte `cbor:"operations"`
}

// MarshalBinary encodes the block data.
func (d *Data) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(d), nil
}

// UnmarshalBinary decodes the block data.
func (d *Data) UnmarshalBinary(data []byte) error {
	return cbor.Unmarshal(data, d)
}

// ProtocolData is a self-contained binary blob describing a protocol
// activation event.
type ProtocolData []byte

// MarshalBinary encodes the protocol data (identity: it's already bytes).
func (p ProtocolData) MarshalBinary() ([]byte, error) {
	return append([]byte{}, p...), nil
}

// UnmarshalBinary decodes the protocol data.
func (p *ProtocolData) UnmarshalBinary(data []byte) error {
	*p = append(ProtocolData{}, data...)
	return nil
}
