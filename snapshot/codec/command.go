package codec

import (
	"encoding/binary"

	"github.com/oasislabs/tezos-snapshot/go/common/hash"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/errs"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/store"
)

// Tag is the single-byte Command discriminant (spec §4.2).
type Tag byte

const (
	// TagRoot marks a Root command.
	TagRoot Tag = 'r'
	// TagNode marks a Node command.
	TagNode Tag = 'd'
	// TagBlob marks a Blob command.
	TagBlob Tag = 'b'
	// TagProot marks a Proot command.
	TagProot Tag = 'p'
	// TagLoot marks a Loot command.
	TagLoot Tag = 'l'
	// TagEnd marks an End command.
	TagEnd Tag = 'e'
)

// Command is the tagged-union payload of one frame.
type Command struct {
	Tag   Tag
	Root  *RootCommand
	Node  *NodeCommand
	Blob  *BlobCommand
	Proot *ProotCommand
	Loot  *LootCommand
}

// RootCommand carries the context root, its commit metadata, and the
// caboose block data.
type RootCommand struct {
	Header  block.Header
	Info    block.CommitInfo
	Parents []block.CommitHash
	Data    block.Data
}

// NodeCommand carries one interior tree's (step, hash) children, sorted
// ascending by step in the stream representation.
type NodeCommand struct {
	Children []store.ChildHash
}

// BlobCommand carries one leaf's content.
type BlobCommand struct {
	Content []byte
}

// ProotCommand carries one pruned predecessor block.
type ProotCommand struct {
	Pruned block.PrunedBlock
}

// LootCommand carries one protocol activation blob.
type LootCommand struct {
	Data block.ProtocolData
}

// --- length-prefixed primitives shared by the payload encoders ---
//
// These use a uint32 big-endian length prefix: spec §4.2 leaves the exact
// width of inner string/list length prefixes to "the framework in use by
// the adapter" provided it is distinct from the engine-defined outer
// u64_be frame length (spec §9, "framing vs combinator library"). uint32
// is ample for any single string, blob, or child list this engine emits.

func putBytes(buf []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, b...)
	return buf
}

func takeBytes(payload []byte, pos int) ([]byte, int, error) {
	if pos+4 > len(payload) {
		return nil, 0, errs.ErrInconsistentSnapshotFile
	}
	n := int(binary.BigEndian.Uint32(payload[pos : pos+4]))
	pos += 4
	if n < 0 || pos+n > len(payload) {
		return nil, 0, errs.ErrInconsistentSnapshotFile
	}
	return payload[pos : pos+n], pos + n, nil
}

func putString(buf []byte, s string) []byte {
	return putBytes(buf, []byte(s))
}

func takeString(payload []byte, pos int) (string, int, error) {
	b, next, err := takeBytes(payload, pos)
	if err != nil {
		return "", 0, err
	}
	return string(b), next, nil
}

func putUint32(buf []byte, n uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return append(buf, b[:]...)
}

func takeUint32(payload []byte, pos int) (uint32, int, error) {
	if pos+4 > len(payload) {
		return 0, 0, errs.ErrInconsistentSnapshotFile
	}
	return binary.BigEndian.Uint32(payload[pos : pos+4]), pos + 4, nil
}

// --- Command encoding ---

func encodeRoot(cmd *RootCommand) ([]byte, error) {
	headerBytes, err := cmd.Header.MarshalBinary()
	if err != nil {
		return nil, err
	}
	infoBytes, err := cmd.Info.MarshalBinary()
	if err != nil {
		return nil, err
	}
	dataBytes, err := cmd.Data.MarshalBinary()
	if err != nil {
		return nil, err
	}

	buf := []byte{byte(TagRoot)}
	buf = putBytes(buf, headerBytes)
	buf = putBytes(buf, infoBytes)
	buf = putUint32(buf, uint32(len(cmd.Parents)))
	for _, p := range cmd.Parents {
		buf = append(buf, p[:]...)
	}
	buf = putBytes(buf, dataBytes)
	return buf, nil
}

func decodeRoot(payload []byte, pos int) (*RootCommand, error) {
	headerBytes, pos, err := takeBytes(payload, pos)
	if err != nil {
		return nil, err
	}
	var header block.Header
	if err := header.UnmarshalBinary(headerBytes); err != nil {
		return nil, errs.ErrInconsistentSnapshotFile
	}

	infoBytes, pos, err := takeBytes(payload, pos)
	if err != nil {
		return nil, err
	}
	var info block.CommitInfo
	if err := info.UnmarshalBinary(infoBytes); err != nil {
		return nil, errs.ErrInconsistentSnapshotFile
	}

	count, pos, err := takeUint32(payload, pos)
	if err != nil {
		return nil, err
	}
	parents := make([]block.CommitHash, 0, count)
	for i := uint32(0); i < count; i++ {
		if pos+hash.Size > len(payload) {
			return nil, errs.ErrInconsistentSnapshotFile
		}
		var h hash.Hash
		copy(h[:], payload[pos:pos+hash.Size])
		pos += hash.Size
		parents = append(parents, h)
	}

	dataBytes, pos, err := takeBytes(payload, pos)
	if err != nil {
		return nil, err
	}
	var data block.Data
	if err := data.UnmarshalBinary(dataBytes); err != nil {
		return nil, errs.ErrInconsistentSnapshotFile
	}
	if pos != len(payload) {
		return nil, errs.ErrInconsistentSnapshotFile
	}

	return &RootCommand{Header: header, Info: info, Parents: parents, Data: data}, nil
}

func encodeNode(cmd *NodeCommand) []byte {
	buf := []byte{byte(TagNode)}
	buf = putUint32(buf, uint32(len(cmd.Children)))
	for _, c := range cmd.Children {
		buf = putString(buf, c.Step)
		buf = append(buf, c.Hash[:]...)
	}
	return buf
}

func decodeNode(payload []byte, pos int) (*NodeCommand, error) {
	count, pos, err := takeUint32(payload, pos)
	if err != nil {
		return nil, err
	}
	children := make([]store.ChildHash, 0, count)
	for i := uint32(0); i < count; i++ {
		var step string
		step, pos, err = takeString(payload, pos)
		if err != nil {
			return nil, err
		}
		if pos+hash.Size > len(payload) {
			return nil, errs.ErrInconsistentSnapshotFile
		}
		var h hash.Hash
		copy(h[:], payload[pos:pos+hash.Size])
		pos += hash.Size
		children = append(children, store.ChildHash{Step: step, Hash: h})
	}
	if pos != len(payload) {
		return nil, errs.ErrInconsistentSnapshotFile
	}
	return &NodeCommand{Children: children}, nil
}

func encodeBlob(cmd *BlobCommand) []byte {
	buf := []byte{byte(TagBlob)}
	return putBytes(buf, cmd.Content)
}

func decodeBlob(payload []byte, pos int) (*BlobCommand, error) {
	content, pos, err := takeBytes(payload, pos)
	if err != nil {
		return nil, err
	}
	if pos != len(payload) {
		return nil, errs.ErrInconsistentSnapshotFile
	}
	return &BlobCommand{Content: append([]byte{}, content...)}, nil
}

func encodeProot(cmd *ProotCommand) ([]byte, error) {
	prunedBytes, err := cmd.Pruned.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := []byte{byte(TagProot)}
	buf = putBytes(buf, prunedBytes)
	return buf, nil
}

func decodeProot(payload []byte, pos int) (*ProotCommand, error) {
	prunedBytes, pos, err := takeBytes(payload, pos)
	if err != nil {
		return nil, err
	}
	var pruned block.PrunedBlock
	if err := pruned.UnmarshalBinary(prunedBytes); err != nil {
		return nil, errs.ErrInconsistentSnapshotFile
	}
	if pos != len(payload) {
		return nil, errs.ErrInconsistentSnapshotFile
	}
	return &ProotCommand{Pruned: pruned}, nil
}

func encodeLoot(cmd *LootCommand) ([]byte, error) {
	dataBytes, err := cmd.Data.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := []byte{byte(TagLoot)}
	buf = putBytes(buf, dataBytes)
	return buf, nil
}

func decodeLoot(payload []byte, pos int) (*LootCommand, error) {
	dataBytes, pos, err := takeBytes(payload, pos)
	if err != nil {
		return nil, err
	}
	var pd block.ProtocolData
	if err := pd.UnmarshalBinary(dataBytes); err != nil {
		return nil, errs.ErrInconsistentSnapshotFile
	}
	if pos != len(payload) {
		return nil, errs.ErrInconsistentSnapshotFile
	}
	return &LootCommand{Data: pd}, nil
}

func encodeEnd() []byte {
	return []byte{byte(TagEnd)}
}

// DecodeCommand decodes a frame payload into a Command. Unknown tags are
// fatal per spec §4.2.
func DecodeCommand(payload []byte) (*Command, error) {
	if len(payload) < 1 {
		return nil, errs.ErrInconsistentSnapshotFile
	}
	tag := Tag(payload[0])
	switch tag {
	case TagRoot:
		root, err := decodeRoot(payload, 1)
		if err != nil {
			return nil, err
		}
		return &Command{Tag: tag, Root: root}, nil
	case TagNode:
		node, err := decodeNode(payload, 1)
		if err != nil {
			return nil, err
		}
		return &Command{Tag: tag, Node: node}, nil
	case TagBlob:
		blob, err := decodeBlob(payload, 1)
		if err != nil {
			return nil, err
		}
		return &Command{Tag: tag, Blob: blob}, nil
	case TagProot:
		proot, err := decodeProot(payload, 1)
		if err != nil {
			return nil, err
		}
		return &Command{Tag: tag, Proot: proot}, nil
	case TagLoot:
		loot, err := decodeLoot(payload, 1)
		if err != nil {
			return nil, err
		}
		return &Command{Tag: tag, Loot: loot}, nil
	case TagEnd:
		if len(payload) != 1 {
			return nil, errs.ErrInconsistentSnapshotFile
		}
		return &Command{Tag: tag}, nil
	default:
		return nil, errs.ErrInconsistentSnapshotFile
	}
}
