// Package store defines the abstract Merkle-tree context store contract
// (spec §4.1) that the exporter and importer are generic over. It
// generalizes storage/mkvs/db/api's NodeDB / Batch / Subtree split: the
// read-side lives on Store, the write-side (used only during restore)
// lives on the Batch returned from Store.Batch.
package store

import (
	"context"

	"github.com/oasislabs/tezos-snapshot/go/common/hash"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
)

// ChildKind distinguishes a leaf child (Contents) from an interior child
// (Node) in a tree listing, mirroring the adapter's kind-tagged
// tree_list output.
type ChildKind uint8

const (
	// Contents marks a child as a leaf (blob).
	Contents ChildKind = iota
	// Node marks a child as an interior subtree.
	Node
)

// Child is one (step, kind) entry as returned by Store.TreeList. Order is
// unspecified by the adapter; the exporter is responsible for sorting.
type Child struct {
	Step string
	Kind ChildKind
}

// Tree is an opaque handle to a Merkle tree node (interior or leaf). The
// engine never inspects it beyond passing it back to the adapter that
// produced it.
type Tree interface{}

// Context is a (tree, commit-info, parents) triple attached to a block
// header.
type Context interface{}

// Store is the read-side of the store adapter contract (spec §4.1).
type Store interface {
	// GetContext fetches the context attached to a block header, or
	// (nil, false) if absent.
	GetContext(ctx context.Context, header *block.Header) (Context, bool, error)

	// ContextTree returns the root tree of a context.
	ContextTree(c Context) Tree

	// ContextInfo returns the commit info of a context.
	ContextInfo(c Context) block.CommitInfo

	// ContextParents returns the parent commit hashes of a context.
	ContextParents(c Context) []block.CommitHash

	// SubTree resolves a child tree by path (one or more steps), or
	// (nil, false) if it does not exist.
	SubTree(t Tree, path []string) (Tree, bool, error)

	// TreeList lists the direct children of an interior tree. Order is
	// unspecified.
	TreeList(t Tree) ([]Child, error)

	// TreeHash returns the content hash of a tree.
	TreeHash(t Tree) (hash.Hash, error)

	// TreeContent returns the leaf payload of a tree, or (nil, false) if
	// t is interior.
	TreeContent(t Tree) ([]byte, bool, error)

	// Batch acquires a scoped write batch for index. The batch's
	// resources are guaranteed released when fn returns, regardless of
	// how it returns (success, error, or panic during unwind via the
	// caller's own recover), mirroring the NodeDB.NewBatch /
	// Batch.Commit scoping contract.
	Batch(ctx context.Context, fn func(Batch) error) error
}

// Batch is the write-side of the store adapter contract, used only
// during restore (spec §4.4).
type Batch interface {
	// MakeContext builds a fresh, empty context to be populated via
	// UpdateContext as tree commands are replayed.
	MakeContext() Context

	// UpdateContext replaces a context's root tree.
	UpdateContext(c Context, t Tree) Context

	// AddString installs a leaf and returns its tree handle.
	AddString(data []byte) (Tree, error)

	// AddDir installs an interior node from child (step, hash) pairs. It
	// returns (nil, false) if any hash is not yet known to the batch —
	// this is fatal structural corruption at the call site (spec §4.4).
	AddDir(children []ChildHash) (Tree, bool, error)

	// SetContext commits a context and links it to a block header. It
	// returns (nil, false) on mismatch (spec §4.4's Inconsistent_snapshot_data
	// case).
	SetContext(info block.CommitInfo, parents []block.CommitHash, c Context, header *block.Header) (*block.Header, bool, error)
}

// ChildHash is one (step, hash) pair as recorded in a Node command.
type ChildHash struct {
	Step string
	Hash hash.Hash
}
