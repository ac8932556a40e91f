// Package badgerdb implements an on-disk snapshot/store.Store backed by
// github.com/dgraph-io/badger/v2, demonstrating that the store adapter
// contract (spec §4.1) is satisfiable by a real persistent key-value
// store and not just the in-memory fixture. Grounded on
// storage/mkvs/db/api.Config's DB/NoFsync/ReadOnly field set, mapped
// onto badger's own Options.
package badgerdb

import (
	"context"
	"sort"

	badger "github.com/dgraph-io/badger/v2"

	"github.com/oasislabs/tezos-snapshot/go/common/cbor"
	"github.com/oasislabs/tezos-snapshot/go/common/hash"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/store"
)

var (
	nodePrefix    = []byte("n:")
	contextPrefix = []byte("c:")

	_ store.Store = (*Store)(nil)
	_ store.Batch = (*batch)(nil)
)

// Config is the badger-backed store's configuration.
type Config struct {
	// DB is the path to the database directory.
	DB string

	// NoFsync disables fsync on every commit, trading durability for
	// throughput on the import fast path.
	NoFsync bool

	// ReadOnly opens the database read-only, for a store that only
	// ever exports.
	ReadOnly bool
}

// Store is a badger-backed, content-addressed Merkle-tree store.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a badger database at cfg.DB.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.DB)
	opts.SyncWrites = !cfg.NoFsync
	opts.ReadOnly = cfg.ReadOnly
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nodeKey(h hash.Hash) []byte {
	return append(append([]byte{}, nodePrefix...), h[:]...)
}

func contextKey(headerBytes []byte) []byte {
	h := hash.NewFromBytes(headerBytes)
	return append(append([]byte{}, contextPrefix...), h[:]...)
}

// storedNode is the CBOR encoding of a tree node as kept in badger: a
// leaf carries content, an interior node carries its sorted children.
type storedNode struct {
	Leaf     bool              `cbor:"leaf"`
	Content  []byte            `cbor:"content,omitempty"`
	Children []store.ChildHash `cbor:"children,omitempty"`
}

type storedContext struct {
	Tree    hash.Hash          `cbor:"tree"`
	Info    block.CommitInfo   `cbor:"info"`
	Parents []block.CommitHash `cbor:"parents"`
}

func getNode(txn *badger.Txn, h hash.Hash) (*storedNode, bool, error) {
	item, err := txn.Get(nodeKey(h))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var n storedNode
	if err := item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &n)
	}); err != nil {
		return nil, false, err
	}
	return &n, true, nil
}

func dirHash(sortedChildren []store.ChildHash) hash.Hash {
	var buf []byte
	for _, c := range sortedChildren {
		buf = append(buf, []byte(c.Step)...)
		buf = append(buf, 0)
		buf = append(buf, c.Hash[:]...)
	}
	return hash.NewFromBytes(buf)
}

// --- store.Store (read side) ---

// ctxHandle is the store.Context implementation shared by the read and
// write sides.
type ctxHandle struct {
	tree    hash.Hash
	info    block.CommitInfo
	parents []block.CommitHash
}

// GetContext implements store.Store.
func (s *Store) GetContext(_ context.Context, header *block.Header) (store.Context, bool, error) {
	headerBytes, err := header.MarshalBinary()
	if err != nil {
		return nil, false, err
	}

	var rec storedContext
	var found bool
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(contextKey(headerBytes))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &rec)
		})
	})
	if err != nil || !found {
		return nil, false, err
	}
	return &ctxHandle{tree: rec.Tree, info: rec.Info, parents: rec.Parents}, true, nil
}

// ContextTree implements store.Store.
func (s *Store) ContextTree(c store.Context) store.Tree {
	return c.(*ctxHandle).tree
}

// ContextInfo implements store.Store.
func (s *Store) ContextInfo(c store.Context) block.CommitInfo {
	return c.(*ctxHandle).info
}

// ContextParents implements store.Store.
func (s *Store) ContextParents(c store.Context) []block.CommitHash {
	return c.(*ctxHandle).parents
}

// SubTree implements store.Store.
func (s *Store) SubTree(t store.Tree, path []string) (store.Tree, bool, error) {
	cur := t.(hash.Hash)
	var ok bool
	err := s.db.View(func(txn *badger.Txn) error {
		for _, step := range path {
			n, exists, err := getNode(txn, cur)
			if err != nil {
				return err
			}
			if !exists || n.Leaf {
				return nil
			}
			var found bool
			for _, c := range n.Children {
				if c.Step == step {
					cur = c.Hash
					found = true
					break
				}
			}
			if !found {
				return nil
			}
		}
		ok = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return cur, true, nil
}

// TreeList implements store.Store.
func (s *Store) TreeList(t store.Tree) ([]store.Child, error) {
	var out []store.Child
	err := s.db.View(func(txn *badger.Txn) error {
		n, ok, err := getNode(txn, t.(hash.Hash))
		if err != nil {
			return err
		}
		if !ok || n.Leaf {
			return nil
		}
		out = make([]store.Child, 0, len(n.Children))
		for _, c := range n.Children {
			kind := store.Node
			target, ok, err := getNode(txn, c.Hash)
			if err != nil {
				return err
			}
			if ok && target.Leaf {
				kind = store.Contents
			}
			out = append(out, store.Child{Step: c.Step, Kind: kind})
		}
		return nil
	})
	return out, err
}

// TreeHash implements store.Store.
func (s *Store) TreeHash(t store.Tree) (hash.Hash, error) {
	return t.(hash.Hash), nil
}

// TreeContent implements store.Store.
func (s *Store) TreeContent(t store.Tree) ([]byte, bool, error) {
	var content []byte
	var ok bool
	err := s.db.View(func(txn *badger.Txn) error {
		n, exists, err := getNode(txn, t.(hash.Hash))
		if err != nil {
			return err
		}
		if !exists || !n.Leaf {
			return nil
		}
		content = n.Content
		ok = true
		return nil
	})
	return content, ok, err
}

// --- store.Batch (write side, used only during restore) ---

type batch struct {
	txn *badger.Txn
}

// Batch implements store.Store.
func (s *Store) Batch(_ context.Context, fn func(store.Batch) error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		b := &batch{txn: txn}
		return fn(b)
	})
}

// MakeContext implements store.Batch.
func (b *batch) MakeContext() store.Context {
	return &ctxHandle{}
}

// UpdateContext implements store.Batch.
func (b *batch) UpdateContext(c store.Context, t store.Tree) store.Context {
	ch := c.(*ctxHandle)
	ch.tree = t.(hash.Hash)
	return ch
}

// AddString implements store.Batch.
func (b *batch) AddString(data []byte) (store.Tree, error) {
	h := hash.NewFromBytes(data)
	n := storedNode{Leaf: true, Content: data}
	if err := b.txn.Set(nodeKey(h), cbor.Marshal(&n)); err != nil {
		return nil, err
	}
	return h, nil
}

// AddDir implements store.Batch.
func (b *batch) AddDir(children []store.ChildHash) (store.Tree, bool, error) {
	sorted := make([]store.ChildHash, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Step < sorted[j].Step })

	for _, c := range sorted {
		_, ok, err := getNode(b.txn, c.Hash)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
	}

	h := dirHash(sorted)
	n := storedNode{Leaf: false, Children: sorted}
	if err := b.txn.Set(nodeKey(h), cbor.Marshal(&n)); err != nil {
		return nil, false, err
	}
	return h, true, nil
}

// SetContext implements store.Batch.
func (b *batch) SetContext(info block.CommitInfo, parents []block.CommitHash, c store.Context, header *block.Header) (*block.Header, bool, error) {
	ch := c.(*ctxHandle)
	if header.Context != ch.tree {
		return nil, false, nil
	}

	headerBytes, err := header.MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	rec := storedContext{Tree: ch.tree, Info: info, Parents: parents}
	if err := b.txn.Set(contextKey(headerBytes), cbor.Marshal(&rec)); err != nil {
		return nil, false, err
	}
	return header, true, nil
}
