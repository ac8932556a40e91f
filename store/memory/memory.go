// Package memory implements an in-memory snapshot/store.Store, used as
// the reference fixture every round-trip, determinism, dedup, and
// chunking test runs against. Grounded on the shape of
// storage/mkvs/db/api's nopNodeDB/nopBatch/nopSubtree, generalized from
// no-op to actually storing nodes.
package memory

import (
	"context"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/oasislabs/tezos-snapshot/go/common/hash"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/store"
)

var (
	_ store.Store = (*Store)(nil)
	_ store.Batch = (*batch)(nil)
)

type node struct {
	leaf     bool
	content  []byte
	children []store.ChildHash
}

type contextRecord struct {
	tree    hash.Hash
	info    block.CommitInfo
	parents []block.CommitHash
}

// Store is an in-memory, content-addressed Merkle-tree store.
type Store struct {
	mu       sync.Mutex
	nodes    map[hash.Hash]*node
	contexts map[string]*contextRecord
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		nodes:    make(map[hash.Hash]*node),
		contexts: make(map[string]*contextRecord),
	}
}

func headerKey(header *block.Header) (string, error) {
	b, err := header.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// --- Fixture-building helpers (source-side, outside the import batch
// scope): used by tests to populate a store to export from. ---

// PutBlob installs a leaf and returns its content hash.
func (s *Store) PutBlob(content []byte) hash.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := hash.NewFromBytes(content)
	s.nodes[h] = &node{leaf: true, content: append([]byte{}, content...)}
	return h
}

// PutDir installs an interior node from (step, hash) children and
// returns its content hash. Children need not be pre-sorted.
func (s *Store) PutDir(children []store.ChildHash) hash.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]store.ChildHash, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Step < sorted[j].Step })

	h := dirHash(sorted)
	s.nodes[h] = &node{leaf: false, children: sorted}
	return h
}

// PutContext associates a context (tree, info, parents) with header, as
// if a block had just been committed to this store, so that it can
// later be looked up via GetContext and exported.
func (s *Store) PutContext(header *block.Header, tree hash.Hash, info block.CommitInfo, parents []block.CommitHash) error {
	key, err := headerKey(header)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[key] = &contextRecord{tree: tree, info: info, parents: parents}
	return nil
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

// GetContext implements store.Store.
func (s *Store) GetContext(_ context.Context, header *block.Header) (store.Context, bool, error) {
	key, err := headerKey(header)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.contexts[key]
	if !ok {
		return nil, false, nil
	}
	return rec, true, nil
}

// ContextTree implements store.Store.
func (s *Store) ContextTree(c store.Context) store.Tree {
	return c.(*contextRecord).tree
}

// ContextInfo implements store.Store.
func (s *Store) ContextInfo(c store.Context) block.CommitInfo {
	return c.(*contextRecord).info
}

// ContextParents implements store.Store.
func (s *Store) ContextParents(c store.Context) []block.CommitHash {
	return c.(*contextRecord).parents
}

// SubTree implements store.Store.
func (s *Store) SubTree(t store.Tree, path []string) (store.Tree, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := t.(hash.Hash)
	for _, step := range path {
		n, ok := s.nodes[cur]
		if !ok || n.leaf {
			return nil, false, nil
		}
		var found bool
		for _, c := range n.children {
			if c.Step == step {
				cur = c.Hash
				found = true
				break
			}
		}
		if !found {
			return nil, false, nil
		}
	}
	return cur, true, nil
}

// TreeList implements store.Store.
func (s *Store) TreeList(t store.Tree) ([]store.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[t.(hash.Hash)]
	if !ok || n.leaf {
		return nil, nil
	}
	out := make([]store.Child, 0, len(n.children))
	for _, c := range n.children {
		kind := store.Node
		if target, ok := s.nodes[c.Hash]; ok && target.leaf {
			kind = store.Contents
		}
		out = append(out, store.Child{Step: c.Step, Kind: kind})
	}
	return out, nil
}

// TreeHash implements store.Store.
func (s *Store) TreeHash(t store.Tree) (hash.Hash, error) {
	return t.(hash.Hash), nil
}

// TreeContent implements store.Store.
func (s *Store) TreeContent(t store.Tree) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[t.(hash.Hash)]
	if !ok || !n.leaf {
		return nil, false, nil
	}
	return n.content, true, nil
}

// --- store.Batch (write side, used only during restore) ---

type batch struct {
	store *Store
}

// Batch implements store.Store.
func (s *Store) Batch(_ context.Context, fn func(store.Batch) error) error {
	b := &batch{store: s}
	return fn(b)
}

// MakeContext implements store.Batch.
func (b *batch) MakeContext() store.Context {
	return &contextRecord{}
}

// UpdateContext implements store.Batch.
func (b *batch) UpdateContext(c store.Context, t store.Tree) store.Context {
	rec := c.(*contextRecord)
	rec.tree = t.(hash.Hash)
	return rec
}

// AddString implements store.Batch.
func (b *batch) AddString(data []byte) (store.Tree, error) {
	return b.store.PutBlob(data), nil
}

// AddDir implements store.Batch.
func (b *batch) AddDir(children []store.ChildHash) (store.Tree, bool, error) {
	b.store.mu.Lock()
	for _, c := range children {
		if _, ok := b.store.nodes[c.Hash]; !ok {
			b.store.mu.Unlock()
			return nil, false, nil
		}
	}
	b.store.mu.Unlock()

	return b.store.PutDir(children), true, nil
}

// SetContext implements store.Batch.
func (b *batch) SetContext(info block.CommitInfo, parents []block.CommitHash, c store.Context, header *block.Header) (*block.Header, bool, error) {
	rec := c.(*contextRecord)
	if header.Context != rec.tree {
		return nil, false, nil
	}
	if err := b.store.PutContext(header, rec.tree, info, parents); err != nil {
		return nil, false, err
	}
	return header, true, nil
}
