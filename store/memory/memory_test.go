package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/store"
)

func TestPutBlobDeduplicatesByContent(t *testing.T) {
	s := New()
	h1 := s.PutBlob([]byte("same"))
	h2 := s.PutBlob([]byte("same"))
	require.Equal(t, h1, h2)
}

func TestPutDirOrderInsensitive(t *testing.T) {
	s := New()
	a := s.PutBlob([]byte("a"))
	b := s.PutBlob([]byte("b"))

	h1 := s.PutDir([]store.ChildHash{{Step: "a", Hash: a}, {Step: "b", Hash: b}})
	h2 := s.PutDir([]store.ChildHash{{Step: "b", Hash: b}, {Step: "a", Hash: a}})
	require.Equal(t, h1, h2, "dir hash must be canonicalized regardless of insertion order")
}

func TestSubTreeAndTreeList(t *testing.T) {
	s := New()
	a := s.PutBlob([]byte("a"))
	b := s.PutBlob([]byte("b"))
	dir := s.PutDir([]store.ChildHash{{Step: "a", Hash: a}, {Step: "b", Hash: b}})

	children, err := s.TreeList(dir)
	require.NoError(t, err)
	require.Len(t, children, 2)

	sub, ok, err := s.SubTree(dir, []string{"a"})
	require.NoError(t, err)
	require.True(t, ok)
	content, ok, err := s.TreeContent(sub)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("a"), content)

	_, ok, err = s.SubTree(dir, []string{"missing"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetContextRoundTrip(t *testing.T) {
	s := New()
	tree := s.PutBlob([]byte("root content"))
	header := &block.Header{Level: 1, Context: tree}
	info := block.CommitInfo{Author: "baker", Message: "genesis", Date: 100}

	require.NoError(t, s.PutContext(header, tree, info, nil))

	c, ok, err := s.GetContext(context.Background(), header)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tree, s.ContextTree(c))
	require.Equal(t, info, s.ContextInfo(c))
}

func TestBatchAddDirFailsOnUnknownChild(t *testing.T) {
	s := New()
	elsewhere := New() // a hash minted in a different store is unknown here

	err := s.Batch(context.Background(), func(b store.Batch) error {
		_, ok, err := b.AddDir([]store.ChildHash{{Step: "x", Hash: elsewhere.PutBlob([]byte("other"))}})
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestBatchSetContextMismatchFails(t *testing.T) {
	s := New()
	err := s.Batch(context.Background(), func(b store.Batch) error {
		ctxt := b.MakeContext()
		tree, err := b.AddString([]byte("blob"))
		require.NoError(t, err)
		ctxt = b.UpdateContext(ctxt, tree)

		header := &block.Header{Level: 1} // Context left zero, won't match tree
		_, ok, err := b.SetContext(block.CommitInfo{}, nil, ctxt, header)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}
