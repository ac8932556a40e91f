package badgerdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oasislabs/tezos-snapshot/go/common/hash"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/store"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "badger")
	s, err := Open(Config{DB: dir, NoFsync: true})
	require.NoError(t, err)
	return s, dir
}

func TestBatchBuildsTreeAndContext(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()
	ctx := context.Background()

	var treeHash hash.Hash
	var header *block.Header

	err := s.Batch(ctx, func(b store.Batch) error {
		c := b.MakeContext()

		blob, err := b.AddString([]byte("hello"))
		require.NoError(t, err)
		c = b.UpdateContext(c, blob)

		dir, ok, err := b.AddDir([]store.ChildHash{{Step: "greeting", Hash: blob.(hash.Hash)}})
		require.NoError(t, err)
		require.True(t, ok)
		c = b.UpdateContext(c, dir)
		treeHash = dir.(hash.Hash)

		header = &block.Header{Level: 7, Context: treeHash}
		committed, ok, err := b.SetContext(block.CommitInfo{Author: "baker"}, nil, c, header)
		require.NoError(t, err)
		require.True(t, ok)
		header = committed
		return nil
	})
	require.NoError(t, err)

	c, ok, err := s.GetContext(ctx, header)
	require.NoError(t, err)
	require.True(t, ok)

	tree := s.ContextTree(c)
	th, err := s.TreeHash(tree)
	require.NoError(t, err)
	require.Equal(t, treeHash, th)

	children, err := s.TreeList(tree)
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, "greeting", children[0].Step)
	require.Equal(t, store.Contents, children[0].Kind)

	sub, ok, err := s.SubTree(tree, []string{"greeting"})
	require.NoError(t, err)
	require.True(t, ok)
	content, ok, err := s.TreeContent(sub)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), content)
}

func TestAddDirFailsOnUnknownChild(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()
	ctx := context.Background()

	err := s.Batch(ctx, func(b store.Batch) error {
		_, ok, err := b.AddDir([]store.ChildHash{{Step: "x", Hash: hash.NewFromBytes([]byte("never-added"))}})
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestDataSurvivesReopen(t *testing.T) {
	s, dir := openTestStore(t)
	ctx := context.Background()

	var blobHash hash.Hash
	err := s.Batch(ctx, func(b store.Batch) error {
		tree, err := b.AddString([]byte("durable"))
		require.NoError(t, err)
		blobHash = tree.(hash.Hash)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(Config{DB: dir, NoFsync: true})
	require.NoError(t, err)
	defer reopened.Close()

	content, ok, err := reopened.TreeContent(blobHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("durable"), content)
}
