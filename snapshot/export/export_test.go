package export_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oasislabs/tezos-snapshot/go/common/hash"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/codec"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/export"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/restore"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/store"
	"github.com/oasislabs/tezos-snapshot/go/store/memory"
)

// noPred always reports no predecessor: the chain tail.
func noPred(_ context.Context, _ *block.Header) (*block.PrunedBlock, *block.ProtocolData, error) {
	return nil, nil, nil
}

func noopValidate(_ *block.Header, _ hash.Hash, _ block.PrunedBlock) error { return nil }

func TestExportImportRoundTrip(t *testing.T) {
	src := memory.New()

	a := src.PutBlob([]byte("alpha"))
	b := src.PutBlob([]byte("beta"))
	tree := src.PutDir([]store.ChildHash{{Step: "a", Hash: a}, {Step: "b", Hash: b}})

	header := &block.Header{Level: 42, Context: tree}
	info := block.CommitInfo{Author: "baker1", Message: "genesis commit", Date: 1000}
	require.NoError(t, src.PutContext(header, tree, info, nil))

	data := &block.Data{Header: *header, Operations: []byte("ops")}

	var buf bytes.Buffer
	exp := export.New(&buf, src)
	require.NoError(t, exp.Export(context.Background(), header, data, block.Full, noPred))
	require.Greater(t, exp.BytesWritten(), uint64(0))

	dst := memory.New()
	imp := restore.New(&buf, dst)
	var chunks [][]restore.PrunedEntry
	result, err := imp.Import(context.Background(),
		func(chunk []restore.PrunedEntry) error {
			chunks = append(chunks, chunk)
			return nil
		},
		noopValidate,
	)
	require.NoError(t, err)
	require.Equal(t, *header, result.Header)
	require.Equal(t, *data, result.Data)
	require.Equal(t, block.Full, result.Mode)
	require.Empty(t, result.BlockHashes)
	require.Empty(t, chunks)

	// The rebuilt tree must be structurally identical to the source.
	c, ok, err := dst.GetContext(context.Background(), header)
	require.NoError(t, err)
	require.True(t, ok)
	rebuilt := dst.ContextTree(c)
	rebuiltHash, err := dst.TreeHash(rebuilt)
	require.NoError(t, err)
	require.Equal(t, tree, rebuiltHash)
}

func TestExportDeduplicatesSharedSubtree(t *testing.T) {
	src := memory.New()

	shared := src.PutBlob([]byte("shared-content"))
	left := src.PutDir([]store.ChildHash{{Step: "x", Hash: shared}})
	right := src.PutDir([]store.ChildHash{{Step: "y", Hash: shared}})
	tree := src.PutDir([]store.ChildHash{{Step: "left", Hash: left}, {Step: "right", Hash: right}})

	header := &block.Header{Level: 1, Context: tree}
	require.NoError(t, src.PutContext(header, tree, block.CommitInfo{}, nil))
	data := &block.Data{Header: *header}

	var buf bytes.Buffer
	exp := export.New(&buf, src)
	require.NoError(t, exp.Export(context.Background(), header, data, block.Rolling, noPred))

	cr := codec.NewCommandReader(bytes.NewReader(buf.Bytes()))
	// The first frame is the snapshot metadata, not a Command.
	_, err := cr.ReadFrame()
	require.NoError(t, err)
	var blobCount, nodeCount int
	for {
		cmd, err := cr.ReadCommand()
		require.NoError(t, err)
		switch cmd.Tag {
		case codec.TagBlob:
			blobCount++
		case codec.TagNode:
			nodeCount++
		case codec.TagRoot:
		case codec.TagEnd:
			goto done
		}
	}
done:
	require.Equal(t, 1, blobCount, "shared blob must be written exactly once")
	require.Equal(t, 3, nodeCount, "left, right, and top dir nodes must each be written exactly once")
}

func TestImportRejectsTruncatedStream(t *testing.T) {
	src := memory.New()
	tree := src.PutBlob([]byte("x"))
	header := &block.Header{Level: 1, Context: tree}
	require.NoError(t, src.PutContext(header, tree, block.CommitInfo{}, nil))
	data := &block.Data{Header: *header}

	var buf bytes.Buffer
	exp := export.New(&buf, src)
	require.NoError(t, exp.Export(context.Background(), header, data, block.Full, noPred))

	// Truncate the stream inside the metadata frame's length prefix: the
	// importer must fail closed rather than silently accept partial data.
	truncated := bytes.NewReader(buf.Bytes()[:4])
	dst := memory.New()
	imp := restore.New(truncated, dst)
	_, err := imp.Import(context.Background(), func([]restore.PrunedEntry) error { return nil }, noopValidate)
	require.Error(t, err)
}

func TestExportFailsWhenContextMissing(t *testing.T) {
	src := memory.New()
	header := &block.Header{Level: 99}
	data := &block.Data{Header: *header}

	var buf bytes.Buffer
	exp := export.New(&buf, src)
	err := exp.Export(context.Background(), header, data, block.Full, noPred)
	require.Error(t, err)
}
