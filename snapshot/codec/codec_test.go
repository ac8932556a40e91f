package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oasislabs/tezos-snapshot/go/common/hash"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/errs"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/store"
)

func TestBlobRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewCommandWriter(&buf)
	require.NoError(t, w.WriteBlob(&BlobCommand{Content: []byte("hello")}))
	require.NoError(t, w.Flush())

	r := NewCommandReader(&buf)
	cmd, err := r.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, TagBlob, cmd.Tag)
	require.Equal(t, []byte("hello"), cmd.Blob.Content)
}

func TestNodeRoundTripSorted(t *testing.T) {
	var buf bytes.Buffer
	w := NewCommandWriter(&buf)
	h1 := hash.NewFromBytes([]byte("a"))
	h2 := hash.NewFromBytes([]byte("z"))
	node := &NodeCommand{Children: []store.ChildHash{
		{Step: "a", Hash: h1},
		{Step: "z", Hash: h2},
	}}
	require.NoError(t, w.WriteNode(node))
	require.NoError(t, w.Flush())

	r := NewCommandReader(&buf)
	cmd, err := r.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, TagNode, cmd.Tag)
	require.Len(t, cmd.Node.Children, 2)
	require.Equal(t, "a", cmd.Node.Children[0].Step)
	require.Equal(t, "z", cmd.Node.Children[1].Step)
}

func TestEndRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewCommandWriter(&buf)
	require.NoError(t, w.WriteEnd())
	require.NoError(t, w.Flush())

	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1, byte(TagEnd)}, buf.Bytes())

	r := NewCommandReader(&buf)
	cmd, err := r.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, TagEnd, cmd.Tag)
}

func TestRootRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewCommandWriter(&buf)
	root := &RootCommand{
		Header: block.Header{Level: 42},
		Info:   block.CommitInfo{Author: "alice", Message: "m", Date: 1},
		Parents: []block.CommitHash{
			hash.NewFromBytes([]byte("parent")),
		},
		Data: block.Data{Header: block.Header{Level: 42}, Operations: []byte("ops")},
	}
	require.NoError(t, w.WriteRoot(root))
	require.NoError(t, w.Flush())

	r := NewCommandReader(&buf)
	cmd, err := r.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, TagRoot, cmd.Tag)
	require.Equal(t, uint64(42), cmd.Root.Header.Level)
	require.Equal(t, "alice", cmd.Root.Info.Author)
	require.Len(t, cmd.Root.Parents, 1)
	require.Equal(t, []byte("ops"), cmd.Root.Data.Operations)
}

func TestUnknownTagIsFatal(t *testing.T) {
	_, err := DecodeCommand([]byte{'x'})
	require.Error(t, err)
}

func TestShortReadIsInconsistentFile(t *testing.T) {
	// A valid frame header claiming more bytes than are actually present.
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 10})
	buf.Write([]byte{1, 2, 3})

	r := NewCommandReader(&buf)
	_, err := r.ReadCommand()
	require.ErrorIs(t, err, errs.ErrInconsistentSnapshotFile)
}

func TestFlushesAtHighWaterMark(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	big := make([]byte, flushThreshold+1)
	require.NoError(t, w.WriteFrame(big))
	// Flush already happened inside WriteFrame; buf should be non-empty.
	require.True(t, buf.Len() > 0)
	require.Equal(t, uint64(buf.Len()), w.BytesWritten())
}
