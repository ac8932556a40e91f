package metadata

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oasislabs/tezos-snapshot/go/common/cbor"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/codec"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	require.NoError(t, Write(w, block.Rolling))
	require.NoError(t, w.Flush())

	r := codec.NewReader(&buf)
	m, err := Read(r)
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, m.Version)
	require.Equal(t, block.Rolling, m.Mode)
}

func TestWrongVersionRejected(t *testing.T) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	bad := Metadata{Version: "tezos-snapshot-0.9.0", Mode: block.Full}
	require.NoError(t, w.WriteFrame(cbor.Marshal(&bad)))
	require.NoError(t, w.Flush())

	r := codec.NewReader(&buf)
	_, err := Read(r)
	require.Error(t, err)
}
