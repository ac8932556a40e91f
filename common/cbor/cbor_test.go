package cbor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	A string `cbor:"a"`
	B int    `cbor:"b"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	in := sample{A: "x", B: 7}
	data := Marshal(&in)

	var out sample
	require.NoError(t, Unmarshal(data, &out))
	require.Equal(t, in, out)
}

func TestMarshalIsCanonicalAndDeterministic(t *testing.T) {
	in := sample{A: "x", B: 7}
	require.Equal(t, Marshal(&in), Marshal(&in))
}

func TestUnmarshalMalformedFails(t *testing.T) {
	var out sample
	require.Error(t, Unmarshal([]byte{0xff, 0xff}, &out))
}
