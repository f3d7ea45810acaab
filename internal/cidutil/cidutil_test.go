package cidutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCIDv0Deterministic(t *testing.T) {
	var id [32]byte
	for i := range id {
		id[i] = byte(i)
	}

	c1, err := CIDv0(id)
	require.NoError(t, err)
	c2, err := CIDv0(id)
	require.NoError(t, err)
	require.Equal(t, c1, c2)
	require.True(t, len(c1) > 0)
}

func TestResolveLinkStripsIpfsPrefix(t *testing.T) {
	var id [32]byte
	id[0] = 1
	c, err := CIDv0(id)
	require.NoError(t, err)

	resolved, err := ResolveLink("/ipfs/" + c)
	require.NoError(t, err)
	require.Equal(t, c, resolved)

	resolved2, err := ResolveLink(c)
	require.NoError(t, err)
	require.Equal(t, c, resolved2)
}

func TestResolveLinkBadCid(t *testing.T) {
	_, err := ResolveLink("/ipfs/not-a-cid")
	require.Error(t, err)
}
