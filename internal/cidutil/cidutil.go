// Package cidutil converts between the oracle's raw 32-byte deployment ids
// and the CIDv0 strings the IPFS gateway and manifest links use.
package cidutil

import (
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDv0 encodes a 32-byte deployment id as a CIDv0 string: a base58-encoded
// multihash of the id, tagged as a raw sha256 digest.
func CIDv0(id [32]byte) (string, error) {
	mh, err := multihash.Encode(id[:], multihash.SHA2_256)
	if err != nil {
		return "", fmt.Errorf("encode multihash: %w", err)
	}
	return cid.NewCidV0(mh).String(), nil
}

// ResolveLink strips a leading "/ipfs/" prefix (if present) and parses the
// remainder as a CID, returning its canonical string form. It fails if the
// link, once the prefix is stripped, is not a valid CID.
func ResolveLink(link string) (string, error) {
	trimmed := strings.TrimPrefix(link, "/ipfs/")
	c, err := cid.Decode(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse cid %q: %w", link, err)
	}
	return c.String(), nil
}
