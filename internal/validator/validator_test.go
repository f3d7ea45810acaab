package validator

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphops/availability-oracle/internal/cidutil"
	"github.com/graphops/availability-oracle/internal/domain"
	"github.com/graphops/availability-oracle/internal/ipfscat"
)

type fakeIPFS struct {
	byCID map[string][]byte
}

func newFakeIPFS() *fakeIPFS { return &fakeIPFS{byCID: make(map[string][]byte)} }

func (f *fakeIPFS) put(data []byte) string {
	var id [32]byte
	copy(id[:], []byte(data))
	cid, err := cidutil.CIDv0(id)
	if err != nil {
		panic(err)
	}
	f.byCID[cid] = data
	return cid
}

func (f *fakeIPFS) Cat(ctx context.Context, cid string) ([]byte, error) {
	data, ok := f.byCID[cid]
	if !ok {
		return nil, &ipfscat.CatError{Kind: ipfscat.NotFound, Cid: cid}
	}
	return data, nil
}

const validSchema = "type Query { deployments: [String!]! }"

func buildManifest(t *testing.T, ipfs *fakeIPFS, kind, network string) string {
	t.Helper()
	schemaCID := ipfs.put([]byte(validSchema))
	manifestYAML := `
schema:
  file:
    link: /ipfs/` + schemaCID + `
dataSources:
  - kind: ` + kind + `
`
	if network != "" {
		manifestYAML += "    network: " + network + "\n"
	}
	return ipfs.put([]byte(manifestYAML))
}

func TestValidateHappyPath(t *testing.T) {
	ipfs := newFakeIPFS()
	cid := buildManifest(t, ipfs, "ethereum", "mainnet")

	v := New(ipfs, DefaultForbiddenHostFnPrefixes)
	verdict, err := v.Validate(context.Background(), cid,
		map[string]bool{"mainnet": true},
		map[string]bool{"ethereum": true})
	require.NoError(t, err)
	require.True(t, verdict.Valid)
}

func TestValidateUnsupportedDataSourceKind(t *testing.T) {
	ipfs := newFakeIPFS()
	cid := buildManifest(t, ipfs, "substreams/sps", "mainnet")

	v := New(ipfs, DefaultForbiddenHostFnPrefixes)
	verdict, err := v.Validate(context.Background(), cid,
		map[string]bool{"mainnet": true},
		map[string]bool{"ethereum": true})
	require.NoError(t, err)
	require.False(t, verdict.Valid)
	require.Equal(t, domain.UnsupportedDataSourceKind, verdict.Reason.Kind)
}

func TestValidateUnsupportedNetwork(t *testing.T) {
	ipfs := newFakeIPFS()
	cid := buildManifest(t, ipfs, "ethereum", "goerli")

	v := New(ipfs, DefaultForbiddenHostFnPrefixes)
	verdict, err := v.Validate(context.Background(), cid,
		map[string]bool{"mainnet": true},
		map[string]bool{"ethereum": true})
	require.NoError(t, err)
	require.False(t, verdict.Valid)
	require.Equal(t, domain.UnsupportedNetwork, verdict.Reason.Kind)
}

func TestValidateMismatchingNetworks(t *testing.T) {
	ipfs := newFakeIPFS()
	schemaCID := ipfs.put([]byte(validSchema))
	manifestYAML := `
schema:
  file:
    link: /ipfs/` + schemaCID + `
dataSources:
  - kind: ethereum
    network: mainnet
  - kind: ethereum
    network: goerli
`
	cid := ipfs.put([]byte(manifestYAML))

	v := New(ipfs, DefaultForbiddenHostFnPrefixes)
	verdict, err := v.Validate(context.Background(), cid,
		map[string]bool{"mainnet": true, "goerli": true},
		map[string]bool{"ethereum": true})
	require.NoError(t, err)
	require.False(t, verdict.Valid)
	require.Equal(t, domain.ManifestParseError, verdict.Reason.Kind)
}

func TestValidateBadCid(t *testing.T) {
	ipfs := newFakeIPFS()
	v := New(ipfs, DefaultForbiddenHostFnPrefixes)
	verdict, err := v.Validate(context.Background(), "not-a-cid",
		map[string]bool{"mainnet": true},
		map[string]bool{"ethereum": true})
	require.NoError(t, err)
	require.False(t, verdict.Valid)
	require.Equal(t, domain.BadCid, verdict.Reason.Kind)
}

func TestValidateUnavailable(t *testing.T) {
	ipfs := newFakeIPFS()
	var id [32]byte
	id[0] = 0xAB
	cid, err := cidutil.CIDv0(id)
	require.NoError(t, err)

	v := New(ipfs, DefaultForbiddenHostFnPrefixes)
	verdict, verr := v.Validate(context.Background(), cid,
		map[string]bool{"mainnet": true},
		map[string]bool{"ethereum": true})
	require.NoError(t, verr)
	require.False(t, verdict.Valid)
	require.Equal(t, domain.Unavailable, verdict.Reason.Kind)
}

// writeWasmName appends a WASM binary "name": a LEB128 length (valid for the
// short ASCII names used in these tests) followed by the raw bytes.
func writeWasmName(buf *bytes.Buffer, s string) {
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
}

// buildWasmWithImport assembles the smallest well-formed WASM module that
// imports a single zero-arg, zero-result host function, so the mapping
// validator's import-section walk has something concrete to inspect.
func buildWasmWithImport(hostModule, hostField string) []byte {
	var module bytes.Buffer
	module.Write([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}) // \0asm, version 1

	typeContent := []byte{0x01, 0x60, 0x00, 0x00} // 1 functype: () -> ()
	module.WriteByte(0x01)                        // type section id
	module.WriteByte(byte(len(typeContent)))
	module.Write(typeContent)

	var importContent bytes.Buffer
	importContent.WriteByte(0x01) // 1 import
	writeWasmName(&importContent, hostModule)
	writeWasmName(&importContent, hostField)
	importContent.WriteByte(0x00) // import kind: func
	importContent.WriteByte(0x00) // type index 0

	module.WriteByte(0x02) // import section id
	module.WriteByte(byte(importContent.Len()))
	module.Write(importContent.Bytes())

	return module.Bytes()
}

func TestValidateForbiddenApi(t *testing.T) {
	ipfs := newFakeIPFS()
	schemaCID := ipfs.put([]byte(validSchema))

	// The bundler-assigned host module namespace ("index") must not shield
	// the forbidden call: only the import's field name is checked.
	wasmCID := ipfs.put(buildWasmWithImport("index", "ipfs.cat"))

	manifestYAML := `
schema:
  file:
    link: /ipfs/` + schemaCID + `
dataSources:
  - kind: ethereum
    network: mainnet
    mapping:
      file: /ipfs/` + wasmCID + `
`
	cid := ipfs.put([]byte(manifestYAML))

	v := New(ipfs, DefaultForbiddenHostFnPrefixes)
	verdict, err := v.Validate(context.Background(), cid,
		map[string]bool{"mainnet": true},
		map[string]bool{"ethereum": true})
	require.NoError(t, err)
	require.False(t, verdict.Valid)
	require.Equal(t, domain.ForbiddenApi, verdict.Reason.Kind)
	require.Equal(t, "ipfs.cat", verdict.Reason.Detail)
}

func TestValidateMappingWithBenignImportIsValid(t *testing.T) {
	ipfs := newFakeIPFS()
	schemaCID := ipfs.put([]byte(validSchema))
	wasmCID := ipfs.put(buildWasmWithImport("index", "store.get"))

	manifestYAML := `
schema:
  file:
    link: /ipfs/` + schemaCID + `
dataSources:
  - kind: ethereum
    network: mainnet
    mapping:
      file: /ipfs/` + wasmCID + `
`
	cid := ipfs.put([]byte(manifestYAML))

	v := New(ipfs, DefaultForbiddenHostFnPrefixes)
	verdict, err := v.Validate(context.Background(), cid,
		map[string]bool{"mainnet": true},
		map[string]bool{"ethereum": true})
	require.NoError(t, err)
	require.True(t, verdict.Valid)
}

func TestValidateWasmParseError(t *testing.T) {
	ipfs := newFakeIPFS()
	schemaCID := ipfs.put([]byte(validSchema))
	wasmCID := ipfs.put([]byte("not a wasm module"))

	manifestYAML := `
schema:
  file:
    link: /ipfs/` + schemaCID + `
dataSources:
  - kind: ethereum
    network: mainnet
    mapping:
      file: /ipfs/` + wasmCID + `
`
	cid := ipfs.put([]byte(manifestYAML))

	v := New(ipfs, DefaultForbiddenHostFnPrefixes)
	verdict, err := v.Validate(context.Background(), cid,
		map[string]bool{"mainnet": true},
		map[string]bool{"ethereum": true})
	require.NoError(t, err)
	require.False(t, verdict.Valid)
	require.Equal(t, domain.WasmParseError, verdict.Reason.Kind)
}

func TestValidateAbiParseError(t *testing.T) {
	ipfs := newFakeIPFS()
	schemaCID := ipfs.put([]byte(validSchema))
	abiCID := ipfs.put([]byte("not valid abi json"))

	manifestYAML := `
schema:
  file:
    link: /ipfs/` + schemaCID + `
dataSources:
  - kind: ethereum
    network: mainnet
    mapping:
      abis:
        - /ipfs/` + abiCID + `
`
	cid := ipfs.put([]byte(manifestYAML))

	v := New(ipfs, DefaultForbiddenHostFnPrefixes)
	verdict, err := v.Validate(context.Background(), cid,
		map[string]bool{"mainnet": true},
		map[string]bool{"ethereum": true})
	require.NoError(t, err)
	require.False(t, verdict.Valid)
	require.Equal(t, domain.AbiParseError, verdict.Reason.Kind)
}

func TestValidateSchemaParseError(t *testing.T) {
	ipfs := newFakeIPFS()
	schemaCID := ipfs.put([]byte("type Query { deployments: [String!]"))

	manifestYAML := `
schema:
  file:
    link: /ipfs/` + schemaCID + `
dataSources:
  - kind: ethereum
    network: mainnet
`
	cid := ipfs.put([]byte(manifestYAML))

	v := New(ipfs, DefaultForbiddenHostFnPrefixes)
	verdict, err := v.Validate(context.Background(), cid,
		map[string]bool{"mainnet": true},
		map[string]bool{"ethereum": true})
	require.NoError(t, err)
	require.False(t, verdict.Valid)
	require.Equal(t, domain.SchemaParseError, verdict.Reason.Kind)
}
