package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphops/availability-oracle/internal/domain"
)

const validYAML = `
schema:
  file:
    link: /ipfs/QmSchema
dataSources:
  - kind: ethereum
    network: mainnet
    mapping:
      file: /ipfs/QmMapping
      abis:
        - /ipfs/QmAbi1
  - kind: file/ipfs
    mapping:
      file: /ipfs/QmMapping2
`

func TestParseValidManifest(t *testing.T) {
	m, reason := Parse([]byte(validYAML))
	require.Nil(t, reason)
	require.Equal(t, Link("/ipfs/QmSchema"), m.Schema.File.Link)
	require.Len(t, m.DataSources, 2)
	require.Equal(t, "ethereum", m.DataSources[0].Kind)
	require.NotNil(t, m.DataSources[0].Network)
	require.Equal(t, "mainnet", *m.DataSources[0].Network)
	require.Nil(t, m.DataSources[1].Network)
	require.Equal(t, []Link{"/ipfs/QmAbi1"}, m.DataSources[0].Mapping.ABIs)
}

func TestParseInvalidManifest(t *testing.T) {
	_, reason := Parse([]byte("not: [valid yaml"))
	require.NotNil(t, reason)
	require.Equal(t, domain.ManifestParseError, reason.Kind)
}

func TestParseTolerateUnknownFields(t *testing.T) {
	yamlWithExtra := validYAML + "\nunknownTopLevelField: true\n"
	m, reason := Parse([]byte(yamlWithExtra))
	require.Nil(t, reason)
	require.Len(t, m.DataSources, 2)
}
