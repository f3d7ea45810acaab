// Package manifest is a typed view over a subgraph manifest's YAML bytes.
// Parsing is pure: it never fetches anything itself.
package manifest

import (
	"gopkg.in/yaml.v3"

	"github.com/graphops/availability-oracle/internal/domain"
)

// Link is an IPFS link, either "/ipfs/<cid>" or a bare CID string.
type Link string

// SchemaRef points at the GraphQL schema file for a subgraph.
type SchemaRef struct {
	File struct {
		Link Link `yaml:"link"`
	} `yaml:"file"`
}

// Mapping describes a data source's compiled mapping and the ABIs it needs.
type Mapping struct {
	File *Link  `yaml:"file,omitempty"`
	ABIs []Link `yaml:"abis,omitempty"`
}

// DataSource is one entry in a manifest's data_sources list.
type DataSource struct {
	Kind    string  `yaml:"kind"`
	Network *string `yaml:"network,omitempty"`
	Mapping Mapping `yaml:"mapping"`
}

// Manifest is the typed form of a subgraph deployment's manifest YAML.
// Unknown fields are tolerated by yaml.v3's default decoding behavior.
type Manifest struct {
	Schema      SchemaRef    `yaml:"schema"`
	DataSources []DataSource `yaml:"dataSources"`
}

// Parse decodes manifest YAML bytes. Any decode failure is reported as a
// ManifestParseError.
func Parse(data []byte) (*Manifest, *domain.InvalidReason) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, domain.NewManifestParseError("invalid manifest yaml", err)
	}
	return &m, nil
}

func (l Link) String() string { return string(l) }
