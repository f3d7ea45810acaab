// Package validator implements the deployment validator: given a deployment
// CID it fetches and checks the manifest, schema, ABIs and WASM mappings
// from IPFS and returns a validity verdict.
package validator

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/tetratelabs/wazero"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/graphops/availability-oracle/internal/cidutil"
	"github.com/graphops/availability-oracle/internal/domain"
	"github.com/graphops/availability-oracle/internal/ipfscat"
	"github.com/graphops/availability-oracle/internal/manifest"
)

// IPFS is the subset of ipfscat.Client the validator needs, kept as an
// interface so tests can substitute an in-memory fake.
type IPFS interface {
	Cat(ctx context.Context, cid string) ([]byte, error)
}

// DefaultForbiddenHostFnPrefixes is the default set of disallowed mapping
// import-name prefixes.
var DefaultForbiddenHostFnPrefixes = []string{"ipfs"}

// Validator checks one deployment's manifest, schema, ABIs and mappings.
type Validator struct {
	ipfs              IPFS
	forbiddenPrefixes []string
}

// New builds a Validator against the given IPFS client, rejecting mapping
// imports whose name starts with any of forbiddenPrefixes.
func New(ipfs IPFS, forbiddenPrefixes []string) *Validator {
	return &Validator{ipfs: ipfs, forbiddenPrefixes: forbiddenPrefixes}
}

// Validate runs the full §4.3 algorithm for one deployment CID.
//
// It returns a non-nil error only for transport/other faults that should
// abort the reconciliation cycle (per spec §7); all other outcomes are
// reported as a domain.Verdict.
func (v *Validator) Validate(ctx context.Context, deploymentCID string, supportedNetworks, supportedDSKinds map[string]bool) (domain.Verdict, error) {
	raw, err := v.catOrClassify(ctx, deploymentCID)
	if err != nil {
		if reason, ok := err.(*domain.InvalidReason); ok {
			return domain.No(reason), nil
		}
		return domain.Verdict{}, err
	}

	m, reason := manifest.Parse(raw)
	if reason != nil {
		return domain.No(reason), nil
	}

	schemaVerdict, err := v.validateSchema(ctx, m.Schema.File.Link)
	if err != nil {
		return domain.Verdict{}, err
	}
	if !schemaVerdict.Valid {
		return schemaVerdict, nil
	}

	var network string
	networkSet := false

	for _, ds := range m.DataSources {
		if !supportedDSKinds[ds.Kind] {
			return domain.No(domain.NewUnsupportedDataSourceKind(ds.Kind)), nil
		}

		if ds.Network != nil {
			if !networkSet {
				if !supportedNetworks[*ds.Network] {
					return domain.No(domain.NewUnsupportedNetwork(*ds.Network)), nil
				}
				network = *ds.Network
				networkSet = true
			} else if *ds.Network != network {
				return domain.No(domain.NewManifestParseError("mismatching networks", nil)), nil
			}
		}

		for _, abiLink := range ds.Mapping.ABIs {
			verdict, err := v.checkABI(ctx, abiLink)
			if err != nil {
				return domain.Verdict{}, err
			}
			if !verdict.Valid {
				return verdict, nil
			}
		}

		if ds.Mapping.File != nil {
			verdict, err := v.checkMapping(ctx, *ds.Mapping.File)
			if err != nil {
				return domain.Verdict{}, err
			}
			if !verdict.Valid {
				return verdict, nil
			}
		}
	}

	return domain.Yes(), nil
}

// catOrClassify resolves link and fetches its content, classifying IPFS
// failures into an invalidity reason (BadCid/Unavailable) or, for any other
// failure, returning it as a plain transport error.
func (v *Validator) catOrClassify(ctx context.Context, link string) ([]byte, error) {
	cid, err := cidutil.ResolveLink(link)
	if err != nil {
		return nil, domain.NewBadCid(link)
	}

	data, err := v.ipfs.Cat(ctx, cid)
	if err == nil {
		return data, nil
	}

	var catErr *ipfscat.CatError
	if asCatError(err, &catErr) {
		switch catErr.Kind {
		case ipfscat.GatewayTimeout, ipfscat.ClientTimeout, ipfscat.NotFound:
			return nil, domain.NewUnavailable(cid, err)
		}
	}
	return nil, fmt.Errorf("fetch %s: %w", cid, err)
}

func asCatError(err error, target **ipfscat.CatError) bool {
	for err != nil {
		if ce, ok := err.(*ipfscat.CatError); ok {
			*target = ce
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func (v *Validator) validateSchema(ctx context.Context, link manifest.Link) (domain.Verdict, error) {
	data, err := v.catOrClassify(ctx, string(link))
	if err != nil {
		if reason, ok := err.(*domain.InvalidReason); ok {
			return domain.No(reason), nil
		}
		return domain.Verdict{}, err
	}

	source := &ast.Source{Name: string(link), Input: string(data)}
	if _, gqlErr := gqlparser.LoadSchema(source); gqlErr != nil {
		return domain.No(domain.NewSchemaParseError(gqlErr)), nil
	}
	return domain.Yes(), nil
}

func (v *Validator) checkABI(ctx context.Context, link manifest.Link) (domain.Verdict, error) {
	data, err := v.catOrClassify(ctx, string(link))
	if err != nil {
		if reason, ok := err.(*domain.InvalidReason); ok {
			return domain.No(reason), nil
		}
		return domain.Verdict{}, err
	}

	if _, parseErr := abi.JSON(bytes.NewReader(data)); parseErr != nil {
		return domain.No(domain.NewAbiParseError(parseErr)), nil
	}
	return domain.Yes(), nil
}

func (v *Validator) checkMapping(ctx context.Context, link manifest.Link) (domain.Verdict, error) {
	data, err := v.catOrClassify(ctx, string(link))
	if err != nil {
		if reason, ok := err.(*domain.InvalidReason); ok {
			return domain.No(reason), nil
		}
		return domain.Verdict{}, err
	}

	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	compiled, compileErr := runtime.CompileModule(ctx, data)
	if compileErr != nil {
		return domain.No(domain.NewWasmParseError(compileErr)), nil
	}
	defer compiled.Close(ctx)

	for _, fn := range compiled.ImportedFunctions() {
		_, name, isImport := fn.Import()
		if !isImport {
			continue
		}
		for _, prefix := range v.forbiddenPrefixes {
			if strings.HasPrefix(name, prefix) {
				return domain.No(domain.NewForbiddenApi(name)), nil
			}
		}
	}
	return domain.Yes(), nil
}
