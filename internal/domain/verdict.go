package domain

import "fmt"

// InvalidKind enumerates the reasons a deployment fails validation.
type InvalidKind string

const (
	BadCid                    InvalidKind = "bad_cid"
	Unavailable               InvalidKind = "unavailable"
	ManifestParseError        InvalidKind = "manifest_parse_error"
	SchemaParseError          InvalidKind = "schema_parse_error"
	WasmParseError            InvalidKind = "wasm_parse_error"
	AbiParseError             InvalidKind = "abi_parse_error"
	ForbiddenApi              InvalidKind = "forbidden_api"
	UnsupportedNetwork        InvalidKind = "unsupported_network"
	UnsupportedDataSourceKind InvalidKind = "unsupported_data_source_kind"
)

// InvalidReason explains why a deployment is invalid. It implements error so
// it can be returned or wrapped like any other Go error, while still
// carrying the machine-readable Kind the reconciliation engine switches on.
type InvalidReason struct {
	Kind   InvalidKind
	Detail string
	Cause  error
}

func (r *InvalidReason) Error() string {
	if r.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", r.Kind, r.Detail, r.Cause)
	}
	if r.Detail != "" {
		return fmt.Sprintf("%s: %s", r.Kind, r.Detail)
	}
	return string(r.Kind)
}

func (r *InvalidReason) Unwrap() error { return r.Cause }

func newReason(kind InvalidKind, detail string, cause error) *InvalidReason {
	return &InvalidReason{Kind: kind, Detail: detail, Cause: cause}
}

func NewBadCid(link string) *InvalidReason {
	return newReason(BadCid, link, nil)
}

func NewUnavailable(cid string, cause error) *InvalidReason {
	return newReason(Unavailable, cid, cause)
}

func NewManifestParseError(detail string, cause error) *InvalidReason {
	return newReason(ManifestParseError, detail, cause)
}

func NewSchemaParseError(cause error) *InvalidReason {
	return newReason(SchemaParseError, "", cause)
}

func NewWasmParseError(cause error) *InvalidReason {
	return newReason(WasmParseError, "", cause)
}

func NewAbiParseError(cause error) *InvalidReason {
	return newReason(AbiParseError, "", cause)
}

func NewForbiddenApi(name string) *InvalidReason {
	return newReason(ForbiddenApi, name, nil)
}

func NewUnsupportedNetwork(network string) *InvalidReason {
	return newReason(UnsupportedNetwork, network, nil)
}

func NewUnsupportedDataSourceKind(kind string) *InvalidReason {
	return newReason(UnsupportedDataSourceKind, kind, nil)
}

// Verdict is the outcome of validating a single deployment: either valid, or
// invalid with a reason attached.
type Verdict struct {
	Valid  bool
	Reason *InvalidReason
}

// Yes reports a valid deployment.
func Yes() Verdict { return Verdict{Valid: true} }

// No reports an invalid deployment with the given reason.
func No(reason *InvalidReason) Verdict { return Verdict{Valid: false, Reason: reason} }
