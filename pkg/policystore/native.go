package policystore

import (
	"encoding/json"

	"github.com/cedar-pdp/pdp/pkg/pdperrors"
)

// nativePolicyEntry is the native-dialect policy wire shape: policy_content
// is plain Cedar text, not base64-encoded.
type nativePolicyEntry struct {
	policyMetadata
	PolicyContent string `json:"policy_content"`
}

type nativeDocument struct {
	ID            string                               `json:"id"`
	CedarVersion  string                               `json:"cedar_version,omitempty"`
	Schema        json.RawMessage                      `json:"schema"`
	Policies      map[string]nativePolicyEntry         `json:"policies"`
	TrustedIssuer map[string]trustedIssuerMetadataWire `json:"trusted_issuers"`
}

// ParseNative parses the native (plain-object) policy-store dialect.
func ParseNative(data []byte) (*PolicyStore, error) {
	var doc nativeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, pdperrors.Wrap(pdperrors.KindInitialization, "malformed native policy store document", err)
	}

	policies := make(map[string]policyEntry, len(doc.Policies))
	for id, p := range doc.Policies {
		policies[id] = policyEntry{content: p.PolicyContent}
	}

	return build(doc.ID, doc.CedarVersion, doc.Schema, policies, doc.TrustedIssuer)
}
