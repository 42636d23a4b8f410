package policystore

import (
	"encoding/base64"
	"encoding/json"

	"github.com/cedar-pdp/pdp/pkg/pdperrors"
)

// agamaPolicyEntry is the Agama-dialect policy wire shape: policy_content
// is base64-encoded Cedar text.
type agamaPolicyEntry struct {
	policyMetadata
	PolicyContent string `json:"policy_content"`
}

type agamaStore struct {
	Name          string                               `json:"name"`
	Description   string                               `json:"description,omitempty"`
	Schema        string                               `json:"schema"`
	Policies      map[string]agamaPolicyEntry          `json:"policies"`
	TrustedIssuer map[string]trustedIssuerMetadataWire `json:"trusted_issuers"`
}

type agamaDocument struct {
	CedarVersion string                `json:"cedar_version,omitempty"`
	PolicyStores map[string]agamaStore `json:"policy_stores"`
}

// ParseAgama parses the Agama-dialect policy-store document: the schema
// and every policy's content are base64-encoded, and exactly one entry may
// be present under policy_stores.
func ParseAgama(data []byte) (*PolicyStore, error) {
	var doc agamaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, pdperrors.Wrap(pdperrors.KindInitialization, "malformed agama policy store document", err)
	}

	if len(doc.PolicyStores) != 1 {
		return nil, pdperrors.Newf(pdperrors.KindInitialization,
			"agama document must contain exactly one policy store, got %d", len(doc.PolicyStores))
	}

	var id string
	var store agamaStore
	for k, v := range doc.PolicyStores {
		id, store = k, v
	}

	schemaJSON, err := base64.StdEncoding.DecodeString(store.Schema)
	if err != nil {
		return nil, pdperrors.Wrap(pdperrors.KindInitialization, "agama schema is not valid base64", err)
	}

	policies := make(map[string]policyEntry, len(store.Policies))
	for policyID, p := range store.Policies {
		content, err := base64.StdEncoding.DecodeString(p.PolicyContent)
		if err != nil {
			return nil, pdperrors.Wrap(pdperrors.KindInitialization,
				"agama policy content is not valid base64: "+policyID, err)
		}
		policies[policyID] = policyEntry{content: string(content)}
	}

	return build(id, doc.CedarVersion, schemaJSON, policies, store.TrustedIssuer)
}
