// Package policystore implements C4: parsing and holding a Cedar schema,
// policy set, and issuer table from either of the two wire dialects.
package policystore

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/cedar-policy/cedar-go"
	cedarschema "github.com/cedar-policy/cedar-go/schema"

	"github.com/cedar-pdp/pdp/pkg/auth"
	"github.com/cedar-pdp/pdp/pkg/pdperrors"
)

// PolicyStore is the immutable, in-memory result of parsing either wire
// dialect. Both input shapes converge on this single representation.
type PolicyStore struct {
	ID         string
	Version    string
	Schema     *cedarschema.Schema
	SchemaJSON json.RawMessage
	Policies   *cedar.PolicySet
	Issuers    map[string]*auth.TrustedIssuer
}

// GetStoreVersion returns the version string used for log correlation.
func (s *PolicyStore) GetStoreVersion() string { return s.Version }

// policyMetadata is the shared wire shape of one policy entry in either
// dialect, differing only in whether PolicyContent is base64-encoded.
type policyMetadata struct {
	Description  string `json:"description"`
	CreationDate string `json:"creation_date"`
}

// tokenEntityMetadataWire mirrors auth.TokenEntityMetadata's wire shape.
type tokenEntityMetadataWire struct {
	UserID       string                       `json:"user_id,omitempty"`
	RoleMapping  string                       `json:"role_mapping,omitempty"`
	ClaimMapping map[string]auth.ClaimMapping `json:"claim_mapping,omitempty"`
}

func (w tokenEntityMetadataWire) toDomain() auth.TokenEntityMetadata {
	return auth.TokenEntityMetadata{
		UserID:       w.UserID,
		RoleMapping:  w.RoleMapping,
		ClaimMapping: w.ClaimMapping,
	}
}

// trustedIssuerMetadataWire mirrors TrustedIssuerMetadata on the wire.
type trustedIssuerMetadataWire struct {
	Name                        string                  `json:"name"`
	Description                 string                  `json:"description"`
	OpenIDConfigurationEndpoint string                  `json:"openid_configuration_endpoint"`
	AccessTokens                tokenEntityMetadataWire `json:"access_tokens"`
	IDTokens                    tokenEntityMetadataWire `json:"id_tokens"`
	UserinfoTokens              tokenEntityMetadataWire `json:"userinfo_tokens"`
	TxTokens                    tokenEntityMetadataWire `json:"tx_tokens"`
}

func (w trustedIssuerMetadataWire) toDomain(id string) *auth.TrustedIssuer {
	return &auth.TrustedIssuer{
		ID:                          id,
		Name:                        w.Name,
		Description:                 w.Description,
		OpenIDConfigurationEndpoint: w.OpenIDConfigurationEndpoint,
		AccessTokens:                w.AccessTokens.toDomain(),
		IDTokens:                    w.IDTokens.toDomain(),
		UserinfoTokens:              w.UserinfoTokens.toDomain(),
		TxTokens:                    w.TxTokens.toDomain(),
	}
}

// validateCedarVersion rejects a cedar_version that isn't parseable semver.
// An empty version is permitted (optional per the wire format).
func validateCedarVersion(v string) error {
	if v == "" {
		return nil
	}
	if _, err := semver.NewVersion(v); err != nil {
		return pdperrors.Wrap(pdperrors.KindInitialization, fmt.Sprintf("cedar_version %q is not valid semver", v), err)
	}
	return nil
}

// build assembles a PolicyStore from already-decoded (non-base64) parts,
// shared by both dialect parsers.
func build(
	id, version string,
	schemaJSON []byte,
	policies map[string]policyEntry,
	issuersWire map[string]trustedIssuerMetadataWire,
) (*PolicyStore, error) {
	if err := validateCedarVersion(version); err != nil {
		return nil, err
	}

	schema := cedarschema.NewSchema()
	if err := schema.UnmarshalJSON(schemaJSON); err != nil {
		return nil, pdperrors.Wrap(pdperrors.KindInitialization, "schema JSON failed Cedar schema parsing", err)
	}

	policySet := cedar.NewPolicySet()
	for policyID, entry := range policies {
		parsed, err := parsePolicyText(policyID, entry.content)
		if err != nil {
			return nil, pdperrors.Wrap(pdperrors.KindInitialization, fmt.Sprintf("policy %q failed to parse", policyID), err)
		}
		policySet.Add(cedar.PolicyID(policyID), parsed)
	}

	issuers := make(map[string]*auth.TrustedIssuer, len(issuersWire))
	for issuerID, wire := range issuersWire {
		issuers[issuerID] = wire.toDomain(issuerID)
	}

	return &PolicyStore{
		ID:         id,
		Version:    version,
		Schema:     schema,
		SchemaJSON: schemaJSON,
		Policies:   policySet,
		Issuers:    issuers,
	}, nil
}

type policyEntry struct {
	content string
}

// parsePolicyText parses a single policy's Cedar text. Cedar's own parser
// accepts a document of one-or-more semicolon-terminated policies; a
// policy-store entry always holds exactly one.
func parsePolicyText(id, text string) (*cedar.Policy, error) {
	list, err := cedar.NewPolicyListFromBytes(id, []byte(text))
	if err != nil {
		return nil, err
	}
	if len(list) != 1 {
		return nil, fmt.Errorf("expected exactly one policy, got %d", len(list))
	}
	return list[0], nil
}
