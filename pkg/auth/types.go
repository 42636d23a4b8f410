// Package auth holds the PDP's core data model: the issuer configuration
// loaded at bootstrap and the decoded-token representation produced by
// JWT validation. Both are consumed by the entity builder and authorizer
// without ever being mutated after construction.
package auth

import (
	"encoding/json"
	"fmt"
)

// TokenKind identifies which of the three token slots a DecodedToken fills.
type TokenKind string

const (
	TokenKindAccess   TokenKind = "access"
	TokenKindID       TokenKind = "id"
	TokenKindUserinfo TokenKind = "userinfo"
	TokenKindTx       TokenKind = "tx"
)

// ClaimMapping renames a claim and/or declares how its JSON value should be
// coerced when it becomes a Cedar entity attribute.
type ClaimMapping struct {
	// Parser selects how Pattern (if any) is applied: "json" re-parses the
	// claim's string value as JSON, "regex" extracts the first capture group.
	Parser string `json:"parser,omitempty"`
	// Pattern is the regex (for Parser=="regex"); unused otherwise.
	Pattern string `json:"pattern,omitempty"`
	// Rename is the attribute name to use instead of the claim name.
	Rename string `json:"rename,omitempty"`
}

// TokenEntityMetadata configures how one token kind becomes an entity.
type TokenEntityMetadata struct {
	// UserID names the claim that becomes the entity id. Defaults to "jti".
	UserID string `json:"user_id,omitempty"`
	// RoleMapping names the claim carrying role assignments (string or
	// array of strings). Empty means this token never contributes roles.
	RoleMapping string `json:"role_mapping,omitempty"`
	// ClaimMapping renames/coerces claims into entity attributes.
	ClaimMapping map[string]ClaimMapping `json:"claim_mapping,omitempty"`
}

// UserIDClaim returns the configured id claim, defaulting to "jti".
func (m TokenEntityMetadata) UserIDClaim() string {
	if m.UserID == "" {
		return "jti"
	}
	return m.UserID
}

// TrustedIssuer is immutable after bootstrap and referenced (never owned)
// by every DecodedToken it signs.
type TrustedIssuer struct {
	ID                         string
	Name                       string
	Description                string
	OpenIDConfigurationEndpoint string
	AccessTokens               TokenEntityMetadata
	IDTokens                   TokenEntityMetadata
	UserinfoTokens             TokenEntityMetadata
	// TxTokens is parsed and retained for completeness but never consulted
	// by entity construction; tx_tokens participation is an open question
	// left as a reserved channel.
	TxTokens TokenEntityMetadata
}

// MetadataFor returns the TokenEntityMetadata configured for kind. A nil
// receiver (issuer unresolved) returns the zero value rather than panicking,
// so callers can look up an issuer and pass the result straight through.
func (t *TrustedIssuer) MetadataFor(kind TokenKind) TokenEntityMetadata {
	if t == nil {
		return TokenEntityMetadata{}
	}
	switch kind {
	case TokenKindAccess:
		return t.AccessTokens
	case TokenKindID:
		return t.IDTokens
	case TokenKindUserinfo:
		return t.UserinfoTokens
	case TokenKindTx:
		return t.TxTokens
	default:
		return TokenEntityMetadata{}
	}
}

// DecodedToken is the result of successfully validating a raw JWT: its
// signature and temporal checks passed, so its claims may be trusted. The
// back-reference to the issuing TrustedIssuer is a lookup by id, not an
// owning pointer, so DecodedToken stays cheap to pass by value in tests.
type DecodedToken struct {
	Kind     TokenKind
	Claims   map[string]any
	IssuerID string

	// raw is retained only for pass-through scenarios; it is redacted by
	// String() and MarshalJSON() to prevent accidental leakage into logs.
	raw string
}

// NewDecodedToken constructs a DecodedToken. raw is the original compact
// JWT string and is never exposed by String()/MarshalJSON().
func NewDecodedToken(kind TokenKind, claims map[string]any, issuerID, raw string) *DecodedToken {
	return &DecodedToken{Kind: kind, Claims: claims, IssuerID: issuerID, raw: raw}
}

// Raw returns the original compact JWT. Callers that need pass-through
// behavior (e.g. forwarding the token to a downstream service) must call
// this explicitly; it is never serialized implicitly.
func (t *DecodedToken) Raw() string { return t.raw }

func (t *DecodedToken) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("DecodedToken{kind:%s issuer:%s}", t.Kind, t.IssuerID)
}

func (t *DecodedToken) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	type safe struct {
		Kind     TokenKind      `json:"kind"`
		IssuerID string         `json:"issuer_id"`
		Claims   map[string]any `json:"claims"`
	}
	return json.Marshal(&safe{Kind: t.Kind, IssuerID: t.IssuerID, Claims: t.Claims})
}

// Claim looks up a claim by name, reporting whether it was present.
func (t *DecodedToken) Claim(name string) (any, bool) {
	if t == nil || t.Claims == nil {
		return nil, false
	}
	v, ok := t.Claims[name]
	return v, ok
}

// StringClaim looks up a string-valued claim.
func (t *DecodedToken) StringClaim(name string) (string, bool) {
	v, ok := t.Claim(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
