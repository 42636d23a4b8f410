// Package jwtvalidator implements C3: decoding and verifying a compact JWT
// against issuer-advertised key material, enforcing temporal and
// required-claim constraints.
package jwtvalidator

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/cedar-pdp/pdp/pkg/auth"
	"github.com/cedar-pdp/pdp/pkg/pdperrors"
)

// KeyLookup resolves a signing key for (issuerID, kid). Both pkg/jwks.Service
// and pkg/jwks.AutoRefreshService satisfy this.
type KeyLookup interface {
	Lookup(issuerID, kid string) (jwk.Key, error)
}

// Config governs validator behavior. Algorithms is the acceptable set for
// this issuer/bootstrap; RequiredClaims names claims that must be present
// after decoding; Leeway permits clock skew in exp/nbf checks.
type Config struct {
	Algorithms     []string
	RequiredClaims []string
	Leeway         time.Duration
}

// Validator validates tokens per C3's algorithm. It never triggers a key
// refresh itself; KeyNotFound is surfaced so the caller (the facade) can
// decide whether to retry after a refresh.
type Validator struct {
	cfg Config
}

// New constructs a Validator from cfg.
func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate decodes and verifies raw, resolving its signing key via keys
// against the issuer named by the token's (unverified) iss claim. issuers
// is the policy store's issuer table; an iss claim absent from it is
// treated the same as KeyNotFound, since there is no keyset to check.
func (v *Validator) Validate(
	raw string,
	kind auth.TokenKind,
	issuers map[string]*auth.TrustedIssuer,
	keys KeyLookup,
) (*auth.DecodedToken, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, pdperrors.Wrap(pdperrors.KindProcessTokens, "malformed token", err).
			WithSub(pdperrors.SubInvalidSignature)
	}

	alg := unverified.Method.Alg()
	if !contains(v.cfg.Algorithms, alg) {
		return nil, pdperrors.Newf(pdperrors.KindProcessTokens, "algorithm %q not in acceptable set", alg).
			WithSub(pdperrors.SubUnsupportedAlg)
	}

	claims, _ := unverified.Claims.(jwt.MapClaims)
	iss, _ := claims["iss"].(string)
	issuer, ok := issuers[iss]
	if !ok {
		return nil, pdperrors.Newf(pdperrors.KindProcessTokens, "unknown issuer %q", iss).
			WithSub(pdperrors.SubKeyNotFound)
	}

	var kid string
	if k, ok := unverified.Header["kid"].(string); ok {
		kid = k
	}

	key, err := keys.Lookup(issuer.ID, kid)
	if err != nil {
		return nil, pdperrors.Wrap(pdperrors.KindProcessTokens, "no signing key for issuer", err).
			WithSub(pdperrors.SubKeyNotFound)
	}

	var rawKey any
	if err := key.Raw(&rawKey); err != nil {
		return nil, pdperrors.Wrap(pdperrors.KindProcessTokens, "could not materialize signing key", err).
			WithSub(pdperrors.SubKeyNotFound)
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{alg}), jwt.WithLeeway(v.cfg.Leeway))
	verified, err := parser.ParseWithClaims(raw, jwt.MapClaims{}, func(*jwt.Token) (any, error) {
		return rawKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, pdperrors.Wrap(pdperrors.KindProcessTokens, "token expired", err).
				WithSub(pdperrors.SubExpiredToken)
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, pdperrors.Wrap(pdperrors.KindProcessTokens, "token not yet valid", err).
				WithSub(pdperrors.SubImmatureToken)
		default:
			return nil, pdperrors.Wrap(pdperrors.KindProcessTokens, "signature verification failed", err).
				WithSub(pdperrors.SubInvalidSignature)
		}
	}

	verifiedClaims, _ := verified.Claims.(jwt.MapClaims)
	var missing []string
	for _, name := range v.cfg.RequiredClaims {
		if _, ok := verifiedClaims[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, pdperrors.Newf(pdperrors.KindProcessTokens, "missing claims: %v", missing).
			WithSub(pdperrors.SubMissingClaims)
	}

	return auth.NewDecodedToken(kind, map[string]any(verifiedClaims), issuer.ID, raw), nil
}

// PeekIssuer extracts the unverified iss claim from raw, without checking
// its signature. Used by callers (the facade) that want to decide whether a
// KeyNotFound failure is worth a refresh-and-retry before it's known which
// issuer's keyset is stale.
func PeekIssuer(raw string) (string, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", pdperrors.Wrap(pdperrors.KindProcessTokens, "malformed token", err).
			WithSub(pdperrors.SubInvalidSignature)
	}
	claims, _ := unverified.Claims.(jwt.MapClaims)
	iss, _ := claims["iss"].(string)
	return iss, nil
}

// DecodeUnverified decodes raw's claims without checking its signature or
// temporal constraints, returning the iss claim and the full claim map.
// Used for jwt_config.disabled bootstrap mode, where tokens are still
// materialized into entities but never cryptographically checked.
func DecodeUnverified(raw string) (iss string, claims map[string]any, err error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", nil, err
	}
	mc, _ := unverified.Claims.(jwt.MapClaims)
	iss, _ = mc["iss"].(string)
	return iss, map[string]any(mc), nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
