package pdp

import (
	"context"

	"github.com/cedar-pdp/pdp/pkg/auth"
	"github.com/cedar-pdp/pdp/pkg/jwtvalidator"
	"github.com/cedar-pdp/pdp/pkg/logger"
	"github.com/cedar-pdp/pdp/pkg/pdperrors"
)

// decodedTokens bundles the three validated (or decoded-only) tokens a
// request may present.
type decodedTokens struct {
	access   *auth.DecodedToken
	id       *auth.DecodedToken
	userinfo *auth.DecodedToken
}

// validateTokens validates every present token in req, refreshing the key
// service and retrying once on KeyNotFound when jwt_config.key_refresh is
// enabled. A token error fails the whole
// request unless TolerateOptionalTokenErrors is set, in which case the
// token is treated as absent instead.
func (f *Facade) validateTokens(ctx context.Context, req Request) (decodedTokens, error) {
	var out decodedTokens
	var err error

	if out.access, err = f.validateOne(ctx, req.AccessToken, auth.TokenKindAccess); err != nil {
		return decodedTokens{}, err
	}
	if out.id, err = f.validateOne(ctx, req.IDToken, auth.TokenKindID); err != nil {
		return decodedTokens{}, err
	}
	if out.userinfo, err = f.validateOne(ctx, req.UserinfoToken, auth.TokenKindUserinfo); err != nil {
		return decodedTokens{}, err
	}
	return out, nil
}

func (f *Facade) validateOne(ctx context.Context, raw string, kind auth.TokenKind) (*auth.DecodedToken, error) {
	if raw == "" {
		return nil, nil
	}

	if f.cfg.JWT.Disabled {
		return decodeOnly(raw, kind)
	}

	var lookup jwtvalidator.KeyLookup = f.keys
	if f.autoKeys != nil {
		lookup = f.autoKeys
	}

	tok, err := f.validator.Validate(raw, kind, f.store.Issuers, lookup)
	if f.autoKeys == nil && err != nil && pdperrors.Is(err, pdperrors.KindProcessTokens, pdperrors.SubKeyNotFound) && f.cfg.JWT.KeyRefresh.Enabled {
		if issuerID, peekErr := jwtvalidator.PeekIssuer(raw); peekErr == nil {
			if issuer, ok := f.store.Issuers[issuerID]; ok {
				if refreshErr := f.keys.Refresh(ctx, issuer.ID, issuer.OpenIDConfigurationEndpoint); refreshErr != nil {
					logger.Warnw("key refresh before retry failed", "issuer", issuer.ID, "error", refreshErr)
				} else {
					tok, err = f.validator.Validate(raw, kind, f.store.Issuers, lookup)
				}
			}
		}
	}

	f.meter.RecordJWTValidation(err == nil)

	if err != nil {
		if f.cfg.JWT.KeyRefresh.TolerateOptionalTokenErrors {
			logger.Warnw("tolerating token validation failure", "kind", kind, "error", err)
			return nil, nil
		}
		return nil, err
	}
	return tok, nil
}

// decodeOnly decodes raw's claims without checking signature or temporal
// constraints, for jwt_config.disabled mode. The issuer id is the iss
// claim verbatim; it may not resolve in the policy store's issuer table,
// in which case entity construction degrades to zero-value metadata
// rather than failing.
func decodeOnly(raw string, kind auth.TokenKind) (*auth.DecodedToken, error) {
	iss, claims, err := jwtvalidator.DecodeUnverified(raw)
	if err != nil {
		return nil, pdperrors.Wrap(pdperrors.KindProcessTokens, "malformed token", err)
	}
	return auth.NewDecodedToken(kind, claims, iss, raw), nil
}
