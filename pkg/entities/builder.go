package entities

import (
	"encoding/json"
	"regexp"

	"github.com/cedar-policy/cedar-go/types"

	"github.com/cedar-pdp/pdp/pkg/auth"
	"github.com/cedar-pdp/pdp/pkg/pdperrors"
)

// Tokens bundles the decoded tokens available for this request. Any field
// may be nil; an absent optional token simply omits its token-entity.
type Tokens struct {
	Access   *auth.DecodedToken
	ID       *auth.DecodedToken
	Userinfo *auth.DecodedToken
}

// ResourceData is the caller-supplied resource description.
type ResourceData struct {
	ID         string
	Type       string
	Attributes map[string]any
}

// Result is the entity set produced for one request, plus the principal
// UIDs the authorizer needs to build its two views.
type Result struct {
	Entities types.Entities
	Workload *types.EntityUID
	User     *types.EntityUID
}

// Builder constructs entity sets from tokens + resource data, consulting a
// schema's JSON form for resource attribute coercion.
type Builder struct {
	cfg        Config
	schemaJSON []byte
	namespace  string
}

// NewBuilder constructs a Builder. namespace is the Cedar schema namespace
// ("" for the unnamed/default namespace) entity types are declared under.
func NewBuilder(cfg Config, schemaJSON []byte, namespace string) *Builder {
	return &Builder{cfg: cfg, schemaJSON: schemaJSON, namespace: namespace}
}

// Build produces the full entity set for one request.
func (b *Builder) Build(
	issuers map[string]*auth.TrustedIssuer,
	tokens Tokens,
	resource ResourceData,
	useWorkload, useUser bool,
) (*Result, error) {
	ents := types.Entities{}
	result := &Result{Entities: ents}

	if tokens.Access != nil {
		issuer := issuers[tokens.Access.IssuerID]
		if _, err := b.addTokenEntity(ents, tokens.Access, issuer.MetadataFor(auth.TokenKindAccess), b.cfg.accessTokenType()); err != nil {
			return nil, pdperrors.Wrap(pdperrors.KindCreateAccessTokenEntity, "access token entity", err)
		}
	}
	if tokens.ID != nil {
		issuer := issuers[tokens.ID.IssuerID]
		if _, err := b.addTokenEntity(ents, tokens.ID, issuer.MetadataFor(auth.TokenKindID), b.cfg.idTokenType()); err != nil {
			return nil, pdperrors.Wrap(pdperrors.KindCreateIdTokenEntity, "id token entity", err)
		}
	}
	if tokens.Userinfo != nil {
		issuer := issuers[tokens.Userinfo.IssuerID]
		if _, err := b.addTokenEntity(ents, tokens.Userinfo, issuer.MetadataFor(auth.TokenKindUserinfo), b.cfg.userinfoTokenType()); err != nil {
			return nil, pdperrors.Wrap(pdperrors.KindCreateUserinfoTokenEntity, "userinfo token entity", err)
		}
	}

	if useWorkload {
		if tokens.Access == nil && tokens.ID == nil {
			return nil, pdperrors.New(pdperrors.KindMissingPrincipal, "Workload").WithSub("Workload")
		}
		uid, err := b.buildWorkload(ents, issuers, tokens)
		if err != nil {
			return nil, pdperrors.Wrap(pdperrors.KindCreateWorkloadEntity, "workload entity", err)
		}
		result.Workload = &uid
	}

	if useUser {
		if tokens.ID == nil && tokens.Userinfo == nil {
			return nil, pdperrors.New(pdperrors.KindMissingPrincipal, "User").WithSub("User")
		}
		uid, err := b.buildUser(ents, issuers, tokens)
		if err != nil {
			return nil, pdperrors.Wrap(pdperrors.KindCreateUserEntity, "user entity", err)
		}
		result.User = &uid
	}

	if resource.ID != "" {
		if err := b.addResourceEntity(ents, resource); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// addTokenEntity builds the single token-entity for one present token: id
// from metadata.UserIDClaim(), attributes from the remaining claims after
// applying claim_mapping.
func (b *Builder) addTokenEntity(
	ents types.Entities,
	tok *auth.DecodedToken,
	meta auth.TokenEntityMetadata,
	entityType string,
) (types.EntityUID, error) {
	idClaim := meta.UserIDClaim()
	id, _ := tok.StringClaim(idClaim)

	attrs, err := claimsToAttributes(tok.Claims, meta.ClaimMapping)
	if err != nil {
		return types.EntityUID{}, err
	}

	uid := types.NewEntityUID(types.EntityType(entityType), types.String(id))
	ents[uid] = &types.Entity{UID: uid, Attributes: types.NewRecord(attrs)}
	return uid, nil
}

// buildWorkload constructs the Workload entity per the access-wins tie-break.
func (b *Builder) buildWorkload(ents types.Entities, issuers map[string]*auth.TrustedIssuer, tokens Tokens) (types.EntityUID, error) {
	clientID, issuerID := "", ""
	var name, orgID string

	if tokens.ID != nil {
		if v, ok := tokens.ID.StringClaim("client_id"); ok {
			clientID = v
		}
		if v, ok := tokens.ID.StringClaim("name"); ok {
			name = v
		}
		if v, ok := tokens.ID.StringClaim("org_id"); ok {
			orgID = v
		}
		issuerID = tokens.ID.IssuerID
	}
	if tokens.Access != nil {
		// access token wins on conflict
		if v, ok := tokens.Access.StringClaim("client_id"); ok {
			clientID = v
		}
		if v, ok := tokens.Access.StringClaim("name"); ok {
			name = v
		}
		if v, ok := tokens.Access.StringClaim("org_id"); ok {
			orgID = v
		}
		issuerID = tokens.Access.IssuerID
	}

	rm := types.RecordMap{
		"client_id": types.String(clientID),
		"name":      types.String(name),
		"org_id":    types.String(orgID),
	}
	if issuerID != "" {
		issuerUID := b.ensureIssuerEntity(ents, issuerID)
		rm["iss"] = issuerUID
	}

	uid := types.NewEntityUID(types.EntityType(b.cfg.workloadType()), types.String(clientID))
	ents[uid] = &types.Entity{UID: uid, Attributes: types.NewRecord(rm)}
	return uid, nil
}

// buildUser constructs the User entity plus its Role parents, per the
// userinfo-wins tie-break.
func (b *Builder) buildUser(ents types.Entities, issuers map[string]*auth.TrustedIssuer, tokens Tokens) (types.EntityUID, error) {
	var idToken, primary *auth.DecodedToken
	if tokens.ID != nil {
		idToken = tokens.ID
		primary = tokens.ID
	}
	if tokens.Userinfo != nil {
		primary = tokens.Userinfo
	}

	var issuer *auth.TrustedIssuer
	if primary != nil {
		issuer = issuers[primary.IssuerID]
	}
	meta := auth.TokenEntityMetadata{}
	if issuer != nil {
		if tokens.Userinfo != nil {
			meta = issuer.MetadataFor(auth.TokenKindUserinfo)
		} else {
			meta = issuer.MetadataFor(auth.TokenKindID)
		}
	}

	idClaim := meta.UserIDClaim()
	id, _ := primary.StringClaim(idClaim)

	merged := map[string]any{}
	if idToken != nil {
		for k, v := range idToken.Claims {
			merged[k] = v
		}
	}
	if tokens.Userinfo != nil {
		for k, v := range tokens.Userinfo.Claims {
			merged[k] = v // userinfo wins on conflict
		}
	}

	attrs, err := claimsToAttributes(merged, meta.ClaimMapping)
	if err != nil {
		return types.EntityUID{}, err
	}

	roleUIDs, err := b.buildRoles(ents, issuers, tokens)
	if err != nil {
		return types.EntityUID{}, err
	}

	uid := types.NewEntityUID(types.EntityType(b.cfg.userType()), types.String(id))
	ents[uid] = &types.Entity{UID: uid, Parents: roleUIDs, Attributes: types.NewRecord(attrs)}
	return uid, nil
}

// buildRoles derives Role entities from whichever present token(s) carry a
// role_mapping claim, deduplicated by id.
func (b *Builder) buildRoles(ents types.Entities, issuers map[string]*auth.TrustedIssuer, tokens Tokens) ([]types.EntityUID, error) {
	seen := map[string]struct{}{}
	var uids []types.EntityUID

	addRole := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		uid := types.NewEntityUID(types.EntityType(b.cfg.roleType()), types.String(id))
		if _, exists := ents[uid]; !exists {
			ents[uid] = &types.Entity{UID: uid, Attributes: types.NewRecord(types.RecordMap{})}
		}
		uids = append(uids, uid)
	}

	consider := func(tok *auth.DecodedToken, kind auth.TokenKind) error {
		if tok == nil {
			return nil
		}
		issuer := issuers[tok.IssuerID]
		if issuer == nil {
			return nil
		}
		meta := issuer.MetadataFor(kind)
		if meta.RoleMapping == "" {
			return nil
		}
		v, ok := tok.Claim(meta.RoleMapping)
		if !ok {
			return nil
		}
		switch rv := v.(type) {
		case string:
			addRole(rv)
		case []any:
			for _, e := range rv {
				s, ok := e.(string)
				if !ok {
					return pdperrors.New(pdperrors.KindRoleEntity, "role_mapping array element is not a string")
				}
				addRole(s)
			}
		default:
			return pdperrors.New(pdperrors.KindRoleEntity, "role_mapping claim is neither string nor array")
		}
		return nil
	}

	if err := consider(tokens.Access, auth.TokenKindAccess); err != nil {
		return nil, err
	}
	if err := consider(tokens.ID, auth.TokenKindID); err != nil {
		return nil, err
	}
	if err := consider(tokens.Userinfo, auth.TokenKindUserinfo); err != nil {
		return nil, err
	}
	return uids, nil
}

// ensureIssuerEntity adds (if missing) a minimal entity representing the
// trusted issuer, so Workload.iss can reference it, and returns its UID.
func (b *Builder) ensureIssuerEntity(ents types.Entities, issuerID string) types.EntityUID {
	uid := types.NewEntityUID(types.EntityType(b.cfg.issuerType()), types.String(issuerID))
	if _, ok := ents[uid]; !ok {
		ents[uid] = &types.Entity{UID: uid, Attributes: types.NewRecord(types.RecordMap{})}
	}
	return uid
}

// addResourceEntity coerces the caller-supplied resource attributes per
// the schema and adds the resulting entity.
func (b *Builder) addResourceEntity(ents types.Entities, resource ResourceData) error {
	rm := types.RecordMap{}
	for k, v := range resource.Attributes {
		cv, err := coerceResourceAttr(b.schemaJSON, b.namespace, resource.Type, k, v)
		if err != nil {
			return pdperrors.Wrap(pdperrors.KindResourceEntity, "field "+k, err)
		}
		rm[types.String(k)] = cv
	}

	uid := types.NewEntityUID(types.EntityType(resource.Type), types.String(resource.ID))
	ents[uid] = &types.Entity{UID: uid, Attributes: types.NewRecord(rm)}
	return nil
}

// claimsToAttributes applies claim_mapping (rename and/or JSON/regex
// reparse) to a claim map, yielding the Cedar attribute record.
func claimsToAttributes(claims map[string]any, mapping map[string]auth.ClaimMapping) (types.RecordMap, error) {
	rm := types.RecordMap{}
	for claim, v := range claims {
		name := claim
		value := v

		if cm, ok := mapping[claim]; ok {
			if cm.Rename != "" {
				name = cm.Rename
			}
			switch cm.Parser {
			case "json":
				s, ok := v.(string)
				if ok {
					var reparsed any
					if err := json.Unmarshal([]byte(s), &reparsed); err == nil {
						value = reparsed
					}
				}
			case "regex":
				s, ok := v.(string)
				if ok && cm.Pattern != "" {
					re, err := regexp.Compile(cm.Pattern)
					if err == nil {
						if m := re.FindStringSubmatch(s); len(m) > 1 {
							value = m[1]
						}
					}
				}
			}
		}

		cv, err := toValue(value)
		if err != nil {
			return nil, err
		}
		rm[types.String(name)] = cv
	}
	return rm, nil
}
