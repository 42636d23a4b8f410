package entities

import (
	"testing"

	"github.com/cedar-policy/cedar-go/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedar-pdp/pdp/pkg/auth"
	"github.com/cedar-pdp/pdp/pkg/pdperrors"
)

const testSchemaJSON = `{
	"": {
		"entityTypes": {
			"Issue": { "shape": { "type": "Record", "attributes": {
				"id": { "type": "String" },
				"priority": { "type": "Long" },
				"owner": { "type": "Entity", "name": "User" }
			} } },
			"User": { "shape": { "type": "Record", "attributes": {} } }
		}
	}
}`

func testIssuers() map[string]*auth.TrustedIssuer {
	return map[string]*auth.TrustedIssuer{
		"iss-1": {
			ID:             "iss-1",
			AccessTokens:   auth.TokenEntityMetadata{UserID: "client_id"},
			IDTokens:       auth.TokenEntityMetadata{UserID: "sub", RoleMapping: "role"},
			UserinfoTokens: auth.TokenEntityMetadata{UserID: "sub"},
		},
	}
}

func TestBuild_UserPrincipalOnly(t *testing.T) {
	b := NewBuilder(Config{}, []byte(testSchemaJSON), "")
	tokens := Tokens{
		ID:       auth.NewDecodedToken(auth.TokenKindID, map[string]any{"sub": "drofio", "country": "Easter Island"}, "iss-1", ""),
		Userinfo: auth.NewDecodedToken(auth.TokenKindUserinfo, map[string]any{"sub": "drofio"}, "iss-1", ""),
	}

	res, err := b.Build(testIssuers(), tokens, ResourceData{}, false, true)
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Nil(t, res.Workload)
	assert.Equal(t, "drofio", string(res.User.ID))
}

func TestBuild_MissingPrincipal(t *testing.T) {
	b := NewBuilder(Config{}, []byte(testSchemaJSON), "")
	tokens := Tokens{Userinfo: auth.NewDecodedToken(auth.TokenKindUserinfo, map[string]any{"sub": "x"}, "iss-1", "")}

	_, err := b.Build(testIssuers(), tokens, ResourceData{}, true, false)
	require.Error(t, err)
	assert.True(t, pdperrors.Is(err, pdperrors.KindMissingPrincipal, ""))
}

func TestBuild_Roles(t *testing.T) {
	b := NewBuilder(Config{}, []byte(testSchemaJSON), "")
	tokens := Tokens{
		ID: auth.NewDecodedToken(auth.TokenKindID, map[string]any{
			"sub":  "drofio",
			"role": []any{"admin", "member"},
		}, "iss-1", ""),
	}

	res, err := b.Build(testIssuers(), tokens, ResourceData{}, false, true)
	require.NoError(t, err)
	entity := res.Entities[*res.User]
	require.NotNil(t, entity)
	assert.Len(t, entity.Parents, 2)
}

func TestBuild_WorkloadAccessWinsOverID(t *testing.T) {
	b := NewBuilder(Config{}, []byte(testSchemaJSON), "")
	tokens := Tokens{
		ID:     auth.NewDecodedToken(auth.TokenKindID, map[string]any{"client_id": "from-id"}, "iss-1", ""),
		Access: auth.NewDecodedToken(auth.TokenKindAccess, map[string]any{"client_id": "from-access"}, "iss-1", ""),
	}

	res, err := b.Build(testIssuers(), tokens, ResourceData{}, true, false)
	require.NoError(t, err)
	require.NotNil(t, res.Workload)
	entity := res.Entities[*res.Workload]
	require.NotNil(t, entity)
	val, ok := entity.Attributes.Get("client_id")
	require.True(t, ok)
	assert.Equal(t, types.String("from-access"), val)
}

func TestBuild_ResourceAttributeCoercion(t *testing.T) {
	b := NewBuilder(Config{}, []byte(testSchemaJSON), "")
	res, err := b.Build(testIssuers(), Tokens{}, ResourceData{
		ID:   "R1",
		Type: "Issue",
		Attributes: map[string]any{
			"id":       "R1",
			"priority": float64(3),
		},
	}, false, false)
	require.NoError(t, err)

	uid := types.NewEntityUID("Issue", "R1")
	entity := res.Entities[uid]
	require.NotNil(t, entity)
	val, ok := entity.Attributes.Get("priority")
	require.True(t, ok)
	assert.Equal(t, types.Long(3), val)
}

func TestBuild_ResourceAttributeEntityReferenceUsesDeclaredTargetType(t *testing.T) {
	b := NewBuilder(Config{}, []byte(testSchemaJSON), "")
	res, err := b.Build(testIssuers(), Tokens{}, ResourceData{
		ID:         "R1",
		Type:       "Issue",
		Attributes: map[string]any{"owner": "alice"},
	}, false, false)
	require.NoError(t, err)

	uid := types.NewEntityUID("Issue", "R1")
	entity := res.Entities[uid]
	require.NotNil(t, entity)
	val, ok := entity.Attributes.Get("owner")
	require.True(t, ok)
	assert.Equal(t, types.NewEntityUID("User", "alice"), val, "owner must reference the schema-declared User type, not Issue")
}

func TestBuild_ResourceAttributeTypeMismatch(t *testing.T) {
	b := NewBuilder(Config{}, []byte(testSchemaJSON), "")
	_, err := b.Build(testIssuers(), Tokens{}, ResourceData{
		ID:         "R1",
		Type:       "Issue",
		Attributes: map[string]any{"priority": "not-a-number"},
	}, false, false)
	require.Error(t, err)
	assert.True(t, pdperrors.Is(err, pdperrors.KindResourceEntity, ""))
}
