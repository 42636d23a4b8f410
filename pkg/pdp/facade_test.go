package pdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedar-pdp/pdp/pkg/pdperrors"
)

// testSchemaJSON declares Issue/Role/User/Workload entity types, a Read
// action scoped to both principal kinds, and an Update action whose context
// requires a "thingz" string, for the schema-violation scenario.
const testSchemaJSON = `{
	"": {
		"entityTypes": {
			"Issue":    { "shape": { "type": "Record", "attributes": { "priority": { "type": "Long" } } } },
			"User":     { "shape": { "type": "Record", "attributes": {} } },
			"Workload": { "shape": { "type": "Record", "attributes": {} } },
			"Role":     { "shape": { "type": "Record", "attributes": {} } }
		},
		"actions": {
			"Read": {
				"appliesTo": {
					"principalTypes": ["User", "Workload"],
					"resourceTypes": ["Issue"],
					"context": { "type": "Record", "attributes": {} }
				}
			},
			"Update": {
				"appliesTo": {
					"principalTypes": ["User", "Workload"],
					"resourceTypes": ["Issue"],
					"context": { "type": "Record", "attributes": { "thingz": { "type": "String" } } }
				}
			}
		}
	}
}`

const testIssuerID = "https://issuer.example"

// nativeStoreDocument assembles a native-dialect policy store document
// around a single policy's text, sharing testSchemaJSON and one trusted
// issuer across every scenario.
func nativeStoreDocument(t *testing.T, policyText string) []byte {
	t.Helper()
	doc := map[string]any{
		"id":            "store-1",
		"cedar_version": "4.0.0",
		"schema":        json.RawMessage(testSchemaJSON),
		"policies": map[string]any{
			"p1": map[string]any{"policy_content": policyText},
		},
		"trusted_issuers": map[string]any{
			testIssuerID: map[string]any{
				"name":                          "test-issuer",
				"openid_configuration_endpoint": "https://issuer.example/.well-known/openid-configuration",
				"id_tokens":                     map[string]any{"user_id": "sub", "role_mapping": "roles"},
				"userinfo_tokens":               map[string]any{"user_id": "sub"},
				"access_tokens":                 map[string]any{"user_id": "client_id"},
			},
		},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func baseConfig(t *testing.T, policyText, operator string, jwtCfg JWTConfig) Config {
	t.Helper()
	return Config{
		PolicyStore:          PolicyStoreSource{Kind: "json", JSON: nativeStoreDocument(t, policyText)},
		UseWorkloadPrincipal: true,
		UseUserPrincipal:     true,
		UserWorkloadOperator: operator,
		LogType:              "off",
		JWT:                  jwtCfg,
	}
}

func newDisabledFacade(t *testing.T, policyText, operator string) *Facade {
	t.Helper()
	f, err := New(context.Background(), baseConfig(t, policyText, operator, JWTConfig{Disabled: true}))
	require.NoError(t, err)
	return f
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("irrelevant-in-disabled-mode"))
	require.NoError(t, err)
	return s
}

func issueResource() ResourceInput {
	return ResourceInput{ID: "R1", Type: "Issue", Attributes: map[string]any{"priority": float64(1)}}
}

func TestAuthorize_UserOnlyAllow(t *testing.T) {
	cfg := baseConfig(t, `permit(principal, action, resource);`, "AND", JWTConfig{Disabled: true})
	cfg.UseWorkloadPrincipal = false
	f, err := New(context.Background(), cfg)
	require.NoError(t, err)

	result, err := f.Authorize(context.Background(), Request{
		IDToken:  signedToken(t, jwt.MapClaims{"iss": testIssuerID, "sub": "alice"}),
		Action:   `Action::"Read"`,
		Resource: issueResource(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Allow", result.Decision)
	require.NotNil(t, result.User)
	assert.Equal(t, "Allow", result.User.Decision)
}

func TestAuthorize_MissingPrincipalWhenNoWorkloadToken(t *testing.T) {
	f := newDisabledFacade(t, `permit(principal, action, resource);`, "AND")

	// Only a userinfo token is presented: enough to build the user view, but
	// neither an access nor id token is present for the workload view.
	_, err := f.Authorize(context.Background(), Request{
		UserinfoToken: signedToken(t, jwt.MapClaims{"iss": testIssuerID, "sub": "alice"}),
		Action:        `Action::"Read"`,
		Resource:      issueResource(),
	})
	require.Error(t, err)
	assert.True(t, pdperrors.Is(err, pdperrors.KindMissingPrincipal, "Workload"))
}

func TestAuthorize_ContextSchemaViolationFails(t *testing.T) {
	f := newDisabledFacade(t, `permit(principal, action, resource);`, "AND")

	_, err := f.Authorize(context.Background(), Request{
		IDToken:     signedToken(t, jwt.MapClaims{"iss": testIssuerID, "sub": "alice"}),
		AccessToken: signedToken(t, jwt.MapClaims{"iss": testIssuerID, "client_id": "svc1"}),
		Action:      `Action::"Update"`,
		Context:     map[string]any{}, // missing required "thingz"
		Resource:    issueResource(),
	})
	require.Error(t, err)
	assert.True(t, pdperrors.Is(err, pdperrors.KindCreateContext, ""))
}

func TestAuthorize_RoleBasedAllow(t *testing.T) {
	cfg := baseConfig(t, `permit(principal in Role::"admin", action, resource);`, "AND", JWTConfig{Disabled: true})
	cfg.UseWorkloadPrincipal = false
	f, err := New(context.Background(), cfg)
	require.NoError(t, err)

	result, err := f.Authorize(context.Background(), Request{
		IDToken: signedToken(t, jwt.MapClaims{
			"iss": testIssuerID, "sub": "alice",
			"roles": []any{"admin", "member"},
		}),
		Action:   `Action::"Read"`,
		Resource: issueResource(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Allow", result.Decision)
}

func TestAuthorize_ORCombinesDenyingWorkloadWithAllowingUser(t *testing.T) {
	f := newDisabledFacade(t, `permit(principal is User, action, resource);`, "OR")

	result, err := f.Authorize(context.Background(), Request{
		IDToken:     signedToken(t, jwt.MapClaims{"iss": testIssuerID, "sub": "alice"}),
		AccessToken: signedToken(t, jwt.MapClaims{"iss": testIssuerID, "client_id": "svc1"}),
		Action:      `Action::"Read"`,
		Resource:    issueResource(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Allow", result.Decision, "user view allows, workload view denies, OR should still allow")
	require.NotNil(t, result.Workload)
	assert.Equal(t, "Deny", result.Workload.Decision)
	require.NotNil(t, result.User)
	assert.Equal(t, "Allow", result.User.Decision)
}

// TestAuthorize_ExpiredAccessTokenFails exercises the real (non-disabled)
// JWT path: a HS256-signed, already-expired token against a static keyset
// seeded directly on the facade's key service.
func TestAuthorize_ExpiredAccessTokenFails(t *testing.T) {
	f, err := New(context.Background(), baseConfig(t, `permit(principal, action, resource);`, "AND", JWTConfig{
		Disabled:       false,
		Algorithms:     []string{"HS256"},
		RequiredClaims: []string{"iss", "exp"},
	}))
	require.NoError(t, err)

	secret := []byte("test-signing-secret-32-bytes-long!!")
	keyJSON := []byte(`{"keys":[{"kty":"oct","kid":"key1","k":"` + base64.RawURLEncoding.EncodeToString(secret) + `"}]}`)
	set, err := jwk.Parse(keyJSON)
	require.NoError(t, err)
	f.keys.Set(testIssuerID, set)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": testIssuerID,
		"sub": "alice",
		"exp": float64(1),
	})
	tok.Header["kid"] = "key1"
	accessToken, err := tok.SignedString(secret)
	require.NoError(t, err)

	_, err = f.Authorize(context.Background(), Request{
		AccessToken: accessToken,
		Action:      `Action::"Read"`,
		Resource:    issueResource(),
	})
	require.Error(t, err)
	assert.True(t, pdperrors.Is(err, pdperrors.KindProcessTokens, pdperrors.SubExpiredToken))
}
