package policystore

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchemaJSON = `{
	"": {
		"entityTypes": {
			"User": { "shape": { "type": "Record", "attributes": {} } },
			"Photo": { "shape": { "type": "Record", "attributes": {} } }
		},
		"actions": {
			"view": { "appliesTo": { "principalTypes": ["User"], "resourceTypes": ["Photo"] } }
		}
	}
}`

func nativeDoc(t *testing.T, extra string) []byte {
	t.Helper()
	doc := `{
		"id": "store-1",
		"cedar_version": "4.2.0",
		"schema": ` + testSchemaJSON + `,
		"policies": {
			"p0": { "description": "allow all", "creation_date": "2024-01-01", "policy_content": "permit(principal, action, resource);" }
		},
		"trusted_issuers": {
			"https://issuer.example": {
				"name": "Example",
				"description": "Example issuer",
				"openid_configuration_endpoint": "https://issuer.example/.well-known/openid-configuration",
				"access_tokens": { "user_id": "client_id" },
				"id_tokens": { "user_id": "sub", "role_mapping": "role" },
				"userinfo_tokens": { "user_id": "sub" },
				"tx_tokens": {}
			}
		}` + extra + `
	}`
	return []byte(doc)
}

func TestParseNative_HappyPath(t *testing.T) {
	store, err := ParseNative(nativeDoc(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "store-1", store.ID)
	assert.Equal(t, "4.2.0", store.Version)
	assert.Len(t, store.Issuers, 1)
	assert.Equal(t, "sub", store.Issuers["https://issuer.example"].IDTokens.UserID)
	assert.Equal(t, "role", store.Issuers["https://issuer.example"].IDTokens.RoleMapping)
}

func TestParseNative_InvalidPolicyText(t *testing.T) {
	doc := `{
		"id": "store-1",
		"schema": ` + testSchemaJSON + `,
		"policies": { "p0": { "description": "", "creation_date": "", "policy_content": "not cedar at all {{{" } },
		"trusted_issuers": {}
	}`
	_, err := ParseNative([]byte(doc))
	assert.Error(t, err)
}

func TestParseNative_InvalidSchema(t *testing.T) {
	doc := `{
		"id": "store-1",
		"schema": { "not": "a cedar schema" },
		"policies": {},
		"trusted_issuers": {}
	}`
	_, err := ParseNative([]byte(doc))
	assert.Error(t, err)
}

func TestParseNative_InvalidSemver(t *testing.T) {
	doc := `{
		"id": "store-1",
		"cedar_version": "not-a-version",
		"schema": ` + testSchemaJSON + `,
		"policies": {},
		"trusted_issuers": {}
	}`
	_, err := ParseNative([]byte(doc))
	assert.Error(t, err)
}

func TestParseAgama_HappyPath(t *testing.T) {
	schemaB64 := base64.StdEncoding.EncodeToString([]byte(testSchemaJSON))
	policyB64 := base64.StdEncoding.EncodeToString([]byte(`permit(principal, action, resource);`))

	doc := `{
		"policy_stores": {
			"store-1": {
				"name": "Store One",
				"schema": "` + schemaB64 + `",
				"policies": {
					"p0": { "description": "", "creation_date": "", "policy_content": "` + policyB64 + `" }
				},
				"trusted_issuers": {}
			}
		}
	}`

	store, err := ParseAgama([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "store-1", store.ID)
}

func TestParseAgama_MultipleStoresRejected(t *testing.T) {
	schemaB64 := base64.StdEncoding.EncodeToString([]byte(testSchemaJSON))
	doc := `{
		"policy_stores": {
			"store-1": { "name": "A", "schema": "` + schemaB64 + `", "policies": {}, "trusted_issuers": {} },
			"store-2": { "name": "B", "schema": "` + schemaB64 + `", "policies": {}, "trusted_issuers": {} }
		}
	}`
	_, err := ParseAgama([]byte(doc))
	assert.Error(t, err)
}

func TestParseAgama_MalformedBase64Schema(t *testing.T) {
	doc := `{
		"policy_stores": {
			"store-1": { "name": "A", "schema": "not-base64!!!", "policies": {}, "trusted_issuers": {} }
		}
	}`
	_, err := ParseAgama([]byte(doc))
	assert.Error(t, err)
}

func TestLoadFromBytes_DetectsDialect(t *testing.T) {
	native, err := LoadFromBytes(nativeDoc(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "store-1", native.ID)

	schemaB64 := base64.StdEncoding.EncodeToString([]byte(testSchemaJSON))
	agamaDoc := `{"policy_stores":{"store-2":{"name":"A","schema":"` + schemaB64 + `","policies":{},"trusted_issuers":{}}}}`
	agama, err := LoadFromBytes([]byte(agamaDoc))
	require.NoError(t, err)
	assert.Equal(t, "store-2", agama.ID)
}
