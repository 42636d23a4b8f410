package jwks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestJWK(t *testing.T, kid string) jwk.Key {
	t.Helper()
	raw, err := jwk.Generate(jwa.RSA())
	require.NoError(t, err)
	key, ok := raw.(jwk.Key)
	require.True(t, ok)
	require.NoError(t, key.Set(jwk.KeyIDKey, kid))
	pub, err := jwk.PublicKeyOf(key)
	require.NoError(t, err)
	return pub
}

func TestStaticKeyService_Lookup(t *testing.T) {
	key := generateTestJWK(t, "kid-1")
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(key))
	setJSON, err := json.Marshal(set)
	require.NoError(t, err)

	svc, err := NewStaticKeyService(map[string]json.RawMessage{"issuer-a": setJSON})
	require.NoError(t, err)

	got, err := svc.Lookup("issuer-a", "kid-1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	_, err = svc.Lookup("issuer-a", "missing-kid")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = svc.Lookup("unknown-issuer", "kid-1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestStaticKeyService_LookupFallsBackToFirstKey(t *testing.T) {
	key := generateTestJWK(t, "only-kid")
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(key))
	setJSON, err := json.Marshal(set)
	require.NoError(t, err)

	svc, err := NewStaticKeyService(map[string]json.RawMessage{"issuer-a": setJSON})
	require.NoError(t, err)

	got, err := svc.Lookup("issuer-a", "")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestService_RefreshAtomicSwap(t *testing.T) {
	key1 := generateTestJWK(t, "v1")
	set1 := jwk.NewSet()
	require.NoError(t, set1.AddKey(key1))
	set1JSON, err := json.Marshal(set1)
	require.NoError(t, err)

	key2 := generateTestJWK(t, "v2")
	set2 := jwk.NewSet()
	require.NoError(t, set2.AddKey(key2))
	set2JSON, err := json.Marshal(set2)
	require.NoError(t, err)

	var serveSet2 bool
	jwksSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if serveSet2 {
			_, _ = w.Write(set2JSON)
		} else {
			_, _ = w.Write(set1JSON)
		}
	}))
	defer jwksSrv.Close()

	discSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"issuer":"issuer-a","jwks_uri":"` + jwksSrv.URL + `"}`))
	}))
	defer discSrv.Close()

	svc := NewService(discSrv.Client())

	require.NoError(t, svc.Refresh(context.Background(), "issuer-a", discSrv.URL))
	_, err = svc.Lookup("issuer-a", "v1")
	require.NoError(t, err)

	serveSet2 = true
	require.NoError(t, svc.Refresh(context.Background(), "issuer-a", discSrv.URL))
	_, err = svc.Lookup("issuer-a", "v2")
	require.NoError(t, err)
	_, err = svc.Lookup("issuer-a", "v1")
	assert.ErrorIs(t, err, ErrKeyNotFound, "old key must be gone after atomic swap")
}

func TestService_RefreshFailureLeavesPriorKeysetInPlace(t *testing.T) {
	key1 := generateTestJWK(t, "v1")
	set1 := jwk.NewSet()
	require.NoError(t, set1.AddKey(key1))
	set1JSON, err := json.Marshal(set1)
	require.NoError(t, err)

	jwksSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(set1JSON)
	}))
	defer jwksSrv.Close()

	discSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"issuer":"issuer-a","jwks_uri":"` + jwksSrv.URL + `"}`))
	}))
	defer discSrv.Close()

	svc := NewService(discSrv.Client())
	require.NoError(t, svc.Refresh(context.Background(), "issuer-a", discSrv.URL))

	// second refresh against a broken endpoint must fail without clobbering sets
	err = svc.Refresh(context.Background(), "issuer-a", discSrv.URL+"/does-not-exist")
	assert.Error(t, err)

	_, err = svc.Lookup("issuer-a", "v1")
	assert.NoError(t, err)
}
