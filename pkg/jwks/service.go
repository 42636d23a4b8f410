// Package jwks implements the per-issuer JSON Web Key Set cache (C2 in the
// design). It is constructible from live OpenID discovery or from a static
// document for tests and offline mode, and guarantees that refresh either
// atomically replaces an issuer's keyset or leaves the prior one in place.
package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/cedar-pdp/pdp/pkg/httpfetch"
	"github.com/cedar-pdp/pdp/pkg/logger"
)

// ErrKeyNotFound is returned by Lookup when the issuer is unknown or the
// kid isn't present in its current keyset.
var ErrKeyNotFound = errors.New("jwks: key not found")

// discoveryDocument is the minimal subset of an OpenID configuration
// document the key service needs.
type discoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// Service holds IssuerId -> JWKS, refreshed on demand.
type Service struct {
	mu     sync.RWMutex
	sets   map[string]jwk.Set
	client *http.Client
	retry  httpfetch.RetryConfig
}

// NewService constructs an empty key service that fetches over client.
func NewService(client *http.Client) *Service {
	return &Service{
		sets:   make(map[string]jwk.Set),
		client: client,
		retry:  httpfetch.DefaultRetryConfig(),
	}
}

// WithRetry overrides the retry policy used for refresh fetches.
func (s *Service) WithRetry(r httpfetch.RetryConfig) *Service {
	s.retry = r
	return s
}

// NewStaticKeyService builds a Service pre-populated from a static
// document: issuer id -> raw JWKS JSON. Used for tests and offline mode;
// Refresh still works against it (and will overwrite the static entry) if
// an openIDConfigEndpoint is later passed.
func NewStaticKeyService(doc map[string]json.RawMessage) (*Service, error) {
	s := &Service{
		sets:   make(map[string]jwk.Set),
		client: http.DefaultClient,
		retry:  httpfetch.DefaultRetryConfig(),
	}
	for issuerID, raw := range doc {
		set, err := jwk.Parse(raw)
		if err != nil {
			return nil, err
		}
		s.sets[issuerID] = set
	}
	return s, nil
}

// Lookup returns the key for (issuerID, kid). If kid is empty, the first
// key in the issuer's set is returned, per the validator's fallback rule.
func (s *Service) Lookup(issuerID, kid string) (jwk.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[issuerID]
	if !ok {
		return nil, ErrKeyNotFound
	}

	if kid != "" {
		key, ok := set.LookupKeyID(kid)
		if !ok {
			return nil, ErrKeyNotFound
		}
		return key, nil
	}

	if set.Len() == 0 {
		return nil, ErrKeyNotFound
	}
	key, ok := set.Key(0)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// Refresh fetches the OpenID configuration at openIDConfigEndpoint, then
// the advertised jwks_uri, and atomically replaces issuerID's keyset.
// On any failure the prior keyset (if any) is left untouched.
func (s *Service) Refresh(ctx context.Context, issuerID, openIDConfigEndpoint string) error {
	discRes, err := httpfetch.FetchJSON[discoveryDocument](ctx, s.client, openIDConfigEndpoint,
		httpfetch.WithRetry(s.retry))
	if err != nil {
		logger.Warnw("jwks refresh: discovery fetch failed", "issuer", issuerID, "error", err)
		return err
	}
	if discRes.Data.JWKSURI == "" {
		return errors.New("jwks: discovery document missing jwks_uri")
	}

	body, _, err := httpfetch.Get(ctx, s.client, discRes.Data.JWKSURI, httpfetch.WithRetry(s.retry))
	if err != nil {
		logger.Warnw("jwks refresh: jwks fetch failed", "issuer", issuerID, "error", err)
		return err
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sets[issuerID] = set
	s.mu.Unlock()

	logger.Debugw("jwks refreshed", "issuer", issuerID, "keys", set.Len())
	return nil
}

// Set atomically installs a pre-parsed keyset for issuerID, bypassing
// network fetch. Used by the policy store loader to seed issuers whose
// discovery endpoint hasn't been reached yet, and by tests.
func (s *Service) Set(issuerID string, set jwk.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[issuerID] = set
}
