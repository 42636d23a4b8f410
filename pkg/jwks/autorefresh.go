package jwks

import (
	"context"
	"net/http"
	"sync"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/cedar-pdp/pdp/pkg/httpfetch"
)

// AutoRefreshService is an alternate key-service backend: instead of the
// facade calling Refresh explicitly on KeyNotFound, each issuer's JWKS URL
// is registered with an httprc-scheduled jwx cache that polls and refreshes
// it in the background, honoring the endpoint's Cache-Control/max-age.
// Opt into this with jwt_config.key_refresh.auto_poll; the default key
// service (Service) keeps the explicit, caller-driven refresh instead.
type AutoRefreshService struct {
	cache *jwk.Cache

	mu   sync.RWMutex
	urls map[string]string // issuer id -> jwks_uri
}

// NewAutoRefreshService constructs an AutoRefreshService backed by an
// httprc client built over httpClient.
func NewAutoRefreshService(ctx context.Context, httpClient *http.Client) (*AutoRefreshService, error) {
	rc := httprc.NewClient(httprc.WithHTTPClient(httpClient))
	cache, err := jwk.NewCache(ctx, rc)
	if err != nil {
		return nil, err
	}
	return &AutoRefreshService{cache: cache, urls: make(map[string]string)}, nil
}

// Register resolves issuerID's OpenID configuration document to find its
// jwks_uri, then registers that URL with the background-polled cache.
func (a *AutoRefreshService) Register(ctx context.Context, client *http.Client, issuerID, openIDConfigEndpoint string) error {
	discRes, err := httpfetch.FetchJSON[discoveryDocument](ctx, client, openIDConfigEndpoint)
	if err != nil {
		return err
	}
	if err := a.cache.Register(ctx, discRes.Data.JWKSURI); err != nil {
		return err
	}
	a.mu.Lock()
	a.urls[issuerID] = discRes.Data.JWKSURI
	a.mu.Unlock()
	return nil
}

// Lookup satisfies jwtvalidator.KeyLookup against the auto-refreshing
// cache, identical fallback rule to Service.Lookup: an empty kid returns
// the keyset's first key.
func (a *AutoRefreshService) Lookup(issuerID, kid string) (jwk.Key, error) {
	a.mu.RLock()
	url, ok := a.urls[issuerID]
	a.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}

	set, err := a.cache.Lookup(context.Background(), url)
	if err != nil {
		return nil, err
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
