package pdp

import (
	"context"
	"net/http"
	"os"

	"github.com/cedar-pdp/pdp/pkg/httpfetch"
	"github.com/cedar-pdp/pdp/pkg/pdperrors"
	"github.com/cedar-pdp/pdp/pkg/policystore"
)

// loadPolicyStore reads the bootstrap-configured policy store document from
// whichever of the three source kinds is configured and parses it through
// policystore.LoadFromBytes, which auto-detects the wire dialect.
func loadPolicyStore(ctx context.Context, src PolicyStoreSource, client *http.Client) (*policystore.PolicyStore, error) {
	var data []byte
	var err error

	switch src.Kind {
	case "file":
		data, err = os.ReadFile(src.Path)
		if err != nil {
			return nil, pdperrors.Wrap(pdperrors.KindInitialization, "reading policy store file "+src.Path, err)
		}
	case "uri":
		data, _, err = httpfetch.Get(ctx, client, src.URI)
		if err != nil {
			return nil, pdperrors.Wrap(pdperrors.KindInitialization, "fetching policy store from "+src.URI, err)
		}
	default:
		data = src.JSON
	}

	store, err := policystore.LoadFromBytes(data)
	if err != nil {
		return nil, err
	}
	return store, nil
}
