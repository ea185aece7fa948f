package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/richxcame/pizzaguard/pkg/httpclient"
)

// Getter is the HTTP client subset used by RemoteRepository.
type Getter interface {
	Get(ctx context.Context, path string, headers map[string]string) ([]byte, error)
}

// RemoteRepository reads products from the product service over HTTP.
type RemoteRepository struct {
	client Getter
}

// NewRemoteRepository creates a repository backed by the product service.
func NewRemoteRepository(client Getter) *RemoteRepository {
	return &RemoteRepository{client: client}
}

type productEnvelope struct {
	Data *Product `json:"data"`
}

// GetProduct fetches GET /products/{id}. Both a bare product and a
// {"data": product} envelope are accepted.
func (r *RemoteRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	body, err := r.client.Get(ctx, "/products/"+url.PathEscape(id), nil)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("fetch product %s: %w", id, err)
	}

	var env productEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Data != nil {
		return env.Data, nil
	}

	var p Product
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode product %s: %w", id, err)
	}
	if p.ID == "" {
		return nil, ErrProductNotFound
	}
	return &p, nil
}
