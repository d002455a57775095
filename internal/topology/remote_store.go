package topology

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sentinel-governance/sentinel/internal/model"
)

// RemoteStore is the live-mode Topology Store: an HTTP client hitting a
// sibling topology service's REST API, used when use_local_mocks=false.
// A plain net/http client that decodes JSON responses.
type RemoteStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteStore builds a client against baseURL.
func NewRemoteStore(baseURL string) *RemoteStore {
	return &RemoteStore{baseURL: baseURL, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// Lookup implements Store.
func (r *RemoteStore) Lookup(ctx context.Context, resourceID string) (*model.Resource, bool, error) {
	u := fmt.Sprintf("%s/v1/resources/%s", r.baseURL, url.PathEscape(resourceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("topology service returned %d: %s", resp.StatusCode, string(body))
	}

	var res model.Resource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, false, fmt.Errorf("decode resource: %w", err)
	}
	return &res, true, nil
}

// Neighbors implements Store.
func (r *RemoteStore) Neighbors(ctx context.Context, resourceID string) (Neighborhood, error) {
	u := fmt.Sprintf("%s/v1/resources/%s/neighbors", r.baseURL, url.PathEscape(resourceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Neighborhood{}, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Neighborhood{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Neighborhood{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Neighborhood{}, fmt.Errorf("topology service returned %d: %s", resp.StatusCode, string(body))
	}

	var n Neighborhood
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		return Neighborhood{}, fmt.Errorf("decode neighborhood: %w", err)
	}
	return n, nil
}

var _ Store = (*RemoteStore)(nil)
