package incident

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

// RemoteStore is the live-mode Incident Store: an HTTP client hitting a
// sibling incident service, used when use_local_mocks=false. Same
// HTTP-client shape as internal/topology's RemoteStore.
type RemoteStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteStore builds a client against baseURL.
func NewRemoteStore(baseURL string) *RemoteStore {
	return &RemoteStore{baseURL: baseURL, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// Candidates implements Store.
func (r *RemoteStore) Candidates(ctx context.Context, actionType, resourceType string) ([]model.Incident, error) {
	u := fmt.Sprintf("%s/v1/incidents?action_type=%s&resource_type=%s",
		r.baseURL, url.QueryEscape(actionType), url.QueryEscape(resourceType))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("incident service returned %d: %s", resp.StatusCode, string(body))
	}

	var incidents []model.Incident
	if err := json.NewDecoder(resp.Body).Decode(&incidents); err != nil {
		return nil, fmt.Errorf("decode incidents: %w", err)
	}
	return incidents, nil
}

var _ Store = (*RemoteStore)(nil)
