package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dyluth/leadflow/internal/board"
	"github.com/dyluth/leadflow/pkg/pipeline"
)

// ErrSnapshotUnavailable is returned when the bootstrap snapshot cannot be
// fetched or is unusable (empty steps). Callers surface this as a blocking
// error; no partial board is rendered without a snapshot.
var ErrSnapshotUnavailable = errors.New("snapshot unavailable")

// Bootstrap is the demo bootstrap payload: the default project's ID, step
// sequence, and full lead set. Users are fetched separately, keyed by the
// project ID this payload names.
type Bootstrap struct {
	ProjectID string          `json:"project_id"`
	Steps     []string        `json:"steps"`
	Leads     []pipeline.Lead `json:"leads"`
}

// FetchBootstrap retrieves the bootstrap snapshot from the backend.
func FetchBootstrap(ctx context.Context, httpClient *http.Client, baseURL string) (*Bootstrap, error) {
	var bootstrap Bootstrap
	if err := getJSON(ctx, httpClient, baseURL+"/api/demo/bootstrap", &bootstrap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
	return &bootstrap, nil
}

// FetchUsers retrieves a project's team roster.
func FetchUsers(ctx context.Context, httpClient *http.Client, baseURL, projectID string) ([]pipeline.User, error) {
	var payload struct {
		Users []pipeline.User `json:"users"`
	}
	url := fmt.Sprintf("%s/api/projects/%s/users", baseURL, projectID)
	if err := getJSON(ctx, httpClient, url, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
	return payload.Users, nil
}

// Load performs the one-time session bootstrap: fetch the snapshot and the
// roster, then seed the store atomically. Returns the project ID to attach
// the event stream to.
//
// A missing roster is tolerated - user references resolve on a later load -
// but a missing or step-less snapshot is ErrSnapshotUnavailable and leaves
// the store untouched.
func Load(ctx context.Context, httpClient *http.Client, baseURL string, store *board.Store) (string, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")

	bootstrap, err := FetchBootstrap(ctx, httpClient, baseURL)
	if err != nil {
		return "", err
	}

	users, err := FetchUsers(ctx, httpClient, baseURL, bootstrap.ProjectID)
	if err != nil {
		// Grouping views degrade to the unassigned lane until users resolve
		users = nil
	}

	if err := store.LoadSnapshot(bootstrap.Steps, users, bootstrap.Leads); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}

	return bootstrap.ProjectID, nil
}

// getJSON fetches a URL and decodes its JSON body into out.
func getJSON(ctx context.Context, httpClient *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
