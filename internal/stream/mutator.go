package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Mutator sends user-initiated mutation requests to the backend API. It
// implements board.Mutator. The engine never waits on these responses for
// state - the authoritative effect arrives via the event stream - but an HTTP
// or server error is reported so the caller can log it.
type Mutator struct {
	httpClient *http.Client
	baseURL    string
	projectID  string
}

// NewMutator creates a mutator for one project.
func NewMutator(httpClient *http.Client, baseURL, projectID string) *Mutator {
	return &Mutator{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		projectID:  projectID,
	}
}

// AdvanceLead requests a move to toStep; empty toStep lets the server apply
// its default successor policy.
func (m *Mutator) AdvanceLead(ctx context.Context, leadID, toStep string) error {
	body := struct {
		To string `json:"to,omitempty"`
	}{To: toStep}

	url := fmt.Sprintf("%s/api/projects/%s/leads/%s/advance", m.baseURL, m.projectID, leadID)
	return m.post(ctx, url, body)
}

// AssignLead requests an assignee change; empty toUser unassigns.
func (m *Mutator) AssignLead(ctx context.Context, leadID, toUser string) error {
	var to *string
	if toUser != "" {
		to = &toUser
	}
	body := struct {
		ToUser *string `json:"to_user"`
	}{ToUser: to}

	url := fmt.Sprintf("%s/api/projects/%s/leads/%s/assign", m.baseURL, m.projectID, leadID)
	return m.post(ctx, url, body)
}

func (m *Mutator) post(ctx context.Context, url string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	return nil
}
