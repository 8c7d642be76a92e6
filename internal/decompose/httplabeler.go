package decompose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPLabeler adapts the Labeler contract to a remote named-entity
// recognizer reached over HTTP: POST {"text": "..."} and read back
// {"labels": [...]}, one integer label per rune of text, in rune order.
// The recognizer itself is out of scope; this is only the client-side
// shape of the contract.
type HTTPLabeler struct {
	endpoint string
	client   *http.Client
}

// NewHTTPLabeler builds a labeler that calls the given endpoint.
func NewHTTPLabeler(endpoint string, client *http.Client) *HTTPLabeler {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPLabeler{endpoint: endpoint, client: client}
}

type labelRequest struct {
	Text string `json:"text"`
}

type labelResponse struct {
	Labels []Label `json:"labels"`
}

// Label implements the Labeler interface.
func (h *HTTPLabeler) Label(text string) ([]Label, error) {
	body, err := json.Marshal(labelRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("decompose: marshal labeler request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decompose: build labeler request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("decompose: labeler request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decompose: labeler returned status %d", resp.StatusCode)
	}

	var out labelResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decompose: decode labeler response: %w", err)
	}
	if len(out.Labels) != RuneLen(text) {
		return nil, fmt.Errorf("decompose: labeler returned %d labels for %d runes", len(out.Labels), RuneLen(text))
	}
	return out.Labels, nil
}
