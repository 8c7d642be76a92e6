package decompose

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPLabelerHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req labelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		labels := make([]Label, RuneLen(req.Text))
		for i := range labels {
			labels[i] = LabelStreet
		}
		json.NewEncoder(w).Encode(labelResponse{Labels: labels})
	}))
	defer srv.Close()

	h := NewHTTPLabeler(srv.URL, nil)
	labels, err := h.Label("Lipowa")
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if len(labels) != RuneLen("Lipowa") {
		t.Errorf("expected %d labels, got %d", RuneLen("Lipowa"), len(labels))
	}
}

func TestHTTPLabelerRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewHTTPLabeler(srv.URL, nil)
	if _, err := h.Label("Lipowa"); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestHTTPLabelerRejectsMismatchedLabelCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(labelResponse{Labels: []Label{LabelStreet}})
	}))
	defer srv.Close()

	h := NewHTTPLabeler(srv.URL, nil)
	if _, err := h.Label("Lipowa"); err == nil {
		t.Fatal("expected an error when the label count doesn't match the rune count")
	}
}
