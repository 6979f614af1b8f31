package reasoner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bumpsafe/bumpsafe/pkg/config"
)

func upstreamReply(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.ReasonerConfig{
		URL:     srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
}

func TestAssess(t *testing.T) {
	c := newTestClient(t, upstreamReply(
		"Sushi with raw fish should be avoided during pregnancy.\nRISK_SCORE: 8\nREFERENCES: NHS guidance"))

	a, err := c.Assess(context.Background(), "sushi")
	if err != nil {
		t.Fatal(err)
	}
	if a.Item != "sushi" {
		t.Errorf("expected item sushi, got %q", a.Item)
	}
	if a.RiskScore != 8 {
		t.Errorf("expected risk 8, got %d", a.RiskScore)
	}
	if len(a.References) != 1 {
		t.Errorf("expected 1 reference, got %v", a.References)
	}
}

func TestAssessSendsPrompt(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		upstreamReply("Fine.\nRISK_SCORE: 2")(w, r)
	})

	if _, err := c.Assess(context.Background(), "coffee"); err != nil {
		t.Fatal(err)
	}
	if got.Model != "test-model" {
		t.Errorf("expected test-model, got %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("expected system+user messages, got %+v", got.Messages)
	}
}

func TestAssessImage(t *testing.T) {
	c := newTestClient(t, upstreamReply(
		"ITEM: soft cheese\nUnpasteurized cheese carries listeria risk.\nRISK_SCORE: 7"))

	a, err := c.AssessImage(context.Background(), "aGVsbG8=")
	if err != nil {
		t.Fatal(err)
	}
	if a.Item != "soft cheese" {
		t.Errorf("expected identified item, got %q", a.Item)
	}
	if a.RiskScore != 7 {
		t.Errorf("expected risk 7, got %d", a.RiskScore)
	}
}

func TestAssessUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	if _, err := c.Assess(context.Background(), "coffee"); err == nil {
		t.Fatal("expected error on non-200 upstream")
	}
}

func TestAssessEmptyReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	if _, err := c.Assess(context.Background(), "coffee"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}
