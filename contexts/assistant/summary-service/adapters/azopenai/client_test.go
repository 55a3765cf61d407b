package azopenai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "test-key", "gpt-4o-mini", &azopenai.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: server.Client(),
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientSendsSystemAndUserPrompt(t *testing.T) {
	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature float64 `json:"temperature"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/deployments/gpt-4o-mini/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("expected api-key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","created":1,"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" A summary. "}}]}`))
	})

	summary, err := client.Summarize(context.Background(), "long text")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != "A summary." {
		t.Fatalf("unexpected summary %q", summary)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", body.Messages)
	}
	if body.Messages[0].Content != systemPrompt {
		t.Fatalf("unexpected system prompt %q", body.Messages[0].Content)
	}
	if body.Messages[1].Content != "Summarize the following text:\n\nlong text" {
		t.Fatalf("unexpected user prompt %q", body.Messages[1].Content)
	}
	if body.Temperature < 0.29 || body.Temperature > 0.31 {
		t.Fatalf("expected temperature 0.3, got %v", body.Temperature)
	}
}

func TestClientWithoutChoicesFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","created":1,"choices":[]}`))
	})
	if _, err := client.Summarize(context.Background(), "text"); err == nil {
		t.Fatalf("expected error when no choices are returned")
	}
}

func TestNewClientRequiresSettings(t *testing.T) {
	if _, err := NewClient("", "key", "deployment", nil); err == nil {
		t.Fatalf("expected missing endpoint to fail")
	}
}
