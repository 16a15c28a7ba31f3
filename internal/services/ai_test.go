package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teleiosites/shepherd-backend/internal/models"
)

func TestGenerateCustomProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"  Thinking of you, Ada! 🙏 - Pastor  "}}]}`))
	}))
	defer server.Close()

	org := &models.Organization{
		Name:       "Grace Chapel",
		AIProvider: "custom",
		AIAPIKey:   "test-key",
		AIBaseURL:  server.URL,
	}

	svc := NewAIService()
	got := svc.Generate(org, GenerateParams{ContactName: "Ada", ContactCategory: "First Timer"})
	if got != "Thinking of you, Ada! 🙏 - Pastor" {
		t.Fatalf("Generate = %q", got)
	}
}

func TestGenerateFallsBackWithoutKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	org := &models.Organization{Name: "Grace Chapel"}
	svc := NewAIService()

	got := svc.Generate(org, GenerateParams{ContactName: "Ada"})
	want := FallbackGreeting("Ada", "Pastor")
	if got != want {
		t.Fatalf("Generate = %q, want fallback %q", got, want)
	}
}

func TestGenerateFallsBackOnProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	org := &models.Organization{
		Name:       "Grace Chapel",
		AIProvider: "custom",
		AIAPIKey:   "test-key",
		AIBaseURL:  server.URL,
	}

	svc := NewAIService()
	got := svc.Generate(org, GenerateParams{ContactName: "Ada", SenderName: "Deacon Bob"})
	if got != FallbackGreeting("Ada", "Deacon Bob") {
		t.Fatalf("Generate = %q, want fallback", got)
	}
}
