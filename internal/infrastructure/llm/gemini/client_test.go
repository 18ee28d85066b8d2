package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
)

func TestNewGeneratorRequiresKeyAndModel(t *testing.T) {
	if _, err := NewGenerator(Options{Model: "gemini-2.0-flash"}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := NewGenerator(Options{APIKey: "k"}); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestGenerateReturnsFirstCandidateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.0-flash:generateContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" {\"items\":[]} "}]}}]}`))
	}))
	defer server.Close()

	gen, err := NewGenerator(Options{BaseURL: server.URL, APIKey: "secret", Model: "gemini-2.0-flash"})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	out, err := gen.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"items":[]}` {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGenerateMapsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	gen, err := NewGenerator(Options{BaseURL: server.URL, APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	_, err = gen.Generate(context.Background(), "prompt")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected body in error, got %v", err)
	}
}

func TestGenerateRejectsEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	gen, _ := NewGenerator(Options{BaseURL: server.URL, APIKey: "k", Model: "m"})
	if _, err := gen.Generate(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error for empty candidates")
	}
}
