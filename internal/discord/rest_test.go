package discord

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendEmbed_PostsBotAuthorizedPayload(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/123/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewRestClientWithBaseURL("secret-token", srv.URL, testLogger())
	err := client.SendEmbed(context.Background(), "123", Embed{
		Description: "hello",
		Image:       &EmbedImage{URL: "https://img.example/x.png"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bot secret-token" {
		t.Errorf("expected bot authorization header, got %q", gotAuth)
	}
	embeds, ok := gotBody["embeds"].([]interface{})
	if !ok || len(embeds) != 1 {
		t.Fatalf("expected one embed, got %v", gotBody)
	}
}

func TestSendText_RetriesOnRateLimit(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewRestClientWithBaseURL("secret-token", srv.URL, testLogger())
	if err := client.SendText(context.Background(), "123", "hi"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestSendText_DoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewRestClientWithBaseURL("secret-token", srv.URL, testLogger())
	if err := client.SendText(context.Background(), "123", "hi"); err == nil {
		t.Fatal("expected error on 403")
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}
