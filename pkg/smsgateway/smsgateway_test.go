package smsgateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSend(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, Token: "secret", From: "+15550001111"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if err := client.Send(context.Background(), "+15552223333", "Your verification code is 1234."); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody.To != "+15552223333" || gotBody.From != "+15550001111" {
		t.Fatalf("payload = %+v", gotBody)
	}
}

func TestSendGatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if err := client.Send(context.Background(), "+15552223333", "hi"); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestSendRequiresRecipient(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{URL: "http://localhost:9", Token: "secret"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if err := client.Send(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewClient(Config{URL: "::bad::"}); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
