package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"negociaai/backend/internal/domain"
)

func TestAgreementCreatedSendsBearerToken(t *testing.T) {
	var gotAuth string
	var gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var payload struct {
			Event string `json:"event"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotEvent = payload.Event
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(2 * time.Second)
	cfg := domain.WebhookConfig{URL: srv.URL, Token: "s3cret", OnAgreementCreated: true}
	if err := n.AgreementCreated(context.Background(), cfg, domain.Agreement{ID: "acordo-1"}); err != nil {
		t.Fatalf("AgreementCreated failed: %v", err)
	}
	if gotAuth != "Bearer s3cret" {
		t.Fatalf("expected bearer token header, got %q", gotAuth)
	}
	if gotEvent != "agreement_created" {
		t.Fatalf("expected agreement_created event, got %q", gotEvent)
	}
}

func TestAgreementCreatedSkipsWhenDisabled(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := NewNotifier(2 * time.Second)
	cfg := domain.WebhookConfig{URL: srv.URL, OnAgreementCreated: false}
	if err := n.AgreementCreated(context.Background(), cfg, domain.Agreement{ID: "acordo-1"}); err != nil {
		t.Fatalf("AgreementCreated failed: %v", err)
	}
	if called {
		t.Fatal("expected no delivery when event is disabled")
	}
}

func TestTestReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewNotifier(2 * time.Second)
	resp := n.Test(context.Background(), srv.URL, "")
	if resp.Success {
		t.Fatal("expected failure on 401 response")
	}
	if resp.Status != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Status)
	}
}
