package email_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"drugscreen/internal/config"
	"drugscreen/internal/email"
	"drugscreen/internal/services"
	"drugscreen/internal/testsupport"
)

func TestHTTPTransportPostsJSON(t *testing.T) {
	var (
		gotAuth string
		gotPath string
		gotBody map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer server.Close()

	transport := email.NewHTTPTransport(server.URL+"/", "re_secret", server.Client())
	err := transport.Send(context.Background(), email.Message{
		From:        "results@clinic.example",
		To:          "client@example.com",
		Subject:     "Your screening results",
		HTML:        "<p>hello</p>",
		Attachments: []email.Attachment{{Filename: "screen.pdf", ContentType: "application/pdf", Content: []byte("pdf")}},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotPath != "/emails" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer re_secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	to, _ := gotBody["to"].([]any)
	if len(to) != 1 || to[0] != "client@example.com" {
		t.Fatalf("unexpected to field: %v", gotBody["to"])
	}
	attachments, _ := gotBody["attachments"].([]any)
	if len(attachments) != 1 {
		t.Fatalf("expected one attachment, got %v", gotBody["attachments"])
	}
	first, _ := attachments[0].(map[string]any)
	if first["content"] != base64.StdEncoding.EncodeToString([]byte("pdf")) {
		t.Fatalf("expected base64 content, got %v", first["content"])
	}
}

func TestHTTPTransportReportsStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid from address", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	transport := email.NewHTTPTransport(server.URL, "key", server.Client())
	err := transport.Send(context.Background(), email.Message{To: "a@example.com"})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestHTTPTransportRequiresRecipient(t *testing.T) {
	transport := email.NewHTTPTransport("http://127.0.0.1:1", "", nil)
	if err := transport.Send(context.Background(), email.Message{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLogTransportRecordsMessage(t *testing.T) {
	rec, logger := testsupport.NewLogRecorder()
	transport := email.NewLogTransport(logger)
	if err := transport.Send(context.Background(), email.Message{To: "a@example.com", Subject: "s"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	entries := rec.Find("email not sent (log transport)")
	if len(entries) != 1 || entries[0].Attrs["to"] != "a@example.com" {
		t.Fatalf("unexpected log entries: %+v", rec.Entries())
	}
}

func TestNewSelectsTransport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport, err := email.New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := transport.(*email.LogTransport); !ok {
		t.Fatalf("expected log transport, got %T", transport)
	}
	cfg.Email.Transport = config.EmailTransportHTTP
	if transport, err = email.New(cfg, nil); err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := transport.(*email.HTTPTransport); !ok {
		t.Fatalf("expected http transport, got %T", transport)
	}
	cfg.Email.Transport = "smtp"
	if _, err := email.New(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
