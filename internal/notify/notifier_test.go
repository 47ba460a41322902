package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingSender struct {
	name  string
	err   error
	calls int
	title string
	msg   string
}

func (s *recordingSender) Send(_ context.Context, title, message string) error {
	s.calls++
	s.title = title
	s.msg = message
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestNotifyFiltersEvents(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{"deposit"}, discardLogger())

	if err := n.Notify(context.Background(), "refresh_fallback", "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sender.calls != 0 {
		t.Errorf("filtered event was delivered %d times", sender.calls)
	}

	if err := n.Notify(context.Background(), "deposit", "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sender.calls != 1 {
		t.Errorf("allowed event delivered %d times, want 1", sender.calls)
	}
}

func TestNotifyEmptyFilterAllowsEverything(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, discardLogger())

	if err := n.Notify(context.Background(), "anything", "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sender.calls != 1 {
		t.Errorf("calls = %d, want 1", sender.calls)
	}
}

func TestNotifyAllBypassesFilter(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{"deposit"}, discardLogger())

	if err := n.NotifyAll(context.Background(), "t", "m"); err != nil {
		t.Fatalf("NotifyAll: %v", err)
	}
	if sender.calls != 1 {
		t.Errorf("calls = %d, want 1", sender.calls)
	}
}

func TestDispatchContinuesPastFailingSender(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	if err == nil {
		t.Fatal("expected combined error")
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Errorf("error %q does not name the failing sender", err.Error())
	}
	if good.calls != 1 {
		t.Errorf("healthy sender calls = %d, want 1", good.calls)
	}
}

func TestNotifierNoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, discardLogger())
	if err := n.NotifyAll(context.Background(), "t", "m"); err != nil {
		t.Fatalf("NotifyAll with no senders: %v", err)
	}
}

func TestTelegramSenderPayload(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("bot-token", "chat-1")
	s.baseURL = srv.URL

	if err := s.Send(context.Background(), "Deposit", "75.00 USDC received"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/botbot-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPayload["chat_id"] != "chat-1" {
		t.Errorf("chat_id = %q, want chat-1", gotPayload["chat_id"])
	}
	if !strings.Contains(gotPayload["text"], "*Deposit*") {
		t.Errorf("text = %q, want bold title", gotPayload["text"])
	}
	if gotPayload["parse_mode"] != "Markdown" {
		t.Errorf("parse_mode = %q, want Markdown", gotPayload["parse_mode"])
	}
}

func TestTelegramSenderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "chat")
	s.baseURL = srv.URL
	if err := s.Send(context.Background(), "t", "m"); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestDiscordSenderPayload(t *testing.T) {
	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	if err := s.Send(context.Background(), "Alert", "details"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(gotPayload["content"], "**Alert**") {
		t.Errorf("content = %q, want bold title", gotPayload["content"])
	}
}
