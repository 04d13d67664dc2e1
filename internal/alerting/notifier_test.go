package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTelegramBroadcastSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Broadcast(context.Background(), "[RUG] Validator vote-a"); err != nil {
		t.Fatalf("Telegram Broadcast 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if received["text"] == "" {
		t.Fatalf("text 应非空")
	}
}

func TestTelegramBroadcastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Broadcast(context.Background(), "text"); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestHTTPMailerSend(t *testing.T) {
	var received mailRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mailer := NewHTTPMailer(MailerOptions{
		BaseURL: srv.URL,
		APIKey:  "secret",
		From:    "alerts@example.com",
		Timeout: time.Second,
	}, testLogger())

	err := mailer.Send(context.Background(), []string{"a@example.com", "b@example.com"}, "subject", "body")
	if err != nil {
		t.Fatalf("Send 应成功: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("Authorization 不正确: %q", auth)
	}
	if received.From != "alerts@example.com" || len(received.To) != 2 || received.Subject != "subject" {
		t.Fatalf("请求体不正确: %+v", received)
	}
}

func TestHTTPMailerNoRecipients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("空收件人不应发起请求")
	}))
	defer srv.Close()

	mailer := NewHTTPMailer(MailerOptions{BaseURL: srv.URL, From: "alerts@example.com"}, testLogger())
	if err := mailer.Send(context.Background(), nil, "subject", "body"); err != nil {
		t.Fatalf("空收件人应为 no-op: %v", err)
	}
}

func TestHTTPMailerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`invalid recipient`))
	}))
	defer srv.Close()

	mailer := NewHTTPMailer(MailerOptions{BaseURL: srv.URL, From: "alerts@example.com"}, testLogger())
	err := mailer.Send(context.Background(), []string{"a@example.com"}, "subject", "body")
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("应返回包含状态码的错误, 实际 %v", err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
