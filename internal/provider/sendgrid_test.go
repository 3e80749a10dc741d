package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
)

func newTestSendGridProvider(t *testing.T, serverURL string) *SendGridProvider {
	t.Helper()

	p, err := NewSendGridProvider(SendGridConfig{
		BaseURL:   serverURL,
		APIKey:    "SG.test",
		FromEmail: "mike@example.com",
		FromName:  "Mike",
	})
	if err != nil {
		t.Fatalf("NewSendGridProvider() error = %v", err)
	}
	return p
}

func testMessage() Message {
	return Message{
		To:      "jane@example.com",
		Subject: "Quick question, Jane",
		HTML:    "<p>Hi Jane,</p>",
		Text:    "Hi Jane,",
		CustomArgs: map[string]string{
			"queue_id":   "q-1",
			"project_id": "",
		},
	}
}

func TestSendGridProviderSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody sendGridMailPayload
	var gotAuth, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("X-Message-Id", "sg-msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	p := newTestSendGridProvider(t, server.URL)

	resp, err := p.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("StatusCode = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	if resp.MessageID != "sg-msg-1" {
		t.Fatalf("MessageID = %q, want sg-msg-1", resp.MessageID)
	}

	if gotPath != mailSendPath {
		t.Fatalf("path = %q, want %q", gotPath, mailSendPath)
	}
	if gotAuth != "Bearer SG.test" {
		t.Fatalf("Authorization = %q, want bearer token", gotAuth)
	}
	if len(gotBody.Personalizations) != 1 || gotBody.Personalizations[0].To[0].Email != "jane@example.com" {
		t.Fatalf("personalizations = %+v", gotBody.Personalizations)
	}
	if gotBody.From.Email != "mike@example.com" || gotBody.From.Name != "Mike" {
		t.Fatalf("from = %+v", gotBody.From)
	}
	if gotBody.Subject != "Quick question, Jane" {
		t.Fatalf("subject = %q", gotBody.Subject)
	}
	if len(gotBody.Content) != 2 || gotBody.Content[0].Type != "text/plain" || gotBody.Content[1].Type != "text/html" {
		t.Fatalf("content = %+v, want text/plain then text/html", gotBody.Content)
	}
	if gotBody.CustomArgs["queue_id"] != "q-1" {
		t.Fatalf("custom_args = %+v", gotBody.CustomArgs)
	}
	if _, ok := gotBody.CustomArgs["project_id"]; ok {
		t.Fatal("empty custom args should be dropped")
	}
}

func TestSendGridProviderSendStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		body          string
		wantTransient bool
		wantMessage   string
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, body: `{"errors":[{"message":"invalid from"}]}`, wantMessage: "invalid from"},
		{name: "forbidden is permanent", statusCode: http.StatusForbidden, body: "blocked"},
		{name: "server error is transient", statusCode: http.StatusServiceUnavailable, wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			p := newTestSendGridProvider(t, server.URL)

			_, err := p.Send(context.Background(), testMessage())
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}

			var providerErr *ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected ProviderError, got %T", err)
			}
			if providerErr.StatusCode != tc.statusCode {
				t.Fatalf("StatusCode = %d, want %d", providerErr.StatusCode, tc.statusCode)
			}
			if tc.wantMessage != "" && !strings.Contains(ErrorMessage(err), tc.wantMessage) {
				t.Fatalf("ErrorMessage() = %q, want it to contain %q", ErrorMessage(err), tc.wantMessage)
			}
		})
	}
}

func TestSendGridProviderSendTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewSendGridClient(server.URL, "SG.test", 30*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSendGridClient() error = %v", err)
	}
	p, err := NewSendGridProviderWithClient(SendGridConfig{FromEmail: "mike@example.com"}, client, nil)
	if err != nil {
		t.Fatalf("NewSendGridProviderWithClient() error = %v", err)
	}

	_, err = p.Send(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestSendGridProviderCircuitOpens(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewSendGridClient(server.URL, "SG.test", time.Second)
	if err != nil {
		t.Fatalf("NewSendGridClient() error = %v", err)
	}
	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:    "test",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})
	p, err := NewSendGridProviderWithClient(SendGridConfig{FromEmail: "mike@example.com"}, client, breaker)
	if err != nil {
		t.Fatalf("NewSendGridProviderWithClient() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := p.Send(context.Background(), testMessage()); err == nil {
			t.Fatalf("send %d: expected error", i)
		}
	}

	_, err = p.Send(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected circuit open error")
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("error = %v, want gobreaker.ErrOpenState", err)
	}
	if !IsTransient(err) {
		t.Fatal("open circuit should be transient")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("upstream calls = %d, want 2", got)
	}
}

func TestSendGridProviderRequiresRecipient(t *testing.T) {
	t.Parallel()

	p := newTestSendGridProvider(t, "http://127.0.0.1:1")
	msg := testMessage()
	msg.To = "  "

	if _, err := p.Send(context.Background(), msg); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

func TestNewSendGridClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewSendGridClient("::bad", "key", 0); err == nil {
		t.Fatal("expected error for invalid base url")
	}
	if _, err := NewSendGridClient("https://api.sendgrid.com", " ", 0); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewSendGridProviderWithClient(SendGridConfig{}, resty.New(), nil); err == nil {
		t.Fatal("expected error for missing sender")
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	if got := ErrorMessage(nil); got != "" {
		t.Fatalf("ErrorMessage(nil) = %q", got)
	}
	if got := ErrorMessage(&ProviderError{StatusCode: 400, Message: " bad "}); got != "status 400: bad" {
		t.Fatalf("ErrorMessage() = %q", got)
	}
	if got := ErrorMessage(errors.New("boom")); got != "boom" {
		t.Fatalf("ErrorMessage() = %q", got)
	}
}
