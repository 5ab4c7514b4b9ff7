package backend_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medgrove/medai-web-ui/internal/backend"
	"github.com/medgrove/medai-web-ui/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		w.Write([]byte(`{"response":"Try oats with fruit.","confidence":0.92,"intent":"nutrition"}`))
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, "", discardLogger())

	reply, err := client.Chat(context.Background(), models.ChatRequest{
		Message:   "What should I eat for breakfast?",
		SessionID: "medai-test",
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply.Response != "Try oats with fruit." {
		t.Errorf("Response = %q", reply.Response)
	}
	if reply.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", reply.Confidence)
	}
}

func TestChatServerErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"model is warming up"}`))
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, "", discardLogger())

	_, err := client.Chat(context.Background(), models.ChatRequest{Message: "hello there"})
	var httpErr *backend.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.Status != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", httpErr.Status)
	}
	if httpErr.Message != "model is warming up" {
		t.Errorf("Message = %q, want server-provided message", httpErr.Message)
	}
}

func TestChatGenericStatusMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, "", discardLogger())

	_, err := client.Chat(context.Background(), models.ChatRequest{Message: "hello there"})
	var httpErr *backend.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.Message != "HTTP 500: Internal Server Error" {
		t.Errorf("Message = %q, want generic status message", httpErr.Message)
	}
}

func TestChatNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := backend.NewClient(srv.URL, "", discardLogger())

	_, err := client.Chat(context.Background(), models.ChatRequest{Message: "hello there"})
	if err == nil {
		t.Fatal("Chat() should fail when the backend is unreachable")
	}
	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		t.Errorf("network failure should not be an *HTTPError, got %v", err)
	}
}

func TestHistoryQueryEncoding(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"history":[{"id":7,"user_query":"q","bot_response":"a","intent":"general","confidence":0.5,"timestamp":"2026-08-01T10:00:00"}],"current_page":2,"total_pages":3}`))
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, "", discardLogger())

	page, err := client.History(context.Background(), 2, backend.HistoryQuery{Search: "flu shot", Filter: "all"})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if gotQuery != "page=2&search=flu+shot" {
		t.Errorf("query = %q, want page and search only (filter 'all' omitted)", gotQuery)
	}
	if page.CurrentPage != 2 || page.TotalPages != 3 || len(page.Records) != 1 {
		t.Errorf("page = %+v", page)
	}
	if page.Records[0].ID != 7 {
		t.Errorf("record id = %d, want 7", page.Records[0].ID)
	}
}

func TestDeleteHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/delete_history/42" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"message":"Record deleted"}`))
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, "", discardLogger())

	msg, err := client.DeleteHistory(context.Background(), 42)
	if err != nil {
		t.Fatalf("DeleteHistory() error = %v", err)
	}
	if msg != "Record deleted" {
		t.Errorf("message = %q", msg)
	}
}

func TestDownloadHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("id,user_query\n1,hello\n"))
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, "", discardLogger())

	body, err := client.DownloadHistory(context.Background())
	if err != nil {
		t.Fatalf("DownloadHistory() error = %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(data) != "id,user_query\n1,hello\n" {
		t.Errorf("body = %q", data)
	}
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"success":true,"stats":{"total_chats":3,"avg_confidence":0.8,"most_common_intent":"nutrition","last_active":"Just now"}}`))
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, "secret-key", discardLogger())

	payload, err := client.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("DashboardStats() error = %v", err)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !payload.Success || payload.Stats.TotalChats != 3 {
		t.Errorf("payload = %+v", payload)
	}
}
