// Package backend wraps the MedAI HTTP API consumed by the chat and
// dashboard surfaces. The client normalizes every response into either a
// decoded payload or an error; it never retries. Retry policy, if any,
// belongs to the caller.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/medgrove/medai-web-ui/internal/models"
)

// HTTPError is a non-2xx response from the backend. Message carries the
// server-provided error text when the body had one, otherwise a generic
// status-code message.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Client talks JSON to the MedAI backend. All methods attach standard
// headers and surface failures as either a wrapped transport error or an
// *HTTPError.
type Client struct {
	baseURL string
	apiKey  string

	client *http.Client

	logger *slog.Logger
}

// NewClient creates a backend client for the given base URL. An empty apiKey
// omits the Authorization header.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With(slog.String("module", "backend")),
	}
}

// Chat submits one user message and returns the normalized exchange result.
// A 2xx response carrying an "error" field is returned as a reply with Err
// set, not as a Go error; the controller decides how to surface it.
func (c *Client) Chat(ctx context.Context, req models.ChatRequest) (models.ChatReply, error) {
	var reply models.ChatReply
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat", req, &reply); err != nil {
		return models.ChatReply{}, err
	}
	return reply, nil
}

// HistoryQuery narrows a history page fetch. Zero values mean no narrowing.
type HistoryQuery struct {
	Search string
	Filter string
}

type historyResponse struct {
	History     []models.HistoryRecord `json:"history"`
	CurrentPage int                    `json:"current_page"`
	TotalPages  int                    `json:"total_pages"`
}

// History fetches one page of persisted conversations. Pages are 1-indexed;
// the backend answers a page past the end with an empty history list, which
// is a success, not an error.
func (c *Client) History(ctx context.Context, page int, q HistoryQuery) (models.HistoryPage, error) {
	vals := url.Values{}
	vals.Set("page", strconv.Itoa(page))
	if q.Search != "" {
		vals.Set("search", q.Search)
	}
	if q.Filter != "" && q.Filter != "all" {
		vals.Set("filter", q.Filter)
	}

	var res historyResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/history?"+vals.Encode(), nil, &res); err != nil {
		return models.HistoryPage{}, err
	}

	return models.HistoryPage{
		Records:     res.History,
		CurrentPage: res.CurrentPage,
		TotalPages:  res.TotalPages,
	}, nil
}

type conversationResponse struct {
	Success      bool                `json:"success"`
	Conversation models.Conversation `json:"conversation"`
	Err          string              `json:"error"`
}

// Conversation fetches the detail view of a single history record.
func (c *Client) Conversation(ctx context.Context, id int64) (models.Conversation, error) {
	var res conversationResponse
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/history/%d", id), nil, &res); err != nil {
		return models.Conversation{}, err
	}
	if !res.Success {
		msg := res.Err
		if msg == "" {
			msg = "conversation not found"
		}
		return models.Conversation{}, fmt.Errorf("fetching conversation %d: %s", id, msg)
	}
	return res.Conversation, nil
}

// DeleteHistory removes one record server-side and returns the confirmation
// message from the backend.
func (c *Client) DeleteHistory(ctx context.Context, id int64) (string, error) {
	var res struct {
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/delete_history/%d", id), nil, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// DownloadHistory streams the CSV export. The caller owns the returned body
// and must close it.
func (c *Client) DownloadHistory(ctx context.Context) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/download_history", nil, "")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// StatsPayload is the /api/dashboard/stats response.
type StatsPayload struct {
	Success bool `json:"success"`
	Stats   struct {
		TotalChats       int     `json:"total_chats"`
		AvgConfidence    float64 `json:"avg_confidence"`
		MostCommonIntent string  `json:"most_common_intent"`
		LastActive       string  `json:"last_active"`
	} `json:"stats"`
	Activity []ActivityDay `json:"activity"`
}

// ActivityDay is one day of chat volume in the activity series.
type ActivityDay struct {
	Date  string `json:"date"`
	Chats int    `json:"chats"`
}

// DashboardStats fetches the dedicated summary endpoint.
func (c *Client) DashboardStats(ctx context.Context) (StatsPayload, error) {
	var res StatsPayload
	if err := c.doJSON(ctx, http.MethodGet, "/api/dashboard/stats", nil, &res); err != nil {
		return StatsPayload{}, err
	}
	return res, nil
}

// AnalyticsPayload is the /api/analytics response, used as a fallback source
// for the dashboard summary.
type AnalyticsPayload struct {
	Success bool `json:"success"`
	Summary struct {
		TotalChats       int     `json:"total_chats"`
		AvgConfidence    float64 `json:"avg_confidence"`
		MostCommonIntent string  `json:"most_common_intent"`
	} `json:"summary"`
	DailyStats []DailyStat `json:"daily_stats"`
}

// DailyStat is one day of the analytics series with its intent breakdown.
type DailyStat struct {
	Date    string         `json:"date"`
	Chats   int            `json:"chats"`
	Intents map[string]int `json:"intents"`
}

// Analytics fetches the general analytics payload.
func (c *Client) Analytics(ctx context.Context) (AnalyticsPayload, error) {
	var res AnalyticsPayload
	if err := c.doJSON(ctx, http.MethodGet, "/api/analytics", nil, &res); err != nil {
		return AnalyticsPayload{}, err
	}
	return res, nil
}

// UploadFile attaches a file to the conversation via the multipart upload
// endpoint. The backend's response body is returned raw; callers only care
// whether the upload succeeded.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader, userID string) (json.RawMessage, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("copying file content: %w", err)
	}
	if err := mw.WriteField("user_id", userID); err != nil {
		return nil, fmt.Errorf("writing user_id field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/upload_file", &body, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upload response: %w", err)
	}
	return raw, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		c.logger.Debug("Request body", slog.String("path", path), slog.String("body", string(jsonBody)))
		body = bytes.NewReader(jsonBody)
		contentType = "application/json"
	}

	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// do issues the request and maps non-2xx statuses to *HTTPError, preferring
// the server's {error} body over a generic status message.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()

		msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		var errBody struct {
			Err string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil && errBody.Err != "" {
			msg = errBody.Err
		}

		c.logger.Debug("Backend error",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("message", msg))

		return nil, &HTTPError{Status: resp.StatusCode, Message: msg}
	}

	return resp, nil
}
