package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"deckcast/internal/task"
)

const (
	apiPrefix             = "/api/v1"
	headerRequestID       = "X-Request-Id"
	defaultRequestTimeout = 15 * time.Second
	defaultUploadTimeout  = 10 * time.Minute
)

// SubmitRequest describes a document upload. Empty language fields are
// omitted from the request so the backend applies its own defaults.
type SubmitRequest struct {
	Path               string
	SourceType         task.SourceType
	TaskType           task.TaskType
	VoiceLanguage      string
	SubtitleLanguage   string
	TranscriptLanguage string
	VideoResolution    string
	GenerateAvatar     bool
	GenerateSubtitles  bool
}

// SubmitResponse carries the identifiers minted by the backend for an upload.
// TaskID may be empty when registration is still pending server-side.
type SubmitResponse struct {
	FileID string `json:"file_id"`
	TaskID string `json:"task_id"`
}

// TaskRef is a search result entry: a task the backend knows for a file.
type TaskRef struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	TaskType  string `json:"task_type"`
	Filename  string `json:"filename"`
	CreatedAt string `json:"created_at"`
}

type searchResponse struct {
	Tasks []TaskRef `json:"tasks"`
}

// Service defines the backend operations the session orchestrator needs.
type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
	Status(ctx context.Context, taskID string) (*task.StatusSnapshot, error)
	Search(ctx context.Context, fileID string) ([]TaskRef, error)
	Cancel(ctx context.Context, taskID string) error
}

// Client talks to the generation backend over HTTP.
type Client struct {
	baseURL      string
	apiToken     string
	httpClient   *http.Client
	uploadClient *http.Client
	logger       *slog.Logger
}

var _ Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the client used for status, search, and cancel.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithUploadClient overrides the client used for submissions, which need a
// longer timeout than status polls.
func WithUploadClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.uploadClient = client
		}
	}
}

// WithLogger attaches a logger for request-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAPIToken sets a bearer token attached to every request.
func WithAPIToken(token string) Option {
	return func(c *Client) {
		c.apiToken = strings.TrimSpace(token)
	}
}

// New creates a backend client.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("pipeline base url required")
	}
	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: defaultRequestTimeout},
		uploadClient: &http.Client{Timeout: defaultUploadTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Submit uploads a document and returns the identifiers the backend minted.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return nil, Wrap(ErrValidation, "pipeline", "submit", "empty file path", nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, Wrap(ErrValidation, "pipeline", "submit", "open document", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := []struct {
		name  string
		value string
	}{
		{"source_type", string(req.SourceType)},
		{"task_type", string(req.TaskType)},
		{"voice_language", strings.TrimSpace(req.VoiceLanguage)},
		{"subtitle_language", strings.TrimSpace(req.SubtitleLanguage)},
		{"transcript_language", strings.TrimSpace(req.TranscriptLanguage)},
		{"video_resolution", strings.TrimSpace(req.VideoResolution)},
		{"generate_avatar", strconv.FormatBool(req.GenerateAvatar)},
		{"generate_subtitles", strconv.FormatBool(req.GenerateSubtitles)},
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, Wrap(ErrProtocol, "pipeline", "submit", "write "+field.name+" field", err)
		}
	}

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, Wrap(ErrProtocol, "pipeline", "submit", "create file field", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, Wrap(ErrValidation, "pipeline", "submit", "read document", err)
	}
	if err := writer.Close(); err != nil {
		return nil, Wrap(ErrProtocol, "pipeline", "submit", "close multipart writer", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+"/tasks", body)
	if err != nil {
		return nil, Wrap(ErrProtocol, "pipeline", "submit", "build request", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(ctx, c.uploadClient, request, "submit")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if marker := classifyStatus(resp.StatusCode); marker != nil {
		return nil, c.responseError(marker, "submit", resp)
	}

	var payload SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, Wrap(ErrProtocol, "pipeline", "submit", "decode response", err)
	}
	if strings.TrimSpace(payload.FileID) == "" {
		return nil, Wrap(ErrProtocol, "pipeline", "submit", "response missing file_id", nil)
	}
	return &payload, nil
}

// Status fetches the full status payload for a task.
func (c *Client) Status(ctx context.Context, taskID string) (*task.StatusSnapshot, error) {
	taskID = strings.TrimSpace(taskID)
	if !task.UsableID(taskID) {
		return nil, Wrap(ErrValidation, "pipeline", "status", "unusable task id", nil)
	}

	endpoint := fmt.Sprintf("%s%s/tasks/%s/status", c.baseURL, apiPrefix, url.PathEscape(taskID))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, Wrap(ErrProtocol, "pipeline", "status", "build request", err)
	}

	resp, err := c.do(ctx, c.httpClient, request, "status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if marker := classifyStatus(resp.StatusCode); marker != nil {
		return nil, c.responseError(marker, "status", resp)
	}

	var payload task.StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, Wrap(ErrProtocol, "pipeline", "status", "decode response", err)
	}
	return &payload, nil
}

// Search lists the tasks the backend has registered for an upload identifier.
// A backend that has not registered any yet responds 404, surfaced as
// ErrNotFound; an empty list is returned as such.
func (c *Client) Search(ctx context.Context, fileID string) ([]TaskRef, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, Wrap(ErrValidation, "pipeline", "search", "empty file id", nil)
	}

	endpoint, err := url.Parse(c.baseURL + apiPrefix + "/tasks/search")
	if err != nil {
		return nil, Wrap(ErrProtocol, "pipeline", "search", "parse url", err)
	}
	params := url.Values{}
	params.Set("file_id", fileID)
	endpoint.RawQuery = params.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, Wrap(ErrProtocol, "pipeline", "search", "build request", err)
	}

	resp, err := c.do(ctx, c.httpClient, request, "search")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if marker := classifyStatus(resp.StatusCode); marker != nil {
		return nil, c.responseError(marker, "search", resp)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, Wrap(ErrProtocol, "pipeline", "search", "decode response", err)
	}
	return payload.Tasks, nil
}

// Cancel asks the backend to stop a task. Terminal tasks cancel cleanly on
// the backend side, so any 2xx is success.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	taskID = strings.TrimSpace(taskID)
	if !task.UsableID(taskID) {
		return Wrap(ErrValidation, "pipeline", "cancel", "unusable task id", nil)
	}

	endpoint := fmt.Sprintf("%s%s/tasks/%s/cancel", c.baseURL, apiPrefix, url.PathEscape(taskID))
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Wrap(ErrProtocol, "pipeline", "cancel", "build request", err)
	}

	resp, err := c.do(ctx, c.httpClient, request, "cancel")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if marker := classifyStatus(resp.StatusCode); marker != nil {
		return c.responseError(marker, "cancel", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// do executes a request with a correlation identifier and debug logging.
// Transport failures are classified as timeouts or backend unavailability.
func (c *Client) do(ctx context.Context, client *http.Client, request *http.Request, operation string) (*http.Response, error) {
	rid, ok := RequestIDFromContext(ctx)
	if !ok {
		rid = uuid.NewString()
	}
	request.Header.Set(headerRequestID, rid)
	if c.apiToken != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	start := time.Now()
	resp, err := client.Do(request)
	latency := time.Since(start)
	if err != nil {
		marker := ErrUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			marker = ErrTimeout
		}
		return nil, Wrap(marker, "pipeline", operation, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	if c.logger != nil {
		c.logger.Debug("pipeline request",
			slog.String("operation", operation),
			slog.Int("status", resp.StatusCode),
			slog.Duration("latency", latency),
			slog.String("correlation_id", rid),
		)
	}
	return resp, nil
}

func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound, status == http.StatusGone:
		return ErrNotFound
	case status >= 500:
		return ErrUnavailable
	default:
		return ErrRejected
	}
}

func (c *Client) responseError(marker error, operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return Wrap(marker, "pipeline", operation, fmt.Sprintf("backend returned %d: %s", resp.StatusCode, detail), nil)
}
