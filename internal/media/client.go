package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"deckcast/internal/pipeline"
)

const (
	mediaPrefix         = "/media"
	defaultProbeTimeout = 10 * time.Second
	defaultProbeRate    = 4
	defaultProbeBurst   = 8
)

// Kind names a finished artifact type.
type Kind string

const (
	KindVideo     Kind = "video"
	KindPodcast   Kind = "podcast"
	KindSubtitles Kind = "subtitles"
)

// ParseKind interprets a user-supplied artifact name.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "video":
		return KindVideo, true
	case "podcast", "audio":
		return KindPodcast, true
	case "subtitles", "subtitle":
		return KindSubtitles, true
	default:
		return "", false
	}
}

// Filename returns the artifact file name the backend serves for the kind.
func (k Kind) Filename() string {
	switch k {
	case KindVideo:
		return "video.mp4"
	case KindPodcast:
		return "podcast.mp3"
	case KindSubtitles:
		return "subtitles.vtt"
	default:
		return ""
	}
}

// Prober answers whether finished artifacts exist and warms caches for them.
// Forget drops whatever the prober remembers for a task; a reset session must
// re-probe rather than trust answers from a finished run.
type Prober interface {
	VideoExists(ctx context.Context, taskID string) (bool, error)
	Prefetch(ctx context.Context, taskID string)
	Forget(taskID string)
}

// Client probes and fetches finished artifacts from the media host.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	mu         sync.Mutex
	videoReady map[string]bool
	prefetched map[string]struct{}
}

var _ Prober = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for probes and downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimit bounds probe and prefetch request throughput.
func WithRateLimit(perSecond, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithLogger attaches a logger for probe and prefetch outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a media client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("media base url required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultProbeTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultProbeRate), defaultProbeBurst),
		videoReady: make(map[string]bool),
		prefetched: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ArtifactURL returns the address the backend serves an artifact from.
func (c *Client) ArtifactURL(taskID string, kind Kind) string {
	return fmt.Sprintf("%s%s/%s/%s", c.baseURL, mediaPrefix, url.PathEscape(taskID), kind.Filename())
}

// VideoExists reports whether the finished video artifact is present. The
// answer is cached per task ID; a 404 is a normal outcome and caches as
// absent, while transport errors leave the cache unset so a later probe
// retries.
func (c *Client) VideoExists(ctx context.Context, taskID string) (bool, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return false, pipeline.Wrap(pipeline.ErrValidation, "media", "probe", "empty task id", nil)
	}

	c.mu.Lock()
	if exists, known := c.videoReady[taskID]; known {
		c.mu.Unlock()
		return exists, nil
	}
	c.mu.Unlock()

	exists, err := c.probe(ctx, c.ArtifactURL(taskID, KindVideo))
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.videoReady[taskID] = exists
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Debug("video probe",
			slog.String("task_id", taskID),
			slog.Bool("exists", exists))
	}
	return exists, nil
}

// probe issues a presence-only request. Some static hosts reject HEAD, so a
// 405/501 answer retries once as a ranged GET.
func (c *Client) probe(ctx context.Context, target string) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, pipeline.Wrap(pipeline.ErrUnavailable, "media", "probe", "rate limiter", err)
	}

	exists, retry, err := c.probeOnce(ctx, http.MethodHead, target)
	if err != nil {
		return false, err
	}
	if !retry {
		return exists, nil
	}

	exists, _, err = c.probeOnce(ctx, http.MethodGet, target)
	return exists, err
}

func (c *Client) probeOnce(ctx context.Context, method, target string) (exists, retryAsGet bool, err error) {
	request, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return false, false, pipeline.Wrap(pipeline.ErrProtocol, "media", "probe", "build request", err)
	}
	if method == http.MethodGet {
		request.Header.Set("Range", "bytes=0-0")
	}

	resp, err := c.httpClient.Do(request)
	if err != nil {
		marker := pipeline.ErrUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			marker = pipeline.ErrTimeout
		}
		return false, false, pipeline.Wrap(marker, "media", "probe", "execute request", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusPartialContent:
		return true, false, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return false, false, nil
	case resp.StatusCode == http.StatusMethodNotAllowed, resp.StatusCode == http.StatusNotImplemented:
		return false, method == http.MethodHead, nil
	case resp.StatusCode >= 500:
		return false, false, pipeline.Wrap(pipeline.ErrUnavailable, "media", "probe",
			fmt.Sprintf("media host returned %d", resp.StatusCode), nil)
	default:
		return false, false, pipeline.Wrap(pipeline.ErrRejected, "media", "probe",
			fmt.Sprintf("media host returned %d", resp.StatusCode), nil)
	}
}

// Prefetch warms the backend cache for the video and podcast artifacts.
// Each URL is requested at most once per task across the session; requests
// run on their own goroutines and failures are logged only.
func (c *Client) Prefetch(ctx context.Context, taskID string) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return
	}

	for _, kind := range []Kind{KindVideo, KindPodcast} {
		target := c.ArtifactURL(taskID, kind)

		c.mu.Lock()
		if _, done := c.prefetched[target]; done {
			c.mu.Unlock()
			continue
		}
		c.prefetched[target] = struct{}{}
		c.mu.Unlock()

		go c.warm(ctx, target)
	}
}

func (c *Client) warm(ctx context.Context, target string) {
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return
	}
	resp, err := c.httpClient.Do(request)
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("prefetch failed", slog.String("url", target), slog.Any("error", err))
		}
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if c.logger != nil {
		c.logger.Debug("prefetched artifact",
			slog.String("url", target),
			slog.Int("status", resp.StatusCode))
	}
}

// Forget drops the cached probe answer and prefetch marks for a task, so a
// reused identifier starts clean after reset.
func (c *Client) Forget(taskID string) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.videoReady, taskID)
	for _, kind := range []Kind{KindVideo, KindPodcast, KindSubtitles} {
		delete(c.prefetched, c.ArtifactURL(taskID, kind))
	}
}

// Download fetches a finished artifact into destDir and returns the written
// path. The file lands atomically via a temp file and rename.
func (c *Client) Download(ctx context.Context, taskID string, kind Kind, destDir string) (string, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return "", pipeline.Wrap(pipeline.ErrValidation, "media", "download", "empty task id", nil)
	}
	if kind.Filename() == "" {
		return "", pipeline.Wrap(pipeline.ErrValidation, "media", "download", fmt.Sprintf("unknown artifact kind %q", string(kind)), nil)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ArtifactURL(taskID, kind), nil)
	if err != nil {
		return "", pipeline.Wrap(pipeline.ErrProtocol, "media", "download", "build request", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(request)
	if err != nil {
		marker := pipeline.ErrUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			marker = pipeline.ErrTimeout
		}
		return "", pipeline.Wrap(marker, "media", "download", "execute request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return "", pipeline.Wrap(pipeline.ErrNotFound, "media", "download", fmt.Sprintf("%s not available yet", kind.Filename()), nil)
	case resp.StatusCode >= 500:
		return "", pipeline.Wrap(pipeline.ErrUnavailable, "media", "download", fmt.Sprintf("media host returned %d", resp.StatusCode), nil)
	default:
		return "", pipeline.Wrap(pipeline.ErrRejected, "media", "download", fmt.Sprintf("media host returned %d", resp.StatusCode), nil)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination directory: %w", err)
	}

	destPath := filepath.Join(destDir, kind.Filename())
	tmp, err := os.CreateTemp(destDir, kind.Filename()+".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize artifact: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("downloaded artifact",
			slog.String("task_id", taskID),
			slog.String("kind", string(kind)),
			slog.String("path", destPath),
			slog.Int64("bytes", written),
			slog.Duration("elapsed", time.Since(start)))
	}
	return destPath, nil
}
