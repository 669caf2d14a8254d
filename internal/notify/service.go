package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deckcast/internal/config"
)

const userAgent = "Deckcast-Go/0.1.0"

// Service defines the notification surface exposed to the orchestrator.
type Service interface {
	GenerationCompleted(ctx context.Context, filename, taskType string) error
	GenerationFailed(ctx context.Context, filename, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService returns an ntfy-backed notifier, or a noop one when no topic
// is configured. A bare topic name publishes to ntfy.sh; a full URL is used
// as-is.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	if !strings.Contains(topic, "://") {
		topic = "https://ntfy.sh/" + topic
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		onComplete: cfg.Notifications.OnComplete,
		onError:    cfg.Notifications.OnError,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	onComplete bool
	onError    bool
}

func (n *ntfyService) GenerationCompleted(ctx context.Context, filename, taskType string) error {
	if !n.onComplete {
		return nil
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = "document"
	}
	message := fmt.Sprintf("✅ Generation complete: %s", filename)
	if taskType = strings.TrimSpace(taskType); taskType != "" {
		message = fmt.Sprintf("%s (%s)", message, taskType)
	}
	return n.publish(ctx, payload{
		title:    "Deckcast - Complete",
		message:  message,
		tags:     []string{"deckcast", "generation", "completed"},
		priority: "high",
	})
}

func (n *ntfyService) GenerationFailed(ctx context.Context, filename, reason string) error {
	if !n.onError {
		return nil
	}
	message := "❌ Generation failed"
	if filename = strings.TrimSpace(filename); filename != "" {
		message += ": " + filename
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		message += "\n" + reason
	}
	return n.publish(ctx, payload{
		title:    "Deckcast - Failed",
		message:  message,
		tags:     []string{"deckcast", "generation", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.publish(ctx, payload{
		title:    "Deckcast - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"deckcast", "test"},
		priority: "low",
	})
}

// publish posts one message to the configured topic. The message rides in
// the body; title, tags, and priority travel as ntfy headers.
func (n *ntfyService) publish(ctx context.Context, p payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(p.message))
	if err != nil {
		return fmt.Errorf("create ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("User-Agent", userAgent)
	if p.title != "" {
		req.Header.Set("Title", p.title)
	}
	if len(p.tags) > 0 {
		req.Header.Set("Tags", strings.Join(p.tags, ","))
	}
	if p.priority != "" && p.priority != "default" {
		req.Header.Set("Priority", p.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("ntfy rejected notification (%s): %s", resp.Status, strings.TrimSpace(string(detail)))
}

type noopService struct{}

func (noopService) GenerationCompleted(context.Context, string, string) error { return nil }
func (noopService) GenerationFailed(context.Context, string, string) error    { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
