package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/types"
)

const userAgent = "warden/0.1"

// logAdapter is the built-in channel: it writes events to the structured
// log. It needs no configuration and is always enabled.
type logAdapter struct {
	logger *zap.Logger
}

func newLogAdapter(logger *zap.Logger) *logAdapter {
	return &logAdapter{logger: logger}
}

func (a *logAdapter) Name() string  { return "log" }
func (a *logAdapter) Enabled() bool { return true }

func (a *logAdapter) Send(ctx context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("severity", string(ev.Severity)),
		zap.String("body", ev.Body),
	}
	if ev.Tag != "" {
		fields = append(fields, zap.String("tag", ev.Tag))
	}
	switch ev.Severity {
	case types.SeverityCritical:
		a.logger.Error(ev.Title, fields...)
	case types.SeverityWarning:
		a.logger.Warn(ev.Title, fields...)
	default:
		a.logger.Info(ev.Title, fields...)
	}
	return nil
}

// ntfyAdapter pushes events to an ntfy topic.
type ntfyAdapter struct {
	settings ChannelSettings
	client   *http.Client
}

func newNtfyAdapter(settings ChannelSettings, timeout time.Duration) *ntfyAdapter {
	return &ntfyAdapter{
		settings: settings,
		client:   &http.Client{Timeout: timeout},
	}
}

func (a *ntfyAdapter) Name() string { return "ntfy" }

func (a *ntfyAdapter) Enabled() bool {
	return a.settings.Enabled && strings.TrimSpace(a.settings.Topic) != ""
}

func (a *ntfyAdapter) Send(ctx context.Context, ev Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.settings.Topic, strings.NewReader(ev.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Title", ev.Title)
	switch ev.Severity {
	case types.SeverityCritical:
		req.Header.Set("Priority", "urgent")
	case types.SeverityWarning:
		req.Header.Set("Priority", "high")
	}
	if ev.Tag != "" {
		req.Header.Set("Tags", ev.Tag)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}

// webhookAdapter POSTs the event as JSON to a configured URL.
type webhookAdapter struct {
	settings ChannelSettings
	client   *http.Client
}

func newWebhookAdapter(settings ChannelSettings, timeout time.Duration) *webhookAdapter {
	return &webhookAdapter{
		settings: settings,
		client:   &http.Client{Timeout: timeout},
	}
}

func (a *webhookAdapter) Name() string { return "webhook" }

func (a *webhookAdapter) Enabled() bool {
	return a.settings.Enabled && strings.TrimSpace(a.settings.URL) != ""
}

func (a *webhookAdapter) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.settings.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
