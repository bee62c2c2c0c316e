package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/config"
	"github.com/mailsignal/mailsignal/dto"
)

const senderTimeout = 10 * time.Second

// webhookSender posts the raw notification JSON to a configured receiver
type webhookSender struct {
	url        string
	maxRetries int
	client     *http.Client
}

func newWebhookSender(cfg *config.NotifierConfig) *webhookSender {
	return &webhookSender{
		url:        cfg.GenericWebhookURL,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: senderTimeout},
	}
}

func (w *webhookSender) name() string {
	return "webhook"
}

func (w *webhookSender) send(ctx context.Context, notification dto.EmailNotification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}
	return postWithRetry(ctx, w.client, w.url, payload, w.maxRetries)
}

// slackSender formats the notification as a Slack incoming-webhook message
type slackSender struct {
	url        string
	channel    string
	maxRetries int
	client     *http.Client
}

func newSlackSender(cfg *config.NotifierConfig) *slackSender {
	return &slackSender{
		url:        cfg.SlackWebhookURL,
		channel:    cfg.SlackChannel,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: senderTimeout},
	}
}

func (s *slackSender) name() string {
	return "slack"
}

type slackMessage struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

func (s *slackSender) send(ctx context.Context, notification dto.EmailNotification) error {
	text := fmt.Sprintf(":email: *%s* from %s <%s>\n*%s*\nconfidence %.2f on account %s",
		notification.Event, notification.FromName, notification.FromAddress,
		notification.Subject, notification.Confidence, notification.AccountID)

	payload, err := json.Marshal(slackMessage{Channel: s.channel, Text: text})
	if err != nil {
		return errors.Wrap(err, "failed to marshal slack message")
	}
	return postWithRetry(ctx, s.client, s.url, payload, s.maxRetries)
}

// postWithRetry delivers one payload with bounded exponential backoff.
// Non-2xx responses and transport errors both count as attempts.
func postWithRetry(ctx context.Context, client *http.Client, url string, payload []byte, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(b.Duration()):
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "notification delivery canceled")
			}
		}

		lastErr = post(ctx, client, url, payload)
		if lastErr == nil {
			return nil
		}
	}
	return errors.Wrapf(lastErr, "delivery failed after %d attempts", maxRetries)
}

func post(ctx context.Context, client *http.Client, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("receiver returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
