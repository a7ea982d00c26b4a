package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"time"

	bphttp "github.com/randalmurphal/blueprint/http"
)

// Headers set on every webhook delivery.
const (
	HeaderEvent     = "X-Blueprint-Event"
	HeaderRun       = "X-Blueprint-Run"
	HeaderSignature = "X-Blueprint-Signature"
)

// WebhookNotifier posts events as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	URL     string
	Headers map[string]string

	// Secret, when set, signs each body with HMAC-SHA256. The hex digest is
	// sent as "sha256=<digest>" in X-Blueprint-Signature.
	Secret string

	client *bphttp.Client
}

// NewWebhookNotifier creates a webhook notifier. Transient failures are
// retried once.
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Headers: headers, client: newHookClient("webhook")}
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	headers := map[string]string{HeaderEvent: string(event.Type)}
	if event.RunID != "" {
		headers[HeaderRun] = event.RunID
	}
	if n.Secret != "" {
		headers[HeaderSignature] = Sign(n.Secret, body)
	}
	maps.Copy(headers, n.Headers)

	resp, err := n.client.RequestWithHeaders(ctx, http.MethodPost, n.URL, json.RawMessage(body), headers)
	if err != nil {
		return fmt.Errorf("deliver %s event: %w", event.Type, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook rejected %s event: status %d", event.Type, resp.StatusCode)
	}
	return nil
}

// Sign returns the X-Blueprint-Signature value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newHookClient(service string) *bphttp.Client {
	return bphttp.NewClient(bphttp.ClientConfig{
		ServiceName: service,
		Timeout:     10 * time.Second,
		MaxRetries:  2,
		RetryWait:   200 * time.Millisecond,
	})
}
