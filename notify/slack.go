package notify

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	bphttp "github.com/randalmurphal/blueprint/http"
)

// maxSlackFields is the number of fields Slack renders in one section.
const maxSlackFields = 10

// SlackNotifier posts Block Kit messages to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Channel    string
	Username   string

	// Types restricts delivery to the listed event types. Empty means all.
	Types map[EventType]bool

	client *bphttp.Client
}

// SlackOption configures a SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithSlackChannel overrides the webhook's default channel.
func WithSlackChannel(channel string) SlackOption {
	return func(n *SlackNotifier) { n.Channel = channel }
}

func WithSlackUsername(username string) SlackOption {
	return func(n *SlackNotifier) { n.Username = username }
}

// WithSlackTypes limits the notifier to the given event types.
func WithSlackTypes(types ...EventType) SlackOption {
	return func(n *SlackNotifier) {
		n.Types = make(map[EventType]bool, len(types))
		for _, t := range types {
			n.Types[t] = true
		}
	}
}

func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	n := &SlackNotifier{WebhookURL: webhookURL, Username: "blueprint", client: newHookClient("slack")}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify implements Notifier. Filtered event types are dropped silently.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	if len(n.Types) > 0 && !n.Types[event.Type] {
		return nil
	}
	msg := slackMessageFor(event)
	msg.Channel, msg.Username = n.Channel, n.Username

	resp, err := n.client.Request(ctx, http.MethodPost, n.WebhookURL, msg)
	if err != nil {
		return fmt.Errorf("post %s to slack: %w", event.Type, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack rejected %s: status %d", event.Type, resp.StatusCode)
	}
	return nil
}

type slackMessage struct {
	Text     string       `json:"text"`
	Channel  string       `json:"channel,omitempty"`
	Username string       `json:"username,omitempty"`
	Blocks   []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(format string, args ...any) slackText {
	return slackText{Type: "mrkdwn", Text: fmt.Sprintf(format, args...)}
}

// slackMessageFor lays an event out as a headline, a field grid and a
// timestamp footer. Text is the plain fallback shown in notifications.
func slackMessageFor(event Event) slackMessage {
	headline := slackHeadline(event)
	headText := mrkdwn("%s *%s*", statusEmoji(event.Status), headline)

	fields := []slackText{mrkdwn("*Project*\n%s", event.ProjectID)}
	if event.RunID != "" {
		fields = append(fields, mrkdwn("*Run*\n`%s`", event.RunID))
	}
	for _, k := range slices.Sorted(maps.Keys(event.Metadata)) {
		if len(fields) == maxSlackFields {
			break
		}
		if v := slackValue(k, event.Metadata[k]); v != "" {
			fields = append(fields, mrkdwn("*%s*\n%s", k, v))
		}
	}

	footer := fmt.Sprintf("<!date^%d^{date_short_pretty} {time}|%s> | %s",
		event.Timestamp.Unix(), event.Timestamp.Format("2006-01-02 15:04 MST"), event.Type)

	return slackMessage{
		Text: headline,
		Blocks: []slackBlock{
			{Type: "section", Text: &headText},
			{Type: "section", Fields: fields},
			{Type: "context", Elements: []slackText{mrkdwn("%s", footer)}},
		},
	}
}

func slackHeadline(event Event) string {
	switch event.Type {
	case EventBlueprintReady:
		if event.Status == StatusFailed {
			return "Blueprint for " + event.ProjectID + " could not be produced"
		}
		return "Blueprint ready for " + event.ProjectID
	case EventNodeError:
		return "Stage " + event.Node + " failed"
	case EventChunkFailed:
		return "A chunk of " + event.Node + " failed"
	case EventPDFFailed:
		return "PDF export failed, markdown is still available"
	default:
		return event.Summary()
	}
}

func statusEmoji(status Status) string {
	switch status {
	case StatusFailed:
		return ":x:"
	case StatusWarning:
		return ":warning:"
	case StatusStarted:
		return ":arrow_forward:"
	default:
		return ":white_check_mark:"
	}
}

// slackValue renders a metadata value. URLs become links and lists are
// comma-joined; empty values are skipped.
func slackValue(key string, v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if strings.HasSuffix(key, "_url") && strings.HasPrefix(val, "http") {
			return "<" + val + "|open>"
		}
		return val
	case []string:
		return strings.Join(val, ", ")
	default:
		return fmt.Sprint(val)
	}
}
