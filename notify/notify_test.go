package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// =============================================================================
// Event Tests
// =============================================================================

func TestEventTypes(t *testing.T) {
	types := []EventType{
		EventNodeStarted,
		EventNodeCompleted,
		EventNodeError,
		EventChunkFailed,
		EventPDFFailed,
		EventBlueprintReady,
	}

	seen := make(map[EventType]bool)
	for _, et := range types {
		if seen[et] {
			t.Errorf("duplicate event type: %s", et)
		}
		if !strings.HasPrefix(string(et), "iba.") {
			t.Errorf("event type %s missing iba. prefix", et)
		}
		seen[et] = true
	}
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(EventNodeStarted, "p1", StatusStarted)
	e.Node = "load"

	if e.ID == "" {
		t.Error("NewEvent() should assign an ID")
	}
	if e.Metadata == nil {
		t.Error("NewEvent() should initialize metadata")
	}
	if e.Summary() != "load started" {
		t.Errorf("Summary() = %q, want %q", e.Summary(), "load started")
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"event_type", "project_id", "node", "status", "timestamp", "metadata"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("serialized event missing %q: %s", key, data)
		}
	}
	ts, _ := raw["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil || strings.Contains(ts, ".") {
		t.Errorf("timestamp %q is not second-precision RFC3339", ts)
	}
}

func TestEventIsFailure(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusStarted, false},
		{StatusCompleted, false},
		{StatusSuccess, false},
		{StatusFailed, true},
		{StatusWarning, true},
	}
	for _, tt := range tests {
		if got := (Event{Status: tt.status}).IsFailure(); got != tt.want {
			t.Errorf("IsFailure(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

// =============================================================================
// NopNotifier Tests
// =============================================================================

func TestNopNotifier(t *testing.T) {
	if err := (NopNotifier{}).Notify(context.Background(), Event{Type: EventNodeStarted}); err != nil {
		t.Errorf("NopNotifier.Notify() error = %v, want nil", err)
	}
}

// =============================================================================
// LogNotifier Tests
// =============================================================================

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	n := NewLogNotifier(logger)

	event := NewEvent(EventNodeCompleted, "proj-123", StatusCompleted)
	event.Node = "generate_guide"
	event.RunID = "run-1"

	if err := n.Notify(context.Background(), event); err != nil {
		t.Errorf("LogNotifier.Notify() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "generate_guide completed") {
		t.Errorf("Log output missing summary: %s", output)
	}
	if !strings.Contains(output, "proj-123") {
		t.Errorf("Log output missing project_id: %s", output)
	}
}

func TestLogNotifier_Levels(t *testing.T) {
	tests := []struct {
		status  Status
		wantLog string
	}{
		{StatusCompleted, "level=INFO"},
		{StatusWarning, "level=WARN"},
		{StatusFailed, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

			if err := n.Notify(context.Background(), Event{Type: EventNodeCompleted, Status: tt.status}); err != nil {
				t.Errorf("Notify() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.wantLog) {
				t.Errorf("Log output = %q, want to contain %q", buf.String(), tt.wantLog)
			}
		})
	}
}

func TestLogNotifier_StartedIsDebug(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	_ = n.Notify(context.Background(), Event{Type: EventNodeStarted, Status: StatusStarted, Node: "load"})
	if buf.Len() != 0 {
		t.Errorf("started event logged at info: %q", buf.String())
	}
}

func TestLogNotifier_MetadataGroup(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	event := NewEvent(EventChunkFailed, "p1", StatusWarning)
	event.Node = "generate_adrs"
	event.Metadata = map[string]any{"error": "malformed", "chunk_index": 2}
	_ = n.Notify(context.Background(), event)

	out := buf.String()
	chunk := strings.Index(out, "metadata.chunk_index=2")
	errAttr := strings.Index(out, "metadata.error=malformed")
	if chunk < 0 || errAttr < 0 || chunk > errAttr {
		t.Errorf("metadata not grouped in key order: %q", out)
	}
}

func TestLogNotifier_NilLogger(t *testing.T) {
	n := NewLogNotifier(nil)
	if n.Logger == nil {
		t.Error("NewLogNotifier should use default logger when nil")
	}
}

// =============================================================================
// WebhookNotifier Tests
// =============================================================================

func TestWebhookNotifier(t *testing.T) {
	var receivedBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, nil)

	event := NewEvent(EventBlueprintReady, "proj-123", StatusCompleted)
	if err := n.Notify(context.Background(), event); err != nil {
		t.Errorf("WebhookNotifier.Notify() error = %v", err)
	}

	var parsed Event
	if err := json.Unmarshal(receivedBody, &parsed); err != nil {
		t.Errorf("Failed to parse received body: %v", err)
	}
	if parsed.ProjectID != "proj-123" || parsed.Type != EventBlueprintReady {
		t.Errorf("Received event = %+v", parsed)
	}
}

func TestWebhookNotifier_CustomHeaders(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, map[string]string{"Authorization": "Bearer test-token"})

	if err := n.Notify(context.Background(), Event{Type: EventNodeStarted}); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
	if receivedAuth != "Bearer test-token" {
		t.Errorf("Authorization header = %q, want 'Bearer test-token'", receivedAuth)
	}
}

func TestWebhookNotifier_Signed(t *testing.T) {
	var body []byte
	var header http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		header = r.Header.Clone()
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, nil)
	n.Secret = "hook-secret"
	event := NewEvent(EventPDFFailed, "proj-1", StatusFailed)
	event.RunID = "run-9"

	if err := n.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if got := header.Get(HeaderEvent); got != string(EventPDFFailed) {
		t.Errorf("%s = %q", HeaderEvent, got)
	}
	if got := header.Get(HeaderRun); got != "run-9" {
		t.Errorf("%s = %q", HeaderRun, got)
	}
	if got, want := header.Get(HeaderSignature), Sign("hook-secret", body); got != want {
		t.Errorf("%s = %q, want %q", HeaderSignature, got, want)
	}
	if Sign("other", body) == header.Get(HeaderSignature) {
		t.Error("signature does not depend on the secret")
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, nil)
	if err := n.Notify(context.Background(), Event{Type: EventNodeStarted}); err == nil {
		t.Error("Notify() should return error for 400 status")
	}
}

func TestWebhookNotifier_NetworkError(t *testing.T) {
	n := NewWebhookNotifier("http://localhost:99999", nil) // Invalid port
	if err := n.Notify(context.Background(), Event{Type: EventNodeStarted}); err == nil {
		t.Error("Notify() should return error for network failure")
	}
}

// =============================================================================
// SlackNotifier Tests
// =============================================================================

func TestSlackNotifier(t *testing.T) {
	var got slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewSlackNotifier(server.URL,
		WithSlackChannel("#test"),
		WithSlackUsername("testbot"),
	)

	event := NewEvent(EventNodeError, "proj-123", StatusFailed)
	event.RunID = "run-1"
	event.Node = "generate_diagrams"
	event.Metadata["reason"] = "No diagrams found for this project."

	if err := n.Notify(context.Background(), event); err != nil {
		t.Errorf("SlackNotifier.Notify() error = %v", err)
	}

	if got.Channel != "#test" || got.Username != "testbot" {
		t.Errorf("Channel, Username = %q, %q", got.Channel, got.Username)
	}
	if got.Text != "Stage generate_diagrams failed" {
		t.Errorf("Text = %q", got.Text)
	}
	if len(got.Blocks) != 3 {
		t.Fatalf("Blocks = %+v", got.Blocks)
	}
	if head := got.Blocks[0].Text; head == nil || head.Text != ":x: *Stage generate_diagrams failed*" {
		t.Errorf("headline = %+v", head)
	}
	fields := got.Blocks[1].Fields
	if len(fields) != 3 || fields[2].Text != "*reason*\nNo diagrams found for this project." {
		t.Errorf("Fields = %+v", fields)
	}
	if footer := got.Blocks[2].Elements[0].Text; !strings.Contains(footer, string(EventNodeError)) {
		t.Errorf("footer = %q", footer)
	}
}

func TestSlackMessage_BlueprintReady(t *testing.T) {
	event := NewEvent(EventBlueprintReady, "p1", StatusCompleted)
	event.Metadata["issue_url"] = "https://github.com/acme/app/issues/7"
	event.Metadata["failed_stages"] = []string{"export_pdf"}
	event.Metadata["pdf_file"] = ""

	msg := slackMessageFor(event)

	if msg.Text != "Blueprint ready for p1" {
		t.Errorf("Text = %q", msg.Text)
	}
	var texts []string
	for _, f := range msg.Blocks[1].Fields {
		texts = append(texts, f.Text)
	}
	want := []string{
		"*Project*\np1",
		"*failed_stages*\nexport_pdf",
		"*issue_url*\n<https://github.com/acme/app/issues/7|open>",
	}
	if strings.Join(texts, "|") != strings.Join(want, "|") {
		t.Errorf("Fields = %q, want %q", texts, want)
	}
}

func TestSlackMessage_FieldLimit(t *testing.T) {
	event := NewEvent(EventNodeCompleted, "p1", StatusCompleted)
	for i := range 20 {
		event.Metadata[fmt.Sprintf("k%02d", i)] = i
	}
	if got := len(slackMessageFor(event).Blocks[1].Fields); got != maxSlackFields {
		t.Errorf("fields = %d, want %d", got, maxSlackFields)
	}
}

func TestSlackNotifier_TypeFilter(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewSlackNotifier(server.URL, WithSlackTypes(EventBlueprintReady))

	_ = n.Notify(context.Background(), Event{Type: EventNodeStarted})
	_ = n.Notify(context.Background(), Event{Type: EventBlueprintReady})

	if calls != 1 {
		t.Errorf("Slack calls = %d, want 1", calls)
	}
}

func TestStatusEmoji(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusCompleted, ":white_check_mark:"},
		{StatusWarning, ":warning:"},
		{StatusFailed, ":x:"},
		{StatusStarted, ":arrow_forward:"},
	}
	for _, tt := range tests {
		if got := statusEmoji(tt.status); got != tt.want {
			t.Errorf("statusEmoji(%s) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

// =============================================================================
// MultiNotifier Tests
// =============================================================================

func TestMultiNotifier(t *testing.T) {
	var calls []string

	notifier1 := &mockNotifier{name: "n1", calls: &calls}
	notifier2 := &mockNotifier{name: "n2", calls: &calls}

	multi := NewMultiNotifier(notifier1, nil, notifier2)

	if err := multi.Notify(context.Background(), Event{Type: EventNodeStarted}); err != nil {
		t.Errorf("MultiNotifier.Notify() error = %v", err)
	}

	if len(calls) != 2 {
		t.Errorf("Call count = %d, want 2", len(calls))
	}
	if calls[0] != "n1" || calls[1] != "n2" {
		t.Errorf("Calls = %v, want [n1, n2]", calls)
	}
}

func TestMultiNotifier_ContinuesOnError(t *testing.T) {
	var calls []string

	notifier1 := &mockNotifier{name: "n1", calls: &calls, err: context.DeadlineExceeded}
	notifier2 := &mockNotifier{name: "n2", calls: &calls}

	var logBuf bytes.Buffer
	multi := NewMultiNotifier(notifier1, notifier2)
	multi.Logger = slog.New(slog.NewTextHandler(&logBuf, nil))

	err := multi.Notify(context.Background(), Event{Type: EventNodeStarted})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Notify() error = %v, want the sink error", err)
	}
	if !strings.Contains(logBuf.String(), "event delivery failed") {
		t.Errorf("sink failure not logged: %q", logBuf.String())
	}
	if len(calls) != 2 {
		t.Errorf("Call count = %d, want 2 (both notifiers called)", len(calls))
	}
}

func TestMultiNotifier_FlattensAndSkipsNop(t *testing.T) {
	var calls []string
	inner := NewMultiNotifier(&mockNotifier{name: "a", calls: &calls}, &mockNotifier{name: "b", calls: &calls})

	multi := NewMultiNotifier(NopNotifier{}, inner, &mockNotifier{name: "c", calls: &calls})
	if len(multi.Notifiers) != 3 {
		t.Fatalf("Notifiers = %d, want 3", len(multi.Notifiers))
	}
	_ = multi.Notify(context.Background(), Event{})
	if strings.Join(calls, ",") != "a,b,c" {
		t.Errorf("calls = %v, want [a b c]", calls)
	}
}

type mockNotifier struct {
	name  string
	calls *[]string
	err   error
}

func (m *mockNotifier) Notify(ctx context.Context, event Event) error {
	*m.calls = append(*m.calls, m.name)
	return m.err
}

// =============================================================================
// AMQPNotifier Tests
// =============================================================================

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	declareErr error
	published  []published
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	if !durable {
		return errors.New("exchange must be durable")
	}
	f.declared = append(f.declared, name+":"+kind)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.published = append(f.published, published{exchange, key, msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPNotifier_Routing(t *testing.T) {
	ch := &fakeChannel{}
	n, err := newAMQPNotifier(AMQPConfig{}, ch)
	if err != nil {
		t.Fatalf("newAMQPNotifier() error = %v", err)
	}

	if len(ch.declared) != 1 || ch.declared[0] != "mphai.raina.exchange:topic" {
		t.Errorf("declared = %v", ch.declared)
	}

	node := NewEvent(EventNodeCompleted, "p1", StatusCompleted)
	ready := NewEvent(EventBlueprintReady, "p1", StatusCompleted)
	for _, e := range []Event{node, ready} {
		if err := n.Notify(context.Background(), e); err != nil {
			t.Fatalf("Notify() error = %v", err)
		}
	}

	if len(ch.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(ch.published))
	}
	if got := ch.published[0].key; got != DefaultStreamKey {
		t.Errorf("node event key = %s, want %s", got, DefaultStreamKey)
	}
	if got := ch.published[1].key; got != DefaultReadyKey {
		t.Errorf("ready event key = %s, want %s", got, DefaultReadyKey)
	}

	msg := ch.published[0].msg
	if msg.DeliveryMode != amqp.Persistent {
		t.Errorf("DeliveryMode = %d, want persistent", msg.DeliveryMode)
	}
	if msg.ContentType != "application/json" {
		t.Errorf("ContentType = %s", msg.ContentType)
	}
	var decoded Event
	if err := json.Unmarshal(msg.Body, &decoded); err != nil || decoded.ID != node.ID {
		t.Errorf("body = %s, err = %v", msg.Body, err)
	}

	if err := n.Close(); err != nil || !ch.closed {
		t.Errorf("Close() = %v, closed = %v", err, ch.closed)
	}
}

func TestAMQPNotifier_DeclareFailure(t *testing.T) {
	ch := &fakeChannel{declareErr: errors.New("access refused")}
	if _, err := newAMQPNotifier(AMQPConfig{Exchange: "x"}, ch); err == nil {
		t.Fatal("newAMQPNotifier() should fail when the exchange cannot be declared")
	}
	if !ch.closed {
		t.Error("channel should be closed after a failed declare")
	}
}

// =============================================================================
// Async Tests
// =============================================================================

type blockingNotifier struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (b *blockingNotifier) Notify(ctx context.Context, event Event) error {
	<-b.release
	b.mu.Lock()
	b.got = append(b.got, event)
	b.mu.Unlock()
	return nil
}

func TestAsync_DeliversInOrder(t *testing.T) {
	sink := &blockingNotifier{release: make(chan struct{})}
	close(sink.release)

	a := NewAsync(sink, 8, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, node := range []string{"load", "summarize", "render"} {
		e := NewEvent(EventNodeStarted, "p1", StatusStarted)
		e.Node = node
		if err := a.Notify(context.Background(), e); err != nil {
			t.Fatalf("Notify() error = %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if len(sink.got) != 3 || sink.got[0].Node != "load" || sink.got[2].Node != "render" {
		t.Errorf("delivered = %+v", sink.got)
	}
}

func TestAsync_DropsWhenFull(t *testing.T) {
	sink := &blockingNotifier{release: make(chan struct{})}
	var logBuf bytes.Buffer
	a := NewAsync(sink, 1, slog.New(slog.NewTextHandler(&logBuf, nil)))

	// The worker takes the first event and blocks; the second fills the
	// queue; everything after that is dropped.
	var dropped int
	for i := 0; i < 10; i++ {
		if err := a.Notify(context.Background(), Event{Type: EventNodeStarted}); errors.Is(err, ErrEventDropped) {
			dropped++
		}
	}

	if dropped < 8 {
		t.Errorf("dropped = %d, want at least 8", dropped)
	}
	if a.Dropped() != int64(dropped) {
		t.Errorf("Dropped() = %d, want %d", a.Dropped(), dropped)
	}
	if !strings.Contains(logBuf.String(), "dropping lifecycle event") {
		t.Error("dropped events should be logged")
	}

	close(sink.release)
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestAsync_NotifyAfterClose(t *testing.T) {
	a := NewAsync(NopNotifier{}, 4, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := a.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := a.Notify(context.Background(), Event{}); !errors.Is(err, ErrEventDropped) {
		t.Errorf("Notify() after Close = %v, want ErrEventDropped", err)
	}
	// Closing twice is harmless.
	if err := a.Close(context.Background()); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

// =============================================================================
// Broadcaster Tests
// =============================================================================

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster()

	all, unsubAll := b.Subscribe(4, "")
	p2, unsubP2 := b.Subscribe(4, "p2")
	defer unsubP2()

	if b.Subscribers() != 2 {
		t.Fatalf("Subscribers() = %d, want 2", b.Subscribers())
	}

	_ = b.Notify(context.Background(), Event{ProjectID: "p1", Type: EventNodeStarted})
	_ = b.Notify(context.Background(), Event{ProjectID: "p2", Type: EventNodeCompleted})

	if got := (<-all).ProjectID; got != "p1" {
		t.Errorf("first event for all = %s, want p1", got)
	}
	if got := (<-all).ProjectID; got != "p2" {
		t.Errorf("second event for all = %s, want p2", got)
	}
	if got := (<-p2).Type; got != EventNodeCompleted {
		t.Errorf("filtered subscriber got %s", got)
	}
	select {
	case e := <-p2:
		t.Errorf("filtered subscriber received extra event %+v", e)
	default:
	}

	unsubAll()
	unsubAll()
	if _, ok := <-all; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	if b.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", b.Subscribers())
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	_, unsub := b.Subscribe(1, "")
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = b.Notify(context.Background(), Event{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a slow subscriber")
	}
}
