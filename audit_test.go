package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func collectAudit(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("no %q audit event arrived", eventType)
		}
	}
}

func newAuditedEngine(t *testing.T, sink AuditSink) *testFixture {
	t.Helper()

	backend := newTestBackend()
	sender := &recordingSender{}
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(newTestRedis(t)).
		WithIdentityClient(backend).
		WithAccountClient(backend).
		WithMailSender(sender).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testFixture{engine: engine, backend: backend, sender: sender}
}

func TestAuditSignInSuccessEvent(t *testing.T) {
	sink := NewChannelSink(64)

	fx := newAuditedEngine(t, sink)
	fx.backend.addUser(testUser{email: "user@example.com", password: "hunter22", emailValidated: true})

	ctx := WithCorrelationID(WithClientIP(context.Background(), "203.0.113.9"), "corr-42")
	_, err := fx.engine.SignIn(ctx, SignInRequest{Email: "user@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	event := collectAudit(t, sink, "signin_success")
	if !event.Success {
		t.Error("event not marked successful")
	}
	if event.CorrelationID != "corr-42" {
		t.Errorf("CorrelationID = %q", event.CorrelationID)
	}
	if event.IP != "203.0.113.9" {
		t.Errorf("IP = %q", event.IP)
	}
	if event.UserID == "" {
		t.Error("UserID empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp unset")
	}
	for _, v := range event.Metadata {
		if strings.Contains(v, "user@example.com") {
			t.Errorf("metadata leaks the raw identifier: %q", v)
		}
	}
}

func TestAuditFailureEventCarriesError(t *testing.T) {
	sink := NewChannelSink(64)

	fx := newAuditedEngine(t, sink)
	fx.backend.addUser(testUser{email: "user@example.com", password: "hunter22", emailValidated: true})

	_, err := fx.engine.SignIn(context.Background(), SignInRequest{Email: "user@example.com", Password: "wrong-wrong"})
	if err == nil {
		t.Fatal("expected credential failure")
	}

	event := collectAudit(t, sink, "signin_failure")
	if event.Success {
		t.Error("failure event marked successful")
	}
	if event.Error == "" {
		t.Error("failure event has no error text")
	}
	if id := event.Metadata["identifier"]; id == "" || id == "user@example.com" {
		t.Errorf("metadata identifier not hashed: %q", id)
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	blocked := make(chan struct{})
	sink := blockingSink{release: blocked}

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	t.Cleanup(func() {
		close(blocked)
		d.Close()
	})

	// One event occupies the worker, one fills the buffer, the rest drop.
	for i := 0; i < 6; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "signin_success"})
	}

	// The worker holds at most one in-flight event plus one buffered.
	if got := d.Dropped(); got < 4 {
		t.Errorf("Dropped = %d, want at least 4", got)
	}
}

func TestAuditDispatcherCloseDrains(t *testing.T) {
	sink := NewChannelSink(16)

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: false}, sink)
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "signout"})
	}
	d.Close()

	received := 0
	for {
		select {
		case <-sink.Events():
			received++
		default:
			if received != 5 {
				t.Fatalf("received %d events after Close, want 5", received)
			}
			return
		}
	}
}

func TestAuditDispatcherEmitAfterCloseIsNoop(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4, DropIfFull: true}, NoOpSink{})
	d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: "signout"})
	d.Close()
}

func TestAuditDispatcherDisabled(t *testing.T) {
	if d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{}); d != nil {
		t.Fatal("disabled config produced a dispatcher")
	}

	var d *auditDispatcher
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Error("nil dispatcher reports drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: "reset_completed", Success: true, UserID: "u1"})
	sink.Emit(context.Background(), AuditEvent{EventType: "signout", Success: true})

	scanner := bufio.NewScanner(&buf)
	var types []string
	for scanner.Scan() {
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		types = append(types, event.EventType)
	}
	if len(types) != 2 || types[0] != "reset_completed" || types[1] != "signout" {
		t.Errorf("event types = %v", types)
	}
}

// blockingSink stalls the dispatcher worker until release closes.
type blockingSink struct {
	release <-chan struct{}
}

func (s blockingSink) Emit(ctx context.Context, _ AuditEvent) {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
}
