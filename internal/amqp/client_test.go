package amqp

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"closed sentinel", amqp091.ErrClosed, true},
		{"EOF error", errors.New("unexpected EOF"), true},
		{"broken pipe error", errors.New("broken pipe"), true},
		{"closed network connection error", errors.New("use of closed network connection"), true},
		{"other error", errors.New("some other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	if client.isCircuitOpen() {
		t.Fatal("circuit breaker should be closed initially")
	}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Fatal("circuit breaker should be open after max failures")
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Fatal("circuit should move to half-open after timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatal("state should be half-open")
	}

	client.recordFailure()
	if !client.isCircuitOpen() {
		t.Fatal("a failure while half-open should reopen the circuit")
	}

	client.recordSuccess()
	if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Fatal("success should close the circuit and reset failures")
	}
}

func TestClient_PublishGuards(t *testing.T) {
	client := &Client{exchangeName: "x", queueName: "q"}

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()
	err := client.PublishJournalSync(context.Background(), 1, "create")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	client.recordSuccess()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishJournalSync(ctx, 1, "create"); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestDispatch(t *testing.T) {
	ok := func(context.Context, *JournalSyncMessage) error { return nil }
	fail := func(context.Context, *JournalSyncMessage) error { return errors.New("sheets down") }

	a := &fakeAck{}
	dispatch(context.Background(), nil, []byte(`{"id":7}`), a, ok)
	if !a.acked {
		t.Error("handled message should be acked")
	}

	a = &fakeAck{}
	dispatch(context.Background(), nil, []byte(`{"id":7}`), a, fail)
	if !a.nacked || !a.requeued {
		t.Error("failed message should be requeued")
	}

	a = &fakeAck{}
	dispatch(context.Background(), nil, []byte(`{"id":"seven"}`), a, ok)
	if !a.nacked || a.requeued {
		t.Error("bad body should be dropped")
	}
}

func TestJournalSyncMessage(t *testing.T) {
	msg := NewJournalSyncMessage(12345, "update")
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Error("timestamp should be recent")
	}
	b, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"op":"update"`) {
		t.Errorf("op missing: %s", b)
	}
	back, err := JournalSyncMessageFromJSON(b)
	if err != nil || back.ID != 12345 {
		t.Fatalf("decode = %+v, %v", back, err)
	}
}
