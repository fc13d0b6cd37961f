package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewWithoutURLIsNop(t *testing.T) {
	p, err := New("", "lmd.events", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := p.(Nop); !ok {
		t.Fatalf("expected Nop publisher, got %T", p)
	}
	if err := p.Publish(context.Background(), ManifestClosed, Message{}); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}

func TestNewAMQPRejectsBadURL(t *testing.T) {
	if _, err := New("http://not-amqp", "lmd.events", zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for non-amqp scheme")
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	now := time.Now().UTC()
	_ = r.Publish(ctx, ShipmentStatusChanged, Message{EntityID: "s1", Status: "Delivered", OccurredAt: now})
	r.Err = errors.New("broker down")
	if err := r.Publish(ctx, ShipmentCancelled, Message{EntityID: "s2"}); err == nil {
		t.Fatalf("expected configured error")
	}
	keys := r.Keys()
	if len(keys) != 2 || keys[0] != ShipmentStatusChanged || keys[1] != ShipmentCancelled {
		t.Fatalf("keys = %v", keys)
	}
	if m := r.Messages()[0].Message; m.EntityID != "s1" || !m.OccurredAt.Equal(now) {
		t.Fatalf("message = %+v", m)
	}
}
