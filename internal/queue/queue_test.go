package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := NewInMemory(4)
	body, _ := json.Marshal(map[string]string{"token_id": "t-1"})
	if err := q.Publish(ctx, Message{Type: "redemption", Body: body}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	select {
	case msg := <-messages:
		if msg.Type != "redemption" {
			t.Fatalf("type = %q, want redemption", msg.Type)
		}
		var decoded map[string]string
		if err := json.Unmarshal(msg.Body, &decoded); err != nil {
			t.Fatalf("body not JSON: %v", err)
		}
		if decoded["token_id"] != "t-1" {
			t.Fatalf("body = %v", decoded)
		}
	case <-ctx.Done():
		t.Fatalf("no message before timeout")
	}
}

func TestInMemoryPublishHonorsContext(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()
	if err := q.Publish(ctx, Message{Type: "redemption"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// Queue is full; a cancelled context must fail fast instead of blocking.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Publish(cancelled, Message{Type: "redemption"}); err == nil {
		t.Fatalf("publish into a full queue with cancelled context should fail")
	}
}
