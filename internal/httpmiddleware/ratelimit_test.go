package httpmiddleware

import "testing"

func TestTokenBucketExhausts(t *testing.T) {
	l := NewTokenBucket(3, 3)
	for i := 0; i < 3; i++ {
		if !l.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.allow("1.2.3.4") {
		t.Fatalf("bucket should be empty after capacity requests")
	}
}

func TestTokenBucketPerClient(t *testing.T) {
	l := NewTokenBucket(1, 1)
	if !l.allow("1.2.3.4") {
		t.Fatalf("first client should be allowed")
	}
	if !l.allow("5.6.7.8") {
		t.Fatalf("limits are per client, second client should be allowed")
	}
}
