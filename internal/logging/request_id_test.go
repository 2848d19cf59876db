package logging

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateRequestID(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateRequestID()
		u, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("request ID %q is not a UUID: %v", id, err)
		}
		if u.Version() != 7 {
			t.Errorf("request ID %q has version %d, want 7", id, u.Version())
		}
		if ids[id] {
			t.Fatalf("duplicate request ID %s", id)
		}
		ids[id] = true
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()).(nopLogger); !ok {
		t.Error("FromContext without a logger should return the nop logger")
	}

	l := NewDefault()
	if got := FromContext(NewContext(context.Background(), l)); got != l {
		t.Errorf("FromContext = %v, want the stored logger", got)
	}
}
