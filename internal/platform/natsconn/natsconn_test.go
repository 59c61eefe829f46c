package natsconn

import (
	"strings"
	"testing"
	"time"
)

func TestEnvFallbacks(t *testing.T) {
	if v := envInt("NATSCONN_TEST_MISSING", 42); v != 42 {
		t.Fatalf("envInt default: expected 42, got %d", v)
	}
	t.Setenv("NATSCONN_TEST_INT", "7")
	if v := envInt("NATSCONN_TEST_INT", 42); v != 7 {
		t.Fatalf("envInt set: expected 7, got %d", v)
	}
	t.Setenv("NATSCONN_TEST_INT_BAD", "-3")
	if v := envInt("NATSCONN_TEST_INT_BAD", 42); v != 42 {
		t.Fatalf("envInt negative: expected fallback 42, got %d", v)
	}

	if v := envDuration("NATSCONN_TEST_MISSING", 5*time.Second); v != 5*time.Second {
		t.Fatalf("envDuration default: expected 5s, got %s", v)
	}
	t.Setenv("NATSCONN_TEST_DUR", "3s")
	if v := envDuration("NATSCONN_TEST_DUR", 5*time.Second); v != 3*time.Second {
		t.Fatalf("envDuration set: expected 3s, got %s", v)
	}
}

func TestConnect_UnreachableBroker(t *testing.T) {
	_, err := Connect(Options{
		URL:           "nats://127.0.0.1:19999",
		ReconnectWait: 10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error connecting to unreachable NATS URL")
	}
	if !strings.Contains(err.Error(), "nats connect") {
		t.Fatalf("expected wrapped connect error, got: %v", err)
	}
}
