package idempotency

import (
	"context"
	"testing"
)

func TestMemoryStore_FirstCheckIsNotDuplicate(t *testing.T) {
	s := newMemoryStore()
	dup, err := s.Check(context.Background(), "hb-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Fatal("first check should not be duplicate")
	}
}

func TestMemoryStore_SecondCheckIsDuplicate(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	_, _ = s.Check(ctx, "hb-002")

	dup, err := s.Check(ctx, "hb-002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dup {
		t.Fatal("second check should be duplicate")
	}
}

func TestMemoryStore_DifferentEventsAreIndependent(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	_, _ = s.Check(ctx, "hb-A")

	dup, err := s.Check(ctx, "hb-B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Fatal("different event IDs should not collide")
	}
}

func TestNewStore_FallsBackToMemory(t *testing.T) {
	s, err := NewStore(nil, nil, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*memoryStore); !ok {
		t.Fatalf("expected memoryStore when no backend provided, got %T", s)
	}
}

func TestNewStore_RejectsMemoryInProd(t *testing.T) {
	s, err := NewStore(nil, nil, 0, true)
	if err == nil {
		t.Fatalf("expected error in production with no backend, got store %T", s)
	}
	if s != nil {
		t.Fatalf("expected nil store, got %T", s)
	}
}

func TestMemoryStore_ForgetReleasesMark(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	_, _ = s.Check(ctx, "hb-C")
	if err := s.Forget(ctx, "hb-C"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup, err := s.Check(ctx, "hb-C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Fatal("forgotten event should not be duplicate")
	}
}
