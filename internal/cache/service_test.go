package cache

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func TestMemoryBackendTTL(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewMemoryBackend()
	b.now = func() time.Time { return clock }

	ctx := context.Background()
	if err := b.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := b.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("expected hit before expiry, got ok=%v val=%q err=%v", ok, got, err)
	}

	clock = clock.Add(59 * time.Second)
	if _, ok, _ := b.Get(ctx, "k"); !ok {
		t.Fatal("expected hit just before TTL elapses")
	}

	clock = clock.Add(2 * time.Second)
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatal("expected miss after TTL elapses")
	}

	// Expired entry must have been evicted, not just hidden.
	b.mu.Lock()
	_, present := b.entries["k"]
	b.mu.Unlock()
	if present {
		t.Fatal("expected expired entry to be evicted on read")
	}
}

func TestMemoryBackendNoTTL(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewMemoryBackend()
	b.now = func() time.Time { return clock }

	ctx := context.Background()
	_ = b.Set(ctx, "k", []byte("v"), 0)

	clock = clock.Add(24 * time.Hour)
	if _, ok, _ := b.Get(ctx, "k"); !ok {
		t.Fatal("entry without TTL should not expire")
	}
}

func TestMemoryBackendDelete(t *testing.T) {
	t.Parallel()

	b := NewMemoryBackend()
	ctx := context.Background()
	_ = b.Set(ctx, "k", []byte("v"), time.Minute)
	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestServicePassthrough(t *testing.T) {
	t.Parallel()

	svc := NewService(NewMemoryBackend(), testTracer)
	ctx := context.Background()

	if err := svc.Set(ctx, "a", []byte("1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := svc.Get(ctx, "a")
	if err != nil || !ok || string(got) != "1" {
		t.Fatalf("unexpected get result ok=%v val=%q err=%v", ok, got, err)
	}
	if err := svc.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := svc.Get(ctx, "a"); ok {
		t.Fatal("expected miss after delete")
	}
}
