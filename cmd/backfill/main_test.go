package main

import (
	"testing"
	"time"
)

func TestResolveRangeDefaults(t *testing.T) {
	start, end, err := resolveRange("", "", 0, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !start.Equal(end.AddDate(0, 0, -30)) {
		t.Fatalf("expected 30 day window, got %v to %v", start, end)
	}
}

func TestResolveRangeExplicit(t *testing.T) {
	start, end, err := resolveRange("2025-06-01", "2025-06-10", 0, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !start.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start mismatch: %v", start)
	}
	if !end.Equal(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end mismatch: %v", end)
	}
}

func TestResolveRangeRejectsInverted(t *testing.T) {
	if _, _, err := resolveRange("2025-06-10", "2025-06-01", 0, 30); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestResolveRangeRejectsBadDates(t *testing.T) {
	if _, _, err := resolveRange("junk", "", 0, 30); err == nil {
		t.Fatal("expected error for bad start")
	}
	if _, _, err := resolveRange("", "junk", 0, 30); err == nil {
		t.Fatal("expected error for bad end")
	}
}
