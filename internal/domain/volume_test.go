package domain

import (
	"testing"
	"time"
)

func TestPlatformIDIsValid(t *testing.T) {
	for _, p := range SupportedPlatforms {
		if !p.IsValid() {
			t.Fatalf("%s should be valid", p)
		}
	}
	if PlatformID("binance").IsValid() {
		t.Fatal("unknown platform should not be valid")
	}
}

func TestIsStablecoin(t *testing.T) {
	for _, s := range []string{"USD", "USDT", "USDC"} {
		if !IsStablecoin(s) {
			t.Fatalf("%s should be a stablecoin", s)
		}
	}
	if IsStablecoin("BTC") {
		t.Fatal("BTC is not a stablecoin")
	}
}

func TestDayOf(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2025, 3, 10, 2, 30, 0, 0, loc) // 2025-03-09 21:30 UTC
	got := DayOf(in)
	want := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
