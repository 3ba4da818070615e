// Package pricing resolves quote assets to USD so non-stable quote volumes
// can be normalized before aggregation.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"volumedeck/internal/cache"
	"volumedeck/internal/config"
	"volumedeck/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// coingeckoID maps ticker symbols to CoinGecko asset ids for the quote
// assets the connectors can report.
var coingeckoID = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"WOO":  "woo-network",
	"HYPE": "hyperliquid",
}

// Service answers USD price lookups. Stablecoins short-circuit to 1.0;
// everything else goes through the cache, then the upstream source, then a
// stale cached value, and finally the configured fallback policy.
type Service struct {
	client   *http.Client
	baseURL  string
	cache    *cache.Service
	tracer   trace.Tracer
	limiter  *RateLimiter
	ttl      time.Duration
	fallback config.PriceFallbackPolicy
}

// NewService creates a price helper rate limited to 8 upstream requests per
// minute, matching the CoinGecko free tier.
func NewService(cacheSvc *cache.Service, tracer trace.Tracer, ttl time.Duration, fallback config.PriceFallbackPolicy) *Service {
	return &Service{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  coingeckoBaseURL,
		cache:    cacheSvc,
		tracer:   tracer,
		limiter:  NewRateLimiter(8, 7500*time.Millisecond),
		ttl:      ttl,
		fallback: fallback,
	}
}

func priceKey(symbol string) string      { return "price:" + symbol }
func stalePriceKey(symbol string) string { return "price:stale:" + symbol }

// USDPrice resolves one symbol to its current USD price.
func (s *Service) USDPrice(ctx context.Context, symbol string) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.usd-price")
	defer span.End()

	if domain.IsStablecoin(symbol) {
		return 1.0, nil
	}

	if v, ok := s.cachedPrice(ctx, priceKey(symbol)); ok {
		return v, nil
	}

	price, err := s.fetchPrice(ctx, symbol)
	if err == nil {
		s.storePrice(ctx, symbol, price)
		return price, nil
	}
	log.Printf("pricing: live lookup failed for %s: %v", symbol, err)

	// Last cached value, even if stale.
	if v, ok := s.cachedPrice(ctx, stalePriceKey(symbol)); ok {
		log.Printf("pricing: using stale cached price for %s", symbol)
		return v, nil
	}

	if s.fallback == config.PriceFallbackFail {
		return 0, fmt.Errorf("no usd price available for %s: %w", symbol, err)
	}
	log.Printf("pricing: no price available for %s, defaulting to 1.0", symbol)
	return 1.0, nil
}

func (s *Service) cachedPrice(ctx context.Context, key string) (float64, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s *Service) storePrice(ctx context.Context, symbol string, price float64) {
	data := []byte(strconv.FormatFloat(price, 'f', -1, 64))
	if err := s.cache.Set(ctx, priceKey(symbol), data, s.ttl); err != nil {
		log.Printf("pricing: cache set failed for %s: %v", symbol, err)
	}
	// The stale copy never expires; it backs the degraded path.
	if err := s.cache.Set(ctx, stalePriceKey(symbol), data, 0); err != nil {
		log.Printf("pricing: stale cache set failed for %s: %v", symbol, err)
	}
}

func (s *Service) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	id, ok := coingeckoID[symbol]
	if !ok {
		return 0, fmt.Errorf("unknown asset symbol %q", symbol)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", s.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("coingecko API error %d: %s", resp.StatusCode, string(body))
	}

	var raw map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return 0, fmt.Errorf("parse price payload: %w", err)
	}
	price, ok := raw[id]["usd"]
	if !ok {
		return 0, fmt.Errorf("no usd price in payload for %s", id)
	}
	return price, nil
}
