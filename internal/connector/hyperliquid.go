package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"volumedeck/internal/domain"
	"volumedeck/internal/paging"

	"go.opentelemetry.io/otel/trace"
)

const hyperliquidBaseURL = "https://api.hyperliquid.xyz"

// Hyperliquid serves everything through a single POST /info endpoint keyed
// by a request type field. Candles arrive in one shot for the full range.
type Hyperliquid struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

func NewHyperliquid(tracer trace.Tracer) *Hyperliquid {
	return &Hyperliquid{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: hyperliquidBaseURL,
		tracer:  tracer,
	}
}

func (c *Hyperliquid) PlatformName() domain.PlatformID { return domain.PlatformHyperliquid }

func (c *Hyperliquid) info(ctx context.Context, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	return readBody(resp)
}

type hyperliquidCandle struct {
	Start  int64  `json:"t"`
	Open   string `json:"o"`
	High   string `json:"h"`
	Low    string `json:"l"`
	Close  string `json:"c"`
	Volume string `json:"v"`
}

// FetchHistoricalDaily requests a daily candle snapshot. Volume arrives in
// the base asset, so the quote-denominated volume is base * midpoint of open
// and close.
func (c *Hyperliquid) FetchHistoricalDaily(ctx context.Context, symbol string, start, end time.Time, _ *domain.Credential) ([]domain.DailyVolumeRecord, error) {
	ctx, span := c.tracer.Start(ctx, "hyperliquid.fetch-historical-daily")
	defer span.End()

	startMs := start.UnixMilli()
	endMs := end.UnixMilli()

	fetch := func(ctx context.Context, _ string) (paging.Page[domain.DailyVolumeRecord], error) {
		payload := map[string]interface{}{
			"type": "candleSnapshot",
			"req": map[string]interface{}{
				"coin":      symbol,
				"interval":  "1d",
				"startTime": startMs,
				"endTime":   endMs,
			},
		}
		body, err := c.info(ctx, payload)
		if err != nil {
			return paging.Page[domain.DailyVolumeRecord]{}, err
		}

		var candles []hyperliquidCandle
		if err := json.Unmarshal(body, &candles); err != nil {
			return paging.Page[domain.DailyVolumeRecord]{}, fmt.Errorf("parse candle snapshot: %w", err)
		}

		page := paging.Page[domain.DailyVolumeRecord]{Done: true}
		for _, candle := range candles {
			if candle.Start < startMs || candle.Start > endMs {
				continue
			}
			rec, err := candle.toRecord(symbol)
			if err != nil {
				continue
			}
			page.Items = append(page.Items, rec)
		}
		return page, nil
	}

	return paging.Collect(ctx, fetch, paging.Options[domain.DailyVolumeRecord]{
		Key:  func(r domain.DailyVolumeRecord) string { return r.Day.Format("2006-01-02") },
		Less: func(a, b domain.DailyVolumeRecord) bool { return a.Day.Before(b.Day) },
	})
}

func (candle hyperliquidCandle) toRecord(symbol string) (domain.DailyVolumeRecord, error) {
	open, err := strconv.ParseFloat(candle.Open, 64)
	if err != nil {
		return domain.DailyVolumeRecord{}, err
	}
	high, err := strconv.ParseFloat(candle.High, 64)
	if err != nil {
		return domain.DailyVolumeRecord{}, err
	}
	low, err := strconv.ParseFloat(candle.Low, 64)
	if err != nil {
		return domain.DailyVolumeRecord{}, err
	}
	closePrice, err := strconv.ParseFloat(candle.Close, 64)
	if err != nil {
		return domain.DailyVolumeRecord{}, err
	}
	baseVolume, err := strconv.ParseFloat(candle.Volume, 64)
	if err != nil {
		return domain.DailyVolumeRecord{}, err
	}
	return domain.DailyVolumeRecord{
		Platform:   domain.PlatformHyperliquid,
		Symbol:     symbol,
		Day:        domain.DayOf(time.UnixMilli(candle.Start)),
		Open:       open,
		High:       high,
		Low:        low,
		Close:      closePrice,
		VolumeUSD:  baseVolume * (open + closePrice) / 2,
		QuoteAsset: "USDC",
	}, nil
}

// FetchLatest24h sums dayNtlVlm across all perp asset contexts; the field is
// already notional USD.
func (c *Hyperliquid) FetchLatest24h(ctx context.Context, _ *domain.Credential) domain.ExchangeVolumeInfo {
	ctx, span := c.tracer.Start(ctx, "hyperliquid.fetch-latest-24h")
	defer span.End()

	const scope = "PERP_TOTAL"

	body, err := c.info(ctx, map[string]string{"type": "metaAndAssetCtxs"})
	if err != nil {
		return errorInfo(domain.PlatformHyperliquid, scope, err)
	}

	// Response is a two-element array: [meta, assetCtxs].
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil || len(parts) < 2 {
		return errorInfo(domain.PlatformHyperliquid, scope, fmt.Errorf("unexpected metaAndAssetCtxs shape"))
	}

	var ctxs []struct {
		DayNtlVlm string `json:"dayNtlVlm"`
	}
	if err := json.Unmarshal(parts[1], &ctxs); err != nil {
		return errorInfo(domain.PlatformHyperliquid, scope, fmt.Errorf("parse asset contexts: %w", err))
	}
	if len(ctxs) == 0 {
		return errorInfo(domain.PlatformHyperliquid, scope, fmt.Errorf("no asset contexts returned"))
	}

	var total float64
	for _, assetCtx := range ctxs {
		v, err := strconv.ParseFloat(assetCtx.DayNtlVlm, 64)
		if err != nil {
			continue
		}
		total += v
	}

	return domain.ExchangeVolumeInfo{
		Platform:     domain.PlatformHyperliquid,
		Scope:        scope,
		Volume24hUSD: total,
		Timestamp:    time.Now().UTC(),
	}
}
