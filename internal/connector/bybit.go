package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"volumedeck/internal/domain"
	"volumedeck/internal/paging"

	"go.opentelemetry.io/otel/trace"
)

const (
	bybitBaseURL   = "https://api.bybit.com"
	bybitKlineSize = 200
)

// Bybit reads public V5 market data; no credentials are needed for either
// operation.
type Bybit struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

func NewBybit(tracer trace.Tracer) *Bybit {
	return &Bybit{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: bybitBaseURL,
		tracer:  tracer,
	}
}

func (c *Bybit) PlatformName() domain.PlatformID { return domain.PlatformBybit }

// bybitCategory picks linear for stable-quoted symbols and inverse for
// coin-margined ones.
func bybitCategory(symbol string) string {
	if strings.HasSuffix(symbol, "USD") && !strings.HasSuffix(symbol, "USDT") && !strings.HasSuffix(symbol, "USDC") {
		return "inverse"
	}
	return "linear"
}

func bybitQuote(symbol string) string {
	switch {
	case strings.HasSuffix(symbol, "USDT"):
		return "USDT"
	case strings.HasSuffix(symbol, "USDC"):
		return "USDC"
	default:
		return "USD"
	}
}

// FetchHistoricalDaily pages through the public kline endpoint. Each daily
// candle already carries its quote-denominated turnover, so no per-trade
// bucketing is needed.
func (c *Bybit) FetchHistoricalDaily(ctx context.Context, symbol string, start, end time.Time, _ *domain.Credential) ([]domain.DailyVolumeRecord, error) {
	ctx, span := c.tracer.Start(ctx, "bybit.fetch-historical-daily")
	defer span.End()

	quote := bybitQuote(symbol)
	startMs := start.UnixMilli()
	endMs := end.UnixMilli()
	dayMs := int64(24 * time.Hour / time.Millisecond)

	fetch := func(ctx context.Context, cursor string) (paging.Page[domain.DailyVolumeRecord], error) {
		fetchStart := startMs
		if cursor != "" {
			parsed, err := strconv.ParseInt(cursor, 10, 64)
			if err != nil {
				return paging.Page[domain.DailyVolumeRecord]{}, fmt.Errorf("bad kline cursor %q: %w", cursor, err)
			}
			fetchStart = parsed
		}

		q := url.Values{}
		q.Set("category", bybitCategory(symbol))
		q.Set("symbol", symbol)
		q.Set("interval", "D")
		q.Set("start", strconv.FormatInt(fetchStart, 10))
		q.Set("end", strconv.FormatInt(endMs, 10))
		q.Set("limit", strconv.Itoa(bybitKlineSize))

		rows, err := c.kline(ctx, q)
		if err != nil {
			return paging.Page[domain.DailyVolumeRecord]{}, err
		}

		page := paging.Page[domain.DailyVolumeRecord]{Done: true}
		var newest int64
		for _, row := range rows {
			rec, ts, err := bybitRowToRecord(symbol, quote, row)
			if err != nil {
				// Malformed row: skip it, keep the rest of the page.
				continue
			}
			if ts > newest {
				newest = ts
			}
			if ts < startMs || ts > endMs {
				continue
			}
			page.Items = append(page.Items, rec)
		}
		if len(rows) == bybitKlineSize && newest+dayMs <= endMs {
			page.Done = false
			page.Next = strconv.FormatInt(newest+dayMs, 10)
		}
		return page, nil
	}

	return paging.Collect(ctx, fetch, paging.Options[domain.DailyVolumeRecord]{
		Key:  func(r domain.DailyVolumeRecord) string { return r.Day.Format("2006-01-02") },
		Less: func(a, b domain.DailyVolumeRecord) bool { return a.Day.Before(b.Day) },
	})
}

func (c *Bybit) kline(ctx context.Context, q url.Values) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v5/market/kline?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	var raw struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse kline payload: %w", err)
	}
	if raw.RetCode != 0 {
		return nil, fmt.Errorf("bybit API error %d: %s", raw.RetCode, raw.RetMsg)
	}
	return raw.Result.List, nil
}

// bybitRowToRecord maps one kline row
// [startTime, open, high, low, close, volume, turnover] onto a daily record.
func bybitRowToRecord(symbol, quote string, row []string) (domain.DailyVolumeRecord, int64, error) {
	if len(row) < 7 {
		return domain.DailyVolumeRecord{}, 0, fmt.Errorf("kline row has %d fields", len(row))
	}
	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return domain.DailyVolumeRecord{}, 0, err
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return domain.DailyVolumeRecord{}, 0, err
		}
		vals[i] = v
	}
	turnover, err := strconv.ParseFloat(row[6], 64)
	if err != nil {
		return domain.DailyVolumeRecord{}, 0, err
	}
	return domain.DailyVolumeRecord{
		Platform:   domain.PlatformBybit,
		Symbol:     symbol,
		Day:        domain.DayOf(time.UnixMilli(ts)),
		Open:       vals[0],
		High:       vals[1],
		Low:        vals[2],
		Close:      vals[3],
		VolumeUSD:  turnover,
		QuoteAsset: quote,
	}, ts, nil
}

// FetchLatest24h sums 24h turnover across all stable-quoted linear tickers.
func (c *Bybit) FetchLatest24h(ctx context.Context, _ *domain.Credential) domain.ExchangeVolumeInfo {
	ctx, span := c.tracer.Start(ctx, "bybit.fetch-latest-24h")
	defer span.End()

	const scope = "LINEAR_TOTAL"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v5/market/tickers?category=linear", nil)
	if err != nil {
		return errorInfo(domain.PlatformBybit, scope, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errorInfo(domain.PlatformBybit, scope, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return errorInfo(domain.PlatformBybit, scope, err)
	}

	var raw struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []struct {
				Symbol      string `json:"symbol"`
				Turnover24h string `json:"turnover24h"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return errorInfo(domain.PlatformBybit, scope, fmt.Errorf("parse tickers payload: %w", err))
	}
	if raw.RetCode != 0 {
		return errorInfo(domain.PlatformBybit, scope, fmt.Errorf("bybit API error %d: %s", raw.RetCode, raw.RetMsg))
	}

	var total float64
	for _, ticker := range raw.Result.List {
		if !strings.Contains(ticker.Symbol, "USDT") && !strings.Contains(ticker.Symbol, "USDC") {
			continue
		}
		v, err := strconv.ParseFloat(ticker.Turnover24h, 64)
		if err != nil {
			continue
		}
		total += v
	}

	return domain.ExchangeVolumeInfo{
		Platform:     domain.PlatformBybit,
		Scope:        scope,
		Volume24hUSD: total,
		Timestamp:    time.Now().UTC(),
	}
}
