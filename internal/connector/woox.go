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
	"volumedeck/internal/sign"

	"go.opentelemetry.io/otel/trace"
)

const (
	wooxBaseURL  = "https://api.woox.io"
	wooxPageSize = 100

	// Trades older than this live on the archive endpoint.
	wooxRetention = 90 * 24 * time.Hour
)

// WooX fetches the account's own fills; both endpoints require an API key
// and HMAC-signed query string. Historical ranges straddling the retention
// boundary are split between the live and archive endpoints and merged by
// trade id.
type WooX struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	now     func() time.Time
}

func NewWooX(tracer trace.Tracer) *WooX {
	return &WooX{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: wooxBaseURL,
		tracer:  tracer,
		now:     time.Now,
	}
}

func (c *WooX) PlatformName() domain.PlatformID { return domain.PlatformWooX }

// wooxTimestampMS tolerates both numeric and quoted millisecond timestamps,
// with or without a fractional part.
type wooxTimestampMS int64

func (t *wooxTimestampMS) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("bad executed_timestamp %q: %w", s, err)
	}
	*t = wooxTimestampMS(int64(f))
	return nil
}

type wooxTrade struct {
	ID                int64           `json:"id"`
	ExecutedPrice     float64         `json:"executed_price"`
	ExecutedQuantity  float64         `json:"executed_quantity"`
	ExecutedTimestamp wooxTimestampMS `json:"executed_timestamp"`
}

func (t wooxTrade) toFill() Fill {
	return Fill{
		ID:    strconv.FormatInt(t.ID, 10),
		Price: t.ExecutedPrice,
		Size:  t.ExecutedQuantity,
		Time:  time.UnixMilli(int64(t.ExecutedTimestamp)).UTC(),
	}
}

type wooxTradePage struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Rows    []wooxTrade `json:"rows"`
	Meta    struct {
		CurrentPage int `json:"current_page"`
		TotalPage   int `json:"total_page"`
	} `json:"meta"`
}

func (c *WooX) signedGet(ctx context.Context, path string, params map[string]string, cred *domain.Credential) (*wooxTradePage, error) {
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	signature := sign.HMACQuery(params, timestamp, cred.APISecret)

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", cred.APIKey)
	req.Header.Set("x-api-signature", signature)
	req.Header.Set("x-api-timestamp", timestamp)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	var page wooxTradePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse trades payload: %w", err)
	}
	if !page.Success {
		return nil, fmt.Errorf("woox API error: %s", page.Message)
	}
	return &page, nil
}

// recentTrades walks /v1/client/trades with page-number pagination.
func (c *WooX) recentTrades(ctx context.Context, symbol string, startMs, endMs int64, cred *domain.Credential) ([]Fill, error) {
	fetch := func(ctx context.Context, cursor string) (paging.Page[Fill], error) {
		pageNum := 1
		if cursor != "" {
			parsed, err := strconv.Atoi(cursor)
			if err != nil {
				return paging.Page[Fill]{}, fmt.Errorf("bad page cursor %q: %w", cursor, err)
			}
			pageNum = parsed
		}

		params := map[string]string{
			"symbol":  symbol,
			"start_t": strconv.FormatInt(startMs, 10),
			"end_t":   strconv.FormatInt(endMs, 10),
			"page":    strconv.Itoa(pageNum),
			"size":    strconv.Itoa(wooxPageSize),
		}
		resp, err := c.signedGet(ctx, "/v1/client/trades", params, cred)
		if err != nil {
			return paging.Page[Fill]{}, err
		}

		page := paging.Page[Fill]{}
		for _, trade := range resp.Rows {
			page.Items = append(page.Items, trade.toFill())
		}

		totalPages := resp.Meta.TotalPage
		if totalPages == 0 {
			totalPages = resp.Meta.CurrentPage
		}
		if resp.Meta.CurrentPage >= totalPages {
			page.Done = true
		} else {
			page.Next = strconv.Itoa(pageNum + 1)
		}
		return page, nil
	}

	return paging.Collect(ctx, fetch, paging.Options[Fill]{
		Key:  func(f Fill) string { return f.ID },
		Less: func(a, b Fill) bool { return a.Time.Before(b.Time) },
	})
}

// archiveTrades walks /v1/client/hist_trades with a trade-id cursor; a short
// page signals exhaustion.
func (c *WooX) archiveTrades(ctx context.Context, symbol string, startMs, endMs int64, cred *domain.Credential) ([]Fill, error) {
	fetch := func(ctx context.Context, cursor string) (paging.Page[Fill], error) {
		params := map[string]string{
			"symbol":  symbol,
			"start_t": strconv.FormatInt(startMs, 10),
			"end_t":   strconv.FormatInt(endMs, 10),
			"limit":   strconv.Itoa(wooxPageSize),
		}
		if cursor != "" {
			params["fromId"] = cursor
		}
		resp, err := c.signedGet(ctx, "/v1/client/hist_trades", params, cred)
		if err != nil {
			return paging.Page[Fill]{}, err
		}

		page := paging.Page[Fill]{}
		for _, trade := range resp.Rows {
			page.Items = append(page.Items, trade.toFill())
		}
		if len(resp.Rows) > 0 {
			page.Next = strconv.FormatInt(resp.Rows[len(resp.Rows)-1].ID, 10)
		}
		return page, nil
	}

	return paging.Collect(ctx, fetch, paging.Options[Fill]{
		PageSize: wooxPageSize,
		Key:      func(f Fill) string { return f.ID },
		Less:     func(a, b Fill) bool { return a.Time.Before(b.Time) },
	})
}

func (c *WooX) userFills(ctx context.Context, symbol string, start, end time.Time, cred *domain.Credential) ([]Fill, error) {
	boundary := c.now().Add(-wooxRetention)

	var fills []Fill
	var firstErr error

	if end.After(boundary) {
		recentStart := start
		if recentStart.Before(boundary) {
			recentStart = boundary
		}
		recent, err := c.recentTrades(ctx, symbol, recentStart.UnixMilli(), end.UnixMilli(), cred)
		fills = append(fills, recent...)
		if err != nil {
			firstErr = err
		}
	}

	if start.Before(boundary) {
		archiveEnd := end
		if archiveEnd.After(boundary) {
			archiveEnd = boundary.Add(-time.Millisecond)
		}
		if !start.After(archiveEnd) {
			archived, err := c.archiveTrades(ctx, symbol, start.UnixMilli(), archiveEnd.UnixMilli(), cred)
			fills = append(fills, archived...)
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	// Sub-ranges should not overlap, but dedup by trade id regardless.
	seen := make(map[string]struct{}, len(fills))
	unique := fills[:0]
	for _, f := range fills {
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		unique = append(unique, f)
	}
	return unique, firstErr
}

// FetchHistoricalDaily aggregates the account's own fills into daily records.
func (c *WooX) FetchHistoricalDaily(ctx context.Context, symbol string, start, end time.Time, cred *domain.Credential) ([]domain.DailyVolumeRecord, error) {
	ctx, span := c.tracer.Start(ctx, "woox.fetch-historical-daily")
	defer span.End()

	if cred == nil || cred.APIKey == "" || cred.APISecret == "" {
		return nil, ErrAuthRequired
	}

	fills, err := c.userFills(ctx, symbol, start, end, cred)
	records := bucketFillsDaily(domain.PlatformWooX, symbol, quoteFromSymbol(symbol), fills, start, end)
	if err != nil {
		return records, fmt.Errorf("fetch woox fills for %s: %w", symbol, err)
	}
	return records, nil
}

// FetchLatest24h sums the account's fills over the trailing 24 hours across
// the tracked markets.
func (c *WooX) FetchLatest24h(ctx context.Context, cred *domain.Credential) domain.ExchangeVolumeInfo {
	ctx, span := c.tracer.Start(ctx, "woox.fetch-latest-24h")
	defer span.End()

	const scope = "ACCOUNT_TOTAL"

	if cred == nil || cred.APIKey == "" || cred.APISecret == "" {
		return errorInfo(domain.PlatformWooX, scope, ErrAuthRequired)
	}

	now := c.now().UTC()
	start := now.Add(-24 * time.Hour)

	var total float64
	var errs []string
	for _, symbol := range domain.PlatformSymbols[domain.PlatformWooX] {
		fills, err := c.recentTrades(ctx, symbol, start.UnixMilli(), now.UnixMilli(), cred)
		for _, f := range fills {
			total += f.Price * f.Size
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", symbol, err))
		}
	}

	info := domain.ExchangeVolumeInfo{
		Platform:     domain.PlatformWooX,
		Scope:        scope,
		Volume24hUSD: total,
		Timestamp:    now,
	}
	if len(errs) > 0 {
		info.Err = strings.Join(errs, "; ")
	}
	return info
}
