// Package connector implements the per-exchange volume fetchers. Each
// exchange satisfies the same capability interface; the aggregation layer
// holds a map of platform id to Connector and never branches on concrete
// type.
package connector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"volumedeck/internal/domain"
	"volumedeck/internal/paging"
)

const requestTimeout = 30 * time.Second

// ErrAuthRequired reports a fetch that cannot proceed without credentials.
var ErrAuthRequired = errors.New("api credentials required")

// Connector is the public contract each exchange variant implements.
// FetchLatest24h never returns an error: failures come back as an
// ExchangeVolumeInfo with zero volume and a populated Err field.
type Connector interface {
	PlatformName() domain.PlatformID
	FetchHistoricalDaily(ctx context.Context, symbol string, start, end time.Time, cred *domain.Credential) ([]domain.DailyVolumeRecord, error)
	FetchLatest24h(ctx context.Context, cred *domain.Credential) domain.ExchangeVolumeInfo
}

// Fill is one executed trade, normalized across exchanges.
type Fill struct {
	ID    string
	Price float64
	Size  float64
	Time  time.Time
}

// bucketFillsDaily aggregates fills into one record per UTC calendar day:
// open is the first trade price of the day, close the last, high/low the
// extrema, volume the sum of price*size. Fills outside [start, end] are
// discarded even when the upstream endpoint over-returns.
func bucketFillsDaily(platform domain.PlatformID, symbol, quoteAsset string, fills []Fill, start, end time.Time) []domain.DailyVolumeRecord {
	sort.Slice(fills, func(i, j int) bool { return fills[i].Time.Before(fills[j].Time) })

	days := make(map[time.Time]*domain.DailyVolumeRecord)
	for _, f := range fills {
		if f.Time.Before(start) || f.Time.After(end) {
			continue
		}
		day := domain.DayOf(f.Time)
		rec, ok := days[day]
		if !ok {
			rec = &domain.DailyVolumeRecord{
				Platform:   platform,
				Symbol:     symbol,
				Day:        day,
				Open:       f.Price,
				High:       f.Price,
				Low:        f.Price,
				QuoteAsset: quoteAsset,
			}
			days[day] = rec
		}
		if f.Price > rec.High {
			rec.High = f.Price
		}
		if f.Price < rec.Low {
			rec.Low = f.Price
		}
		rec.Close = f.Price
		rec.VolumeUSD += f.Price * f.Size
	}

	out := make([]domain.DailyVolumeRecord, 0, len(days))
	for _, rec := range days {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// errorInfo wraps a failed 24h fetch as data so the fan-out never sees a
// raised error.
func errorInfo(platform domain.PlatformID, scope string, err error) domain.ExchangeVolumeInfo {
	return domain.ExchangeVolumeInfo{
		Platform:  platform,
		Scope:     scope,
		Timestamp: time.Now().UTC(),
		Err:       err.Error(),
	}
}

// readBody drains the response and converts non-200 statuses into
// paging.HTTPError so the retry policy can classify them.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &paging.HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// quoteFromSymbol extracts the quote asset from an underscore-delimited
// symbol like PERP_BTC_USDT.
func quoteFromSymbol(symbol string) string {
	parts := strings.Split(symbol, "_")
	if len(parts) < 2 {
		return symbol
	}
	return parts[len(parts)-1]
}
