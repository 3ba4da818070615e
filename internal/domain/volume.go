package domain

import "time"

// PlatformID identifies one supported exchange.
type PlatformID string

const (
	PlatformBybit       PlatformID = "bybit"
	PlatformHyperliquid PlatformID = "hyperliquid"
	PlatformWooX        PlatformID = "woox"
	PlatformParadex     PlatformID = "paradex"
)

// SupportedPlatforms lists every exchange a connector exists for, in the
// order they appear in API responses.
var SupportedPlatforms = []PlatformID{
	PlatformBybit,
	PlatformHyperliquid,
	PlatformWooX,
	PlatformParadex,
}

func (p PlatformID) IsValid() bool {
	for _, known := range SupportedPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// PlatformSymbols maps each platform to the markets tracked for it. Symbol
// formats are platform-specific (WooX uses PERP_BTC_USDT, Paradex
// BTC-USD-PERP, Hyperliquid bare coin names).
var PlatformSymbols = map[PlatformID][]string{
	PlatformBybit:       {"BTCUSDT", "ETHUSDT"},
	PlatformHyperliquid: {"BTC", "ETH"},
	PlatformWooX:        {"PERP_BTC_USDT", "PERP_ETH_USDT"},
	PlatformParadex:     {"BTC-USD-PERP", "ETH-USD-PERP"},
}

// DailyVolumeRecord is one calendar day of traded volume for a
// (platform, symbol) pair. Prices are in the quote asset; VolumeUSD is
// quote-denominated and USD-normalized before it reaches the aggregation
// layer. Uniquely identified by (Platform, Symbol, Day).
type DailyVolumeRecord struct {
	Platform   PlatformID `json:"platform"`
	Symbol     string     `json:"symbol"`
	Day        time.Time  `json:"day"`
	Open       float64    `json:"open"`
	High       float64    `json:"high"`
	Low        float64    `json:"low"`
	Close      float64    `json:"close"`
	VolumeUSD  float64    `json:"volume_usd"`
	QuoteAsset string     `json:"quote_asset"`
}

// ExchangeVolumeInfo is one platform's 24h volume measurement, or the error
// that prevented it. Errors are carried as data so one platform's failure
// never aborts the fan-out.
type ExchangeVolumeInfo struct {
	Platform     PlatformID `json:"platform"`
	Scope        string     `json:"scope,omitempty"`
	Volume24hUSD float64    `json:"volume_24h_usd"`
	Timestamp    time.Time  `json:"timestamp"`
	Err          string     `json:"error,omitempty"`
}

// AggregatedVolume is the cross-platform 24h total. Platforms that failed
// contribute zero to the total but stay listed with their error.
type AggregatedVolume struct {
	TotalVolume24hUSD float64              `json:"total_volume_24h_usd"`
	LastUpdated       time.Time            `json:"last_updated"`
	Platforms         []ExchangeVolumeInfo `json:"platforms"`
}

// AggregatedHistoricalPoint is the summed USD volume across all platforms
// and symbols for one day.
type AggregatedHistoricalPoint struct {
	Day            time.Time `json:"day"`
	TotalVolumeUSD float64   `json:"total_volume_usd"`
}

// BackfillStatus reports the outcome of one platform's historical backfill.
type BackfillStatus string

const (
	BackfillSuccess        BackfillStatus = "success"
	BackfillPartialSuccess BackfillStatus = "partial_success"
	BackfillError          BackfillStatus = "error"
)

// BackfillResult is the per-platform outcome of FetchAndStoreHistorical.
type BackfillResult struct {
	Platform PlatformID     `json:"platform"`
	Status   BackfillStatus `json:"status"`
	Fetched  int            `json:"fetched"`
	Stored   int            `json:"stored"`
	Errors   []string       `json:"errors,omitempty"`
}

// Credential is the decrypted key material for one platform. The aggregation
// core borrows it for the duration of a fetch and never stores or logs it.
// StarkAccount/StarkPrivateKey carry Starknet wallet material for platforms
// authenticating via typed-data signatures.
type Credential struct {
	Platform        PlatformID
	APIKey          string
	APISecret       string
	StarkAccount    string
	StarkPrivateKey string
}

var stablecoins = map[string]bool{
	"USD":  true,
	"USDT": true,
	"USDC": true,
	"DAI":  true,
	"BUSD": true,
}

// IsStablecoin reports whether symbol is treated as 1:1 with USD.
func IsStablecoin(symbol string) bool {
	return stablecoins[symbol]
}

// DayOf truncates t to the start of its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
