package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"volumedeck/internal/domain"
	"volumedeck/internal/paging"
	"volumedeck/internal/sign"

	"go.opentelemetry.io/otel/trace"
)

const (
	paradexBaseURL  = "https://api.prod.paradex.trade"
	paradexPageSize = 5000

	// Paradex caps auth tokens at one week; stay a minute under it to
	// tolerate clock skew.
	paradexTokenLifetime = 7*24*time.Hour - time.Minute
)

// Paradex authenticates with a Starknet typed-data signature exchanged for a
// bearer JWT, then pages the account's fills. The token is cached and reused
// until it nears expiry.
type Paradex struct {
	client  *http.Client
	baseURL string
	chainID string
	tracer  trace.Tracer
	now     func() time.Time

	mu           sync.Mutex
	token        string
	tokenExpiry  time.Time
	tokenAccount string
}

func NewParadex(tracer trace.Tracer, chainID string) *Paradex {
	return &Paradex{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: paradexBaseURL,
		chainID: chainID,
		tracer:  tracer,
		now:     time.Now,
	}
}

func (c *Paradex) PlatformName() domain.PlatformID { return domain.PlatformParadex }

func parseFelt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("bad hex felt %q", s)
	}
	return v, nil
}

// authenticate returns a bearer token, signing a fresh auth request only
// when the cached token is missing, near expiry, or bound to a different
// account.
func (c *Paradex) authenticate(ctx context.Context, cred *domain.Credential) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	if c.token != "" && c.tokenAccount == cred.StarkAccount && now.Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	account, err := parseFelt(cred.StarkAccount)
	if err != nil {
		return "", fmt.Errorf("parse stark account: %w", err)
	}
	privKey, err := parseFelt(cred.StarkPrivateKey)
	if err != nil {
		return "", fmt.Errorf("parse stark private key: %w", err)
	}

	timestamp := now.Unix()
	expiration := now.Add(paradexTokenLifetime).Unix()

	msgHash, err := sign.AuthMessageHash(c.chainID, account, sign.AuthRequest{
		Method:     http.MethodPost,
		Path:       "/v1/auth",
		Body:       "",
		Timestamp:  timestamp,
		Expiration: expiration,
	})
	if err != nil {
		return "", fmt.Errorf("build auth message: %w", err)
	}
	r, s, err := sign.Sign(msgHash, privKey)
	if err != nil {
		return "", fmt.Errorf("sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("PARADEX-STARKNET-ACCOUNT", cred.StarkAccount)
	req.Header.Set("PARADEX-STARKNET-SIGNATURE", fmt.Sprintf(`["%s","%s"]`, r.String(), s.String()))
	req.Header.Set("PARADEX-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("PARADEX-SIGNATURE-EXPIRATION", strconv.FormatInt(expiration, 10))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	var payload struct {
		JWTToken string `json:"jwt_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parse auth response: %w", err)
	}
	if payload.JWTToken == "" {
		return "", fmt.Errorf("auth response carried no token")
	}

	c.token = payload.JWTToken
	c.tokenExpiry = time.Unix(expiration, 0)
	c.tokenAccount = cred.StarkAccount
	return c.token, nil
}

type paradexFill struct {
	ID        string `json:"id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	CreatedAt int64  `json:"created_at"`
}

func (f paradexFill) toFill() (Fill, error) {
	price, err := strconv.ParseFloat(f.Price, 64)
	if err != nil {
		return Fill{}, err
	}
	size, err := strconv.ParseFloat(f.Size, 64)
	if err != nil {
		return Fill{}, err
	}
	return Fill{
		ID:    f.ID,
		Price: price,
		Size:  size,
		Time:  time.UnixMilli(f.CreatedAt).UTC(),
	}, nil
}

// accountFills walks /v1/account/list-fills with cursor pagination.
func (c *Paradex) accountFills(ctx context.Context, token, market string, startMs, endMs int64) ([]Fill, error) {
	fetch := func(ctx context.Context, cursor string) (paging.Page[Fill], error) {
		q := url.Values{}
		q.Set("market", market)
		q.Set("start_at", strconv.FormatInt(startMs, 10))
		q.Set("end_at", strconv.FormatInt(endMs, 10))
		q.Set("page_size", strconv.Itoa(paradexPageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/account/list-fills?"+q.Encode(), nil)
		if err != nil {
			return paging.Page[Fill]{}, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.client.Do(req)
		if err != nil {
			return paging.Page[Fill]{}, err
		}
		body, err := readBody(resp)
		if err != nil {
			return paging.Page[Fill]{}, err
		}

		var payload struct {
			Results []paradexFill `json:"results"`
			Next    string        `json:"next"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return paging.Page[Fill]{}, fmt.Errorf("parse fills payload: %w", err)
		}

		page := paging.Page[Fill]{Next: payload.Next}
		for _, raw := range payload.Results {
			fill, err := raw.toFill()
			if err != nil {
				continue
			}
			page.Items = append(page.Items, fill)
		}
		return page, nil
	}

	return paging.Collect(ctx, fetch, paging.Options[Fill]{
		Key:  func(f Fill) string { return f.ID },
		Less: func(a, b Fill) bool { return a.Time.Before(b.Time) },
	})
}

// FetchHistoricalDaily aggregates the account's fills into daily records.
func (c *Paradex) FetchHistoricalDaily(ctx context.Context, symbol string, start, end time.Time, cred *domain.Credential) ([]domain.DailyVolumeRecord, error) {
	ctx, span := c.tracer.Start(ctx, "paradex.fetch-historical-daily")
	defer span.End()

	if cred == nil || cred.StarkAccount == "" || cred.StarkPrivateKey == "" {
		return nil, ErrAuthRequired
	}
	token, err := c.authenticate(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("paradex auth: %w", err)
	}

	fills, err := c.accountFills(ctx, token, symbol, start.UnixMilli(), end.UnixMilli())
	records := bucketFillsDaily(domain.PlatformParadex, symbol, "USD", fills, start, end)
	if err != nil {
		return records, fmt.Errorf("fetch paradex fills for %s: %w", symbol, err)
	}
	return records, nil
}

// FetchLatest24h sums the account's fills over the trailing 24 hours across
// the tracked markets.
func (c *Paradex) FetchLatest24h(ctx context.Context, cred *domain.Credential) domain.ExchangeVolumeInfo {
	ctx, span := c.tracer.Start(ctx, "paradex.fetch-latest-24h")
	defer span.End()

	const scope = "ACCOUNT_TOTAL"

	if cred == nil || cred.StarkAccount == "" || cred.StarkPrivateKey == "" {
		return errorInfo(domain.PlatformParadex, scope, ErrAuthRequired)
	}
	token, err := c.authenticate(ctx, cred)
	if err != nil {
		return errorInfo(domain.PlatformParadex, scope, err)
	}

	now := c.now().UTC()
	start := now.Add(-24 * time.Hour)

	var total float64
	var errs []string
	for _, market := range domain.PlatformSymbols[domain.PlatformParadex] {
		fills, err := c.accountFills(ctx, token, market, start.UnixMilli(), now.UnixMilli())
		for _, f := range fills {
			total += f.Price * f.Size
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", market, err))
		}
	}

	info := domain.ExchangeVolumeInfo{
		Platform:     domain.PlatformParadex,
		Scope:        scope,
		Volume24hUSD: total,
		Timestamp:    now,
	}
	if len(errs) > 0 {
		info.Err = strings.Join(errs, "; ")
	}
	return info
}
