// Package paging drives cursor- and page-number-based upstream endpoints to
// exhaustion with bounded retries, returning a deduplicated, time-sorted
// accumulation of items. Partial results are returned alongside the error
// when a fetch aborts.
package paging

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"
)

// HTTPError carries a non-2xx upstream status so retry classification can
// distinguish rate limits, server faults and caller mistakes.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Kind classifies a fetch error for the retry policy.
type Kind int

const (
	// KindFatal aborts the walk immediately; retrying cannot succeed.
	KindFatal Kind = iota
	// KindTransient retries the same page up to MaxRetries times.
	KindTransient
	// KindRateLimited retries the same page after the backoff interval.
	KindRateLimited
)

// Classify maps an error onto the retry taxonomy. 429 is rate limited, 5xx
// and network/timeout failures are transient, everything else (auth errors,
// parameter errors, malformed responses) is fatal.
func Classify(err error) Kind {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 429:
			return KindRateLimited
		case httpErr.StatusCode >= 500:
			return KindTransient
		default:
			return KindFatal
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindFatal
}

// Page is one fetch result. Next is the continuation token for the following
// call; an empty Next, an empty item list, or Done=true ends the walk. A page
// shorter than Options.PageSize also implies exhaustion.
type Page[T any] struct {
	Items []T
	Next  string
	Done  bool
}

// FetchFunc retrieves the page at cursor. The first call receives the empty
// cursor.
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

type Options[T any] struct {
	// PageSize, when positive, lets a short page signal exhaustion.
	PageSize int
	// MaxRetries bounds retries of a single page. Defaults to 3.
	MaxRetries int
	// Backoff is the fixed sleep before retrying a page. Defaults to 1s.
	Backoff time.Duration
	// MaxPages guards against a continuation token that never empties.
	// Defaults to 500.
	MaxPages int
	// Key yields the identity used for deduplication. Nil disables dedup.
	Key func(T) string
	// Less orders the final accumulation. Nil leaves fetch order.
	Less func(a, b T) bool
}

func (o *Options[T]) fill() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 500
	}
}

// ErrPageBound reports that the walk hit Options.MaxPages before the
// upstream cursor emptied.
var ErrPageBound = errors.New("pagination exceeded maximum page count")

// Collect walks fetch to exhaustion and returns the accumulated items.
// On abort the items gathered so far are returned together with the error.
func Collect[T any](ctx context.Context, fetch FetchFunc[T], opts Options[T]) ([]T, error) {
	opts.fill()

	var out []T
	seen := make(map[string]struct{})
	cursor := ""

	accumulate := func(items []T) {
		for _, item := range items {
			if opts.Key != nil {
				k := opts.Key(item)
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
			}
			out = append(out, item)
		}
	}

	finish := func(err error) ([]T, error) {
		if opts.Less != nil {
			sort.Slice(out, func(i, j int) bool { return opts.Less(out[i], out[j]) })
		}
		return out, err
	}

	for pages := 0; pages < opts.MaxPages; pages++ {
		page, err := fetchWithRetry(ctx, fetch, cursor, opts)
		if err != nil {
			return finish(err)
		}

		accumulate(page.Items)

		if page.Done || page.Next == "" || len(page.Items) == 0 {
			return finish(nil)
		}
		if opts.PageSize > 0 && len(page.Items) < opts.PageSize {
			return finish(nil)
		}
		cursor = page.Next
	}
	return finish(ErrPageBound)
}

func fetchWithRetry[T any](ctx context.Context, fetch FetchFunc[T], cursor string, opts Options[T]) (Page[T], error) {
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		page, err := fetch(ctx, cursor)
		if err == nil {
			return page, nil
		}
		lastErr = err

		switch Classify(err) {
		case KindFatal:
			return Page[T]{}, err
		case KindRateLimited, KindTransient:
			if attempt == opts.MaxRetries {
				return Page[T]{}, fmt.Errorf("retries exhausted: %w", lastErr)
			}
			if err := sleep(ctx, opts.Backoff); err != nil {
				return Page[T]{}, err
			}
		}
	}
	return Page[T]{}, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
