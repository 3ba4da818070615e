// Package sign implements the two request-signing families the connectors
// need: symmetric HMAC-SHA256 over canonicalized query parameters, and
// Starknet typed-data signatures over the STARK curve. Both are pure
// functions of their inputs; callers supply all key material and timestamps.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// HMACQuery signs sorted "key=value" parameters joined with "&", separated
// from the millisecond timestamp by "|". Identical (params, timestamp,
// secret) always yield an identical signature regardless of map iteration
// order.
func HMACQuery(params map[string]string, timestamp, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	payload := strings.Join(pairs, "&") + "|" + timestamp

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
