package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Signature identifies a logical search request: the endpoint URL and its
// query parameters. Two signatures are equal iff the endpoint matches and
// the parameter sets are equal, independent of insertion order.
type Signature struct {
	// Endpoint is the full request URL without query string
	// (e.g., "https://api.yelp.com/v3/businesses/search").
	Endpoint string

	// Params are the query parameters for the request.
	Params url.Values
}

// String generates the deterministic canonical form of the signature.
// Format: endpoint?param1=val1&param2=val2 with parameters sorted by key.
//
// Example:
//
//	https://api.yelp.com/v3/businesses/search?limit=50&location=Chicago&offset=0
func (s Signature) String() string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(s.Endpoint, "/"))

	if len(s.Params) > 0 {
		keys := make([]string, 0, len(s.Params))
		for key := range s.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		b.WriteByte('?')
		for i, key := range keys {
			if i > 0 {
				b.WriteByte('&')
			}
			fmt.Fprintf(&b, "%s=%s", key, s.Params.Get(key))
		}
	}

	return b.String()
}

// Hash returns the cache key: the hex SHA-256 digest of the canonical form.
func (s Signature) Hash() string {
	sum := sha256.Sum256([]byte(s.String()))
	return hex.EncodeToString(sum[:])
}
