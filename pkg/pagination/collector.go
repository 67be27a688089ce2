package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// MaxPageSize is the largest page the search API serves.
	MaxPageSize = 50

	// MaxRecords is the hard per-location record cap.
	MaxRecords = 1000
)

// Fetcher is the single-request dependency the collector drives.
type Fetcher interface {
	Fetch(ctx context.Context, sig cache.Signature) ([]byte, error)
}

// Config holds collector configuration.
type Config struct {
	// Endpoint is the search endpoint URL.
	Endpoint string

	// Term is the fixed search category.
	Term string

	// SortBy is the fixed result ordering key.
	SortBy string

	// PageSize is the requested page size, clamped to [1, MaxPageSize].
	PageSize int
}

// DefaultConfig returns the standard restaurant-search configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint: "https://api.yelp.com/v3/businesses/search",
		Term:     "restaurants",
		SortBy:   "best_match",
		PageSize: MaxPageSize,
	}
}

// Collector accumulates all result pages for one location.
type Collector struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
	now     func() time.Time
}

// NewCollector creates a collector over the given fetcher.
func NewCollector(fetcher Fetcher, config Config) *Collector {
	if config.Endpoint == "" {
		config.Endpoint = DefaultConfig().Endpoint
	}
	if config.Term == "" {
		config.Term = DefaultConfig().Term
	}
	if config.SortBy == "" {
		config.SortBy = DefaultConfig().SortBy
	}
	if config.PageSize <= 0 || config.PageSize > MaxPageSize {
		config.PageSize = MaxPageSize
	}

	return &Collector{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "paginator").Logger(),
		now:     time.Now,
	}
}

// searchPage is the slice of the response body the paginator cares about.
type searchPage struct {
	Businesses []map[string]any `json:"businesses"`
	Total      int              `json:"total"`
}

// Collect fetches result pages for the location until a page comes back
// short or totalLimit records have accumulated. totalLimit is capped at
// MaxRecords; the requested page size shrinks near the budget so a fetched
// page is never truncated. Every record is stamped with search_location and
// one fetched_at timestamp captured when collection starts.
//
// Any fetch failure aborts the location: the error propagates and nothing
// accumulated so far is returned.
func (c *Collector) Collect(ctx context.Context, location string, totalLimit int) ([]map[string]any, error) {
	budget := totalLimit
	if budget <= 0 || budget > MaxRecords {
		budget = MaxRecords
	}

	fetchedAt := c.now().UTC().Format(time.RFC3339)
	start := c.now()

	c.logger.Info().
		Str("location", location).
		Int("budget", budget).
		Msg("Starting collection")

	var records []map[string]any
	offset := 0

	for {
		pageSize := c.config.PageSize
		if remaining := budget - len(records); pageSize > remaining {
			pageSize = remaining
		}

		body, err := c.fetcher.Fetch(ctx, c.signature(location, offset, pageSize))
		if err != nil {
			return nil, fmt.Errorf("fetch page at offset %d for %q: %w", offset, location, err)
		}

		var page searchPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode page at offset %d for %q: %w", offset, location, err)
		}

		for _, record := range page.Businesses {
			record["search_location"] = location
			record["fetched_at"] = fetchedAt
			records = append(records, record)
		}

		c.logger.Debug().
			Str("location", location).
			Int("offset", offset).
			Int("page_size", pageSize).
			Int("returned", len(page.Businesses)).
			Int("accumulated", len(records)).
			Msg("Page collected")

		// The offset advances by the returned count, not the requested
		// size. A short page is terminal: no further page can be assumed
		// complete when the API under-fills a request.
		offset += len(page.Businesses)

		if len(page.Businesses) < pageSize || len(records) >= budget {
			break
		}
	}

	c.logger.Info().
		Str("location", location).
		Int("records", len(records)).
		Dur("duration", c.now().Sub(start)).
		Msg("Collection complete")

	return records, nil
}

// signature builds the cache-keyed request signature for one page.
func (c *Collector) signature(location string, offset, pageSize int) cache.Signature {
	return cache.Signature{
		Endpoint: c.config.Endpoint,
		Params: url.Values{
			"term":     []string{c.config.Term},
			"location": []string{location},
			"limit":    []string{strconv.Itoa(pageSize)},
			"offset":   []string{strconv.Itoa(offset)},
			"sort_by":  []string{c.config.SortBy},
		},
	}
}
