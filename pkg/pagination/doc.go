// Package pagination drives offset-based collection of search results.
//
// The search API returns at most 50 records per page and gives no total page
// count up front, so collection is strictly sequential: each page's offset
// depends on how many records the previous page actually returned. The
// collector advances the offset by the returned count, stops on the first
// short page or when the record budget is reached, and stamps every record
// with the search location and a single run-level fetch timestamp.
//
// Example usage:
//
//	collector := pagination.NewCollector(fetcher, pagination.DefaultConfig())
//	records, err := collector.Collect(ctx, "Chicago, IL", 200)
//
// A fetch failure aborts the whole location; records accumulated so far are
// discarded so a partial location is never handed to the sink.
package pagination
