// Package testutil provides testing utilities for the ingestion pipeline.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// ScriptedResponse defines one canned response served before the mock starts
// answering with real result pages. Useful for injecting 429s and 5xxs.
type ScriptedResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockSearch is a configurable mock of the paginated search API. It serves
// min(limit, remaining) synthetic businesses per page out of a fixed total,
// after draining any scripted failure responses.
type MockSearch struct {
	server *httptest.Server
	mu     sync.Mutex

	// TotalResults is the number of businesses the mock pretends to have.
	TotalResults int

	scripted []ScriptedResponse

	// Tracking
	RequestCount   int
	Offsets        []int
	LastAuthHeader string
}

// NewMockSearch creates a mock search server with the given result total.
func NewMockSearch(totalResults int) *MockSearch {
	mock := &MockSearch{
		TotalResults: totalResults,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock search endpoint URL.
func (m *MockSearch) URL() string {
	return m.server.URL + "/v3/businesses/search"
}

// Close shuts down the mock server.
func (m *MockSearch) Close() {
	m.server.Close()
}

// Script enqueues canned responses served ahead of real pages, in order.
func (m *MockSearch) Script(resps ...ScriptedResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted = append(m.scripted, resps...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSearch) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

func (m *MockSearch) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastAuthHeader = r.Header.Get("Authorization")

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	m.Offsets = append(m.Offsets, offset)

	if len(m.scripted) > 0 {
		resp := m.scripted[0]
		m.scripted = m.scripted[1:]
		m.mu.Unlock()

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			_, _ = w.Write([]byte(resp.Body))
		}
		return
	}

	total := m.TotalResults
	m.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	count := total - offset
	if count < 0 {
		count = 0
	}
	if count > limit {
		count = limit
	}

	businesses := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		n := offset + i
		businesses = append(businesses, map[string]any{
			"id":           fmt.Sprintf("biz-%04d", n),
			"name":         fmt.Sprintf("Business %d", n),
			"rating":       3.5 + float64(n%3)*0.5,
			"review_count": 10 + n,
			"price":        "$$",
			"categories": []map[string]string{
				{"alias": "restaurants", "title": "Restaurants"},
			},
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"businesses": businesses,
		"total":      total,
	})
}

// NewRateLimitResponse creates a 429 response with a Retry-After hint in
// seconds. Pass 0 to omit the header.
func NewRateLimitResponse(retryAfterSeconds int) ScriptedResponse {
	resp := ScriptedResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": {"code": "TOO_MANY_REQUESTS_PER_SECOND"}}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
	if retryAfterSeconds > 0 {
		resp.Headers["Retry-After"] = strconv.Itoa(retryAfterSeconds)
	}
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() ScriptedResponse {
	return ScriptedResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": {"code": "INTERNAL_ERROR"}}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 response.
func NewUnauthorizedResponse() ScriptedResponse {
	return ScriptedResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error": {"code": "VALIDATION_ERROR", "description": "invalid API key"}}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
