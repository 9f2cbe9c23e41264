package model

import "time"

// RequestRecord is one entry of the HTTP request log.
type RequestRecord struct {
	ID         int64     `json:"id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	RemoteAddr string    `json:"remote_addr"`
	Timestamp  time.Time `json:"timestamp"`
}

// RequestFilter contains filtering options for querying the request log.
type RequestFilter struct {
	Path   string
	Status int
	Since  time.Time
	Limit  int
	Offset int
}

// RequestStats contains statistics about logged requests.
type RequestStats struct {
	TotalRequests int            `json:"total_requests"`
	Errors        int            `json:"errors"`
	AvgDurationMs float64        `json:"avg_duration_ms"`
	PerPath       map[string]int `json:"per_path"`
}
