package dto

import (
	"encoding/json"
	"time"
)

// DetectionEvent summarizes one finished detection for live viewers. It carries
// labels and counts only, never pixels.
type DetectionEvent struct {
	Source     string    `json:"source"` // "upload", "url" or "stream"
	Count      int       `json:"count"`
	Labels     []string  `json:"labels"`
	Threshold  float64   `json:"threshold"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// MarshalJSON formats the timestamp for display.
func (e DetectionEvent) MarshalJSON() ([]byte, error) {
	type Alias DetectionEvent
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		Alias
	}{
		Timestamp: e.Timestamp.Format("02-01-2006 15:04:05"),
		Alias:     (Alias)(e),
	})
}
