package dto

import (
	"objectsguesser/internal/model"
)

// DetectResponse is returned by the detect endpoints. Image is a PNG data URL,
// or null when no input image was supplied.
type DetectResponse struct {
	Image *string     `json:"image"`
	Rows  []model.Row `json:"rows"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// LabelsResponse lists the model vocabulary.
type LabelsResponse struct {
	Available bool     `json:"available"`
	Labels    []string `json:"labels"`
}
