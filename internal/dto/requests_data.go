package dto

import (
	"objectsguesser/internal/model"
)

// RequestsData is the paged request log returned by GET /api/requests.
type RequestsData struct {
	Requests    []model.RequestRecord `json:"requests"`
	Length      int                   `json:"length"`
	TotalPages  int                   `json:"totalPages"`
	CurrentPage int                   `json:"currentPage"`
	Limit       int                   `json:"limit"`
}
