package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"objectsguesser/internal/dto"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/service/ai"
	"objectsguesser/internal/service/imageio"
)

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, dto.ErrorResponse{Error: message}, status)
}

// detectErrorStatus maps pipeline errors to HTTP status codes.
func detectErrorStatus(err error) int {
	switch {
	case errors.Is(err, ai.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, imageio.ErrDecode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondDetectError logs err and writes it with the mapped status.
func respondDetectError(w http.ResponseWriter, logger *logger.Logger, err error) {
	status := detectErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Detection failed: %v", err)
	} else {
		logger.Warning("Detection rejected: %v", err)
	}
	respondError(w, err.Error(), status)
}

// parseThreshold returns def for an empty value. Any number is accepted as is.
func parseThreshold(v string, def float64) (float64, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// buildDetectResponse encodes the annotated image as a data URL.
func buildDetectResponse(result *ai.Result) (dto.DetectResponse, error) {
	resp := dto.DetectResponse{Rows: result.Rows}
	if result.Image == nil {
		return resp, nil
	}

	url, err := imageio.DataURL(result.Image)
	if err != nil {
		return resp, err
	}
	resp.Image = &url
	return resp, nil
}
