package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"objectsguesser/internal/dto"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/service"
	"objectsguesser/internal/service/proxy"
)

// PredictHandler forwards {image_url, threshold} to the remote inference
// endpoint and returns its answer verbatim.
func PredictHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		client := manager.GetProxyClient()
		if client == nil || !client.Configured() {
			respondError(w, proxy.ErrNotConfigured.Error(), http.StatusInternalServerError)
			return
		}

		var req dto.PredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		threshold := proxy.DefaultThreshold
		if req.Threshold != nil {
			threshold = *req.Threshold
		}

		resp, err := client.Forward(r.Context(), proxy.Request{ImageURL: req.ImageURL, Threshold: threshold})
		switch {
		case errors.Is(err, proxy.ErrNotConfigured):
			respondError(w, err.Error(), http.StatusInternalServerError)
			return
		case errors.Is(err, proxy.ErrUpstream):
			respondError(w, err.Error(), http.StatusBadGateway)
			return
		case err != nil:
			logger.Error("Prediction proxy failed: %v", err)
			respondError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", resp.ContentType)
		w.WriteHeader(resp.StatusCode)
		w.Write(resp.Body)
	}
}
