package handler

import (
	"net/http"

	"objectsguesser/internal/dto"
	"objectsguesser/internal/service"
)

// HealthHandler reports liveness. It does not depend on the model being loaded.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, dto.HealthResponse{OK: true}, http.StatusOK)
}

// LabelsHandler lists the loaded model's vocabulary.
func LabelsHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detector := manager.GetDetectorService()
		labels := detector.Labels()
		if labels == nil {
			labels = []string{}
		}

		respondJSON(w, dto.LabelsResponse{
			Available: detector.Available(),
			Labels:    labels,
		}, http.StatusOK)
	}
}
