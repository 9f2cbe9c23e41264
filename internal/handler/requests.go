package handler

import (
	"net/http"
	"time"

	"objectsguesser/internal/dto"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/model"
	"objectsguesser/internal/repository"
)

const requestLogDisabled = "Request log is disabled (set DB_PATH)"

// GetRequestsHandler returns a page of the request log, newest first.
// Query: page, limit, path, status, since (RFC 3339).
func GetRequestsHandler(repo repository.RequestRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			respondError(w, requestLogDisabled, http.StatusNotFound)
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 50)

		filter := &model.RequestFilter{
			Path:   q.Get("path"),
			Status: atoiDefault(q.Get("status"), 0),
			Since:  parseSince(q.Get("since")),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		records, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying request log: %v", err)
			respondError(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting requests: %v", err)
			totalCount = len(records)
		}

		respondJSON(w, dto.RequestsData{
			Requests:    records,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, http.StatusOK)
	}
}

// RequestStatsHandler returns aggregate request statistics.
func RequestStatsHandler(repo repository.RequestRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			respondError(w, requestLogDisabled, http.StatusNotFound)
			return
		}

		stats, err := repo.GetStats()
		if err != nil {
			logger.Error("Error reading request stats: %v", err)
			respondError(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		respondJSON(w, stats, http.StatusOK)
	}
}

// ClearRequestsHandler deletes every request record.
func ClearRequestsHandler(repo repository.RequestRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if repo == nil {
			respondError(w, requestLogDisabled, http.StatusNotFound)
			return
		}

		if err := repo.DeleteAll(); err != nil {
			logger.Error("Error clearing request log: %v", err)
			respondError(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Request log cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseSince(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
