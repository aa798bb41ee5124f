package handler

import (
	"net/http"

	"github.com/hszk-dev/tubelytics/internal/dispatch"
)

type HealthResponse struct {
	Status   string              `json:"status"`
	Degraded []dispatch.Category `json:"degraded,omitempty"`
}

// HealthChecker reports worker categories that stopped serving.
type HealthChecker interface {
	Degraded() []dispatch.Category
}

// Health returns a handler that reports 503 while any category is halted.
func Health(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if degraded := checker.Degraded(); len(degraded) > 0 {
			JSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:   "degraded",
				Degraded: degraded,
			})
			return
		}

		JSON(w, http.StatusOK, HealthResponse{
			Status: "ok",
		})
	}
}
