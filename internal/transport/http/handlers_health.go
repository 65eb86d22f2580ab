package httptransport

import (
	"context"
	"net/http"
	"time"

	"signon/internal/transport/http/shared"
)

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	var components map[string]string
	if len(h.health) > 0 {
		components = make(map[string]string, len(h.health))
		for _, check := range h.health {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				components[check.Name] = "down"
				status = "degraded"
				continue
			}
			components[check.Name] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	shared.WriteJSON(w, code, healthResponse{Status: status, Components: components})
}
