package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/me/folio/pkg/model"
)

// Version is reported by /healthz.
const Version = "0.1.0"

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type healthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Checks:    map[string]string{},
	}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = "unavailable: " + err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}
	if resp.Status != "healthy" {
		apiErr := model.NewUnavailableError("one or more dependencies are unavailable")
		writeEnvelope(w, apiErr.HTTPStatus(), model.NewErrorResponse(reqID, resp, apiErr))
		return
	}
	respondOK(w, reqID, resp)
}
