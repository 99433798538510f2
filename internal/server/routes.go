// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/pipeline"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/trigger"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/Z-zoe8013/ZTOOLBOX/pkg/health"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "refresh",
		Method:        http.MethodPost,
		Path:          "/api/v1/refresh",
		Summary:       "Refresh the clipboard from the cloud store",
		Description:   "Runs a refresh. action=refresh waits for the outcome; action=background_refresh returns 202 immediately.",
		Tags:          []string{"refresh"},
		DefaultStatus: http.StatusOK,
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Refresh status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	if s.services.registry != nil {
		s.router.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.services.registry, promhttp.HandlerOpts{}))
	}
}

// --- Request/Response types for huma ---

type refreshRequestBody struct {
	Action string `json:"action,omitempty" example:"refresh" doc:"refresh or background_refresh"`
}

type refreshInput struct {
	Action string              `query:"action" doc:"Overrides the body action"`
	Body   *refreshRequestBody `required:"false"`
}

// RunSummary describes one run without exposing its content.
type RunSummary struct {
	RunID            string    `json:"run_id,omitempty"`
	Strategy         string    `json:"strategy"`
	Success          bool      `json:"success"`
	Reason           string    `json:"reason,omitempty"`
	LastReason       string    `json:"last_reason,omitempty"`
	Attempts         int       `json:"attempts"`
	ClipboardWritten bool      `json:"clipboard_written"`
	StartedAt        time.Time `json:"started_at"`
	DurationMS       int64     `json:"duration_ms"`
}

type refreshOutput struct {
	Status int
	Body   struct {
		Action string      `json:"action"`
		Status string      `json:"status" example:"completed" doc:"completed or started"`
		Run    *RunSummary `json:"run,omitempty"`
	}
}

// StatusBody is the JSON body of the status endpoint.
type StatusBody struct {
	Strategy string          `json:"strategy"`
	Runs     int64           `json:"runs"`
	LastRun  *RunSummary     `json:"last_run,omitempty"`
	Health   *health.Metrics `json:"health,omitempty"`
	Schedule string          `json:"schedule,omitempty"`
	NextRun  *time.Time      `json:"next_run,omitempty"`
}

type statusOutput struct {
	Body StatusBody
}

func summarize(o pipeline.Outcome) *RunSummary {
	return &RunSummary{
		RunID:            o.RunID,
		Strategy:         o.Strategy,
		Success:          o.Success(),
		Reason:           string(o.Reason),
		LastReason:       string(o.LastReason),
		Attempts:         o.Attempts,
		ClipboardWritten: o.Success() && o.ClipboardErr == nil,
		StartedAt:        o.StartedAt,
		DurationMS:       o.Duration.Milliseconds(),
	}
}

// --- Handlers ---

func (s *Server) handleRefresh(ctx context.Context, input *refreshInput) (*refreshOutput, error) {
	raw := input.Action
	if raw == "" && input.Body != nil {
		raw = input.Body.Action
	}
	action, err := trigger.ParseAction(raw)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	out, started := s.services.refresher.Dispatch(ctx, action)

	resp := &refreshOutput{}
	resp.Body.Action = string(action)
	if started {
		resp.Status = http.StatusAccepted
		resp.Body.Status = "started"
		return resp, nil
	}

	if runErr := out.Err(); runErr != nil {
		return nil, huma.NewError(cliperr.HTTPStatus(runErr), out.Message(), runErr)
	}

	resp.Status = http.StatusOK
	resp.Body.Status = "completed"
	resp.Body.Run = summarize(out)
	return resp, nil
}

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	body := StatusBody{Strategy: s.services.strategy}

	if last, runs, ok := s.services.refresher.Last(); ok {
		body.Runs = runs
		body.LastRun = summarize(last)
	}
	if s.services.health != nil {
		snap := s.services.health.Snapshot()
		body.Health = &snap
	}
	if s.services.schedule != nil {
		body.Schedule = s.services.schedule.Spec()
		if next := s.services.schedule.Next(); !next.IsZero() {
			body.NextRun = &next
		}
	}

	return &statusOutput{Body: body}, nil
}
