package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	service "github.com/okian/dasha/internal/app"
	"github.com/okian/dasha/internal/domain/dasha"
	"github.com/okian/dasha/internal/domain/ephemeris"
	"github.com/okian/dasha/pkg/logger"
)

const maxBodyBytes = 1 << 20

// timelineRequest is the wire form of a timeline request.
type timelineRequest struct {
	System    string              `json:"system"`
	At        string              `json:"at"`
	Longitude *float64            `json:"longitude"`
	Location  *ephemeris.Location `json:"location"`
	Body      string              `json:"body"`
	Depth     int                 `json:"depth"`
	Lookahead *int                `json:"lookahead"`
}

func (r timelineRequest) toService() (service.Request, error) {
	if strings.TrimSpace(r.At) == "" {
		return service.Request{}, fmt.Errorf("%w: at is required", ErrBadRequest)
	}
	at, err := time.Parse(time.RFC3339Nano, r.At)
	if err != nil {
		return service.Request{}, fmt.Errorf("%w: at must be RFC 3339: %v", ErrBadRequest, err)
	}
	if r.Depth < 0 {
		return service.Request{}, fmt.Errorf("%w: depth must not be negative", ErrBadRequest)
	}
	return service.Request{
		System:    r.System,
		At:        at,
		Longitude: r.Longitude,
		Location:  r.Location,
		Body:      ephemeris.Body(strings.ToLower(strings.TrimSpace(r.Body))),
		Depth:     r.Depth,
		Lookahead: r.Lookahead,
	}, nil
}

type batchRequest struct {
	Items []timelineRequest `json:"items"`
}

type batchItem struct {
	ID       string          `json:"id"`
	Timeline *dasha.Timeline `json:"timeline,omitempty"`
	Error    *errorResponse  `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchItem `json:"results"`
}

// TimelineHandler serves timeline computation.
type TimelineHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewTimelineHandler creates a timeline handler.
func NewTimelineHandler(deps Dependencies, log logger.Logger) *TimelineHandler {
	return &TimelineHandler{deps: deps, logger: log}
}

// HandleTimeline handles POST /timeline.
func (h *TimelineHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	var body timelineRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	req, err := body.toService()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	tl, err := h.deps.Compute(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

// HandleBatch handles POST /timelines. Per-item failures are reported in
// place; the response is 200 whenever the batch itself was accepted.
func (h *TimelineHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	reqs := make([]service.Request, len(body.Items))
	for i, item := range body.Items {
		req, err := item.toService()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, codeBadRequest, fmt.Errorf("item %d: %w", i, err))
			return
		}
		reqs[i] = req
	}

	results, err := h.deps.ComputeBatch(r.Context(), reqs)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := batchResponse{Results: make([]batchItem, len(results))}
	for i, res := range results {
		item := batchItem{ID: res.ID, Timeline: res.Timeline}
		if res.Err != nil {
			_, code := statusFor(res.Err)
			item.Timeline = nil
			item.Error = &errorResponse{Code: code, Message: res.Err.Error()}
		}
		resp.Results[i] = item
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TimelineHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "timeline request failed", logger.Error(err), logger.String("code", code))
	}
	writeError(w, r, status, code, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
