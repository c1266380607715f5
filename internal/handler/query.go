// Package handler wires net/http endpoints onto the graph runtime, grounded
// on the donor's internal/handler/chat.go (SSE framing, envelope/respondJSON
// helpers, request validation shape) generalized from the donor's single
// Mercury chat endpoint to the two external operations of spec §6:
// run_query and stream_query.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/connexus-ai/gweta-core/internal/graph"
	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/stream"
)

// QueryRequest is the request body shared by run_query and stream_query
// (spec §6).
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

const maxQueryChars = 4000

func decodeQueryRequest(r *http.Request) (QueryRequest, error) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, model.ErrInputInvalid
	}
	// An empty query is not malformed input: spec §8 routes it to the
	// conversational/clarification path rather than rejecting it, so only
	// the length ceiling is enforced here.
	if len(req.Query) > maxQueryChars {
		return req, model.ErrInputInvalid
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	return req, nil
}

// RunQuery implements spec §6's run_query: a synchronous JSON endpoint
// returning the terminal Answer.
// POST /v1/query
func RunQuery(g *graph.Graph, deadline time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeQueryRequest(r)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "query must be under 4000 characters"})
			return
		}

		traceID := uuid.NewString()
		requestID := uuid.NewString()
		st := model.NewAgentState(req.Query, req.SessionID, req.UserID, traceID, requestID)

		ctx, cancel := context.WithTimeout(r.Context(), deadline)
		defer cancel()

		answer, err := g.Run(ctx, st)
		if err != nil {
			slog.Error("handler.RunQuery: graph.Run failed", "trace_id", traceID, "error", err)
			respondJSON(w, statusForError(err), envelope{Success: false, Error: model.ErrorCode(err)})
			return
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: answer})
	}
}

// StreamQuery implements spec §6's stream_query: an SSE endpoint emitting
// the typed event grammar of spec §4.15.
// POST /v1/query/stream
func StreamQuery(g *graph.Graph, deadline time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeQueryRequest(r)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "query must be under 4000 characters"})
			return
		}

		emitter, err := stream.NewEmitter(w)
		if err != nil {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		traceID := uuid.NewString()
		requestID := uuid.NewString()
		st := model.NewAgentState(req.Query, req.SessionID, req.UserID, traceID, requestID)

		ctx, cancel := context.WithTimeout(r.Context(), deadline)
		defer cancel()

		if err := g.RunStreaming(ctx, st, emitter); err != nil {
			slog.Error("handler.StreamQuery: graph.RunStreaming failed", "trace_id", traceID, "error", err)
		}
	}
}

// statusForError maps a sentinel error to an HTTP status, per spec §7's
// taxonomy: client-caused errors are 4xx, everything recoverable or internal
// is 5xx.
func statusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrInputInvalid):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrAuthInvalid):
		return http.StatusForbidden
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrTimeout), errors.Is(err, model.ErrCancelled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
