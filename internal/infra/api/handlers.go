package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/logging"
)

type StartResponse struct {
	OperationID string                `json:"operation_id"`
	Status      model.OperationStatus `json:"status"`
}

// OperationResponse is the polling document.
type OperationResponse struct {
	OperationID       string                `json:"operation_id"`
	Type              model.OperationType   `json:"type"`
	Status            model.OperationStatus `json:"status"`
	Result            json.RawMessage       `json:"result,omitempty"`
	Error             *model.OperationError `json:"error,omitempty"`
	ParentOperationID *string               `json:"parent_operation_id,omitempty"`
	RetryCount        int                   `json:"retry_count"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func toResponse(op *model.Operation) OperationResponse {
	return OperationResponse{
		OperationID:       op.ID,
		Type:              op.Type,
		Status:            op.Status,
		Result:            op.Result,
		Error:             op.Error,
		ParentOperationID: op.ParentOperationID,
		RetryCount:        op.RetryCount,
		CreatedAt:         op.CreatedAt,
		UpdatedAt:         op.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = msg
	writeJSON(w, status, body)
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeMappedError(w, err, "NOT_FOUND")
}

// writeMappedError renders domain errors. Forbidden is reported as not found so
// ids of other users' resources cannot be probed.
func writeMappedError(w http.ResponseWriter, err error, notFoundCode string) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusNotFound, notFoundCode, "not found")
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, "INVALID_STATE", "only failed operations can be retried")
	case errors.Is(err, domain.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, slow down")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid bearer token")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "TIMEOUT", "request timed out")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (s *Server) logFailure(r *http.Request, err error, msg string) {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrRateLimited) {
		return
	}
	l := logging.With(r.Context(), s.log)
	l.Error().Err(err).Msg(msg)
}

func (s *Server) handleStart(opType model.OperationType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		op, err := s.facade.Start(r.Context(), UserID(r.Context()), sessionID, opType)
		if err != nil {
			s.logFailure(r, err, "start operation")
			writeMappedError(w, err, "SESSION_NOT_FOUND")
			return
		}
		writeJSON(w, http.StatusAccepted, StartResponse{OperationID: op.ID, Status: op.Status})
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	op, err := s.facade.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "operationID"))
	if err != nil {
		s.logFailure(r, err, "get operation")
		writeMappedError(w, err, "OPERATION_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(op))
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	op, err := s.facade.Retry(r.Context(), UserID(r.Context()), chi.URLParam(r, "operationID"))
	if err != nil {
		s.logFailure(r, err, "retry operation")
		writeMappedError(w, err, "OPERATION_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusAccepted, StartResponse{OperationID: op.ID, Status: op.Status})
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	ops, err := s.facade.Lineage(r.Context(), UserID(r.Context()), chi.URLParam(r, "operationID"))
	if err != nil {
		s.logFailure(r, err, "operation lineage")
		writeMappedError(w, err, "OPERATION_NOT_FOUND")
		return
	}
	items := make([]OperationResponse, 0, len(ops))
	for _, op := range ops {
		items = append(items, toResponse(op))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "dependencies": deps})
}
