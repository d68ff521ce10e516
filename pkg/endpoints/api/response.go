package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/service/race"
	"github.com/mpapenbr/rally-manager-go/pkg/service/registry"
	"github.com/mpapenbr/rally-manager-go/pkg/simulation"
)

const maxBodySize = 1 << 20

// error codes of the error response
const (
	CodeInvalidInput       = "invalid_input"
	CodeNotFound           = "not_found"
	CodeNoParticipants     = "no_eligible_participants"
	CodeConflict           = "conflict"
	CodeResultsNotRecorded = "results_not_recorded"
	CodePersistence        = "persistence_failure"
	CodeInternal           = "internal"
)

// see https://www.postgresql.org/docs/current/errcodes-appendix.html
const pgUniqueViolation = "23505"

type ErrorResponse struct {
	Code       string           `json:"code"`
	Message    string           `json:"message"`
	RequestID  string           `json:"requestId,omitempty"`
	Settlement *race.Settlement `json:"settlement,omitempty"`
}

func (s *Server) decode(r *http.Request, target any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", registry.ErrInvalidInput, err)
	}
	if len(body) > maxBodySize {
		return fmt.Errorf("%w: body too large", registry.ErrInvalidInput)
	}
	if s.cfg.PrintRequests {
		log.GetFromContext(r.Context()).Debug("request body", log.String("body", string(body)))
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %w", registry.ErrInvalidInput, err)
	}
	return nil
}

func respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.GetFromContext(r.Context()).Warn("could not write response", log.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorResponse(err)
	resp.RequestID = w.Header().Get(RequestIDHeader)
	l := log.GetFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error("request failed", log.String("code", resp.Code), log.ErrorField(err))
	} else {
		l.Debug("request rejected", log.String("code", resp.Code), log.ErrorField(err))
	}
	writeJSON(w, r, status, resp)
}

func errorResponse(err error) (int, *ErrorResponse) {
	var notRecorded *race.ResultsNotRecordedError
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &notRecorded):
		return http.StatusInternalServerError, &ErrorResponse{
			Code:       CodeResultsNotRecorded,
			Message:    err.Error(),
			Settlement: notRecorded.Settlement,
		}
	case errors.Is(err, simulation.ErrInputInvalid):
		return http.StatusBadRequest, &ErrorResponse{Code: CodeInvalidInput, Message: err.Error()}
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, race.ErrRaceNotFound):
		return http.StatusNotFound, &ErrorResponse{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, simulation.ErrNoEligibleParticipants):
		return http.StatusConflict, &ErrorResponse{Code: CodeNoParticipants, Message: err.Error()}
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return http.StatusConflict, &ErrorResponse{Code: CodeConflict, Message: pgErr.Detail}
	case errors.Is(err, race.ErrPersistence):
		return http.StatusInternalServerError, &ErrorResponse{
			Code: CodePersistence, Message: "the race could not be settled",
		}
	default:
		return http.StatusInternalServerError, &ErrorResponse{
			Code: CodeInternal, Message: "internal error",
		}
	}
}
