package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"meu-plano/internal/domain"
	"meu-plano/internal/infra/logging"
)

type errorBody struct {
	Error   string        `json:"error"`
	Partial *partialState `json:"partial,omitempty"`
}

type partialState struct {
	Operation string   `json:"operation"`
	SlotID    int      `json:"slot_id"`
	Completed []string `json:"completed"`
	Failed    string   `json:"failed_step"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error onto an HTTP status and the message the customer sees.
// External failures keep the provider's message.
func statusFor(err error) (int, errorBody) {
	if ue, ok := domain.AsUserError(err); ok {
		switch ue.Kind {
		case domain.KindConflict:
			return http.StatusConflict, errorBody{Error: ue.Message}
		case domain.KindPrecondition:
			return http.StatusPreconditionFailed, errorBody{Error: ue.Message}
		default:
			return http.StatusBadRequest, errorBody{Error: ue.Message}
		}
	}

	body := errorBody{Error: err.Error()}
	var pe *domain.PartialMutationError
	if errors.As(err, &pe) {
		body.Partial = &partialState{Operation: pe.Operation, SlotID: pe.SlotID, Completed: pe.Completed, Failed: pe.Failed}
	}
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, body
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownSlot):
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, body
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, body
	}
	return http.StatusBadGateway, body
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	status, body := statusFor(err)
	l := logging.With(r.Context(), logger)
	ev := l.Warn()
	if status < 500 {
		ev = l.Debug()
	}
	ev.Err(err).Int("status", status).Msg("request failed")
	writeJSON(w, status, body)
}
