package infozap

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"meu-plano/internal/domain"
)

// statusError keeps the store's message so it reaches the user verbatim.
func statusError(code int, body []byte) error {
	msg := message(body)
	if msg == "" {
		msg = http.StatusText(code)
	}
	sentinel := domain.ErrUpstream
	switch {
	case code == http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		sentinel = domain.ErrUnauthorized
	case code == http.StatusTooManyRequests:
		sentinel = domain.ErrRateLimited
	}
	return fmt.Errorf("%w: infozap %d: %s", sentinel, code, msg)
}

func message(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func errClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	}
	return "upstream"
}
