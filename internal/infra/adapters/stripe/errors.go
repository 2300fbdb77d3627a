package stripe

import (
	"errors"
	"fmt"
	"net/http"

	stripelib "github.com/stripe/stripe-go/v82"

	"meu-plano/internal/domain"
)

// classify maps a stripe-go error onto the domain sentinels. The provider
// message is kept so it can be shown as is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *stripelib.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: stripe: %v", domain.ErrUpstream, err)
	}
	msg := se.Msg
	if msg == "" {
		msg = err.Error()
	}
	switch {
	case se.Code == stripelib.ErrorCodeResourceMissing || se.HTTPStatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: stripe: %s", domain.ErrNotFound, msg)
	case se.HTTPStatusCode == http.StatusUnauthorized || se.HTTPStatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: stripe: %s", domain.ErrUnauthorized, msg)
	case se.HTTPStatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: stripe: %s", domain.ErrRateLimited, msg)
	}
	return fmt.Errorf("%w: stripe: %s", domain.ErrUpstream, msg)
}

// errClass is the metrics label for a classified error.
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
