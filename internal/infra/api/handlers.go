package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"meu-plano/internal/domain"
)

type addChannelRequest struct {
	Titulo string `json:"titulo"`
	WithIA bool   `json:"with_ia"`
}

type reactivateRequest struct {
	WithIA bool `json:"with_ia"`
}

type listResponse struct {
	Items any `json:"items"`
}

func slotParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, domain.NewUserError(domain.KindInvalid, "canal inválido", domain.ErrInvalidArgument)
	}
	return id, nil
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewUserError(domain.KindInvalid, "corpo da requisição inválido", domain.ErrInvalidArgument)
	}
	return nil
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	views, err := s.channels.Load(r.Context(), s.customer)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: views})
}

func (s *Server) handleAddChannel(w http.ResponseWriter, r *http.Request) {
	id, err := slotParam(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var req addChannelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.channels.AddChannel(r.Context(), s.customer, id, strings.TrimSpace(req.Titulo), req.WithIA)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleRemoveChannel(w http.ResponseWriter, r *http.Request) {
	id, err := slotParam(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.channels.RemoveChannel(r.Context(), s.customer, id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReactivateChannel(w http.ResponseWriter, r *http.Request) {
	id, err := slotParam(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var req reactivateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.channels.ReactivateChannel(r.Context(), s.customer, id, req.WithIA)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleToggleIA(w http.ResponseWriter, r *http.Request) {
	id, err := slotParam(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.channels.ToggleIA(r.Context(), s.customer, id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.billing.Summary(r.Context(), s.customer, r.URL.Query().Get("coupon"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, s.log, domain.NewUserError(domain.KindInvalid, "limit inválido", domain.ErrInvalidArgument))
			return
		}
		limit = n
	}
	inv, err := s.billing.ListInvoices(r.Context(), s.customer, limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: inv})
}

func (s *Server) handlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	pms, err := s.billing.ListPaymentMethods(r.Context(), s.customer)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: pms})
}

func (s *Server) handleCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := s.billing.ValidateCoupon(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
