// File: internal/infra/adapters/infozap/client.go
package infozap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"meu-plano/internal/domain"
	"meu-plano/internal/domain/model"
	"meu-plano/internal/domain/ports/adapter"
	"meu-plano/internal/infra/metrics"
)

var _ adapter.ChannelStore = (*Client)(nil)

const service = "infozap"

// Client implements adapter.ChannelStore over the InfoZap channel manager REST API.
type Client struct {
	base   *url.URL
	token  string
	client *http.Client
	log    *zerolog.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("infozap base url empty")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid infozap base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	l := logger.With().Str("component", "InfozapClient").Logger()
	return &Client{
		base:   u,
		token:  token,
		client: &http.Client{Timeout: timeout},
		log:    &l,
	}, nil
}

func (c *Client) channelsPath(customerID string, parts ...string) string {
	elems := append([]string{"customers", customerID, "channels"}, parts...)
	return c.base.JoinPath(elems...).String()
}

// doRequest sends body as JSON and decodes a 2xx response into out when out is
// not nil. Non-2xx responses surface the store's own message.
func (c *Client) doRequest(ctx context.Context, op, method, endpoint string, body, out any) error {
	start := time.Now()
	err := c.send(ctx, method, endpoint, body, out)
	metrics.ObserveExternalCall(service, op, time.Since(start), err == nil)
	if err != nil {
		metrics.IncExternalCallError(service, op, errClass(err))
		c.log.Debug().Err(err).Str("op", op).Str("method", method).Msg("infozap call failed")
	}
	return err
}

func (c *Client) send(ctx context.Context, method, endpoint string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode infozap request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: infozap: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: infozap: read body: %v", domain.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: infozap: decode response: %v", domain.ErrUpstream, err)
	}
	return nil
}

// ListChannels accepts either a bare array or a {"data": [...]} envelope.
func (c *Client) ListChannels(ctx context.Context, customerID string) ([]model.ChannelRecord, error) {
	var raw json.RawMessage
	if err := c.doRequest(ctx, "list_channels", http.MethodGet, c.channelsPath(customerID), nil, &raw); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	recs, err := decodeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return recs, nil
}

func (c *Client) UpsertChannel(ctx context.Context, customerID string, rec model.ChannelRecord) error {
	endpoint := c.channelsPath(customerID, strconv.Itoa(rec.ID))
	if err := c.doRequest(ctx, "upsert_channel", http.MethodPut, endpoint, rec, nil); err != nil {
		return fmt.Errorf("upsert channel %d: %w", rec.ID, err)
	}
	return nil
}

func (c *Client) UpdateStatus(ctx context.Context, customerID string, id int, status model.AssinaturaStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: assinatura_status %q", domain.ErrInvalidArgument, status)
	}
	body := map[string]string{"assinatura_status": string(status)}
	endpoint := c.channelsPath(customerID, strconv.Itoa(id), "status")
	if err := c.doRequest(ctx, "update_status", http.MethodPatch, endpoint, body, nil); err != nil {
		return fmt.Errorf("update channel %d status: %w", id, err)
	}
	return nil
}

func (c *Client) IncludeIA(ctx context.Context, customerID string, id int, link model.IALinkage) error {
	body := map[string]string{
		"ia_stripe_si":         link.SubscriptionItemID,
		"ia_stripe_price":      link.PriceID,
		"ia_stripe_expiration": link.Expiration,
	}
	endpoint := c.channelsPath(customerID, strconv.Itoa(id), "ia")
	if err := c.doRequest(ctx, "include_ia", http.MethodPut, endpoint, body, nil); err != nil {
		return fmt.Errorf("include IA on channel %d: %w", id, err)
	}
	return nil
}

func (c *Client) RemoveIA(ctx context.Context, customerID string, id int) error {
	endpoint := c.channelsPath(customerID, strconv.Itoa(id), "ia")
	if err := c.doRequest(ctx, "remove_ia", http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("remove IA from channel %d: %w", id, err)
	}
	return nil
}

func (c *Client) ReactivateChannel(ctx context.Context, customerID string, id int, link model.ChannelLinkage) error {
	body := map[string]string{
		"infozap_stripe_si":         link.SubscriptionItemID,
		"infozap_stripe_price":      link.PriceID,
		"infozap_stripe_expiration": link.Expiration,
	}
	endpoint := c.channelsPath(customerID, strconv.Itoa(id), "reactivate")
	if err := c.doRequest(ctx, "reactivate_channel", http.MethodPost, endpoint, body, nil); err != nil {
		return fmt.Errorf("reactivate channel %d: %w", id, err)
	}
	return nil
}

func decodeRecords(raw json.RawMessage) ([]model.ChannelRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var recs []model.ChannelRecord
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &recs); err != nil {
			return nil, fmt.Errorf("%w: infozap: decode channels: %v", domain.ErrUpstream, err)
		}
		return recs, nil
	}
	var env struct {
		Data []model.ChannelRecord `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: infozap: decode channels: %v", domain.ErrUpstream, err)
	}
	return env.Data, nil
}
