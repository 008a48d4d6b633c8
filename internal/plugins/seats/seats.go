// Package seats validates agent credentials against the seat administration
// service.
package seats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"supportdesk/internal/config"
	"supportdesk/internal/core/domain"
)

const validatePath = "/_internal/validate_agent_key/"

type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(log *slog.Logger, cfg config.SeatsConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.ValidatorURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type validateResponse struct {
	SeatID   int    `json:"seatId"`
	AgentID  string `json:"agentId"`
	UserType string `json:"userType"`
}

// Validate asks the seat service about credential. 404 means unknown, 403
// means inactive or expired depending on the response text; anything else
// that is not a 200 is reported as ErrValidatorUnavailable.
func (c *Client) Validate(ctx context.Context, credential string) (domain.Seat, error) {
	if credential == "" {
		return domain.Seat{}, domain.ErrUnknownCredential
	}
	apiURL := c.baseURL + validatePath + url.PathEscape(credential)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return domain.Seat{}, fmt.Errorf("%w: %v", domain.ErrValidatorUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.ErrorContext(ctx, "seats - validate - request failed", "err", err)
		return domain.Seat{}, fmt.Errorf("%w: %v", domain.ErrValidatorUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.Seat{}, domain.ErrUnknownCredential
	case http.StatusForbidden:
		if strings.Contains(strings.ToLower(string(body)), "expired") {
			return domain.Seat{}, domain.ErrExpiredCredential
		}
		return domain.Seat{}, domain.ErrInactiveCredential
	default:
		c.log.WarnContext(ctx, "seats - validate - unexpected status", "status", resp.StatusCode)
		return domain.Seat{}, fmt.Errorf("%w: status %d", domain.ErrValidatorUnavailable, resp.StatusCode)
	}

	var out validateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.Seat{}, fmt.Errorf("%w: decode response: %v", domain.ErrValidatorUnavailable, err)
	}
	if out.AgentID == "" {
		return domain.Seat{}, fmt.Errorf("%w: response without agentId", domain.ErrValidatorUnavailable)
	}
	if out.UserType != "" && out.UserType != string(domain.UserTypeAgent) {
		return domain.Seat{}, fmt.Errorf("%w: credential is for %q", domain.ErrUnknownCredential, out.UserType)
	}
	return domain.Seat{SeatID: out.SeatID, AgentID: domain.AgentIdentity(out.AgentID)}, nil
}
