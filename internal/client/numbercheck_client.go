package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotOnNetwork is returned when the provider answers but the number has no
// messaging account. Retrying will not change the answer.
var ErrNotOnNetwork = errors.New("number is not registered on the messaging network")

// StatusError carries a non-200 answer from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d body=%q", e.Code, e.Body)
}

// Temporary reports whether the call may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

type NumberCheckClient struct {
	http *resty.Client
}

func NewNumberCheckClient(baseURL string, timeout time.Duration) *NumberCheckClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &NumberCheckClient{http: c}
}

type checkRequest struct {
	Number   string `json:"number"`
	TenantID int64  `json:"companyId"`
}

type checkResponse struct {
	Exists bool   `json:"exists"`
	JID    string `json:"jid"`
	Number string `json:"number"`
}

// CheckNumber asks the provider whether number is reachable for the tenant's
// session and returns the canonical number it reports.
func (c *NumberCheckClient) CheckNumber(ctx context.Context, number string, tenantID int64) (string, error) {
	var out checkResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(checkRequest{Number: number, TenantID: tenantID}).
		SetResult(&out).
		Post("/numbers/check")
	if err != nil {
		return "", err
	}

	if resp.StatusCode() != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	if !strings.Contains(resp.Header().Get("Content-Type"), "json") {
		return "", fmt.Errorf("failed to decode json: body=%q", resp.String())
	}
	if !out.Exists {
		return "", ErrNotOnNetwork
	}

	normalized := out.Number
	if normalized == "" {
		// "5511912345678@s.whatsapp.net" -> "5511912345678"
		normalized, _, _ = strings.Cut(out.JID, "@")
	}
	if normalized == "" {
		return "", fmt.Errorf("missing number in response body=%q", resp.String())
	}
	return normalized, nil
}
