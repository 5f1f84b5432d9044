package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/procore"
)

// APIError carries a non-2xx response. Message is the server's error text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// HTTPClient implements API against a running QCBoard server.
type HTTPClient struct {
	base string
	http *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) Status(ctx context.Context, userID string) (procore.Status, error) {
	var st procore.Status
	body, err := c.do(ctx, http.MethodGet, "/api/procore/status", url.Values{"user_id": {userID}})
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

func (c *HTTPClient) Sync(ctx context.Context, userID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/procore/sync", url.Values{"user_id": {userID}})
	return err
}

func (c *HTTPClient) Disconnect(ctx context.Context, userID, companyID string) error {
	q := url.Values{"user_id": {userID}}
	if companyID != "" {
		q.Set("company_id", companyID)
	}
	_, err := c.do(ctx, http.MethodPost, "/api/procore/disconnect", q)
	return err
}

func (c *HTTPClient) SelectCompany(ctx context.Context, userID, companyID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/procore/company/select", url.Values{"user_id": {userID}, "company_id": {companyID}})
	return err
}

func (c *HTTPClient) Companies(ctx context.Context, userID string) ([]model.Company, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/procore/companies/local", url.Values{"user_id": {userID}})
	if err != nil {
		return nil, err
	}
	var out []model.Company
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode companies: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) Fetch(ctx context.Context, path string, q url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, q)
}

// AuthorizeURL is where a browser should be sent to connect Procore.
func (c *HTTPClient) AuthorizeURL() string {
	return c.base + "/api/procore/oauth/authorize"
}

func (c *HTTPClient) do(ctx context.Context, method, path string, q url.Values) ([]byte, error) {
	target := c.base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return body, nil
}
