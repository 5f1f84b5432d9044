package procore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// User is the subset of /me we keep.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

type RemoteCompany struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type RemoteProject struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	DisplayName   string `json:"display_name,omitempty"`
	ProjectNumber string `json:"project_number,omitempty"`
	Address       string `json:"address"`
	City          string `json:"city,omitempty"`
	StateCode     string `json:"state_code,omitempty"`
	Active        bool   `json:"active"`
}

// ProjectUser is one member of a project's directory.
type ProjectUser struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	EmailAddress string `json:"email_address,omitempty"`
	JobTitle     string `json:"job_title,omitempty"`
	IsEmployee   bool   `json:"is_employee"`
}

// Client calls the Procore REST API on behalf of one access token per call.
type Client struct {
	base string
	http *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		base: strings.TrimRight(cfg.APIURL, "/") + "/rest/v1.0",
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var u User
	err := c.get(ctx, token, "", "/me", &u)
	return u, err
}

func (c *Client) Companies(ctx context.Context, token string) ([]RemoteCompany, error) {
	var out []RemoteCompany
	err := c.get(ctx, token, "", "/companies", &out)
	return out, err
}

// Projects lists the projects of one company, identified by its Procore id.
// An empty companyID leaves the scoping to Procore.
func (c *Client) Projects(ctx context.Context, token, companyID string) ([]RemoteProject, error) {
	path := "/projects"
	if companyID != "" {
		path += "?company_id=" + url.QueryEscape(companyID)
	}
	var out []RemoteProject
	err := c.get(ctx, token, companyID, path, &out)
	return out, err
}

func (c *Client) Project(ctx context.Context, token, companyID, projectID string) (RemoteProject, error) {
	var out RemoteProject
	err := c.get(ctx, token, companyID, "/projects/"+url.PathEscape(projectID), &out)
	return out, err
}

// ProjectUsers lists the project directory.
func (c *Client) ProjectUsers(ctx context.Context, token, companyID, projectID string) ([]ProjectUser, error) {
	var out []ProjectUser
	err := c.get(ctx, token, companyID, "/projects/"+url.PathEscape(projectID)+"/users", &out)
	return out, err
}

func (c *Client) get(ctx context.Context, token, companyID, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if companyID != "" {
		req.Header.Set("Procore-Company-Id", companyID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrap(ErrUpstream, "Failed to reach Procore", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return wrap(ErrAuthExpired, "", fmt.Errorf("GET %s returned 401", path))
	case resp.StatusCode == http.StatusNotFound:
		return wrap(ErrRemoteNotFound, "", fmt.Errorf("GET %s returned 404", path))
	case resp.StatusCode == http.StatusTooManyRequests:
		return wrap(ErrRateLimited, "", fmt.Errorf("GET %s returned 429", path))
	case resp.StatusCode >= 300:
		return wrap(ErrUpstream, "Procore API request failed", fmt.Errorf("GET %s returned %d", path, resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return wrap(ErrUpstream, "Invalid Procore response", err)
	}
	return nil
}
