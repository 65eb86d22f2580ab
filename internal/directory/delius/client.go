// Package delius is the HTTP client for the probation records system.
package delius

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"signon/internal/directory"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Source() directory.Source { return directory.SourceDelius }

type userResponse struct {
	Username  string   `json:"username"`
	FirstName string   `json:"firstName"`
	Surname   string   `json:"surname"`
	Email     string   `json:"email"`
	Enabled   bool     `json:"enabled"`
	Roles     []string `json:"roles"`
}

func (r userResponse) record() directory.Record {
	return directory.Record{
		Source: directory.SourceDelius,
		Delius: &directory.DeliusUser{
			Username:  r.Username,
			FirstName: r.FirstName,
			Surname:   r.Surname,
			Email:     r.Email,
			Enabled:   r.Enabled,
			Roles:     r.Roles,
		},
	}
}

func (c *Client) Authenticate(ctx context.Context, username, password string) (bool, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/authenticate", bytes.NewReader(body))
	if err != nil {
		return false, directory.Unavailable(directory.SourceDelius, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, directory.Unavailable(directory.SourceDelius, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false, nil
	default:
		return false, directory.Unavailable(directory.SourceDelius,
			fmt.Errorf("authenticate: unexpected status %d", resp.StatusCode))
	}
}

func (c *Client) FindByUsername(ctx context.Context, username string) (*directory.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/users/"+url.PathEscape(username)+"/details", nil)
	if err != nil {
		return nil, directory.Unavailable(directory.SourceDelius, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, directory.Unavailable(directory.SourceDelius, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var user userResponse
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, directory.Unavailable(directory.SourceDelius, err)
		}
		record := user.record()
		return &record, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, directory.Unavailable(directory.SourceDelius,
			fmt.Errorf("find by username: unexpected status %d", resp.StatusCode))
	}
}

func (c *Client) FindByEmail(ctx context.Context, email string) ([]directory.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/users?email="+url.QueryEscape(email), nil)
	if err != nil {
		return nil, directory.Unavailable(directory.SourceDelius, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, directory.Unavailable(directory.SourceDelius, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, directory.Unavailable(directory.SourceDelius,
			fmt.Errorf("find by email: unexpected status %d", resp.StatusCode))
	}

	var users []userResponse
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, directory.Unavailable(directory.SourceDelius, err)
	}
	records := make([]directory.Record, 0, len(users))
	for _, user := range users {
		records = append(records, user.record())
	}
	return records, nil
}
