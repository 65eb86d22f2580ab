// Package azuread is the HTTP client for the federated identity broker.
// The broker performs its own password checks during the federated handshake,
// so Authenticate always refuses: a federated account can never be verified
// with a local password.
package azuread

import (
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

func (c *Client) Source() directory.Source { return directory.SourceAzureAD }

type userResponse struct {
	ObjectID   string `json:"id"`
	Email      string `json:"mail"`
	GivenName  string `json:"givenName"`
	FamilyName string `json:"surname"`
}

func (r userResponse) record() directory.Record {
	return directory.Record{
		Source: directory.SourceAzureAD,
		Azure: &directory.AzureUser{
			Username:   r.ObjectID,
			Email:      r.Email,
			GivenName:  r.GivenName,
			FamilyName: r.FamilyName,
		},
	}
}

// Authenticate always returns false: password verification for federated
// accounts happens at the broker, never here.
func (c *Client) Authenticate(context.Context, string, string) (bool, error) {
	return false, nil
}

func (c *Client) FindByUsername(ctx context.Context, username string) (*directory.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/users/"+url.PathEscape(username), nil)
	if err != nil {
		return nil, directory.Unavailable(directory.SourceAzureAD, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, directory.Unavailable(directory.SourceAzureAD, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var user userResponse
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, directory.Unavailable(directory.SourceAzureAD, err)
		}
		record := user.record()
		return &record, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, directory.Unavailable(directory.SourceAzureAD,
			fmt.Errorf("find by username: unexpected status %d", resp.StatusCode))
	}
}

func (c *Client) FindByEmail(ctx context.Context, email string) ([]directory.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/users?mail="+url.QueryEscape(email), nil)
	if err != nil {
		return nil, directory.Unavailable(directory.SourceAzureAD, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, directory.Unavailable(directory.SourceAzureAD, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, directory.Unavailable(directory.SourceAzureAD,
			fmt.Errorf("find by email: unexpected status %d", resp.StatusCode))
	}

	var users []userResponse
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, directory.Unavailable(directory.SourceAzureAD, err)
	}
	records := make([]directory.Record, 0, len(users))
	for _, user := range users {
		records = append(records, user.record())
	}
	return records, nil
}
