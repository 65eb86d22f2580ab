package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"signon/internal/platform/config"
	dErrors "signon/pkg/domain-errors"
)

// Client submits notifications to the delivery service over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.NotifyConfig, timeout time.Duration) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	TemplateID      string            `json:"template_id"`
	EmailAddress    string            `json:"email_address,omitempty"`
	PhoneNumber     string            `json:"phone_number,omitempty"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
}

func (c *Client) SendEmail(ctx context.Context, templateID, address string, personalisation map[string]string) error {
	return c.send(ctx, "/v2/notifications/email", sendRequest{
		TemplateID:      templateID,
		EmailAddress:    address,
		Personalisation: personalisation,
	})
}

func (c *Client) SendText(ctx context.Context, templateID, phoneNumber string, personalisation map[string]string) error {
	return c.send(ctx, "/v2/notifications/sms", sendRequest{
		TemplateID:      templateID,
		PhoneNumber:     phoneNumber,
		Personalisation: personalisation,
	})
}

func (c *Client) send(ctx context.Context, path string, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build notification request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "submit notification")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dErrors.Wrap(fmt.Errorf("unexpected status %d", resp.StatusCode),
			dErrors.CodeInternal, "submit notification")
	}
	return nil
}
