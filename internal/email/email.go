// Package email sends transactional mail through a Resend-compatible HTTP
// API.
//
// The client is a thin resty wrapper: construct it once in the composition
// root and inject it where mail gets sent. No retries beyond resty's
// defaults — delivery guarantees belong to the provider.
package email

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Message is one outbound email.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// sendResponse is the provider's reply to a successful send.
type sendResponse struct {
	ID string `json:"id"`
}

// apiError is the provider's error body.
type apiError struct {
	Message string `json:"message"`
}

// Client talks to the email API.
type Client struct {
	http *resty.Client
	from string
}

// New creates a Client for the given API base URL (e.g.
// "https://api.resend.com") and key. from is the default sender, in
// "Name <addr>" form.
func New(baseURL, apiKey, from string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http: http,
		from: from,
	}
}

// Send posts the message and returns the provider's message ID.
// An empty msg.From falls back to the client's default sender.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", fmt.Errorf("email: message has no recipient")
	}
	if msg.From == "" {
		msg.From = c.from
	}

	var ok sendResponse
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(msg).
		SetResult(&ok).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return "", fmt.Errorf("email: sending to %s: %w", msg.To, err)
	}

	if resp.IsError() {
		if apiErr.Message != "" {
			return "", fmt.Errorf("email: provider rejected send (%d): %s", resp.StatusCode(), apiErr.Message)
		}
		return "", fmt.Errorf("email: provider rejected send (%d)", resp.StatusCode())
	}

	return ok.ID, nil
}
