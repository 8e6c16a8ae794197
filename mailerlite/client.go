// Package mailerlite talks to the MailerLite subscriber API.
package mailerlite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
)

const DefaultBaseURL = "https://connect.mailerlite.com/api"

type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ActiveCount int    `json:"active_count"`
}

type Subscriber struct {
	Email  string            `json:"email"`
	Fields map[string]string `json:"fields,omitempty"`
	Groups []string          `json:"groups,omitempty"`
}

// NewSubscriber builds the payload for a contact joining one group.
func NewSubscriber(name, email, groupID string) Subscriber {
	s := Subscriber{Email: email, Fields: map[string]string{"name": name}}
	if groupID != "" {
		s.Groups = []string{groupID}
	}
	return s
}

// APIError is a non-2xx answer from MailerLite.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mailerlite: status %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Groups lists the account's subscriber groups. A successful call also
// proves the token is valid.
func (c *Client) Groups(ctx context.Context, token string) ([]Group, error) {
	var page struct {
		Data []Group `json:"data"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/groups", nil, &page); err != nil {
		return nil, err
	}
	if page.Data == nil {
		page.Data = []Group{}
	}
	return page.Data, nil
}

// UpsertSubscriber creates the subscriber or updates the existing one with
// the same email.
func (c *Client) UpsertSubscriber(ctx context.Context, token string, sub Subscriber) error {
	return c.do(ctx, token, http.MethodPost, "/subscribers", sub, nil)
}

func (c *Client) do(ctx context.Context, token, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := render.DecodeJSON(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Message != "" {
		apiErr.Message = parsed.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
