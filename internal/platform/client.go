package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the external learning-platform API. Both operations are
// best-effort from the caller's perspective; errors are returned so the
// caller can log them, but nothing here is retried.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Preregister creates a preregistration for email on the course identified
// by slug.
func (c *Client) Preregister(ctx context.Context, slug, email string) error {
	return c.post(ctx, "preregistro", slug, email)
}

// DeletePreregistration removes the preregistration for email/slug.
func (c *Client) DeletePreregistration(ctx context.Context, slug, email string) error {
	return c.post(ctx, "delete_preregistro", slug, email)
}

func (c *Client) post(ctx context.Context, action, slug, email string) error {
	form := url.Values{}
	form.Set("slug", slug)
	form.Set("email", email)
	form.Set("passwd", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+action, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s call failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned status %d", action, resp.StatusCode)
	}
	return nil
}
