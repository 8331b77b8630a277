package mailchimp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Subscriber is one list-subscribe attempt. FirstName is only populated on
// the retry path.
type Subscriber struct {
	Email     string
	FirstName string
	IP        string
	Country   string
	Segment   string
}

// Client posts listSubscribe calls in the legacy 1.3 API shape. The API
// answers with a bare "true" body on success; anything else triggers a
// single retry with the first-name merge field added.
type Client struct {
	apiURL string
	apiKey string
	listID string
	client *http.Client
}

func NewClient(apiURL, apiKey, listID string) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		listID: listID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Subscribe adds or updates the subscriber on the configured list. A
// non-"true" response body causes one retry with FNAME included; the retry
// result is not inspected further.
func (c *Client) Subscribe(ctx context.Context, sub Subscriber) error {
	body, err := c.post(ctx, c.payload(sub, false))
	if err != nil {
		return err
	}

	if strings.TrimSpace(body) != "true" {
		_, err = c.post(ctx, c.payload(sub, true))
		return err
	}
	return nil
}

func (c *Client) payload(sub Subscriber, withName bool) map[string]interface{} {
	mergeVars := map[string]interface{}{
		"OPTINIP":    sub.IP,
		"OPTIN_TIME": time.Now().Unix(),
		"PAIS":       sub.Country,
		"GROUPINGS": []map[string]string{
			{"name": "Online", "groups": sub.Segment},
		},
	}
	if withName {
		mergeVars["FNAME"] = sub.FirstName
	}

	return map[string]interface{}{
		"email_address":   sub.Email,
		"apikey":          c.apiKey,
		"update_existing": true,
		"merge_vars":      mergeVars,
		"id":              c.listID,
		"email_type":      "html",
	}
}

func (c *Client) post(ctx context.Context, payload map[string]interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal subscribe payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"?method=listSubscribe", bytes.NewBuffer(raw))
	if err != nil {
		return "", fmt.Errorf("build subscribe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("subscribe call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read subscribe response: %w", err)
	}
	return string(body), nil
}
