// Package bridge is the HTTP client for the external delivery bridge, the
// service that owns the actual outbound message protocol.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/msgpilot/msgpilot/internal/runtimecfg"
)

// Sender is the outbound send capability. Implementations must treat a nil
// error as an accepted send; any error is a terminal delivery failure for
// the caller.
type Sender interface {
	Send(ctx context.Context, recipientID, text string) (messageID string, err error)
}

// Client talks to the bridge's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a bridge client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: runtimecfg.DeliverySendTimeout},
	}
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Send delivers a text message to a recipient via the bridge.
func (c *Client) Send(ctx context.Context, recipientID, text string) (string, error) {
	body, err := json.Marshal(sendRequest{Recipient: recipientID, Message: text})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/send", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("bridge unreachable: %w", err)
	}
	defer resp.Body.Close()

	var parsed sendResponse
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &parsed)

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != "" {
			return "", fmt.Errorf("%s", parsed.Error)
		}
		return "", fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}
	return parsed.MessageID, nil
}

// Status returns the bridge connection status payload as raw JSON, or an
// offline marker when the bridge is not running.
func (c *Client) Status(ctx context.Context) string {
	client := &http.Client{Timeout: runtimecfg.BridgeStatusTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", nil)
	if err != nil {
		return `{"status":"error"}`
	}

	resp, err := client.Do(req)
	if err != nil {
		return `{"status":"bridge_offline","message":"delivery bridge is not running"}`
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil || !json.Valid(data) {
		return `{"status":"error"}`
	}
	return string(data)
}
