package apns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Environment is one of the two push gateway endpoint variants. A device
// token is only valid against the variant matching its build provenance.
type Environment struct {
	Name string
	Host string
}

var (
	Sandbox    = Environment{Name: "sandbox", Host: "https://api.sandbox.push.apple.com"}
	Production = Environment{Name: "production", Host: "https://api.push.apple.com"}
)

// DeliveryOrder is the fallback sequence tried per token: sandbox first,
// production on failure, never more. Development builds only accept
// sandbox-issued pushes and release builds only production ones; trying both
// removes the need to know which build a given device runs.
var DeliveryOrder = []Environment{Sandbox, Production}

// Alert is the user-visible part of a push payload.
type Alert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type apsPayload struct {
	APS struct {
		Alert Alert  `json:"alert"`
		Sound string `json:"sound"`
	} `json:"aps"`
}

type gatewayError struct {
	Reason string `json:"reason"`
}

// Client delivers alerts to the push gateway over its HTTP/2 API, one
// request per device token. Authentication is a caller-supplied signed
// assertion; the client never signs anything itself.
type Client struct {
	httpClient *http.Client
	bundleID   string
}

// NewClient creates a push gateway client for the given app bundle.
func NewClient(bundleID string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		bundleID:   bundleID,
	}
}

// Push delivers one alert to one device token via the given environment.
// A non-2xx gateway response is returned as an error with the gateway's
// rejection reason when it provides one.
func (c *Client) Push(ctx context.Context, env Environment, deviceToken, assertion string, alert Alert) error {
	var payload apsPayload
	payload.APS.Alert = alert
	payload.APS.Sound = "default"

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	url := fmt.Sprintf("%s/3/device/%s", env.Host, deviceToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+assertion)
	req.Header.Set("apns-topic", c.bundleID)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", "10")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push request to %s failed: %w", env.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var gwErr gatewayError
	if decodeErr := json.NewDecoder(resp.Body).Decode(&gwErr); decodeErr == nil && gwErr.Reason != "" {
		return fmt.Errorf("%s gateway rejected delivery: status %d reason %s", env.Name, resp.StatusCode, gwErr.Reason)
	}

	return fmt.Errorf("%s gateway rejected delivery: status %d", env.Name, resp.StatusCode)
}
