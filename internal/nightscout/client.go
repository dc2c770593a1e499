// Package nightscout implements the upstream monitoring service
// against the Nightscout REST API.
package nightscout

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // SHA1 is what the legacy Nightscout API-SECRET header expects
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

// Client talks to a Nightscout instance. It implements
// domain.MonitorService.
type Client struct {
	baseURL    string
	apiSecret  string
	apiToken   string
	useToken   bool
	httpClient *http.Client
}

// NewClient creates a Nightscout client. With useToken set the bearer
// token is used, otherwise the hashed API secret header.
func NewClient(baseURL, apiSecret, apiToken string, useToken bool) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		apiToken:  apiToken,
		useToken:  useToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// hashSecret generates the SHA1 hex digest Nightscout expects in the
// API-SECRET header.
func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec // Nightscout API requirement
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

func (c *Client) buildRequest(ctx context.Context, method, endpoint string, params url.Values, body any) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if params != nil {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	if c.useToken && c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	} else if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	return req, nil
}

func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// wireEntry is the Nightscout JSON representation of a glucose entry.
type wireEntry struct {
	ID        string   `json:"_id"`
	SGV       *float64 `json:"sgv"`
	Date      int64    `json:"date"` // unix millis
	Direction string   `json:"direction"`
}

func (w wireEntry) toDomain() domain.GlucoseEntry {
	return domain.GlucoseEntry{
		Timestamp: time.UnixMilli(w.Date),
		SGV:       w.SGV,
		Trend:     domain.TrendFromDirection(w.Direction),
	}
}

// FetchRecent retrieves the most recent readings, newest first as the
// API returns them.
func (c *Client) FetchRecent(ctx context.Context, limit int) ([]domain.GlucoseEntry, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("count", fmt.Sprintf("%d", limit))
	}

	req, err := c.buildRequest(ctx, http.MethodGet, "/api/v1/entries/sgv", params, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var wire []wireEntry
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parsing entries: %w", err)
	}

	entries := make([]domain.GlucoseEntry, 0, len(wire))
	for _, w := range wire {
		entries = append(entries, w.toDomain())
	}
	return entries, nil
}

// UploadProfilePatch uploads a merged therapy profile patch.
func (c *Client) UploadProfilePatch(ctx context.Context, patch domain.ProfilePatch) error {
	req, err := c.buildRequest(ctx, http.MethodPut, "/api/v1/profile", nil, patch)
	if err != nil {
		return err
	}
	if _, err := c.doRequest(req); err != nil {
		return fmt.Errorf("uploading profile patch: %w", err)
	}
	return nil
}

// AuthorizePendingBolus confirms the pending remote bolus on the
// careportal.
func (c *Client) AuthorizePendingBolus(ctx context.Context) error {
	treatment := map[string]any{
		"eventType":  "Remote Bolus Approval",
		"enteredBy":  "caregiver-cockpit",
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	req, err := c.buildRequest(ctx, http.MethodPost, "/api/v1/treatments", nil, treatment)
	if err != nil {
		return err
	}
	if _, err := c.doRequest(req); err != nil {
		return fmt.Errorf("authorizing bolus: %w", err)
	}
	return nil
}

// TestConnection checks that the instance is reachable and the
// credentials are accepted.
func (c *Client) TestConnection(ctx context.Context) error {
	req, err := c.buildRequest(ctx, http.MethodGet, "/api/v1/status", nil, nil)
	if err != nil {
		return err
	}
	_, err = c.doRequest(req)
	return err
}
