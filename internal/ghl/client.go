package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jardins/ghlsync/internal/errors"
	"github.com/jardins/ghlsync/internal/logging"
	"github.com/jardins/ghlsync/internal/metrics"
	"github.com/jardins/ghlsync/internal/models"
	"github.com/jardins/ghlsync/pkg/ratelimit"
)

// Call timeouts. List and exchange calls are cheap; token refresh and value
// writes get the longer bound.
const (
	readTimeout  = 20 * time.Second
	writeTimeout = 30 * time.Second
)

// Client talks to the LeadConnector REST API. It performs no retries; a
// failed call surfaces immediately to the caller.
type Client struct {
	baseURL    string
	apiVersion string
	client     *http.Client
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a client for the given base URL and API version header.
func NewClient(baseURL, apiVersion string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
		client:     newHTTPClient(writeTimeout),
		logger:     logging.NewLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RefreshToken exchanges a refresh token for a new agency token.
func (c *Client) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken, userType string) (*models.AgencyToken, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("user_type", userType)

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "/oauth/token")
	if err != nil {
		return nil, err
	}

	var token models.AgencyToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &errors.ErrRemote{Endpoint: "/oauth/token", StatusCode: http.StatusOK, Body: string(body)}
	}
	return &token, nil
}

// InstalledLocations lists the sub-accounts that installed the app. The
// response is either a bare array or wrapped in {"locations": [...]};
// both shapes are accepted.
func (c *Client) InstalledLocations(ctx context.Context, accessToken, companyID, appID string) ([]models.Location, error) {
	q := url.Values{}
	q.Set("isInstalled", "true")
	q.Set("companyId", companyID)
	q.Set("appId", appID)

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/oauth/installedLocations?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.authHeaders(req, accessToken)

	body, err := c.do(req, "/oauth/installedLocations")
	if err != nil {
		return nil, err
	}

	return parseLocations(body)
}

func parseLocations(body []byte) ([]models.Location, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var bare []models.Location
		if err := json.Unmarshal(trimmed, &bare); err != nil {
			return nil, &errors.ErrRemote{Endpoint: "/oauth/installedLocations", StatusCode: http.StatusOK, Body: string(body)}
		}
		return bare, nil
	}

	var wrapper struct {
		Locations []models.Location `json:"locations"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, &errors.ErrRemote{Endpoint: "/oauth/installedLocations", StatusCode: http.StatusOK, Body: string(body)}
	}
	return wrapper.Locations, nil
}

// LocationToken exchanges the agency token for a location-scoped token and
// returns the response body verbatim.
func (c *Client) LocationToken(ctx context.Context, accessToken, companyID, locationID string) (json.RawMessage, error) {
	form := url.Values{}
	form.Set("companyId", companyID)
	form.Set("locationId", locationID)

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/locationToken", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	c.authHeaders(req, accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req, "/oauth/locationToken")
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// ListCustomValues lists all custom values on a location.
func (c *Client) ListCustomValues(ctx context.Context, locationToken, locationID string) ([]models.CustomValue, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.customValuesURL(locationID, ""), nil)
	if err != nil {
		return nil, err
	}
	c.authHeaders(req, locationToken)

	body, err := c.do(req, "/locations/:id/customValues")
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		CustomValues []models.CustomValue `json:"customValues"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, &errors.ErrRemote{Endpoint: "/locations/:id/customValues", StatusCode: http.StatusOK, Body: string(body)}
	}
	return wrapper.CustomValues, nil
}

// CreateCustomValue creates a named custom value on a location.
func (c *Client) CreateCustomValue(ctx context.Context, locationToken, locationID, name, value string) error {
	return c.writeCustomValue(ctx, http.MethodPost, c.customValuesURL(locationID, ""), "/locations/:id/customValues", locationToken, name, value)
}

// UpdateCustomValue updates an existing custom value by its remote id. The
// API requires the name on update even though it does not change.
func (c *Client) UpdateCustomValue(ctx context.Context, locationToken, locationID, valueID, name, value string) error {
	return c.writeCustomValue(ctx, http.MethodPut, c.customValuesURL(locationID, valueID), "/locations/:id/customValues/:valueId", locationToken, name, value)
}

func (c *Client) writeCustomValue(ctx context.Context, method, fullURL, endpoint, locationToken, name, value string) error {
	payload, err := json.Marshal(map[string]string{"name": name, "value": value})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.authHeaders(req, locationToken)
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, endpoint)
	return err
}

func (c *Client) customValuesURL(locationID, valueID string) string {
	u := fmt.Sprintf("%s/locations/%s/customValues", c.baseURL, url.PathEscape(locationID))
	if valueID != "" {
		u += "/" + url.PathEscape(valueID)
	}
	return u
}

func (c *Client) authHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
}

// do executes the request and applies the shared error taxonomy: transport
// failures wrap the underlying error, non-2xx responses carry status and
// body for diagnostics.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequest(endpoint, req.Method, "transport_error", time.Since(start).Seconds())
		return nil, &errors.ErrTransport{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordAPIRequest(endpoint, req.Method, "transport_error", time.Since(start).Seconds())
		return nil, &errors.ErrTransport{Endpoint: endpoint, Err: err}
	}

	c.metrics.RecordAPIRequest(endpoint, req.Method, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	c.trackRateLimit(endpoint, resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("remote call failed",
			"endpoint", endpoint,
			"status", resp.StatusCode,
		)
		return nil, &errors.ErrRemote{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) trackRateLimit(endpoint string, headers http.Header) {
	info := ratelimit.Parse(headers)
	if info == nil {
		return
	}

	c.metrics.RecordRateLimit("burst", info.BurstRemaining)
	c.metrics.RecordRateLimit("daily", info.DailyRemaining)

	if info.Low() {
		c.logger.Warn("remote rate limit running low",
			"endpoint", endpoint,
			"burst_remaining", info.BurstRemaining,
			"daily_remaining", info.DailyRemaining,
		)
	}
}
