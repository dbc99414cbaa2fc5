package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ErrTraceNotFound is returned when Tempo has no trace for the requested id.
var ErrTraceNotFound = errors.New("trace not found")

// TempoClient fetches traces back from a Tempo query frontend so an import
// run can confirm its spans arrived
type TempoClient struct {
	queryEndpoint string
	tenantID      string
	token         []byte
	httpClient    *http.Client
}

// NewTempoClient creates a new Tempo client with token read from file path
// If tokenPath is empty, the client will work without authentication
func NewTempoClient(queryEndpoint, tenantID, tokenPath string) (*TempoClient, error) {
	var token []byte
	var err error

	if tokenPath != "" {
		token, err = os.ReadFile(tokenPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read token from %s: %w", tokenPath, err)
		}
	}

	// Create custom transport with TLS config that allows self-signed certificates
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   time.Minute,
	}

	return &TempoClient{
		queryEndpoint: queryEndpoint,
		tenantID:      tenantID,
		token:         token,
		httpClient:    httpClient,
	}, nil
}

// TraceByID fetches one trace by hex trace id and returns the parsed response
func (c *TempoClient) TraceByID(ctx context.Context, traceID string) (*TraceResponse, error) {
	url := fmt.Sprintf("%s/api/traces/%s", c.queryEndpoint, traceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating http request: %w", err)
	}

	// Add authentication header if token is available
	if c.token != nil {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", string(c.token)))
	}

	// Add tenant ID header for multitenancy
	if c.tenantID != "" {
		req.Header.Set("X-Scope-OrgID", c.tenantID)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making http request: %w", err)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		res.Body.Close()
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, ErrTraceNotFound
	}
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("trace fetch failed with status %d: %s", res.StatusCode, string(body))
	}

	var traceResp TraceResponse
	if err := json.Unmarshal(body, &traceResp); err != nil {
		return nil, fmt.Errorf("error parsing response JSON: %w", err)
	}

	return &traceResp, nil
}
