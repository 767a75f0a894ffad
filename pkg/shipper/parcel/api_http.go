package parcel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
// Calls are rate limited client-side and short-circuited while the gateway
// keeps failing.
type HTTPAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	Name           string // circuit breaker name
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	// FailureThreshold consecutive failures open the breaker for BreakerTimeout.
	FailureThreshold uint32
	BreakerTimeout   time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 20
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout == 0 {
		breakerTimeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Timeout:     breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				// Client errors and callers giving up say nothing about
				// gateway health.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return true
				}
				var apiErr *APIError
				if errors.As(err, &apiErr) {
					return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
				}
				return err == nil
			},
		}),
	}
}

// GetRates fetches quotes. POST /v1/rates
func (c *HTTPAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	var result RatesResponse
	if err := c.call(ctx, http.MethodPost, "/v1/rates", req, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateShipment books a shipment. POST /v1/shipments
func (c *HTTPAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	var result ShipmentResponse
	if err := c.call(ctx, http.MethodPost, "/v1/shipments", req, &result, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTracking retrieves tracking events. GET /v1/tracking/{carrier}/{tracking_number}
func (c *HTTPAPIClient) GetTracking(ctx context.Context, carrier, trackingNumber string) (*TrackingResponse, error) {
	path := fmt.Sprintf("/v1/tracking/%s/%s", url.PathEscape(carrier), url.PathEscape(trackingNumber))

	var result TrackingResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// ValidateAddress checks an address. POST /v1/addresses/validate
func (c *HTTPAPIClient) ValidateAddress(ctx context.Context, carrier string, addr *Location) (*AddressValidationResponse, error) {
	body := struct {
		Carrier string    `json:"carrier"`
		Address *Location `json:"address"`
	}{Carrier: carrier, Address: addr}

	var result AddressValidationResponse
	if err := c.call(ctx, http.MethodPost, "/v1/addresses/validate", body, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelShipment voids a shipment. DELETE /v1/shipments/{carrier}/{tracking_number}
func (c *HTTPAPIClient) CancelShipment(ctx context.Context, carrier, trackingNumber string) (*CancelResponse, error) {
	path := fmt.Sprintf("/v1/shipments/%s/%s", url.PathEscape(carrier), url.PathEscape(trackingNumber))

	result := CancelResponse{TrackingNumber: trackingNumber, Cancelled: true, Status: "cancelled"}
	if err := c.call(ctx, http.MethodDelete, path, nil, &result, http.StatusOK, http.StatusNoContent); err != nil {
		return nil, err
	}
	return &result, nil
}

// call waits for the rate limiter, then performs the request through the
// circuit breaker and decodes the response into out.
func (c *HTTPAPIClient) call(ctx context.Context, method, path string, body, out any, okStatus ...int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.doRequest(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if !statusIn(resp.StatusCode, okStatus) {
			return nil, c.parseError(resp)
		}
		if resp.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &APIError{StatusCode: http.StatusServiceUnavailable, Code: "CIRCUIT_OPEN", Message: err.Error()}
	}
	return err
}

// doRequest performs an HTTP request with proper headers and authentication.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "printship/1.0")

	return c.httpClient.Do(req)
}

// parseError extracts error information from an HTTP response.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	apiErr := APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		return &apiErr
	}

	var simpleErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &simpleErr); err == nil {
		if simpleErr.Error != "" {
			msg = simpleErr.Error
		} else if simpleErr.Message != "" {
			msg = simpleErr.Message
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    msg,
	}
}

func statusIn(code int, accepted []int) bool {
	for _, s := range accepted {
		if code == s {
			return true
		}
	}
	return false
}

var _ APIClient = (*HTTPAPIClient)(nil)
