package shipper_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/printship/pkg/shipper"
)

func TestShipperError_Error(t *testing.T) {
	err := shipper.NewShipperError("fedex", "INVALID_ADDRESS", "Invalid postal code")
	assert.Equal(t, "fedex error (INVALID_ADDRESS): Invalid postal code", err.Error())
}

func TestShipperError_ErrorWithCause(t *testing.T) {
	cause := errors.New("network timeout")
	err := shipper.NewShipperError("fedex", "API_ERROR", "API call failed").WithCause(cause)
	assert.Contains(t, err.Error(), "API call failed")
	assert.Contains(t, err.Error(), "network timeout")
}

func TestShipperError_Unwrap(t *testing.T) {
	cause := errors.New("network timeout")
	err := shipper.NewShipperError("fedex", "API_ERROR", "API call failed").WithCause(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestShipperError_UnwrapSentinel(t *testing.T) {
	err := shipper.NewShipperError("ups", "NOT_FOUND", "No such shipment").WithCause(shipper.ErrShipmentNotFound)
	wrapped := fmt.Errorf("tracking: %w", err)
	assert.ErrorIs(t, wrapped, shipper.ErrShipmentNotFound)
}

func TestShipperError_Is(t *testing.T) {
	err1 := shipper.NewShipperError("fedex", "INVALID_ADDRESS", "Invalid postal code")
	err2 := shipper.NewShipperError("ups", "INVALID_ADDRESS", "Different message")

	// Same code should match
	assert.True(t, errors.Is(err1, err2))
}

func TestShipperError_IsNot(t *testing.T) {
	err1 := shipper.NewShipperError("fedex", "INVALID_ADDRESS", "Invalid postal code")
	err2 := shipper.NewShipperError("fedex", "DIFFERENT_CODE", "Different error")

	// Different codes should not match
	assert.False(t, errors.Is(err1, err2))
}

func TestShipperError_WithStatusCode(t *testing.T) {
	err := shipper.NewShipperError("fedex", "AUTH_ERROR", "Unauthorized").WithStatusCode(401)
	assert.Equal(t, 401, err.StatusCode)
}

func TestShipperError_WithRetryable(t *testing.T) {
	err := shipper.NewShipperError("fedex", "RATE_LIMIT", "Too many requests").WithRetryable(true)
	assert.True(t, err.Retryable)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"retryable shipper error", shipper.NewShipperError("fedex", "RATE_LIMIT", "Too many requests").WithRetryable(true), true},
		{"non-retryable shipper error", shipper.NewShipperError("fedex", "INVALID_ADDRESS", "Bad address").WithRetryable(false), false},
		{"service unavailable", shipper.ErrServiceUnavailable, true},
		{"rate limit exceeded", shipper.ErrRateLimitExceeded, true},
		{"wrapped rate limit", fmt.Errorf("quote: %w", shipper.ErrRateLimitExceeded), true},
		{"invalid address", shipper.ErrInvalidAddress, false},
		{"configuration", shipper.NewConfigurationError("ups", "missing API key", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shipper.IsRetryable(tt.err))
		})
	}
}

func TestConfigurationError(t *testing.T) {
	err := shipper.NewConfigurationError("southwest", "pickup rate table", errors.New("tiers not ascending"))
	assert.Equal(t, "southwest misconfigured: pickup rate table: tiers not ascending", err.Error())

	plain := shipper.NewConfigurationError("ups", "missing API key", nil)
	assert.Equal(t, "ups misconfigured: missing API key", plain.Error())
}

func TestIsConfigurationError(t *testing.T) {
	cfgErr := shipper.NewConfigurationError("ups", "missing API key", nil)

	assert.True(t, shipper.IsConfigurationError(cfgErr))
	assert.True(t, shipper.IsConfigurationError(fmt.Errorf("register: %w", cfgErr)))
	assert.False(t, shipper.IsConfigurationError(shipper.ErrServiceUnavailable))
	assert.False(t, shipper.IsConfigurationError(nil))

	var target *shipper.ConfigurationError
	assert.True(t, errors.As(fmt.Errorf("register: %w", cfgErr), &target))
	assert.Equal(t, "ups", target.Carrier)
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrInvalidAddress", shipper.ErrInvalidAddress},
		{"ErrServiceUnavailable", shipper.ErrServiceUnavailable},
		{"ErrUnknownService", shipper.ErrUnknownService},
		{"ErrShipmentNotFound", shipper.ErrShipmentNotFound},
		{"ErrCancellationNotAllowed", shipper.ErrCancellationNotAllowed},
		{"ErrAuthenticationFailed", shipper.ErrAuthenticationFailed},
		{"ErrRateLimitExceeded", shipper.ErrRateLimitExceeded},
		{"ErrNoPackages", shipper.ErrNoPackages},
		{"ErrCarrierNotFound", shipper.ErrCarrierNotFound},
		{"ErrCarrierDisabled", shipper.ErrCarrierDisabled},
		{"ErrNoRateStore", shipper.ErrNoRateStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}
