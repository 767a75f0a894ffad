package shipper

import (
	"errors"
	"fmt"
)

// ShipperError represents an error from a shipping carrier.
type ShipperError struct {
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ShipperError.
func (e *ShipperError) Is(target error) bool {
	t, ok := target.(*ShipperError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewShipperError creates a new ShipperError.
func NewShipperError(carrier, code, message string) *ShipperError {
	return &ShipperError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *ShipperError) WithRetryable(retryable bool) *ShipperError {
	e.Retryable = retryable
	return e
}

// ConfigurationError reports a carrier module that cannot operate with its
// current configuration. Such modules are kept disabled.
type ConfigurationError struct {
	Carrier string
	Reason  string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s misconfigured: %s: %v", e.Carrier, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s misconfigured: %s", e.Carrier, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(carrier, reason string, cause error) *ConfigurationError {
	return &ConfigurationError{Carrier: carrier, Reason: reason, Cause: cause}
}

// Sentinel errors for common shipping scenarios.
var (
	// ErrInvalidAddress indicates the address is invalid or incomplete.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrServiceUnavailable indicates the carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrUnknownService indicates the service code is not offered by the carrier.
	ErrUnknownService = errors.New("unknown service")

	// ErrShipmentNotFound indicates the tracking number was not found.
	ErrShipmentNotFound = errors.New("shipment not found")

	// ErrCancellationNotAllowed indicates the shipment cannot be cancelled.
	ErrCancellationNotAllowed = errors.New("cancellation not allowed")

	// ErrAuthenticationFailed indicates carrier authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrNoPackages indicates a label was requested without packages.
	ErrNoPackages = errors.New("no packages")

	// ErrCarrierNotFound indicates the requested carrier is not registered.
	ErrCarrierNotFound = errors.New("carrier not found")

	// ErrCarrierDisabled indicates the requested carrier is registered but disabled.
	ErrCarrierDisabled = errors.New("carrier disabled")

	// ErrNoRateStore indicates rate persistence was requested without a store.
	ErrNoRateStore = errors.New("no rate store configured")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
