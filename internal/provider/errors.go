package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ProviderError classifies push transport failures as transient/permanent.
// InvalidToken marks a target the transport no longer recognizes.
type ProviderError struct {
	StatusCode   int
	Message      string
	Transient    bool
	InvalidToken bool
	Cause        error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "push provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether an error should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || netErr.Temporary()
	}

	return false
}

// Failure reasons used as metric labels.
const (
	ReasonTimeout      = "timeout"
	ReasonCanceled     = "canceled"
	ReasonTransient    = "transient"
	ReasonInvalidToken = "invalid_token"
	ReasonPermanent    = "permanent"
)

// FailureReason maps a send error to a coarse reason label.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.InvalidToken {
		return ReasonInvalidToken
	}
	if IsTransient(err) {
		return ReasonTransient
	}
	return ReasonPermanent
}
