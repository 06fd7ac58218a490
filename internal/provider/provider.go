package provider

import (
	"context"

	"github.com/kursadbilgin/pair-notify/internal/domain"
)

// Provider is the outbound push delivery port.
type Provider interface {
	Send(ctx context.Context, msg domain.PushMessage) (*ProviderResponse, error)
}

// ProviderResponse stores transport call metadata for logging.
type ProviderResponse struct {
	StatusCode int
	MessageID  string
}
