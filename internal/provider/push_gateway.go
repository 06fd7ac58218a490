package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/pair-notify/internal/domain"
)

const defaultGatewayTimeout = 10 * time.Second

type gatewayResponse struct {
	MessageID string `json:"messageId"`
	Name      string `json:"name"`
}

// PushGatewayProvider posts push payloads to an HTTP push gateway.
type PushGatewayProvider struct {
	client   *resty.Client
	endpoint string
}

func NewPushGatewayProvider(endpoint string, apiKey string) (*PushGatewayProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)
	if key := strings.TrimSpace(apiKey); key != "" {
		client.SetAuthToken(key)
	}

	return NewPushGatewayProviderWithClient(endpoint, client)
}

func NewPushGatewayProviderWithClient(endpoint string, client *resty.Client) (*PushGatewayProvider, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("push gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid push gateway endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	// Retries belong to the sweeper; the transport call is a single attempt.
	client.SetRetryCount(0)

	return &PushGatewayProvider{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (p *PushGatewayProvider) Send(ctx context.Context, msg domain.PushMessage) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid push message: %w", err)
	}

	var result gatewayResponse
	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(msg).
		SetResult(&result).
		Post(p.endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "push gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "push gateway returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &ProviderResponse{
			StatusCode: statusCode,
			MessageID:  messageID(response, result),
		}, nil
	}

	body := strings.TrimSpace(response.String())
	return nil, &ProviderError{
		StatusCode:   statusCode,
		Message:      gatewayErrorMessage(statusCode, body),
		Transient:    isTransientHTTPStatus(statusCode),
		InvalidToken: isInvalidTokenStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

// isInvalidTokenStatus treats 404 and 410 as an unregistered or expired device token.
func isInvalidTokenStatus(statusCode int) bool {
	return statusCode == http.StatusNotFound || statusCode == http.StatusGone
}

func gatewayErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("push gateway returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func messageID(response *resty.Response, result gatewayResponse) string {
	if id := strings.TrimSpace(result.MessageID); id != "" {
		return id
	}
	if name := strings.TrimSpace(result.Name); name != "" {
		return name
	}
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Request-ID"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
