// Package messaging delivers outbound templated chat messages and plain-text
// SMS fallbacks.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/SuperK55/aluri-back-sub001/internal/transport"
	"github.com/SuperK55/aluri-back-sub001/pkg/logging"
	"github.com/SuperK55/aluri-back-sub001/pkg/phone"
)

// ErrChannelNotConnected is returned when the business has no active
// messaging credential. Callers fall back to plain text.
var ErrChannelNotConnected = errors.New("messaging: channel not connected")

// ErrInvalidRecipient is returned when the destination cannot be normalized.
var ErrInvalidRecipient = errors.New("messaging: invalid recipient")

const codeChannelNotConnected = "channel_not_connected"

// TemplateMessage is one templated outbound message.
type TemplateMessage struct {
	OwnerID  string   `json:"-"`
	To       string   `json:"to"`
	Template string   `json:"template"`
	Language string   `json:"language"`
	Params   []string `json:"params"`
}

// TemplateSender delivers templated messages.
type TemplateSender interface {
	SendTemplate(ctx context.Context, msg TemplateMessage) (string, error)
}

// GatewayConfig configures the messaging gateway client.
type GatewayConfig struct {
	BaseURL       string
	APIKey        string
	PhoneRegion   string
	RatePerSecond float64
	Timeout       time.Duration
	MaxRetries    int
	HTTPClient    *http.Client
	Logger        *logging.Logger
}

// Gateway sends template messages through the external messaging gateway.
type Gateway struct {
	http    *transport.Client
	limiter *rate.Limiter
	region  string
}

// NewGateway creates a gateway client. A non-positive rate disables limiting.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	client, err := transport.New(transport.Config{
		Name:       "messaging gateway",
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Gateway{http: client, limiter: rate.NewLimiter(limit, burst), region: cfg.PhoneRegion}, nil
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// SendTemplate delivers msg and returns the gateway message id.
func (g *Gateway) SendTemplate(ctx context.Context, msg TemplateMessage) (string, error) {
	if strings.TrimSpace(msg.OwnerID) == "" {
		return "", errors.New("messaging: owner id required")
	}
	if strings.TrimSpace(msg.Template) == "" {
		return "", errors.New("messaging: template name required")
	}
	to, err := phone.Normalize(msg.To, g.region)
	if err != nil {
		return "", ErrInvalidRecipient
	}
	msg.To = to

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("messaging: rate limit: %w", err)
	}
	var out sendResponse
	path := "/v1/owners/" + url.PathEscape(msg.OwnerID) + "/messages/template"
	if err := g.http.Do(ctx, http.MethodPost, path, msg, &out); err != nil {
		if apiErr, ok := transport.AsAPIError(err); ok && apiErr.Code == codeChannelNotConnected {
			return "", fmt.Errorf("%w: %v", ErrChannelNotConnected, apiErr)
		}
		return "", fmt.Errorf("messaging: send template %s: %w", msg.Template, err)
	}
	return out.MessageID, nil
}
