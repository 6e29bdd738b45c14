// Package voice places outbound calls through the external conversation engine.
package voice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SuperK55/aluri-back-sub001/internal/transport"
	"github.com/SuperK55/aluri-back-sub001/pkg/logging"
	"github.com/SuperK55/aluri-back-sub001/pkg/phone"
)

var (
	// ErrAgentNotConfigured is returned when the lead's agent has no engine handle.
	ErrAgentNotConfigured = errors.New("voice: agent not configured")
	// ErrInvalidContact is returned when the lead has no reachable phone number.
	ErrInvalidContact = errors.New("voice: invalid contact")
)

// CallRequest describes one outbound call.
type CallRequest struct {
	LeadID      string            `json:"lead_id"`
	OwnerID     string            `json:"owner_id"`
	AgentHandle string            `json:"agent_id"`
	ToNumber    string            `json:"to_number"`
	AttemptNo   int               `json:"attempt_no"`
	Variables   map[string]string `json:"dynamic_variables,omitempty"`
}

// CallResult is returned once the engine accepted the call.
type CallResult struct {
	CallID string `json:"call_id"`
}

// Engine places calls.
type Engine interface {
	PlaceCall(ctx context.Context, req CallRequest) (CallResult, error)
}

// Config configures the engine client.
type Config struct {
	BaseURL     string
	APIKey      string
	PhoneRegion string
	Timeout     time.Duration
	MaxRetries  int
	Logger      *logging.Logger
	HTTPClient  *http.Client
}

// Client talks to the conversation engine over HTTP.
type Client struct {
	http   *transport.Client
	region string
}

// NewClient creates a conversation engine client.
func NewClient(cfg Config) (*Client, error) {
	httpClient, err := transport.New(transport.Config{
		Name:       "voice",
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Logger:     cfg.Logger,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: httpClient, region: cfg.PhoneRegion}, nil
}

// PlaceCall asks the engine to call the lead. Configuration problems are
// reported before any request is made.
func (c *Client) PlaceCall(ctx context.Context, req CallRequest) (CallResult, error) {
	if strings.TrimSpace(req.AgentHandle) == "" {
		return CallResult{}, ErrAgentNotConfigured
	}
	to, err := phone.Normalize(req.ToNumber, c.region)
	if err != nil {
		return CallResult{}, fmt.Errorf("%w: %s", ErrInvalidContact, req.LeadID)
	}
	req.ToNumber = to

	var out CallResult
	if err := c.http.Do(ctx, http.MethodPost, "/v1/calls", req, &out); err != nil {
		if apiErr, ok := transport.AsAPIError(err); ok {
			switch apiErr.Code {
			case "agent_not_configured":
				return CallResult{}, fmt.Errorf("%w: %v", ErrAgentNotConfigured, apiErr)
			case "invalid_contact":
				return CallResult{}, fmt.Errorf("%w: %v", ErrInvalidContact, apiErr)
			}
		}
		return CallResult{}, fmt.Errorf("voice: place call: %w", err)
	}
	if out.CallID == "" {
		return CallResult{}, errors.New("voice: engine returned no call id")
	}
	return out, nil
}

// IsConfigurationError reports errors that need operator remediation rather
// than a retry.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrAgentNotConfigured) || errors.Is(err, ErrInvalidContact)
}
