package messaging

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

const defaultTelnyxBaseURL = "https://api.telnyx.com/v2"

// TextMessage is a plain-text SMS.
type TextMessage struct {
	From string
	To   string
	Body string
}

// TextSender delivers plain-text messages.
type TextSender interface {
	SendText(ctx context.Context, msg TextMessage) (string, error)
}

// TelnyxConfig configures the Telnyx SMS sender.
type TelnyxConfig struct {
	BaseURL            string
	APIKey             string
	MessagingProfileID string
	PhoneRegion        string
	Timeout            time.Duration
	MaxRetries         int
	HTTPClient         *http.Client
	Logger             *logging.Logger
}

// TelnyxSender sends SMS through the Telnyx messages API.
type TelnyxSender struct {
	http      *transport.Client
	profileID string
	region    string
}

// NewTelnyxSender creates an SMS sender.
func NewTelnyxSender(cfg TelnyxConfig) (*TelnyxSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("messaging: telnyx API key is required")
	}
	baseURL := cfg.BaseURL
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultTelnyxBaseURL
	}
	client, err := transport.New(transport.Config{
		Name:       "telnyx",
		BaseURL:    baseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &TelnyxSender{http: client, profileID: cfg.MessagingProfileID, region: cfg.PhoneRegion}, nil
}

type telnyxSendRequest struct {
	From               string `json:"from,omitempty"`
	To                 string `json:"to"`
	Text               string `json:"text"`
	MessagingProfileID string `json:"messaging_profile_id,omitempty"`
}

type telnyxSendResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// SendText sends msg and returns the provider message id.
func (s *TelnyxSender) SendText(ctx context.Context, msg TextMessage) (string, error) {
	to, err := phone.Normalize(msg.To, s.region)
	if err != nil {
		return "", ErrInvalidRecipient
	}
	if strings.TrimSpace(msg.Body) == "" {
		return "", errors.New("messaging: body required")
	}
	if msg.From == "" && s.profileID == "" {
		return "", errors.New("messaging: sender number or messaging profile required")
	}
	var out telnyxSendResponse
	err = s.http.Do(ctx, http.MethodPost, "/messages", telnyxSendRequest{
		From:               phone.NormalizeE164(msg.From, s.region),
		To:                 to,
		Text:               msg.Body,
		MessagingProfileID: s.profileID,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("messaging: send sms: %w", err)
	}
	return out.Data.ID, nil
}
