package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewaySendTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/owners/owner-1/messages/template", r.URL.Path)
		assert.Equal(t, "Bearer gw-key", r.Header.Get("Authorization"))
		var msg TemplateMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "+16502530000", msg.To)
		assert.Equal(t, "welcome_outreach", msg.Template)
		assert.Equal(t, "en", msg.Language)
		assert.Equal(t, []string{"Ana", "Sofia", "Sorriso"}, msg.Params)
		_, _ = w.Write([]byte(`{"message_id":"wamid-1"}`))
	}))
	defer srv.Close()

	gw, err := NewGateway(GatewayConfig{BaseURL: srv.URL, APIKey: "gw-key", PhoneRegion: "US"})
	require.NoError(t, err)

	id, err := gw.SendTemplate(context.Background(), TemplateMessage{
		OwnerID:  "owner-1",
		To:       "(650) 253-0000",
		Template: "welcome_outreach",
		Language: "en",
		Params:   []string{"Ana", "Sofia", "Sorriso"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid-1", id)
}

func TestGatewayChannelNotConnected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"channel_not_connected","message":"no whatsapp credential"}`))
	}))
	defer srv.Close()

	gw, err := NewGateway(GatewayConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = gw.SendTemplate(context.Background(), TemplateMessage{OwnerID: "owner-1", To: "+16502530000", Template: "welcome_outreach"})
	assert.ErrorIs(t, err, ErrChannelNotConnected)
}

func TestGatewayValidation(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()
	gw, err := NewGateway(GatewayConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = gw.SendTemplate(context.Background(), TemplateMessage{To: "+16502530000", Template: "x"})
	assert.Error(t, err)
	_, err = gw.SendTemplate(context.Background(), TemplateMessage{OwnerID: "o", To: "+16502530000"})
	assert.Error(t, err)
	_, err = gw.SendTemplate(context.Background(), TemplateMessage{OwnerID: "o", To: "123", Template: "x"})
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGatewayRateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message_id":"m"}`))
	}))
	defer srv.Close()

	gw, err := NewGateway(GatewayConfig{BaseURL: srv.URL, RatePerSecond: 0.01})
	require.NoError(t, err)
	msg := TemplateMessage{OwnerID: "owner-1", To: "+16502530000", Template: "x"}

	_, err = gw.SendTemplate(context.Background(), msg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = gw.SendTemplate(ctx, msg)
	assert.Error(t, err, "second send must wait for a token the deadline cannot cover")
}
