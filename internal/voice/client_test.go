package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "secret", PhoneRegion: "US"})
	require.NoError(t, err)
	return client, srv
}

func TestPlaceCall(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/calls", r.URL.Path)
		var req CallRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "+16502530000", req.ToNumber)
		assert.Equal(t, "agent_abc", req.AgentHandle)
		assert.Equal(t, 2, req.AttemptNo)
		_, _ = w.Write([]byte(`{"call_id":"call-42"}`))
	})

	res, err := client.PlaceCall(context.Background(), CallRequest{
		LeadID:      "lead-1",
		AgentHandle: "agent_abc",
		ToNumber:    "650-253-0000",
		AttemptNo:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, "call-42", res.CallID)
}

func TestPlaceCallValidatesBeforeRequest(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := client.PlaceCall(context.Background(), CallRequest{LeadID: "lead-1", ToNumber: "650-253-0000"})
	assert.ErrorIs(t, err, ErrAgentNotConfigured)

	_, err = client.PlaceCall(context.Background(), CallRequest{LeadID: "lead-1", AgentHandle: "a", ToNumber: "nope"})
	assert.ErrorIs(t, err, ErrInvalidContact)
	assert.True(t, IsConfigurationError(err))
	assert.False(t, called)
}

func TestPlaceCallMapsEngineErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"agent_not_configured","message":"agent has no phone"}`))
	})

	_, err := client.PlaceCall(context.Background(), CallRequest{LeadID: "lead-1", AgentHandle: "a", ToNumber: "650-253-0000"})
	assert.ErrorIs(t, err, ErrAgentNotConfigured)
}

func TestPlaceCallTransientFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.PlaceCall(context.Background(), CallRequest{LeadID: "lead-1", AgentHandle: "a", ToNumber: "650-253-0000"})
	require.Error(t, err)
	assert.False(t, IsConfigurationError(err))
	assert.False(t, errors.Is(err, ErrInvalidContact))
}
