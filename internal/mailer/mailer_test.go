package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBuildsSendGridPayload(t *testing.T) {
	var body map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGridSender("SG.key", "noreply@example.com").WithBaseURL(srv.URL)
	err := s.Send(context.Background(), "ada@example.com", "Order confirmation", "<p>hi</p>")
	require.NoError(t, err)

	assert.Equal(t, "Bearer SG.key", auth)
	assert.Equal(t, "Order confirmation", body["subject"])
	from, _ := body["from"].(map[string]interface{})
	assert.Equal(t, "noreply@example.com", from["email"])
}

func TestSendErrorStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"invalid api key"}]}`))
	}))
	defer srv.Close()

	s := NewSendGridSender("SG.bad", "noreply@example.com").WithBaseURL(srv.URL)
	err := s.Send(context.Background(), "ada@example.com", "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestSendWithoutConfigReturnsSentinel(t *testing.T) {
	s := NewSendGridSender("", "")
	err := s.Send(context.Background(), "ada@example.com", "x", "y")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
