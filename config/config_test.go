package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionRequiresWebhookSecret(t *testing.T) {
	cfg := &Config{Env: "production"}
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paystack_webhook_secret")
}

func TestProductionForbidsSmokeTestToken(t *testing.T) {
	cfg := &Config{
		Env:                   "production",
		PaystackWebhookSecret: "whsec",
		SmokeTestToken:        "token",
	}
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smoke_test_token")
}

func TestWebhookSecretFallsBackToSecretKey(t *testing.T) {
	cfg := &Config{Env: "development", PaystackSecretKey: "sk_test_xyz"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "sk_test_xyz", cfg.PaystackWebhookSecret)
}

func TestExplicitWebhookSecretIsKept(t *testing.T) {
	cfg := &Config{
		Env:                   "development",
		PaystackSecretKey:     "sk_test_xyz",
		PaystackWebhookSecret: "whsec",
	}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "whsec", cfg.PaystackWebhookSecret)
}
