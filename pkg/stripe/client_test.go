package stripe

import (
	"context"
	"testing"

	stripesdk "github.com/stripe/stripe-go/v84"

	"github.com/upliftlabs/calculator-backend/pkg/config"
)

func TestNewClientSetsAPIKeyAndSecret(t *testing.T) {
	cfg := config.StripeConfig{
		SecretKey:     "sk_test_abc123",
		WebhookSecret: "whsec_abc123",
		Env:           "test",
	}

	client, err := NewClient(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if stripesdk.Key != "sk_test_abc123" {
		t.Fatalf("sdk key = %s", stripesdk.Key)
	}
	if client.SigningSecret() != "whsec_abc123" {
		t.Fatalf("signing secret = %s", client.SigningSecret())
	}
	if client.Environment() != "test" {
		t.Fatalf("environment = %s", client.Environment())
	}
}

func TestNewClientValidatesKeyAgainstEnv(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		env     string
		wantErr bool
	}{
		{name: "test key in test env", key: "sk_test_abc", env: "test"},
		{name: "restricted test key", key: "rk_test_abc", env: "test"},
		{name: "live key in live env", key: "sk_live_abc", env: "live"},
		{name: "live key in test env", key: "sk_live_abc", env: "test", wantErr: true},
		{name: "test key in live env", key: "sk_test_abc", env: "live", wantErr: true},
		{name: "unknown env", key: "sk_test_abc", env: "sandbox", wantErr: true},
		{name: "empty env defaults to test", key: "sk_test_abc", env: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.StripeConfig{
				SecretKey:     tc.key,
				WebhookSecret: "whsec_abc",
				Env:           tc.env,
			}
			_, err := NewClient(context.Background(), cfg, nil)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewClientRequiresSecrets(t *testing.T) {
	_, err := NewClient(context.Background(), config.StripeConfig{WebhookSecret: "whsec_abc"}, nil)
	if err == nil {
		t.Fatalf("expected error for missing api key")
	}

	_, err = NewClient(context.Background(), config.StripeConfig{SecretKey: "sk_test_abc"}, nil)
	if err == nil {
		t.Fatalf("expected error for missing webhook secret")
	}
}

func TestClientNilReceiverSafe(t *testing.T) {
	var client *Client
	if client.SigningSecret() != "" {
		t.Fatalf("nil client signing secret must be empty")
	}
	if client.Environment() != "" {
		t.Fatalf("nil client environment must be empty")
	}
}
