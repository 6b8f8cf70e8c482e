package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRandomEndpoint(t *testing.T) {
	t.Run("single endpoint", func(t *testing.T) {
		selected, err := SelectRandomEndpoint([]string{"https://api.mainnet-beta.solana.com"})
		require.NoError(t, err)
		assert.Equal(t, "https://api.mainnet-beta.solana.com", selected)
	})

	t.Run("empty and nil", func(t *testing.T) {
		_, err := SelectRandomEndpoint([]string{})
		assert.ErrorContains(t, err, "no RPC endpoints configured")

		_, err = SelectRandomEndpoint(nil)
		assert.Error(t, err)
	})

	t.Run("spreads across endpoints", func(t *testing.T) {
		endpoints := []string{"https://a.example", "https://b.example", "https://c.example"}

		seen := make(map[string]bool)
		for range 50 {
			selected, err := SelectRandomEndpoint(endpoints)
			require.NoError(t, err)
			seen[selected] = true
		}
		assert.GreaterOrEqual(t, len(seen), 2)
	})
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://api.mainnet-beta.solana.com", "mainnet"},
		{"https://api.devnet.solana.com", "devnet"},
		{"https://mainnet.helius-rpc.com/?api-key=secret", "helius"},
		{"https://abc.solana-mainnet.quiknode.pro/secret/", "quiknode"},
		{"http://localhost:8899", "localhost"},
		{"not a url", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, EndpointLabel(tt.url))
		})
	}
}
