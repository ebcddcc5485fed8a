package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlutterwaveTestClient(t *testing.T, handler http.HandlerFunc) (*FlutterwaveClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewFlutterwaveClient(FlutterwaveConfig{
		BaseURL:   srv.URL,
		SecretKey: "FLWSECK_TEST-secret",
		Timeout:   2 * time.Second,
	})
	require.NoError(t, err)
	return client, srv
}

func TestFlutterwaveClient_Verify(t *testing.T) {
	t.Run("confirmed payment", func(t *testing.T) {
		client, _ := newFlutterwaveTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer FLWSECK_TEST-secret", r.Header.Get("Authorization"))
			assert.Equal(t, "SKM-DATA-1", r.URL.Query().Get("tx_ref"))
			w.Write([]byte(`{"status":"success","data":{"status":"successful","amount":450,"currency":"NGN","tx_ref":"SKM-DATA-1"}}`))
		})

		res, err := client.Verify(context.Background(), "SKM-DATA-1")
		require.NoError(t, err)
		assert.True(t, res.Confirmed)
		assert.Equal(t, int64(45000), res.Amount)
		assert.Equal(t, "successful", res.ProviderStatus)
	})

	t.Run("payment not yet confirmed", func(t *testing.T) {
		client, _ := newFlutterwaveTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"success","data":{"status":"pending","amount":0}}`))
		})

		res, err := client.Verify(context.Background(), "SKM-DATA-2")
		require.NoError(t, err)
		assert.False(t, res.Confirmed)
	})

	t.Run("unknown reference is not confirmed", func(t *testing.T) {
		client, _ := newFlutterwaveTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":"error","message":"No transaction was found for this id"}`))
		})

		res, err := client.Verify(context.Background(), "no-such-ref")
		require.NoError(t, err)
		assert.False(t, res.Confirmed)
	})

	t.Run("server error surfaces as gateway unavailable", func(t *testing.T) {
		client, _ := newFlutterwaveTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.Verify(context.Background(), "SKM-DATA-3")
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	})

	t.Run("connection failure surfaces as gateway unavailable", func(t *testing.T) {
		client, srv := newFlutterwaveTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
		srv.Close()

		_, err := client.Verify(context.Background(), "SKM-DATA-4")
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	})

	t.Run("cancelled context", func(t *testing.T) {
		client, _ := newFlutterwaveTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Verify(ctx, "SKM-DATA-5")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewFlutterwaveClient_Validation(t *testing.T) {
	_, err := NewFlutterwaveClient(FlutterwaveConfig{SecretKey: "x"})
	assert.Error(t, err)

	_, err = NewFlutterwaveClient(FlutterwaveConfig{BaseURL: "https://api.flutterwave.com"})
	assert.Error(t, err)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(45000), toMinorUnits(450))
	assert.Equal(t, int64(45050), toMinorUnits(450.5))
	assert.Equal(t, int64(0), toMinorUnits(0))
}
