package handlers

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	gateway "github.com/Abdallahnangere/SaukinKarshe/internal/gateways"
	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/Abdallahnangere/SaukinKarshe/internal/repository"
	xhttp "github.com/Abdallahnangere/SaukinKarshe/pkg/http"
)

const testWebhookSecret = "whsec-test"

func setupWebhookContext(body []byte, signature string) *xhttp.RequestCtx {
	ctx := setupTestContext("POST", "/api/v1/webhook/flutterwave", body)
	if signature != "" {
		ctx.Request.Header.Set(webhookSignatureHeader, signature)
	}
	return ctx
}

func webhookBody(txRef, status string) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"event": "charge.completed",
		"data":  map[string]string{"tx_ref": txRef, "status": status},
	})
	return b
}

func TestWebhookHandler_SignatureCheck(t *testing.T) {
	t.Run("missing signature", func(t *testing.T) {
		proc := new(MockConfirmationProcessor)
		handler := NewWebhookHandler(proc, testWebhookSecret)

		ctx := setupWebhookContext(webhookBody("SKM-DATA-1-1", "successful"), "")
		handler.HandleFlutterwave(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
		assert.Empty(t, ctx.Response.Body())
		proc.AssertNotCalled(t, "HandleConfirmation", mock.Anything, mock.Anything)
	})

	t.Run("wrong signature", func(t *testing.T) {
		proc := new(MockConfirmationProcessor)
		handler := NewWebhookHandler(proc, testWebhookSecret)

		ctx := setupWebhookContext(webhookBody("SKM-DATA-1-1", "successful"), "whsec-forged")
		handler.HandleFlutterwave(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
		proc.AssertNotCalled(t, "HandleConfirmation", mock.Anything, mock.Anything)
	})

	t.Run("empty secret never authenticates", func(t *testing.T) {
		proc := new(MockConfirmationProcessor)
		handler := NewWebhookHandler(proc, "")

		for _, signature := range []string{"", "anything"} {
			ctx := setupWebhookContext(webhookBody("SKM-DATA-1-1", "successful"), signature)
			handler.HandleFlutterwave(ctx)

			assert.Equal(t, 401, ctx.Response.StatusCode())
			assert.Empty(t, ctx.Response.Body())
		}
		proc.AssertNotCalled(t, "HandleConfirmation", mock.Anything, mock.Anything)
	})
}

func TestWebhookHandler_HandleFlutterwave(t *testing.T) {
	t.Run("successful charge drives confirmation", func(t *testing.T) {
		proc := new(MockConfirmationProcessor)
		handler := NewWebhookHandler(proc, testWebhookSecret)

		proc.On("HandleConfirmation", mock.Anything, "SKM-DATA-1-1").
			Return(&model.Purchase{Reference: "SKM-DATA-1-1", Status: model.PurchaseStatusDelivered}, nil)

		ctx := setupWebhookContext(webhookBody("SKM-DATA-1-1", "successful"), testWebhookSecret)
		handler.HandleFlutterwave(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		proc.AssertExpectations(t)
	})

	t.Run("failed charge is ignored", func(t *testing.T) {
		proc := new(MockConfirmationProcessor)
		handler := NewWebhookHandler(proc, testWebhookSecret)

		ctx := setupWebhookContext(webhookBody("SKM-DATA-1-1", "failed"), testWebhookSecret)
		handler.HandleFlutterwave(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		proc.AssertNotCalled(t, "HandleConfirmation", mock.Anything, mock.Anything)
	})

	t.Run("unknown reference acked", func(t *testing.T) {
		proc := new(MockConfirmationProcessor)
		handler := NewWebhookHandler(proc, testWebhookSecret)

		proc.On("HandleConfirmation", mock.Anything, "SKM-DATA-0-0").
			Return(nil, repository.ErrPurchaseNotFound)

		ctx := setupWebhookContext(webhookBody("SKM-DATA-0-0", "successful"), testWebhookSecret)
		handler.HandleFlutterwave(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("verification outage makes gateway retry", func(t *testing.T) {
		proc := new(MockConfirmationProcessor)
		handler := NewWebhookHandler(proc, testWebhookSecret)

		proc.On("HandleConfirmation", mock.Anything, "SKM-DATA-1-1").
			Return(nil, gateway.ErrGatewayUnavailable)

		ctx := setupWebhookContext(webhookBody("SKM-DATA-1-1", "successful"), testWebhookSecret)
		handler.HandleFlutterwave(ctx)

		assert.Equal(t, 502, ctx.Response.StatusCode())
	})

	t.Run("store failure keeps detail out of the body", func(t *testing.T) {
		proc := new(MockConfirmationProcessor)
		handler := NewWebhookHandler(proc, testWebhookSecret)

		proc.On("HandleConfirmation", mock.Anything, "SKM-DATA-1-1").
			Return(nil, errors.New(`pq: password authentication failed for user "gateway" host=10.0.3.7`))

		ctx := setupWebhookContext(webhookBody("SKM-DATA-1-1", "successful"), testWebhookSecret)
		handler.HandleFlutterwave(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
		body := string(ctx.Response.Body())
		assert.NotContains(t, body, "pq:")
		assert.NotContains(t, body, "10.0.3.7")
		assert.Contains(t, body, "internal error")
	})

	t.Run("missing tx_ref", func(t *testing.T) {
		proc := new(MockConfirmationProcessor)
		handler := NewWebhookHandler(proc, testWebhookSecret)

		ctx := setupWebhookContext([]byte(`{"event":"charge.completed","data":{}}`), testWebhookSecret)
		handler.HandleFlutterwave(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("invalid JSON", func(t *testing.T) {
		proc := new(MockConfirmationProcessor)
		handler := NewWebhookHandler(proc, testWebhookSecret)

		ctx := setupWebhookContext([]byte("not json"), testWebhookSecret)
		handler.HandleFlutterwave(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}
