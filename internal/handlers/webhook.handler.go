package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"

	"github.com/fasthttp/router"

	gateway "github.com/Abdallahnangere/SaukinKarshe/internal/gateways"
	"github.com/Abdallahnangere/SaukinKarshe/internal/processor"
	"github.com/Abdallahnangere/SaukinKarshe/internal/repository"
	xhttp "github.com/Abdallahnangere/SaukinKarshe/pkg/http"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/logger"
)

const webhookSignatureHeader = "verif-hash"

type WebhookHandler struct {
	processor ConfirmationProcessor
	secret    string
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhook/flutterwave", h.HandleFlutterwave)
}

func NewWebhookHandler(processor ConfirmationProcessor, secret string) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		secret:    secret,
	}
}

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		TxRef  string `json:"tx_ref"`
		Status string `json:"status"`
	} `json:"data"`
}

// HandleFlutterwave ingests payment notifications. The webhook is only a
// hint that a payment may have settled; the amount and status that matter
// come from a direct gateway verification, never from this payload.
func (h *WebhookHandler) HandleFlutterwave(ctx *xhttp.RequestCtx) {
	// Without a configured secret no signature can be trusted, so nothing
	// authenticates.
	signature := ctx.Request.Header.Peek(webhookSignatureHeader)
	if h.secret == "" || subtle.ConstantTimeCompare(signature, []byte(h.secret)) != 1 {
		ctx.Response.SetStatusCode(401)
		return
	}

	var event flutterwaveEvent
	if err := json.Unmarshal(ctx.PostBody(), &event); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if event.Data.TxRef == "" {
		writeError(ctx, 400, "tx_ref is required")
		return
	}
	if event.Data.Status != "successful" {
		// Failed-charge noise from the gateway; nothing to confirm.
		logger.Info("Ignoring webhook event", "tx_ref", event.Data.TxRef, "event", event.Event, "status", event.Data.Status)
		writeJSON(ctx, 200, map[string]string{"status": "ignored"})
		return
	}

	purchase, err := h.processor.HandleConfirmation(ctx, event.Data.TxRef)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPurchaseNotFound):
			// Not ours, or a reference we never minted. Ack so the
			// gateway stops retrying.
			logger.Warn("Webhook for unknown reference", "tx_ref", event.Data.TxRef)
			writeJSON(ctx, 200, map[string]string{"status": "unknown reference"})
		case errors.Is(err, processor.ErrInvalidTransition):
			writeJSON(ctx, 200, map[string]string{"status": "already terminal"})
		case errors.Is(err, gateway.ErrGatewayUnavailable):
			// Non-2xx makes the gateway redeliver later.
			writeError(ctx, 502, "verification unavailable")
		default:
			// Details stay in the log, not in the body we hand the
			// payment gateway.
			logger.Error("Webhook confirmation failed", "tx_ref", event.Data.TxRef, "error", err)
			writeError(ctx, 500, "internal error")
		}
		return
	}

	writeJSON(ctx, 200, map[string]interface{}{
		"status": "processed",
		"tx_ref": purchase.Reference,
		"state":  purchase.Status,
	})
}
