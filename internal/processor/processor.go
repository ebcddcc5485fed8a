package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gateway "github.com/Abdallahnangere/SaukinKarshe/internal/gateways"
	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/Abdallahnangere/SaukinKarshe/internal/repository"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/logger"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/prom"
)

var (
	// ErrInvalidTransition is a consistency anomaly: a purchase in a status
	// the state machine has no edge for. Logged and surfaced generically.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type PurchaseStore interface {
	GetByReference(ctx context.Context, reference string) (*model.Purchase, error)
	Transition(ctx context.Context, reference string, expected model.PurchaseStatus, mutate func(*model.Purchase)) (*model.Purchase, error)
}

type PlanStore interface {
	GetByID(ctx context.Context, id int64) (*model.DataPlan, error)
}

type AttemptStore interface {
	Create(ctx context.Context, a *model.FulfillmentAttempt) (*model.FulfillmentAttempt, error)
}

type ConfirmationGateway interface {
	Verify(ctx context.Context, reference string) (*gateway.VerificationResult, error)
}

type FulfillmentProvider interface {
	Deliver(ctx context.Context, dr gateway.DeliverRequest) (*gateway.DeliverResult, error)
}

// Processor owns the purchase state machine. Every confirmation trigger,
// whether a gateway webhook, a client poll, or the reconciler, funnels into
// HandleConfirmation; nothing else moves a purchase's status.
type Processor struct {
	purchases PurchaseStore
	plans     PlanStore
	attempts  AttemptStore
	gateway   ConfirmationGateway
	provider  FulfillmentProvider
	dedupe    *DedupeService
}

func NewProcessor(purchases PurchaseStore, plans PlanStore, attempts AttemptStore, confirmations ConfirmationGateway, provider FulfillmentProvider, dedupe *DedupeService) *Processor {
	return &Processor{
		purchases: purchases,
		plans:     plans,
		attempts:  attempts,
		gateway:   confirmations,
		provider:  provider,
		dedupe:    dedupe,
	}
}

// HandleConfirmation drives one purchase toward settlement. Safe to call
// concurrently and repeatedly for the same reference from any trigger: the
// settled short-circuit plus the store's conditional transition guarantee at
// most one caller wins the pending->paid edge, and only the winner attempts
// fulfillment.
func (p *Processor) HandleConfirmation(ctx context.Context, reference string) (*model.Purchase, error) {
	start := time.Now()

	// Fast path: a settled marker means a previous trigger already finished
	// this reference, so the store read answers without any gateway work.
	if p.dedupe != nil && p.dedupe.IsSettled(reference) {
		prom.AddConfirmationDuration(time.Since(start).Seconds(), "already_settled")
		return p.purchases.GetByReference(ctx, reference)
	}

	purchase, err := p.purchases.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	// Duplicate trigger after settlement: return the record as-is.
	if purchase.Settled() {
		prom.AddConfirmationDuration(time.Since(start).Seconds(), "already_settled")
		return purchase, nil
	}

	if purchase.Status != model.PurchaseStatusPending {
		logger.Error("Purchase in unexpected status, refusing to process",
			"tx_ref", reference, "status", purchase.Status)
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, purchase.Status)
	}

	var claim *Claim
	if p.dedupe != nil {
		claim, err = p.dedupe.Begin(reference)
		if err != nil {
			// Someone else is mid-confirmation. Hand back what the store
			// has right now; the holder will finish the job.
			logger.Debug("Confirmation in flight elsewhere, returning current state", "tx_ref", reference)
			return p.purchases.GetByReference(ctx, reference)
		}
		defer claim.Release()
	}

	// The trigger is never trusted: re-verify against the gateway ledger
	// even when the webhook already claimed success.
	verification, err := p.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}

	if !verification.Confirmed {
		// Not an error, just "not yet". The next trigger re-drives.
		logger.Info("Payment not confirmed yet", "tx_ref", reference, "provider_status", verification.ProviderStatus)
		prom.AddConfirmationDuration(time.Since(start).Seconds(), "unconfirmed")
		return purchase, nil
	}

	if verification.Amount < purchase.Amount {
		logger.Warn("Confirmed amount below purchase amount, failing payment",
			"tx_ref", reference, "expected", purchase.Amount, "confirmed", verification.Amount)
		failed, err := p.purchases.Transition(ctx, reference, model.PurchaseStatusPending, func(m *model.Purchase) {
			m.Status = model.PurchaseStatusFailed
		})
		if errors.Is(err, repository.ErrStatusConflict) {
			return p.purchases.GetByReference(ctx, reference)
		}
		if err != nil {
			return nil, err
		}
		prom.AddConfirmationDuration(time.Since(start).Seconds(), "underpaid")
		return failed, nil
	}

	paid, err := p.purchases.Transition(ctx, reference, model.PurchaseStatusPending, func(m *model.Purchase) {
		m.Status = model.PurchaseStatusPaid
	})
	if errors.Is(err, repository.ErrStatusConflict) {
		// Lost the race: a concurrent trigger already advanced the record
		// and owns fulfillment. Reload and return, no error.
		logger.Info("Concurrent confirmation won the transition", "tx_ref", reference)
		return p.purchases.GetByReference(ctx, reference)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Payment confirmed", "tx_ref", reference, "kind", paid.Kind, "amount", paid.Amount)

	// From here on this caller is the sole winner of pending->paid.
	final, err := p.fulfill(ctx, paid)
	if err != nil {
		return nil, err
	}

	if claim != nil {
		claim.Settle()
	}

	prom.AddConfirmationDuration(time.Since(start).Seconds(), "settled")
	return final, nil
}

// fulfill runs the post-payment step. Physical goods need no provider call;
// data bundles are dispensed through the delivery provider with the
// purchase's idempotency key. A failed delivery keeps the purchase paid:
// money was received, and delivery stays manually recoverable.
func (p *Processor) fulfill(ctx context.Context, purchase *model.Purchase) (*model.Purchase, error) {
	if purchase.Kind != model.PurchaseKindData {
		return purchase, nil
	}

	if purchase.PlanID == nil {
		return p.recordDeliveryFailure(ctx, purchase, "purchase has no plan", nil)
	}

	plan, err := p.plans.GetByID(ctx, *purchase.PlanID)
	if err != nil {
		logger.Error("Plan lookup failed for paid purchase", "tx_ref", purchase.Reference, "plan_id", *purchase.PlanID, "error", err)
		return p.recordDeliveryFailure(ctx, purchase, "plan not found for delivery", nil)
	}

	result, err := p.provider.Deliver(ctx, gateway.DeliverRequest{
		Network:        plan.Network,
		Phone:          purchase.Phone,
		PlanID:         plan.AmigoPlanID,
		IdempotencyKey: purchase.IdempotencyKey,
	})
	if err != nil {
		// Adapter outage. The purchase stays paid; the attempt is recorded
		// so finance can see the call happened.
		logger.Error("Delivery call failed", "tx_ref", purchase.Reference, "error", err)
		prom.IncFulfillment("error")
		return p.recordDeliveryFailure(ctx, purchase, err.Error(), nil)
	}

	if !result.Success {
		logger.Warn("Delivery rejected by provider", "tx_ref", purchase.Reference, "reason", result.Reason)
		prom.IncFulfillment("rejected")
		return p.recordDeliveryFailure(ctx, purchase, result.Reason, result.Payload)
	}

	prom.IncFulfillment("delivered")

	p.appendAttempt(ctx, purchase.ID, true, result.Payload)

	delivered, err := p.purchases.Transition(ctx, purchase.Reference, model.PurchaseStatusPaid, func(m *model.Purchase) {
		m.Status = model.PurchaseStatusDelivered
		m.DeliveryDetail = result.Payload
	})
	if errors.Is(err, repository.ErrStatusConflict) {
		return p.purchases.GetByReference(ctx, purchase.Reference)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Data bundle delivered", "tx_ref", purchase.Reference, "phone", purchase.Phone)
	return delivered, nil
}

// recordDeliveryFailure persists the failure detail while leaving the status
// at paid. Never flips to failed: that status is reserved for payment-side
// rejection.
func (p *Processor) recordDeliveryFailure(ctx context.Context, purchase *model.Purchase, reason string, payload json.RawMessage) (*model.Purchase, error) {
	detail := payload
	if detail == nil {
		b, _ := json.Marshal(map[string]string{"error": reason})
		detail = b
	} else {
		b, _ := json.Marshal(map[string]json.RawMessage{"error": payload})
		detail = b
	}

	p.appendAttempt(ctx, purchase.ID, false, detail)

	updated, err := p.purchases.Transition(ctx, purchase.Reference, model.PurchaseStatusPaid, func(m *model.Purchase) {
		m.DeliveryDetail = detail
	})
	if errors.Is(err, repository.ErrStatusConflict) {
		return p.purchases.GetByReference(ctx, purchase.Reference)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (p *Processor) appendAttempt(ctx context.Context, purchaseID int64, success bool, detail json.RawMessage) {
	if p.attempts == nil {
		return
	}
	_, err := p.attempts.Create(ctx, &model.FulfillmentAttempt{
		PurchaseID: purchaseID,
		Success:    success,
		Detail:     detail,
	})
	if err != nil {
		// Audit write failure must not affect the settlement outcome.
		logger.Error("Failed to record fulfillment attempt", "purchase_id", purchaseID, "error", err)
	}
}
