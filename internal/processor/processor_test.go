package processor

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	gateway "github.com/Abdallahnangere/SaukinKarshe/internal/gateways"
	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/Abdallahnangere/SaukinKarshe/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPurchaseStore implements PurchaseStore with the same conditional-write
// contract as the gorm repository: the status check and the mutation happen
// under one lock, so concurrent Transition calls serialize exactly like the
// guarded UPDATE does.
type memPurchaseStore struct {
	mu        sync.Mutex
	purchases map[string]*model.Purchase
}

func newMemPurchaseStore(purchases ...*model.Purchase) *memPurchaseStore {
	s := &memPurchaseStore{purchases: make(map[string]*model.Purchase)}
	for _, p := range purchases {
		cp := *p
		s.purchases[p.Reference] = &cp
	}
	return s
}

func (s *memPurchaseStore) GetByReference(ctx context.Context, reference string) (*model.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[reference]
	if !ok {
		return nil, repository.ErrPurchaseNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memPurchaseStore) Transition(ctx context.Context, reference string, expected model.PurchaseStatus, mutate func(*model.Purchase)) (*model.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[reference]
	if !ok {
		return nil, repository.ErrPurchaseNotFound
	}
	if p.Status != expected {
		return nil, repository.ErrStatusConflict
	}
	cp := *p
	mutate(&cp)
	s.purchases[reference] = &cp
	out := cp
	return &out, nil
}

func (s *memPurchaseStore) current(reference string) *model.Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purchases[reference]
}

type memPlanStore struct {
	plans map[int64]*model.DataPlan
}

func (s *memPlanStore) GetByID(ctx context.Context, id int64) (*model.DataPlan, error) {
	p, ok := s.plans[id]
	if !ok {
		return nil, repository.ErrPlanNotFound
	}
	return p, nil
}

type memAttemptStore struct {
	mu       sync.Mutex
	attempts []*model.FulfillmentAttempt
}

func (s *memAttemptStore) Create(ctx context.Context, a *model.FulfillmentAttempt) (*model.FulfillmentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return a, nil
}

type stubGateway struct {
	calls  atomic.Int64
	result *gateway.VerificationResult
	err    error
}

func (g *stubGateway) Verify(ctx context.Context, reference string) (*gateway.VerificationResult, error) {
	g.calls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

type stubProvider struct {
	calls  atomic.Int64
	result *gateway.DeliverResult
	err    error
}

func (p *stubProvider) Deliver(ctx context.Context, dr gateway.DeliverRequest) (*gateway.DeliverResult, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func dataPurchase(ref string, amount int64) *model.Purchase {
	planID := int64(1)
	return &model.Purchase{
		ID:             1,
		Reference:      ref,
		Kind:           model.PurchaseKindData,
		Status:         model.PurchaseStatusPending,
		Phone:          "+2348012345678",
		Amount:         amount,
		PlanID:         &planID,
		IdempotencyKey: "idem-" + ref,
	}
}

func storePurchase(ref string, amount int64) *model.Purchase {
	productID := int64(9)
	return &model.Purchase{
		ID:             2,
		Reference:      ref,
		Kind:           model.PurchaseKindEcommerce,
		Status:         model.PurchaseStatusPending,
		Phone:          "+2348012345678",
		Amount:         amount,
		ProductID:      &productID,
		IdempotencyKey: "idem-" + ref,
	}
}

func mtnPlans() *memPlanStore {
	return &memPlanStore{plans: map[int64]*model.DataPlan{
		1: {ID: 1, Network: model.NetworkMTN, Data: "1GB", Price: 45000, AmigoPlanID: 1001},
	}}
}

func confirmed(amount int64) *stubGateway {
	return &stubGateway{result: &gateway.VerificationResult{Confirmed: true, Amount: amount, ProviderStatus: "successful"}}
}

func TestHandleConfirmation_DataBundleHappyPath(t *testing.T) {
	store := newMemPurchaseStore(dataPurchase("SKM-DATA-1", 45000))
	attempts := &memAttemptStore{}
	provider := &stubProvider{result: &gateway.DeliverResult{Success: true, Payload: json.RawMessage(`{"status":"delivered"}`)}}
	proc := NewProcessor(store, mtnPlans(), attempts, confirmed(45000), provider, nil)

	final, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-1")
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusDelivered, final.Status)
	assert.JSONEq(t, `{"status":"delivered"}`, string(final.DeliveryDetail))
	assert.Equal(t, int64(1), provider.calls.Load())
	require.Len(t, attempts.attempts, 1)
	assert.True(t, attempts.attempts[0].Success)
}

func TestHandleConfirmation_PhysicalGoodStaysPaid(t *testing.T) {
	store := newMemPurchaseStore(storePurchase("SKM-STORE-1", 4500000))
	provider := &stubProvider{}
	proc := NewProcessor(store, mtnPlans(), &memAttemptStore{}, confirmed(4500000), provider, nil)

	final, err := proc.HandleConfirmation(context.Background(), "SKM-STORE-1")
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusPaid, final.Status)
	assert.Equal(t, int64(0), provider.calls.Load(), "physical goods never call the delivery provider")
}

func TestHandleConfirmation_IdempotentAfterSettlement(t *testing.T) {
	store := newMemPurchaseStore(dataPurchase("SKM-DATA-2", 45000))
	g := confirmed(45000)
	provider := &stubProvider{result: &gateway.DeliverResult{Success: true, Payload: json.RawMessage(`{"ok":true}`)}}
	proc := NewProcessor(store, mtnPlans(), &memAttemptStore{}, g, provider, nil)

	first, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-2")
	require.NoError(t, err)
	require.Equal(t, model.PurchaseStatusDelivered, first.Status)

	for i := 0; i < 5; i++ {
		again, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-2")
		require.NoError(t, err)
		assert.Equal(t, first.Status, again.Status)
		assert.Equal(t, first.Reference, again.Reference)
	}

	assert.Equal(t, int64(1), provider.calls.Load(), "duplicate triggers must not re-deliver")
	assert.Equal(t, int64(1), g.calls.Load(), "settled purchases are not re-verified")
}

func TestHandleConfirmation_ConcurrentTriggersSingleDelivery(t *testing.T) {
	for round := 0; round < 20; round++ {
		store := newMemPurchaseStore(dataPurchase("SKM-DATA-race", 45000))
		provider := &stubProvider{result: &gateway.DeliverResult{Success: true, Payload: json.RawMessage(`{"ok":true}`)}}
		proc := NewProcessor(store, mtnPlans(), &memAttemptStore{}, confirmed(45000), provider, nil)

		var wg sync.WaitGroup
		results := make([]*model.Purchase, 2)
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = proc.HandleConfirmation(context.Background(), "SKM-DATA-race")
			}(i)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.Equal(t, int64(1), provider.calls.Load(), "exactly one winner may deliver")
		for _, r := range results {
			assert.Contains(t, []model.PurchaseStatus{model.PurchaseStatusPaid, model.PurchaseStatusDelivered}, r.Status)
		}
		assert.Equal(t, model.PurchaseStatusDelivered, store.current("SKM-DATA-race").Status)
	}
}

func TestHandleConfirmation_Underpayment(t *testing.T) {
	store := newMemPurchaseStore(dataPurchase("SKM-DATA-3", 500000))
	provider := &stubProvider{}
	proc := NewProcessor(store, mtnPlans(), &memAttemptStore{}, confirmed(450000), provider, nil)

	final, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-3")
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusFailed, final.Status)
	assert.Equal(t, int64(0), provider.calls.Load(), "underpaid purchases are never fulfilled")
}

func TestHandleConfirmation_OverpaymentIsAccepted(t *testing.T) {
	store := newMemPurchaseStore(dataPurchase("SKM-DATA-4", 45000))
	provider := &stubProvider{result: &gateway.DeliverResult{Success: true, Payload: json.RawMessage(`{}`)}}
	proc := NewProcessor(store, mtnPlans(), &memAttemptStore{}, confirmed(50000), provider, nil)

	final, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-4")
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusDelivered, final.Status)
}

func TestHandleConfirmation_DeliveryRejectionPreservesPayment(t *testing.T) {
	store := newMemPurchaseStore(dataPurchase("SKM-DATA-5", 45000))
	attempts := &memAttemptStore{}
	provider := &stubProvider{result: &gateway.DeliverResult{
		Success: false,
		Reason:  "insufficient provider balance",
		Payload: json.RawMessage(`{"success":false,"error":"insufficient provider balance"}`),
	}}
	proc := NewProcessor(store, mtnPlans(), attempts, confirmed(45000), provider, nil)

	final, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-5")
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusPaid, final.Status, "money was received; delivery failure must not fail the payment")
	assert.Contains(t, string(final.DeliveryDetail), "insufficient provider balance")
	require.Len(t, attempts.attempts, 1)
	assert.False(t, attempts.attempts[0].Success)
}

func TestHandleConfirmation_ProviderOutagePreservesPayment(t *testing.T) {
	store := newMemPurchaseStore(dataPurchase("SKM-DATA-6", 45000))
	provider := &stubProvider{err: gateway.ErrProviderUnavailable}
	proc := NewProcessor(store, mtnPlans(), &memAttemptStore{}, confirmed(45000), provider, nil)

	final, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-6")
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusPaid, final.Status)
	assert.Contains(t, string(final.DeliveryDetail), "unavailable")
}

func TestHandleConfirmation_NotYetConfirmed(t *testing.T) {
	store := newMemPurchaseStore(dataPurchase("SKM-DATA-7", 45000))
	g := &stubGateway{result: &gateway.VerificationResult{Confirmed: false, ProviderStatus: "pending"}}
	provider := &stubProvider{}
	proc := NewProcessor(store, mtnPlans(), &memAttemptStore{}, g, provider, nil)

	final, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-7")
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusPending, final.Status)
	assert.Equal(t, int64(0), provider.calls.Load())
	assert.Equal(t, model.PurchaseStatusPending, store.current("SKM-DATA-7").Status)
}

func TestHandleConfirmation_GatewayOutageLeavesStateUntouched(t *testing.T) {
	store := newMemPurchaseStore(dataPurchase("SKM-DATA-8", 45000))
	g := &stubGateway{err: gateway.ErrGatewayUnavailable}
	proc := NewProcessor(store, mtnPlans(), &memAttemptStore{}, g, &stubProvider{}, nil)

	_, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-8")
	assert.ErrorIs(t, err, gateway.ErrGatewayUnavailable)
	assert.Equal(t, model.PurchaseStatusPending, store.current("SKM-DATA-8").Status)
}

func TestHandleConfirmation_UnknownReference(t *testing.T) {
	store := newMemPurchaseStore()
	proc := NewProcessor(store, mtnPlans(), &memAttemptStore{}, confirmed(45000), &stubProvider{}, nil)

	_, err := proc.HandleConfirmation(context.Background(), "no-such-ref")
	assert.ErrorIs(t, err, repository.ErrPurchaseNotFound)
}

func TestHandleConfirmation_FailedPurchaseIsInvalidTransition(t *testing.T) {
	p := dataPurchase("SKM-DATA-9", 45000)
	p.Status = model.PurchaseStatusFailed
	store := newMemPurchaseStore(p)
	proc := NewProcessor(store, mtnPlans(), &memAttemptStore{}, confirmed(45000), &stubProvider{}, nil)

	_, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-9")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestHandleConfirmation_SettledMarkerSkipsVerification(t *testing.T) {
	store := newMemPurchaseStore(dataPurchase("SKM-DATA-11", 45000))
	g := confirmed(45000)
	provider := &stubProvider{result: &gateway.DeliverResult{Success: true, Payload: json.RawMessage(`{"ok":true}`)}}
	proc := NewProcessor(store, mtnPlans(), &memAttemptStore{}, g, provider, setupDedupe(t))

	first, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-11")
	require.NoError(t, err)
	require.Equal(t, model.PurchaseStatusDelivered, first.Status)
	require.Equal(t, int64(1), g.calls.Load())

	// The settled marker now answers duplicate triggers before any store
	// status check or gateway call.
	again, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-11")
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusDelivered, again.Status)
	assert.Equal(t, int64(1), g.calls.Load())
	assert.Equal(t, int64(1), provider.calls.Load())
}

func TestHandleConfirmation_MissingPlanKeepsPaid(t *testing.T) {
	store := newMemPurchaseStore(dataPurchase("SKM-DATA-10", 45000))
	plans := &memPlanStore{plans: map[int64]*model.DataPlan{}}
	provider := &stubProvider{}
	proc := NewProcessor(store, plans, &memAttemptStore{}, confirmed(45000), provider, nil)

	final, err := proc.HandleConfirmation(context.Background(), "SKM-DATA-10")
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusPaid, final.Status)
	assert.Equal(t, int64(0), provider.calls.Load())
	assert.Contains(t, string(final.DeliveryDetail), "plan not found")
}
