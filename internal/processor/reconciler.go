package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	gateway "github.com/Abdallahnangere/SaukinKarshe/internal/gateways"
	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/logger"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/worker"
)

const confirmationTimeout = time.Second * 30
const metricsReportInterval = time.Second * 30

type PendingLister interface {
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*model.Purchase, error)
}

type ConfirmationHandler interface {
	HandleConfirmation(ctx context.Context, reference string) (*model.Purchase, error)
}

type ReconcilerConfig struct {
	// Interval between scans of the pending set.
	Interval time.Duration
	// Grace is how old a pending purchase must be before it is re-driven.
	// Young purchases are most likely still waiting for the customer to
	// transfer; re-driving them would just burn gateway calls.
	Grace time.Duration
	// Batch caps how many purchases one scan picks up.
	Batch int
	// Workers is the size of the confirmation worker pool.
	Workers int
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval: time.Minute,
		Grace:    5 * time.Minute,
		Batch:    100,
		Workers:  10,
	}
}

// Reconciler re-drives pending purchases whose webhook was lost and whose
// customer never polled. Re-driving is always safe: HandleConfirmation is
// idempotent and unconfirmed payments come back unchanged.
type Reconciler struct {
	purchases PendingLister
	handler   ConfirmationHandler
	config    ReconcilerConfig
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewReconciler(purchases PendingLister, handler ConfirmationHandler, config ReconcilerConfig) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Workers <= 0 {
		config.Workers = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		purchases: purchases,
		handler:   handler,
		config:    config,
		metrics:   NewServiceMetrics(),
		worker:    worker.NewWorkerManager(1_000, config.Workers, nil),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *Reconciler) Start() error {
	logger.Info("Starting reconciler...", "interval", r.config.Interval, "grace", r.config.Grace, "workers", r.config.Workers)

	r.worker.SetWorker(r.workerHandler)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.worker.Start(); err != nil {
			logger.Error("Worker manager stopped", "error", err)
		}
	}()

	r.wg.Add(2)
	go r.scanLoop()
	go r.metricsReporter()

	logger.Info("Reconciler started")
	return nil
}

func (r *Reconciler) scanLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.scanOnce()
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Reconciler) scanOnce() {
	cutoff := time.Now().Add(-r.config.Grace)
	pending, err := r.purchases.ListPending(r.ctx, cutoff, r.config.Batch)
	if err != nil {
		logger.Error("Failed to list pending purchases", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	logger.Info("Re-driving stale pending purchases", "count", len(pending), "older_than", cutoff)
	for _, p := range pending {
		r.worker.Enqueue(p.Reference)
	}
}

func (r *Reconciler) workerHandler(workerIndex int, job interface{}) {
	reference, ok := job.(string)
	if !ok {
		logger.Error("Invalid job type in worker", "worker", workerIndex)
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, confirmationTimeout)
	defer cancel()

	start := time.Now()
	purchase, err := r.handler.HandleConfirmation(ctx, reference)
	if err != nil {
		// Gateway outages are expected here; the next scan retries.
		if errors.Is(err, gateway.ErrGatewayUnavailable) {
			logger.Warn("Gateway unavailable during reconcile", "worker", workerIndex, "tx_ref", reference)
		} else {
			logger.Error("Reconcile failed", "worker", workerIndex, "tx_ref", reference, "error", err)
		}
		r.metrics.RecordFailure()
		return
	}

	r.metrics.RecordSuccess(time.Since(start))
	if purchase.Status != model.PurchaseStatusPending {
		logger.Info("Reconcile advanced purchase", "tx_ref", reference, "status", purchase.Status)
	}
}

func (r *Reconciler) metricsReporter() {
	defer r.wg.Done()

	ticker := time.NewTicker(metricsReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reportMetrics()
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Reconciler) reportMetrics() {
	stats := r.metrics.GetStats()
	logger.Info("Reconciler metrics",
		"total_processed", stats["total_processed"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])
}

// Stop drains the worker pool and reports final metrics.
func (r *Reconciler) Stop() {
	logger.Info("Shutting down reconciler...")
	r.cancel()
	r.worker.Exit()
	r.wg.Wait()
	r.reportMetrics()
	logger.Info("Reconciler stopped")
}
