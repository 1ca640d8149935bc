// Package recon holds the reconciliation state machine: one poll loop
// and one expiry timer per pending top-up, settlement guarded by a
// processed-hash set so a balance is credited exactly once per hash.
package recon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/YaeIsTired/Bot-TG/internal/models"
	"github.com/YaeIsTired/Bot-TG/internal/settings"
)

var (
	ErrValidation = errors.New("invalid top-up amount")
	ErrGateway    = errors.New("payment gateway failure")
	ErrLedger     = errors.New("ledger write failure")
)

var (
	topupsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "khqr_topups_started_total",
		Help: "Top-up requests that produced a pending QR payment",
	})
	topupsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "khqr_topups_settled_total",
		Help: "Top-ups settled and credited exactly once",
	})
	topupsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "khqr_topups_expired_total",
		Help: "Top-ups expired without settlement",
	})
	pollTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "khqr_poll_ticks_total",
		Help: "Settlement status checks issued",
	})
	gatewayErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "khqr_gateway_errors_total",
		Help: "Failed gateway calls (create or check)",
	})
	settleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "khqr_settle_failures_total",
		Help: "Confirmed payments whose ledger write failed after retries",
	})
)

// Options tune the payment window. Zero values take the reference
// defaults: 1s ticks, 600 ticks, 10 minute expiry.
type Options struct {
	PollInterval  time.Duration
	PollTicks     int
	Expiry        time.Duration
	CallTimeout   time.Duration
	SettleRetries int
}

func (o *Options) fillDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.PollTicks <= 0 {
		o.PollTicks = 600
	}
	if o.Expiry <= 0 {
		o.Expiry = 10 * time.Minute
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 15 * time.Second
	}
	if o.SettleRetries <= 0 {
		o.SettleRetries = 3
	}
}

type task struct {
	req    models.PaymentRequest
	ctx    context.Context
	cancel context.CancelFunc
}

// Engine owns every in-flight PaymentRequest and the processed-hash set.
// Construct one per process and inject it; there is no package state
// beyond metrics.
type Engine struct {
	gw       Gateway
	ledger   Ledger
	sink     Sink
	settings SettingsSource
	opts     Options

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	pending   map[int64]*task
	processed map[string]struct{}
}

func New(gw Gateway, ledger Ledger, sink Sink, settings SettingsSource, opts Options) *Engine {
	opts.fillDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		gw:         gw,
		ledger:     ledger,
		sink:       sink,
		settings:   settings,
		opts:       opts,
		baseCtx:    ctx,
		baseCancel: cancel,
		pending:    make(map[int64]*task),
		processed:  make(map[string]struct{}),
	}
}

// StartTopup validates the amount, supersedes any pending top-up for the
// owner, creates the QR payment and schedules polling plus expiry.
// Validation and gateway failures surface synchronously and leave no
// side effects; everything after the pending entry runs in background.
func (e *Engine) StartTopup(ctx context.Context, ownerID int64, rawAmount string) (models.PaymentRequest, error) {
	s := e.settings.Current()

	amount, err := decimal.NewFromString(strings.TrimSpace(rawAmount))
	if err != nil {
		return models.PaymentRequest{}, fmt.Errorf("%w: %q is not a number", ErrValidation, rawAmount)
	}
	if !amount.IsPositive() {
		return models.PaymentRequest{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if amount.LessThan(s.MinTopup) || amount.GreaterThan(s.MaxTopup) {
		return models.PaymentRequest{}, fmt.Errorf("%w: amount must be between %s and %s", ErrValidation, s.MinTopup, s.MaxTopup)
	}

	// One pending top-up per owner: a new request supersedes the old
	// loop and timer before anything else starts.
	e.mu.Lock()
	if old, ok := e.pending[ownerID]; ok {
		old.cancel()
		delete(e.pending, ownerID)
		log.Printf("component=recon method=StartTopup owner_id=%d superseded_hash=%s", ownerID, old.req.PaymentHash)
	}
	e.mu.Unlock()

	cctx, ccancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	res, err := e.gw.CreatePayment(cctx, amount, s)
	ccancel()
	if err != nil {
		gatewayErrors.Inc()
		return models.PaymentRequest{}, errors.Join(ErrGateway, err)
	}

	entry := models.NewTopupEntry(ownerID, amount, res.PaymentHash)
	if err := e.ledger.RecordPending(ctx, entry); err != nil {
		return models.PaymentRequest{}, errors.Join(ErrLedger, err)
	}

	req := models.PaymentRequest{
		OwnerID:     ownerID,
		Amount:      amount,
		PaymentHash: res.PaymentHash,
		GatewayTxID: res.TransactionID,
		CreatedAt:   entry.CreatedAt,
	}

	if png, rerr := res.Artifact.Resolve(); rerr != nil {
		log.Printf("component=recon method=StartTopup owner_id=%d hash=%s err=%v", ownerID, res.PaymentHash, rerr)
	} else {
		caption := fmt.Sprintf("Top-up $%s. Scan within %s to pay.", amount, e.opts.Expiry)
		ref, derr := e.sink.DeliverArtifact(ctx, ownerID, png, caption)
		if derr != nil {
			log.Printf("component=recon method=StartTopup owner_id=%d hash=%s err=%v", ownerID, res.PaymentHash, derr)
		} else {
			req.Artifact = ref
		}
	}

	tctx, tcancel := context.WithCancel(e.baseCtx)
	t := &task{req: req, ctx: tctx, cancel: tcancel}

	e.mu.Lock()
	if raced, ok := e.pending[ownerID]; ok {
		raced.cancel()
	}
	e.pending[ownerID] = t
	e.mu.Unlock()

	e.wg.Add(2)
	go e.pollLoop(t, s)
	go e.expiryTimer(t)

	topupsStarted.Inc()
	log.Printf("component=recon method=StartTopup owner_id=%d hash=%s amount=%s", ownerID, req.PaymentHash, amount)
	return req, nil
}

// pollLoop checks settlement on a fixed interval until the payment
// settles, the tick budget runs out, or the task is cancelled. A failed
// gateway call skips the tick; the expiry timer bounds the window.
func (e *Engine) pollLoop(t *task, s settings.Settings) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	for tick := 0; tick < e.opts.PollTicks; tick++ {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
		}

		if e.isProcessed(t.req.PaymentHash) {
			return
		}

		pollTicks.Inc()
		cctx, cancel := context.WithTimeout(t.ctx, e.opts.CallTimeout)
		paid, err := e.gw.CheckStatus(cctx, t.req.PaymentHash, s)
		cancel()
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			gatewayErrors.Inc()
			log.Printf("component=recon method=pollLoop owner_id=%d hash=%s tick=%d err=%v", t.req.OwnerID, t.req.PaymentHash, tick, err)
			continue
		}
		if paid {
			e.Settle(t.req.PaymentHash, t.req.OwnerID, t.req.Amount)
			return
		}
	}
	// Tick budget exhausted: the expiry timer owns the ledger transition.
	log.Printf("component=recon method=pollLoop owner_id=%d hash=%s poll window exhausted", t.req.OwnerID, t.req.PaymentHash)
}

// Settle credits the owner exactly once for the hash. Reports false when
// another path (a second call, or expiry) already claimed the hash.
// Safe to call out of band, e.g. from a gateway notification, in which
// case there may be no live PaymentRequest to clean up.
func (e *Engine) Settle(paymentHash string, ownerID int64, amount decimal.Decimal) bool {
	if !e.markProcessed(paymentHash) {
		return false
	}
	t := e.discard(paymentHash, ownerID)

	var err error
	for attempt := 0; attempt <= e.opts.SettleRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.CallTimeout)
		err = e.ledger.Settle(ctx, ownerID, paymentHash, amount)
		cancel()
		if err == nil {
			break
		}
		log.Printf("component=recon method=Settle owner_id=%d hash=%s attempt=%d err=%v", ownerID, paymentHash, attempt, err)
	}
	if err != nil {
		// The money has moved; this line is the trace an operator
		// reconciles from.
		settleFailures.Inc()
		log.Printf("CRITICAL settle_failed owner_id=%d payment_hash=%s amount=%s err=%v", ownerID, paymentHash, amount, err)
		return true
	}

	topupsSettled.Inc()
	log.Printf("component=recon method=Settle owner_id=%d hash=%s amount=%s settled", ownerID, paymentHash, amount)

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.CallTimeout)
	defer cancel()
	if serr := e.sink.SendText(ctx, ownerID, fmt.Sprintf("Payment received. $%s has been added to your balance.", amount)); serr != nil {
		log.Printf("component=recon method=Settle owner_id=%d hash=%s err=%v", ownerID, paymentHash, serr)
	}
	if t != nil {
		if derr := e.sink.DeleteArtifact(ctx, t.req.Artifact); derr != nil {
			log.Printf("component=recon method=Settle owner_id=%d hash=%s err=%v", ownerID, paymentHash, derr)
		}
	}
	return true
}

// expiryTimer fires once per payment window. Whoever claims the
// processed hash first wins; losing to a settlement makes this a no-op.
func (e *Engine) expiryTimer(t *task) {
	defer e.wg.Done()

	timer := time.NewTimer(e.opts.Expiry)
	defer timer.Stop()

	select {
	case <-t.ctx.Done():
		return
	case <-timer.C:
	}

	if !e.markProcessed(t.req.PaymentHash) {
		return
	}
	e.discard(t.req.PaymentHash, t.req.OwnerID)

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.CallTimeout)
	defer cancel()
	if err := e.ledger.MarkExpired(ctx, t.req.PaymentHash); err != nil {
		log.Printf("component=recon method=expiryTimer owner_id=%d hash=%s err=%v", t.req.OwnerID, t.req.PaymentHash, err)
	}
	topupsExpired.Inc()
	log.Printf("component=recon method=expiryTimer owner_id=%d hash=%s expired", t.req.OwnerID, t.req.PaymentHash)

	if err := e.sink.DeleteArtifact(ctx, t.req.Artifact); err != nil {
		log.Printf("component=recon method=expiryTimer owner_id=%d hash=%s err=%v", t.req.OwnerID, t.req.PaymentHash, err)
	}
	if err := e.sink.SendText(ctx, t.req.OwnerID, "Your top-up QR expired. Start a new top-up to try again."); err != nil {
		log.Printf("component=recon method=expiryTimer owner_id=%d hash=%s err=%v", t.req.OwnerID, t.req.PaymentHash, err)
	}
}

// Stop cancels every poll loop and expiry timer and clears in-memory
// state. The durable ledger is untouched: in-flight payments stay
// pending and surface via the ops API for manual action.
func (e *Engine) Stop() {
	e.baseCancel()
	e.wg.Wait()

	e.mu.Lock()
	e.pending = make(map[int64]*task)
	e.processed = make(map[string]struct{})
	e.mu.Unlock()
}

// PendingCount reports live payment windows, for the ops surface.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// markProcessed is the single linearization point: an atomic
// check-and-insert that reports whether the hash was newly claimed.
func (e *Engine) markProcessed(hash string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.processed[hash]; ok {
		return false
	}
	e.processed[hash] = struct{}{}
	return true
}

func (e *Engine) isProcessed(hash string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.processed[hash]
	return ok
}

// discard removes the owner's PaymentRequest if it still belongs to this
// hash, cancelling its tasks, and returns it for artifact cleanup.
func (e *Engine) discard(hash string, ownerID int64) *task {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.pending[ownerID]
	if !ok || t.req.PaymentHash != hash {
		return nil
	}
	delete(e.pending, ownerID)
	t.cancel()
	return t
}
