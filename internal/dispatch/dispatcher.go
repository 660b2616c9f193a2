// Package dispatch delivers queued alerts to their recipients with
// per-(signature, role) deduplication and paced sends.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"token-sentinel/internal/cache"
	"token-sentinel/internal/domain"
	"token-sentinel/internal/observability"
	"token-sentinel/internal/provider"
	"token-sentinel/internal/storage"
)

// ErrClosed is returned by Enqueue after shutdown has begun.
var ErrClosed = errors.New("dispatcher closed")

const dedupKeyPrefix = "alert_sent:"

// sentinelRecord marks the end of the queue during shutdown.
var sentinelRecord = &domain.AlertRecord{}

// Options configures a Dispatcher. Zero values fall back to defaults.
type Options struct {
	QueueCapacity int
	SendDelay     time.Duration // minimum spacing between deliveries
	DedupTTL      time.Duration // dedup marker lifetime
	DrainTimeout  time.Duration // shutdown drain grace period
	Logger        *log.Logger
}

// Dispatcher consumes the alert queue with a single worker. Producers block
// when the queue is full.
type Dispatcher struct {
	queue    chan *domain.AlertRecord
	cache    cache.Cache
	notifier provider.Notifier
	alertLog storage.AlertLogStore // optional delivery audit log

	limiter      *rate.Limiter
	dedupTTL     time.Duration
	drainTimeout time.Duration
	logger       *log.Logger
	warnAt       int

	closed  atomic.Bool
	stopped chan struct{}
	now     func() time.Time
}

// New creates a Dispatcher. alertLog may be nil to disable the audit trail.
func New(c cache.Cache, notifier provider.Notifier, alertLog storage.AlertLogStore, opts Options) *Dispatcher {
	if opts.QueueCapacity == 0 {
		opts.QueueCapacity = 5000
	}
	if opts.SendDelay == 0 {
		opts.SendDelay = 150 * time.Millisecond
	}
	if opts.DedupTTL == 0 {
		opts.DedupTTL = 24 * time.Hour
	}
	if opts.DrainTimeout == 0 {
		opts.DrainTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	warnAt := opts.QueueCapacity * 9 / 10
	if warnAt < 1 {
		warnAt = 1
	}

	return &Dispatcher{
		queue:        make(chan *domain.AlertRecord, opts.QueueCapacity),
		cache:        c,
		notifier:     notifier,
		alertLog:     alertLog,
		limiter:      rate.NewLimiter(rate.Every(opts.SendDelay), 1),
		dedupTTL:     opts.DedupTTL,
		drainTimeout: opts.DrainTimeout,
		logger:       opts.Logger,
		warnAt:       warnAt,
		stopped:      make(chan struct{}),
		now:          time.Now,
	}
}

// Enqueue adds an alert to the queue, blocking while the queue is full.
func (d *Dispatcher) Enqueue(ctx context.Context, rec *domain.AlertRecord) error {
	if rec == nil {
		return nil
	}
	if d.closed.Load() {
		return ErrClosed
	}

	if depth := len(d.queue); depth >= d.warnAt {
		d.logger.Printf("[dispatch] queue at %d/%d, producers may block", depth, cap(d.queue))
	}

	select {
	case d.queue <- rec:
		observability.DefaultMetrics.AlertsEnqueued.Inc()
		observability.UpdateQueueDepth(len(d.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepth returns the current number of queued alerts.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// Run consumes the queue until ctx is cancelled or the shutdown sentinel is
// reached.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.stopped)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-d.queue:
			if rec == sentinelRecord {
				return nil
			}
			observability.UpdateQueueDepth(len(d.queue))
			d.deliver(ctx, rec)
		}
	}
}

// Shutdown stops accepting alerts and waits for the queue to drain, up to
// the drain timeout. On timeout the caller should cancel Run's context.
func (d *Dispatcher) Shutdown() error {
	if d.closed.Swap(true) {
		return nil
	}

	timer := time.NewTimer(d.drainTimeout)
	defer timer.Stop()

	select {
	case d.queue <- sentinelRecord:
	case <-d.stopped:
		return nil
	case <-timer.C:
		return fmt.Errorf("drain timeout after %v with %d alerts queued", d.drainTimeout, len(d.queue))
	}

	select {
	case <-d.stopped:
		return nil
	case <-timer.C:
		return fmt.Errorf("drain timeout after %v with %d alerts queued", d.drainTimeout, len(d.queue))
	}
}

// deliver attempts delivery to every recipient, then writes the dedup marker.
// The marker goes in after the attempt so a crash before delivery cannot
// suppress the alert forever.
func (d *Dispatcher) deliver(ctx context.Context, rec *domain.AlertRecord) {
	key := dedupKey(rec.Signature, rec.Role)

	exists, err := d.cache.Exists(ctx, key)
	if err != nil {
		d.logger.Printf("[dispatch] dedup check %s: %v", key, err)
	} else if exists {
		return
	}

	for _, recipient := range rec.Recipients {
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}

		sendErr := d.notifier.DeliverNotification(ctx, recipient, rec.Content)
		outcome := outcomeFor(sendErr)
		observability.RecordDelivery(outcome)
		if rec.EnqueuedAt > 0 {
			observability.DefaultMetrics.DeliveryLatency.Observe(float64(d.now().UnixMilli()-rec.EnqueuedAt) / 1000)
		}
		if sendErr != nil {
			d.logger.Printf("[dispatch] deliver %s to %d: %s: %v", rec.Signature, recipient, outcome, sendErr)
		}

		d.logDelivery(ctx, rec, recipient, outcome)
	}

	if err := d.cache.SetEx(ctx, key, "sent", d.dedupTTL); err != nil {
		d.logger.Printf("[dispatch] dedup marker write %s: %v", key, err)
	}
}

// logDelivery appends to the audit log; failures never block dispatch.
func (d *Dispatcher) logDelivery(ctx context.Context, rec *domain.AlertRecord, recipient int64, outcome string) {
	if d.alertLog == nil {
		return
	}
	entry := &domain.AlertDeliveryRecord{
		Signature:   rec.Signature,
		Mint:        rec.Mint,
		Wallet:      rec.Wallet,
		Role:        rec.Role,
		Action:      rec.Action,
		Recipient:   recipient,
		Outcome:     outcome,
		DeliveredAt: d.now().UnixMilli(),
	}
	if err := d.alertLog.Insert(ctx, entry); err != nil {
		d.logger.Printf("[dispatch] alert log write %s: %v", rec.Signature, err)
	}
}

func dedupKey(signature string, role domain.Role) string {
	return dedupKeyPrefix + signature + ":" + string(role)
}

// outcomeFor maps a delivery error to its logged outcome.
func outcomeFor(err error) string {
	if err == nil {
		return domain.DeliveryOutcomeSent
	}
	switch provider.KindOf(err) {
	case provider.DeliveryBlocked:
		return domain.DeliveryOutcomeBlocked
	case provider.DeliveryInvalid:
		return domain.DeliveryOutcomeInvalid
	case provider.DeliveryNetwork:
		return domain.DeliveryOutcomeNetwork
	default:
		return domain.DeliveryOutcomeUnknown
	}
}
