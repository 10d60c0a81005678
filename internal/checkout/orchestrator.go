// Package checkout submits the cart to the shop and tracks the status of
// the purchase.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/BrunoMartinho00/lab11/internal/domain"
	"github.com/BrunoMartinho00/lab11/internal/events"
	"github.com/BrunoMartinho00/lab11/internal/pricing"
	"github.com/BrunoMartinho00/lab11/internal/upstream"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultResetAfter = 5 * time.Second

	publishTimeout = 5 * time.Second

	msgTimedOut    = "the shop did not answer in time, please try again"
	msgUnreachable = "could not reach the shop, please try again"
)

// Consumers define these interfaces, not the implementations
type Cart interface {
	Lines() domain.Cart
	Clear(ctx context.Context)
}

type Purchaser interface {
	Buy(ctx context.Context, req domain.PurchaseRequest) (*upstream.PurchaseResponse, error)
}

// Order carries the customer choices that go with the cart.
type Order struct {
	Name    string
	Student bool
	Coupon  string
}

type Orchestrator struct {
	cart       Cart
	purchaser  Purchaser
	publisher  events.Publisher
	log        zerolog.Logger
	timeout    time.Duration
	resetAfter time.Duration

	mu        sync.Mutex
	status    domain.PurchaseStatus
	gen       uint64 // bumped whenever a pending reset must not fire
	timer     *time.Timer
	observers map[uint64]func(domain.PurchaseStatus)
	nextID    uint64
	closed    bool

	publishing sync.WaitGroup
}

type Option func(*Orchestrator)

func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithResetAfter sets how long a finished status stays visible. Zero
// leaves it until Reset or the next Submit.
func WithResetAfter(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.resetAfter = d
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func NewOrchestrator(cart Cart, purchaser Purchaser, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:       cart,
		purchaser:  purchaser,
		publisher:  events.NopPublisher{},
		log:        zerolog.Nop(),
		timeout:    DefaultTimeout,
		resetAfter: DefaultResetAfter,
		status:     domain.IdleStatus(),
		observers:  make(map[uint64]func(domain.PurchaseStatus)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit buys the current cart contents. On success the cart is cleared;
// on failure it is left as it was and the returned error wraps
// ErrPurchaseFailed.
func (o *Orchestrator) Submit(ctx context.Context, order Order) (domain.PurchaseStatus, error) {
	lines := o.cart.Lines()
	if len(lines) == 0 {
		return o.Status(), ErrEmptyCart
	}
	if err := o.begin(); err != nil {
		return o.Status(), err
	}

	req := domain.NewPurchaseRequest(lines, order.Name, order.Student, order.Coupon)
	log := o.log.With().Int("units", len(req.Products)).Bool("student", order.Student).Logger()
	log.Info().Msg("submitting purchase")

	buyCtx, cancel := context.WithTimeout(ctx, o.timeout)
	resp, err := o.purchaser.Buy(buyCtx, req)
	cancel()

	if err != nil {
		status := domain.FailedStatus(failureMessage(err))
		log.Warn().Err(err).Str("message", status.Message).Msg("purchase failed")
		o.finish(status)
		o.publish(ctx, events.EventPurchaseFailed, req, lines, status)
		return status, fmt.Errorf("%w: %w", ErrPurchaseFailed, err)
	}

	status := domain.SucceededStatus(orderID(resp.Fields))
	o.cart.Clear(ctx)
	log.Info().Str("order_id", status.OrderID).Msg("purchase succeeded")
	o.finish(status)
	o.publish(ctx, events.EventPurchaseSucceeded, req, lines, status)
	return status, nil
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	if o.status.State == domain.PurchaseInProgress {
		o.mu.Unlock()
		return ErrPurchaseInProgress
	}
	if !domain.CanTransitionTo(o.status.State, domain.PurchaseInProgress) {
		o.mu.Unlock()
		return IllegalTransitionError
	}
	o.cancelResetLocked()
	o.status = domain.InProgressStatus()
	notify := o.snapshotObserversLocked()
	o.mu.Unlock()

	o.notify(notify, domain.InProgressStatus())
	return nil
}

func (o *Orchestrator) finish(status domain.PurchaseStatus) {
	o.mu.Lock()
	if !domain.CanTransitionTo(o.status.State, status.State) {
		o.mu.Unlock()
		o.log.Error().Str("from", o.status.State.String()).Str("to", status.State.String()).Msg("illegal purchase status transition")
		return
	}
	o.status = status
	o.scheduleResetLocked()
	notify := o.snapshotObserversLocked()
	o.mu.Unlock()

	o.notify(notify, status)
}

func (o *Orchestrator) scheduleResetLocked() {
	o.cancelResetLocked()
	if o.resetAfter <= 0 || o.closed {
		return
	}
	gen := o.gen
	o.timer = time.AfterFunc(o.resetAfter, func() { o.resetIfCurrent(gen) })
}

func (o *Orchestrator) cancelResetLocked() {
	o.gen++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Orchestrator) resetIfCurrent(gen uint64) {
	o.mu.Lock()
	if gen != o.gen || !o.status.State.IsTerminal() {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	o.status = domain.IdleStatus()
	notify := o.snapshotObserversLocked()
	o.mu.Unlock()

	o.notify(notify, domain.IdleStatus())
}

// Reset returns a finished purchase to idle straight away. It fails with
// IllegalTransitionError while a purchase is in flight.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	switch {
	case o.status.State == domain.PurchaseIdle:
		o.mu.Unlock()
		return nil
	case !domain.CanTransitionTo(o.status.State, domain.PurchaseIdle):
		o.mu.Unlock()
		return IllegalTransitionError
	}
	o.cancelResetLocked()
	o.status = domain.IdleStatus()
	notify := o.snapshotObserversLocked()
	o.mu.Unlock()

	o.notify(notify, domain.IdleStatus())
	return nil
}

func (o *Orchestrator) Status() domain.PurchaseStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// OnStatusChange registers fn for every status change. Callbacks run on
// the goroutine that made the change, after the lock is released.
func (o *Orchestrator) OnStatusChange(fn func(domain.PurchaseStatus)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.observers[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.observers, id)
			o.mu.Unlock()
		})
	}
}

// Close stops the reset timer and waits for pending event publications.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.cancelResetLocked()
	o.mu.Unlock()
	o.publishing.Wait()
}

func (o *Orchestrator) snapshotObserversLocked() []func(domain.PurchaseStatus) {
	out := make([]func(domain.PurchaseStatus), 0, len(o.observers))
	for id := uint64(0); id < o.nextID; id++ {
		if fn, ok := o.observers[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (o *Orchestrator) notify(fns []func(domain.PurchaseStatus), status domain.PurchaseStatus) {
	for _, fn := range fns {
		fn(status)
	}
}

func (o *Orchestrator) publish(ctx context.Context, eventType string, req domain.PurchaseRequest, lines domain.Cart, status domain.PurchaseStatus) {
	event := events.PurchaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Customer:   req.Name,
		Products:   req.Products,
		Student:    req.Student,
		Coupon:     req.Coupon,
		Total:      pricing.Total(lines, req.Student, req.Coupon),
		Message:    status.Message,
		OccurredAt: time.Now().UTC(),
	}
	if status.OrderID != domain.OrderIDNotAvailable {
		event.OrderID = status.OrderID
	}

	o.publishing.Add(1)
	go func() {
		defer o.publishing.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := o.publisher.Publish(pubCtx, event); err != nil {
			o.log.Warn().Err(err).Str("event_type", eventType).Msg("purchase event not published")
		}
	}()
}

func failureMessage(err error) string {
	var se *upstream.StatusError
	switch {
	case errors.As(err, &se):
		return se.Message()
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimedOut
	default:
		return msgUnreachable
	}
}
