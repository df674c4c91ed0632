package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/table_order/internal/cart"
	"github.com/fjod/table_order/internal/domain"
	"github.com/fjod/table_order/internal/payment"
	"github.com/fjod/table_order/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartStore is the part of cart.Store the orchestrator needs.
type CartStore interface {
	Snapshot() domain.Cart
	Clear()
	Subscribe(l cart.Listener) func()
}

// State is the observable checkout state of the table.
type State struct {
	Status    domain.CheckoutStatus `json:"status"`
	Message   string                `json:"message,omitempty"`
	ErrorKind Kind                  `json:"error_kind,omitempty"`
	AttemptID string                `json:"attempt_id,omitempty"`
	IntentID  string                `json:"payment_intent_id,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`

	seq uint64
}

type Listener func(State)

// SubmitRequest is what the table provides when paying.
type SubmitRequest struct {
	Card               *payment.Card
	TableNumber        int
	CustomerIdentifier string
}

type Options struct {
	IntentTimeout  time.Duration
	ConfirmTimeout time.Duration
	Now            func() time.Time
	NewAttemptID   func() string
}

func (o Options) withDefaults() Options {
	if o.IntentTimeout <= 0 {
		o.IntentTimeout = 15 * time.Second
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = 60 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewAttemptID == nil {
		o.NewAttemptID = func() string { return uuid.NewString() }
	}
	return o
}

// Orchestrator drives one table's payment from intent creation to card confirmation.
// At most one attempt is in flight; the cart is cleared only after a confirmed payment.
type Orchestrator struct {
	store   CartStore
	intents payment.IntentCreator
	gateway payment.Gateway
	opts    Options
	log     *zap.Logger

	mu     sync.Mutex
	state  State
	seq    uint64
	closed bool

	unsubscribeCart func()

	notifyMu  sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64
	delivered uint64
}

// New wires an orchestrator to store. gateway may be nil when the payment
// processor could not be initialised; every submit then fails as an integration fault.
func New(store CartStore, intents payment.IntentCreator, gateway payment.Gateway, log *zap.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()

	o := &Orchestrator{
		store:     store,
		intents:   intents,
		gateway:   gateway,
		opts:      opts,
		log:       log,
		listeners: make(map[uint64]Listener),
	}
	o.state = State{Status: domain.CheckoutStatusIdle, UpdatedAt: opts.Now()}
	o.unsubscribeCart = store.Subscribe(o.onCartChange)
	return o
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Submit runs one checkout attempt and returns the resulting state.
// Rejections leave the state untouched; failures move it to FAILED. Both return *Error.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (State, error) {
	attemptID, checkoutReq, gateway, err := o.begin(req)
	if err != nil {
		return o.State(), err
	}

	log := logger.WithTrace(ctx, o.log).With(
		zap.String("attempt_id", attemptID),
		zap.Int("table_number", req.TableNumber),
	)
	log.Info("checkout started",
		zap.Int("items", len(checkoutReq.Cart.Items)),
		zap.String("total", checkoutReq.Cart.Total().StringFixed(2)),
	)

	intentCtx, cancel := context.WithTimeout(ctx, o.opts.IntentTimeout)
	intent, err := o.intents.CreatePaymentIntent(intentCtx, checkoutReq, attemptID)
	cancel()
	if err != nil {
		return o.fail(ctx, attemptID, log, &Error{Kind: KindTransport, Message: userMessage(err), Err: err})
	}

	if st, err := o.advance(ctx, attemptID, domain.CheckoutStatusAwaitingConfirmation, ""); err != nil {
		return st, err
	}

	confirmCtx, cancel := context.WithTimeout(ctx, o.opts.ConfirmTimeout)
	result, err := gateway.ConfirmCardPayment(confirmCtx, intent.ClientSecret, payment.ConfirmParams{
		Card:           req.Card,
		BillingName:    fmt.Sprintf("Table %d", req.TableNumber),
		IdempotencyKey: attemptID + "-confirm",
	})
	cancel()

	switch {
	case err != nil:
		return o.fail(ctx, attemptID, log, &Error{Kind: KindTransport, Message: userMessage(err), Err: err})
	case result.Error != nil:
		msg := strings.TrimSpace(result.Error.Message)
		if msg == "" {
			msg = msgPaymentFailed
		}
		var cause error
		if result.Error.Code != "" {
			cause = errors.New(result.Error.Code)
		}
		return o.fail(ctx, attemptID, log, &Error{Kind: KindPayment, Message: msg, Err: cause})
	case result.Intent == nil:
		return o.fail(ctx, attemptID, log, &Error{Kind: KindPayment, Message: msgPaymentFailed})
	case result.Intent.Status != payment.StatusSucceeded:
		return o.fail(ctx, attemptID, log, &Error{
			Kind:    KindPayment,
			Message: fmt.Sprintf(msgNotCompletedFmt, result.Intent.Status),
		})
	}

	return o.succeed(ctx, attemptID, result.Intent.ID, log)
}

// begin validates the request against the current state and cart, then enters SUBMITTING.
func (o *Orchestrator) begin(req SubmitRequest) (string, domain.CheckoutRequest, payment.Gateway, error) {
	o.mu.Lock()

	if o.closed {
		o.mu.Unlock()
		return "", domain.CheckoutRequest{}, nil, &Error{Kind: KindIntegration, Message: msgClosed, Err: ErrClosed}
	}

	status := o.state.Status
	if !status.AcceptsSubmit() && status != domain.CheckoutStatusSucceeded {
		o.mu.Unlock()
		return "", domain.CheckoutRequest{}, nil, &Error{Kind: KindValidation, Message: msgInProgress, Err: ErrCheckoutInProgress}
	}

	snapshot := o.store.Snapshot()
	if snapshot.IsEmpty() {
		o.mu.Unlock()
		return "", domain.CheckoutRequest{}, nil, &Error{Kind: KindValidation, Message: msgEmptyCart, Err: ErrEmptyCart}
	}
	if o.gateway == nil {
		o.mu.Unlock()
		return "", domain.CheckoutRequest{}, nil, &Error{Kind: KindIntegration, Message: msgGatewayMissing, Err: ErrGatewayUnavailable}
	}
	if req.Card == nil || strings.TrimSpace(req.Card.PaymentMethodID) == "" {
		o.mu.Unlock()
		return "", domain.CheckoutRequest{}, nil, &Error{Kind: KindValidation, Message: msgMissingCard, Err: ErrMissingCard}
	}

	attemptID := o.opts.NewAttemptID()
	o.setLocked(domain.CheckoutStatusSubmitting, attemptID, "", "", "")
	st := o.state
	gateway := o.gateway
	o.mu.Unlock()

	o.publish(st)
	return attemptID, domain.NewCheckoutRequest(snapshot, req.TableNumber, req.CustomerIdentifier), gateway, nil
}

// advance moves an in-flight attempt forward unless the caller or the orchestrator went away.
func (o *Orchestrator) advance(ctx context.Context, attemptID string, to domain.CheckoutStatus, intentID string) (State, error) {
	o.mu.Lock()
	if err := o.abandonedLocked(ctx); err != nil {
		st := o.state
		o.mu.Unlock()
		o.publish(st)
		return st, err
	}
	o.setLocked(to, attemptID, intentID, "", "")
	st := o.state
	o.mu.Unlock()

	o.publish(st)
	return st, nil
}

func (o *Orchestrator) fail(ctx context.Context, attemptID string, log *zap.Logger, cerr *Error) (State, error) {
	o.mu.Lock()
	if err := o.abandonedLocked(ctx); err != nil {
		st := o.state
		o.mu.Unlock()
		o.publish(st)
		log.Warn("checkout result discarded", zap.Error(cerr))
		return st, err
	}
	o.setLocked(domain.CheckoutStatusFailed, attemptID, "", cerr.Message, cerr.Kind)
	st := o.state
	o.mu.Unlock()

	o.publish(st)
	log.Warn("checkout failed", zap.String("kind", string(cerr.Kind)), zap.Error(cerr))
	return st, cerr
}

func (o *Orchestrator) succeed(ctx context.Context, attemptID, intentID string, log *zap.Logger) (State, error) {
	o.mu.Lock()
	if err := o.abandonedLocked(ctx); err != nil {
		st := o.state
		o.mu.Unlock()
		o.publish(st)
		log.Warn("confirmed payment discarded", zap.String("payment_intent", intentID))
		return st, err
	}
	o.mu.Unlock()

	// Clear runs the cart listeners, which take o.mu.
	o.store.Clear()

	o.mu.Lock()
	if !o.closed {
		o.setLocked(domain.CheckoutStatusSucceeded, attemptID, intentID, msgSucceeded, "")
	}
	st := o.state
	o.mu.Unlock()

	o.publish(st)
	log.Info("checkout succeeded", zap.String("payment_intent", intentID))
	return st, nil
}

// abandonedLocked reports whether the result of the in-flight attempt must be dropped.
// A cancelled caller returns the table to IDLE so it can retry; a closed orchestrator is left as is.
func (o *Orchestrator) abandonedLocked(ctx context.Context) error {
	if o.closed {
		return &Error{Kind: KindIntegration, Message: msgClosed, Err: ErrClosed}
	}
	if ctx.Err() != nil {
		o.setLocked(domain.CheckoutStatusIdle, "", "", "", "")
		return &Error{Kind: KindTransport, Message: msgCancelled, Err: fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())}
	}
	return nil
}

// Reset returns a finished checkout to IDLE. It is a no-op in IDLE.
func (o *Orchestrator) Reset() (State, error) {
	o.mu.Lock()
	switch status := o.state.Status; {
	case status == domain.CheckoutStatusIdle:
		st := o.state
		o.mu.Unlock()
		return st, nil
	case !status.IsTerminal():
		st := o.state
		o.mu.Unlock()
		return st, &Error{Kind: KindValidation, Message: msgInProgress, Err: ErrCheckoutInProgress}
	}
	o.setLocked(domain.CheckoutStatusIdle, "", "", "", "")
	st := o.state
	o.mu.Unlock()

	o.publish(st)
	return st, nil
}

// Close detaches the orchestrator from the cart. Results of in-flight attempts are dropped.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	unsubscribe := o.unsubscribeCart
	o.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Subscribe registers l for every subsequent state change and returns a function that unregisters it.
func (o *Orchestrator) Subscribe(l Listener) func() {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	id := o.nextID
	o.nextID++
	o.listeners[id] = l

	return func() {
		o.notifyMu.Lock()
		defer o.notifyMu.Unlock()
		delete(o.listeners, id)
	}
}

// onCartChange resets a finished successful checkout as soon as the table orders again.
func (o *Orchestrator) onCartChange(c domain.Cart) {
	if c.IsEmpty() {
		return
	}

	o.mu.Lock()
	if o.closed || o.state.Status != domain.CheckoutStatusSucceeded {
		o.mu.Unlock()
		return
	}
	o.setLocked(domain.CheckoutStatusIdle, "", "", "", "")
	st := o.state
	o.mu.Unlock()

	o.publish(st)
}

func (o *Orchestrator) setLocked(to domain.CheckoutStatus, attemptID, intentID, message string, kind Kind) {
	from := o.state.Status
	if from != to && !domain.CanTransitionTo(from, to) {
		o.log.Error("checkout transition rejected",
			zap.Error(ErrIllegalTransition),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		return
	}

	o.seq++
	o.state = State{
		Status:    to,
		Message:   message,
		ErrorKind: kind,
		AttemptID: attemptID,
		IntentID:  intentID,
		UpdatedAt: o.opts.Now(),
		seq:       o.seq,
	}
}

func (o *Orchestrator) publish(st State) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	if st.seq <= o.delivered {
		return
	}
	o.delivered = st.seq
	for _, l := range o.listeners {
		l(st)
	}
}
