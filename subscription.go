package xrpl

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

type SubscriptionState int32

const (
	StateIdle SubscriptionState = iota
	StateConnecting
	StateSubscribed
	StateClosed
)

func (s SubscriptionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("SubscriptionState(%d)", int32(s))
}

// TransactionEvent is a transaction pushed by the node for a watched account.
type TransactionEvent struct {
	Transaction  Transaction `json:"transaction"`
	EngineResult string      `json:"engineResult"`
	LedgerIndex  uint32      `json:"ledgerIndex"`
	Validated    bool        `json:"validated"`
}

func parseTransactionEvent(msg gjson.Result) (event TransactionEvent, ok bool) {
	obj := msg.Get("transaction")
	if !obj.Exists() {
		obj = msg.Get("tx_json")
	}
	if !obj.Exists() {
		return
	}

	event = TransactionEvent{
		Transaction:  ParseTransaction(obj, msg.Get("hash").String()),
		EngineResult: msg.Get("engine_result").String(),
		LedgerIndex:  uint32(msg.Get("ledger_index").Uint()),
		Validated:    msg.Get("validated").Bool(),
	}
	event.Transaction.Validated = event.Validated
	if event.Transaction.LedgerIndex == 0 {
		event.Transaction.LedgerIndex = event.LedgerIndex
	}

	return event, true
}

type StreamOptions struct {
	OnTransaction func(event TransactionEvent)
	// OnError is called at most once, when the subscription ends for any
	// reason other than Unsubscribe.
	OnError       func(err error)
	OnStateChange func(state SubscriptionState)
}

// Subscription is a live feed of the transactions sent by one account. It
// owns a dedicated connection from the moment it starts connecting until it
// is closed, and never reconnects.
type Subscription struct {
	address string
	client  *Client
	options StreamOptions
	log     zerolog.Logger

	state  atomic.Int32
	ready  chan struct{}
	done   chan struct{}
	cancel context.CancelFunc

	mu        sync.Mutex
	conn      *Conn
	closing   bool
	err       error
	closeOnce sync.Once
}

// StreamAccount calls onTransaction for every transaction sent by address
// until unsubscribe is called. Calls happen one at a time, in the order the
// node reported them.
func (c *Client) StreamAccount(address string, onTransaction func(event TransactionEvent)) (unsubscribe func()) {
	sub := c.Subscribe(address, StreamOptions{
		OnTransaction: onTransaction,
	})
	return sub.Unsubscribe
}

// Subscribe starts watching address in the background and returns
// immediately. Connection or subscribe failures, and a dropped session, close
// the subscription and are reported through OnError and Err.
func (c *Client) Subscribe(address string, options StreamOptions) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Subscription{
		address: address,
		client:  c,
		options: options,
		log:     c.log.With().Str("account", address).Logger(),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	if address == "" {
		s.finish(validationErrorf("missing address"))
		return s
	}

	if _, err := DecodeAddress(address); err != nil {
		s.finish(validationErrorf("invalid address %q: %v", address, err))
		return s
	}

	s.setState(StateConnecting)
	go s.run(ctx)

	return s
}

func (s *Subscription) Address() string {
	return s.address
}

func (s *Subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// Done is closed when the subscription reaches StateClosed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns why the subscription closed. It is nil while the subscription
// is active and after Unsubscribe.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribe closes the subscription and its connection. It may be called
// any number of times, from any goroutine, including from OnTransaction.
func (s *Subscription) Unsubscribe() {
	s.finish(nil)
}

func (s *Subscription) run(ctx context.Context) {
	conn, err := s.client.Dial(ctx)
	if err != nil {
		s.finish(err)
		return
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	conn.OnStream(s.handle)

	_, err = conn.Request(ctx, "subscribe", Params{
		"accounts": []string{s.address},
	})
	if err != nil {
		s.finish(err)
		return
	}

	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateSubscribed)) {
		return
	}
	close(s.ready)
	s.notifyState(StateSubscribed)

	s.log.Debug().Msg("account subscribed")

	select {
	case <-conn.Done():
		s.finish(conn.Err())
	case <-s.done:
	}
}

// handle runs on the connection's stream goroutine, so events reach
// OnTransaction in arrival order.
func (s *Subscription) handle(msg gjson.Result) {
	select {
	case <-s.ready:
	case <-s.done:
		return
	}

	if msg.Get("type").String() != MessageTypeTransaction {
		return
	}

	event, ok := parseTransactionEvent(msg)
	if !ok || event.Transaction.Account != s.address {
		return
	}

	if s.State() != StateSubscribed {
		return
	}

	if s.options.OnTransaction != nil {
		s.options.OnTransaction(event)
	}
}

func (s *Subscription) setState(state SubscriptionState) {
	s.state.Store(int32(state))
	s.notifyState(state)
}

func (s *Subscription) notifyState(state SubscriptionState) {
	if s.options.OnStateChange != nil {
		s.options.OnStateChange(state)
	}
}

// finish moves the subscription to StateClosed exactly once. A nil cause
// means the caller unsubscribed.
func (s *Subscription) finish(cause error) {
	s.closeOnce.Do(func() {
		if cause != nil {
			cause = errors.WithStack(fmt.Errorf("%w: %w", ErrSubscriptionClosed, cause))
		}

		s.mu.Lock()
		s.closing = true
		s.err = cause
		conn := s.conn
		s.mu.Unlock()

		s.state.Store(int32(StateClosed))
		close(s.done)
		s.cancel()

		if conn != nil {
			conn.Close()
		}

		s.notifyState(StateClosed)

		if cause == nil {
			s.log.Debug().Msg("account unsubscribed")
			return
		}

		s.log.Warn().Err(cause).Msg("account subscription closed")
		if s.options.OnError != nil {
			s.options.OnError(cause)
		}
	})
}
