package xrpl

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type ClientOptions struct {
	Network  Network
	Endpoint string
	Logger   *zerolog.Logger

	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	// KeepAliveInterval pings long-lived subscription sessions. Zero disables
	// pings.
	KeepAliveInterval time.Duration

	// PollInterval is how often a submitted transaction is looked up while
	// waiting for validation.
	PollInterval time.Duration
	// LedgerOffset is added to the latest validated ledger to produce an
	// autofilled LastLedgerSequence.
	LedgerOffset uint32
	FeeCushion   decimal.Decimal
	MaxFeeDrops  uint64
}

func (o *ClientOptions) setDefaults() {
	if o.Network == "" {
		o.Network = defaultClientOptions.Network
	}

	if o.Logger == nil {
		o.Logger = Log()
	}

	if o.PollInterval == 0 {
		o.PollInterval = defaultClientOptions.PollInterval
	}

	if o.LedgerOffset == 0 {
		o.LedgerOffset = defaultClientOptions.LedgerOffset
	}

	if o.FeeCushion.IsZero() {
		o.FeeCushion = defaultClientOptions.FeeCushion
	}

	if o.MaxFeeDrops == 0 {
		o.MaxFeeDrops = defaultClientOptions.MaxFeeDrops
	}
}

var defaultClientOptions = &ClientOptions{
	Network:      NetworkTestNet,
	PollInterval: time.Second,
	LedgerOffset: 20,
	FeeCushion:   decimal.RequireFromString("1.2"),
	MaxFeeDrops:  2 * DropsPerXRP,
}

// Client is the entry point for ledger queries, payments and account
// streams. It holds configuration only: every call opens its own connection
// and closes it before returning, except StreamAccount whose connection lives
// until the subscription is closed.
type Client struct {
	options *ClientOptions
	params  *NetworkParams
	log     *zerolog.Logger
}

func NewClient(options *ClientOptions) (client *Client, err error) {
	opts := ClientOptions{}
	if options != nil {
		opts = *options
	}
	opts.setDefaults()

	params, err := opts.Network.Params()
	if err != nil {
		return
	}

	if opts.Endpoint == "" {
		opts.Endpoint = params.Endpoint
	}

	client = &Client{
		options: &opts,
		params:  params,
		log:     opts.Logger,
	}

	return
}

func (c *Client) Endpoint() string {
	return c.options.Endpoint
}

func (c *Client) Network() Network {
	return c.params.Name
}

// Dial opens a connection to the configured endpoint. The caller owns it and
// must Close it.
func (c *Client) Dial(ctx context.Context) (*Conn, error) {
	return Dial(ctx, c.options.Endpoint, &ConnOptions{
		Logger:            c.log,
		HandshakeTimeout:  c.options.HandshakeTimeout,
		RequestTimeout:    c.options.RequestTimeout,
		KeepAliveInterval: c.options.KeepAliveInterval,
	})
}

// withConn runs fn on a fresh connection that is closed on every return
// path.
func (c *Client) withConn(ctx context.Context, fn func(conn *Conn) error) (err error) {
	conn, err := c.Dial(ctx)
	if err != nil {
		return
	}
	defer conn.Close()

	return fn(conn)
}
