package xrpl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

type ConnOptions struct {
	Logger            *zerolog.Logger
	HandshakeTimeout  time.Duration
	RequestTimeout    time.Duration
	KeepAliveInterval time.Duration
}

func (o *ConnOptions) setDefaults() {
	if o.Logger == nil {
		o.Logger = Log()
	}

	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = defaultConnOptions.HandshakeTimeout
	}

	if o.RequestTimeout == 0 {
		o.RequestTimeout = defaultConnOptions.RequestTimeout
	}
}

var defaultConnOptions = &ConnOptions{
	HandshakeTimeout: time.Second * 10,
	RequestTimeout:   time.Second * 20,
}

const closeGracePeriod = time.Second

// Conn is a single websocket session with a node. Requests may be issued
// concurrently; replies are matched to requests by id and every other
// message is handed to the stream handlers.
type Conn struct {
	endpoint  string
	options   ConnOptions
	ws        *websocket.Conn
	log       *zerolog.Logger
	writeMu   sync.Mutex
	pendingMu sync.Mutex
	pending   map[string]chan gjson.Result
	stream    PubSubQueue[gjson.Result]
	keepAlive *PeriodicCaller
	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// Dial opens a session to endpoint (ws:// or wss://).
func Dial(ctx context.Context, endpoint string, options *ConnOptions) (conn *Conn, err error) {
	if endpoint == "" {
		err = validationErrorf("missing endpoint")
		return
	}

	opts := ConnOptions{}
	if options != nil {
		opts = *options
	}
	opts.setDefaults()

	logger := opts.Logger.With().Str("endpoint", endpoint).Logger()
	logger.Debug().Msg("dialing node")

	dialer := &websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
		Proxy:            websocket.DefaultDialer.Proxy,
	}

	ws, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		err = errors.Wrapf(ErrNetwork, "dial %s: %v", endpoint, err)
		return
	}

	conn = &Conn{
		endpoint: endpoint,
		options:  opts,
		ws:       ws,
		log:      &logger,
		pending:  make(map[string]chan gjson.Result),
		stream:   NewQueue[gjson.Result](),
		done:     make(chan struct{}),
	}

	conn.keepAlive = NewPeriodicCaller(opts.KeepAliveInterval, conn.ping)

	go conn.readLoop()
	conn.keepAlive.Start()

	logger.Debug().Msg("connected to node")

	return
}

func (c *Conn) Endpoint() string {
	return c.endpoint
}

// Done is closed once the connection is shut down, by Close or because the
// session dropped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns ErrConnectionClosed after Close, ErrConnectionLost (wrapped)
// after a dropped session and nil while the connection is open.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// OnStream registers a handler for messages that are not replies, such as
// transaction notifications. Handlers see messages in arrival order.
func (c *Conn) OnStream(handler func(msg gjson.Result)) (cleanup func()) {
	return c.stream.On(handler)
}

// Request sends a command and waits for its reply. Node error replies are
// returned as *LedgerError.
func (c *Conn) Request(ctx context.Context, command string, params Params) (result gjson.Result, err error) {
	if c == nil {
		err = errors.WithStack(ErrConnectionClosed)
		return
	}

	req := request{
		ID:      uuid.NewString(),
		Command: command,
		Params:  params,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		err = errors.Wrapf(err, "%s: failed to marshal request", command)
		return
	}

	replies := make(chan gjson.Result, 1)
	if err = c.addPending(req.ID, replies); err != nil {
		return
	}
	defer c.removePending(req.ID)

	if c.options.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.RequestTimeout)
		defer cancel()
	}

	c.log.Trace().Str("command", command).Str("id", req.ID).Msg("request out")

	if err = c.write(payload); err != nil {
		err = errors.Wrapf(err, "%s", command)
		return
	}

	select {
	case msg := <-replies:
		c.log.Trace().Str("command", command).Str("id", req.ID).Msg("response in")
		return parseResponse(command, msg)

	case <-c.done:
		err = errors.Wrapf(c.err, "%s", command)
		return

	case <-ctx.Done():
		err = errors.WithStack(fmt.Errorf("%s: no response: %w: %w", command, ErrNetwork, ctx.Err()))
		return
	}
}

// Close ends the session. It is safe to call more than once and on a nil
// connection; pending requests fail with ErrConnectionClosed.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}

	c.shutdown(ErrConnectionClosed, true)
	return nil
}

func (c *Conn) addPending(id string, replies chan gjson.Result) error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	select {
	case <-c.done:
		return errors.WithStack(c.err)
	default:
	}

	c.pending[id] = replies
	return nil
}

func (c *Conn) removePending(id string) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	delete(c.pending, id)
}

func (c *Conn) write(payload []byte) error {
	c.writeMu.Lock()

	select {
	case <-c.done:
		c.writeMu.Unlock()
		return errors.WithStack(c.err)
	default:
	}

	if c.options.RequestTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.options.RequestTimeout))
	}

	err := c.ws.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()

	if err != nil {
		lost := errors.Wrapf(ErrConnectionLost, "write: %v", err)
		c.shutdown(lost, false)
		return lost
	}

	c.keepAlive.Postpone()
	return nil
}

func (c *Conn) ping() {
	c.writeMu.Lock()
	err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.options.HandshakeTimeout))
	c.writeMu.Unlock()

	if err != nil {
		c.shutdown(errors.Wrapf(ErrConnectionLost, "ping: %v", err), false)
	}
}

func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(errors.Wrapf(ErrConnectionLost, "read: %v", err), false)
			return
		}

		c.keepAlive.Postpone()

		msg := gjson.ParseBytes(data)
		if !isResponse(msg) {
			c.stream.Broadcast(msg)
			continue
		}

		id := msg.Get("id").String()

		c.pendingMu.Lock()
		replies, ok := c.pending[id]
		c.pendingMu.Unlock()

		if !ok {
			c.log.Debug().Str("id", id).Msg("dropping response for unknown request")
			continue
		}

		select {
		case replies <- msg:
		default:
			c.log.Debug().Str("id", id).Msg("dropping duplicate response")
		}
	}
}

func (c *Conn) shutdown(reason error, graceful bool) {
	c.closeOnce.Do(func() {
		c.pendingMu.Lock()
		c.err = reason
		close(c.done)
		c.pendingMu.Unlock()

		c.keepAlive.Stop()

		if graceful {
			c.writeMu.Lock()
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeGracePeriod),
			)
			c.writeMu.Unlock()
		}

		_ = c.ws.Close()
		c.stream.Close()

		if graceful {
			c.log.Debug().Msg("connection closed")
		} else {
			c.log.Warn().Err(reason).Msg("connection lost")
		}
	})
}
