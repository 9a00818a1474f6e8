// ABOUTME: Persistent event stream connection with authentication and reconnect
// ABOUTME: A single read loop decodes frames and dispatches each event synchronously

package channel

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"

	"github.com/2389/lcu-gateway/internal/credential"
	"github.com/2389/lcu-gateway/internal/events"
	"github.com/2389/lcu-gateway/internal/notify"
)

const (
	// DefaultReconnectInitial is the first reconnect delay.
	DefaultReconnectInitial = 1 * time.Second
	// DefaultReconnectMax caps the reconnect delay.
	DefaultReconnectMax = 30 * time.Second

	// maxMessageBytes bounds one inbound frame. Lobby and champ select
	// payloads routinely exceed the library's 32 KiB default.
	maxMessageBytes = 16 << 20
	dialTimeout     = 10 * time.Second
)

// State is the channel's lifecycle position.
type State int32

const (
	NotStarted State = iota
	Connecting
	Authenticated
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Connecting:
		return "connecting"
	case Authenticated:
		return "authenticated"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sink receives decoded events. Dispatch returns only after every handler
// has run, which keeps events in stream order.
type Sink interface {
	Dispatch(ctx context.Context, ev events.Event)
}

// Config tunes connection behaviour.
type Config struct {
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	// Labels are the subscription labels requested after connecting.
	// Defaults to DefaultLabel.
	Labels []string
	// InsecureSkipVerify trusts the control plane's self-signed certificate.
	InsecureSkipVerify bool
	// HTTPClient overrides the client used for the WebSocket handshake.
	HTTPClient *http.Client
}

// Channel owns one connection to the event stream.
type Channel struct {
	cred     credential.Credential
	cfg      Config
	sink     Sink
	notifier notify.Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
	// dispatching is set while the read loop is inside Sink.Dispatch.
	dispatching bool
	connects    int
	err         error
}

// New creates a channel in the NotStarted state. Pass nil logger for default.
func New(cred credential.Credential, sink Sink, notifier notify.Notifier, cfg Config, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = DefaultReconnectInitial
	}
	if cfg.ReconnectMax < cfg.ReconnectInitial {
		cfg.ReconnectMax = max(DefaultReconnectMax, cfg.ReconnectInitial)
	}
	if len(cfg.Labels) == 0 {
		cfg.Labels = []string{DefaultLabel}
	}
	return &Channel{
		cred:     cred,
		cfg:      cfg,
		sink:     sink,
		notifier: notifier,
		logger:   logger.With("component", "channel"),
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connects returns how many connections have been established.
func (c *Channel) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// Err returns the terminal error that closed the channel, if any.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Connect dials the event stream, authenticates, and subscribes. It returns
// an *AuthenticationError when the credential is refused and a
// *ConnectionError for transport failures.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		_ = conn.CloseNow()
		return ErrClosed
	}
	c.conn = conn
	c.state = Streaming
	c.connects++
	c.mu.Unlock()

	c.logger.Info("event stream connected", "addr", c.cred.Addr())
	c.notifier.Emit(notify.SignalChannelHealth, notify.Health{State: Streaming.String()})
	return nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, c.cred.EventURL(), &websocket.DialOptions{
		HTTPClient: c.httpClient(),
		HTTPHeader: http.Header{
			"Authorization": []string{c.cred.AuthorizationHeader()},
		},
	})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &AuthenticationError{Status: resp.StatusCode, Err: err}
		}
		return nil, &ConnectionError{Err: err}
	}
	conn.SetReadLimit(maxMessageBytes)
	c.setState(Authenticated)

	for _, label := range c.cfg.Labels {
		frame, err := encodeSubscribe(label)
		if err != nil {
			_ = conn.CloseNow()
			return nil, err
		}
		if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
			_ = conn.CloseNow()
			return nil, &ConnectionError{Err: err}
		}
	}
	return conn, nil
}

func (c *Channel) httpClient() *http.Client {
	if c.cfg.HTTPClient != nil {
		return c.cfg.HTTPClient
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: c.cfg.InsecureSkipVerify, //nolint:gosec // loopback endpoint with a self-signed certificate
	}
	return &http.Client{Transport: transport}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	if c.state != Closed {
		c.state = s
	}
	c.mu.Unlock()
}

// Start launches the read loop. It is a no-op if the loop is already running
// or the channel is closed. The loop outlives ctx only until Close.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil || c.state == Closed {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, c.done)
}

// Close stops the read loop and closes the connection. It waits for the
// loop to exit unless an event is being dispatched, since a handler may be
// the caller. No event is dispatched after Close returns except the one in
// flight.
func (c *Channel) Close() {
	c.mu.Lock()
	c.state = Closed
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	done := c.done
	if c.dispatching {
		done = nil
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "gateway closing")
	}
	if done != nil {
		<-done
	}
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.ReconnectInitial
	bo.MaxInterval = c.cfg.ReconnectMax
	attempt := 0

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			err := c.Connect(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if errors.Is(err, ErrAuthentication) || errors.Is(err, ErrClosed) {
					c.terminate(err)
					return
				}
				attempt++
				wait := bo.NextBackOff()
				c.logger.Warn("event stream reconnect failed", "attempt", attempt, "retry_in", wait, "error", err)
				c.notifier.Emit(notify.SignalChannelHealth, notify.Health{
					State:   Connecting.String(),
					Attempt: attempt,
					Error:   err.Error(),
					RetryIn: wait.String(),
				})
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				continue
			}
			attempt = 0
			bo.Reset()
			continue
		}

		err := c.readLoop(ctx, conn)
		c.dropConn(conn)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("event stream lost", "error", err)
		c.notifier.Emit(notify.SignalChannelHealth, notify.Health{
			State: Connecting.String(),
			Error: err.Error(),
		})
	}
}

// readLoop reads frames until the connection fails. Each event is fully
// dispatched before the next frame is read.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			return &ConnectionError{Err: err}
		}
		if typ != websocket.MessageText {
			continue
		}

		ev, err := decodeFrame(msg)
		if errors.Is(err, errNotEvent) {
			continue
		}
		if err != nil {
			c.logger.Warn("skipping undecodable frame", "error", err, "bytes", len(msg))
			c.notifier.Emit(notify.SignalDiagnostic, notify.Diagnostic{
				Source:  "channel",
				Message: err.Error(),
			})
			continue
		}

		c.setDispatching(true)
		c.sink.Dispatch(ctx, ev)
		c.setDispatching(false)
	}
}

func (c *Channel) setDispatching(v bool) {
	c.mu.Lock()
	c.dispatching = v
	c.mu.Unlock()
}

// dropConn forgets a failed connection so the loop reconnects.
func (c *Channel) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.state != Closed {
			c.state = Connecting
		}
	}
	c.mu.Unlock()
	_ = conn.CloseNow()
}

func (c *Channel) terminate(err error) {
	c.mu.Lock()
	c.state = Closed
	c.err = err
	c.mu.Unlock()

	c.logger.Error("event channel closed", "error", err)
	c.notifier.Emit(notify.SignalChannelHealth, notify.Health{
		State: Closed.String(),
		Error: err.Error(),
	})
}
