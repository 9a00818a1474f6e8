// ABOUTME: Gateway state shared by the request client, event channel, and dispatcher
// ABOUTME: Guards initialization and serves the host-facing HTTP surface

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/2389/lcu-gateway/internal/channel"
	"github.com/2389/lcu-gateway/internal/credential"
	"github.com/2389/lcu-gateway/internal/events"
	"github.com/2389/lcu-gateway/internal/lcu"
	"github.com/2389/lcu-gateway/internal/notify"
	"github.com/2389/lcu-gateway/internal/reducer"
	"github.com/2389/lcu-gateway/internal/telemetry"
)

// ErrClosed is returned by Initialize after Close.
var ErrClosed = errors.New("gateway closed")

// Status is the initialization state of the gateway.
type Status int

const (
	NotStarted Status = iota
	Starting
	Running
	Closed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options wires a Gateway to its collaborators.
type Options struct {
	// Source resolves the control plane credential. Required.
	Source credential.Source
	// Client configures the request client.
	Client lcu.Options
	// Channel configures the event channel.
	Channel channel.Config
	// LogURIs are resources whose events are written to the debug log.
	LogURIs []events.Selector
	// Notifier receives every signal in addition to the HTTP event stream.
	Notifier notify.Notifier
	// Telemetry supplies the tracer and meter. Nil disables telemetry.
	Telemetry *telemetry.Provider
	// HTTPAddr is where Run serves the host API.
	HTTPAddr string
}

// Gateway owns the event channel, the subscription registry, and the request
// client. One mutex guards all of it and is never held across network I/O.
type Gateway struct {
	mu       sync.Mutex
	status   Status
	starting chan struct{}
	client   *lcu.Client
	channel  *channel.Channel

	source     credential.Source
	clientOpts lcu.Options
	channelCfg channel.Config

	dispatcher  *events.Dispatcher
	roster      *reducer.Roster
	broadcaster *notify.Broadcaster
	notifier    notify.Notifier

	tracer     trace.Tracer
	metrics    *telemetry.Metrics
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a gateway in the NotStarted state and registers the built-in
// reducers. Pass nil logger for default.
func New(opts Options, logger *slog.Logger) (*Gateway, error) {
	if opts.Source == nil {
		return nil, errors.New("credential source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	provider := opts.Telemetry
	if provider == nil {
		provider = telemetry.Noop()
	}
	metrics, err := telemetry.NewMetrics(provider.Meter)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	broadcaster := notify.NewBroadcaster(logger)
	notifiers := notify.Multi{broadcaster, notify.NewLog(logger)}
	if opts.Notifier != nil {
		notifiers = append(notifiers, opts.Notifier)
	}

	g := &Gateway{
		source:      opts.Source,
		clientOpts:  opts.Client,
		channelCfg:  opts.Channel,
		broadcaster: broadcaster,
		notifier:    notifiers,
		tracer:      provider.Tracer,
		metrics:     metrics,
		logger:      logger.With("component", "gateway"),
	}
	g.dispatcher = events.NewDispatcher(logger,
		events.WithLocker(&g.mu),
		events.WithNotifier(notifiers),
		events.WithObserver(metrics),
	)

	g.roster = reducer.NewRoster(notifiers, logger)
	g.roster.Register(g.dispatcher)
	reducer.NewGameflow(notifiers).Register(g.dispatcher)
	if len(opts.LogURIs) > 0 {
		reducer.NewEventLog(logger).Register(g.dispatcher, opts.LogURIs...)
	}

	mux := http.NewServeMux()
	g.registerRoutes(mux)
	g.httpServer = &http.Server{
		Addr:              opts.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// Initialize resolves the credential and opens the event channel. Only the
// first caller connects; concurrent callers wait for that attempt and return
// nil. A credential failure or a rejected credential is returned to the first
// caller and leaves the gateway NotStarted so a later call can retry. An
// unreachable event endpoint is not an error: the channel keeps reconnecting.
func (g *Gateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	switch g.status {
	case Running:
		// A channel closed by a rejected credential is replaced; otherwise
		// there is nothing to do.
		if g.channel != nil && g.channel.State() != channel.Closed {
			g.mu.Unlock()
			return nil
		}
	case Closed:
		g.mu.Unlock()
		return ErrClosed
	case Starting:
		done := g.starting
		g.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	g.status = Starting
	g.starting = done
	g.mu.Unlock()
	defer close(done)

	ctx, span := telemetry.StartClientSpan(ctx, g.tracer, "gateway.initialize")
	err := g.connect(ctx)
	telemetry.EndSpan(span, err)
	return err
}

func (g *Gateway) connect(ctx context.Context) error {
	cred, err := g.source.Resolve(ctx)
	if err != nil {
		g.resetStatus()
		return fmt.Errorf("resolving credential: %w", err)
	}

	ch := channel.New(cred, g.dispatcher, g.notifier, g.channelCfg, g.logger)
	if err := ch.Connect(ctx); err != nil {
		if !errors.Is(err, channel.ErrConnection) {
			ch.Close()
			g.resetStatus()
			return fmt.Errorf("connecting event channel: %w", err)
		}
		g.logger.Warn("event endpoint unreachable, retrying in background", "addr", cred.Addr(), "error", err)
	}

	g.mu.Lock()
	if g.status == Closed {
		g.mu.Unlock()
		ch.Close()
		return ErrClosed
	}
	stale := g.channel
	g.channel = ch
	g.client = lcu.NewClient(cred, g.clientOpts, g.logger)
	g.status = Running
	g.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	// The read loop outlives the initializing call.
	ch.Start(context.Background())
	g.logger.Info("gateway initialized", "addr", cred.Addr())
	return nil
}

func (g *Gateway) resetStatus() {
	g.mu.Lock()
	if g.status == Starting {
		g.status = NotStarted
		if g.channel != nil {
			g.status = Running
		}
	}
	g.mu.Unlock()
}

// Status returns the initialization state.
func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// ChannelState returns the event channel's state, or NotStarted before
// initialization.
func (g *Gateway) ChannelState() channel.State {
	g.mu.Lock()
	ch := g.channel
	g.mu.Unlock()
	if ch == nil {
		return channel.NotStarted
	}
	return ch.State()
}

// Request performs one call against the control plane. The lock is held only
// to read the client handle.
func (g *Gateway) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	ctx, span := telemetry.StartClientSpan(ctx, g.tracer, "lcu.request",
		telemetry.AttrMethod.String(method),
		telemetry.AttrPath.String(path),
	)
	start := time.Now()

	client, err := g.requestClient(ctx, method, path)
	var result json.RawMessage
	if err == nil {
		result, err = client.Request(ctx, method, path, body)
	}

	g.metrics.RecordRequest(ctx, method, time.Since(start), err)
	telemetry.EndSpan(span, err)
	return result, err
}

// Get fetches path.
func (g *Gateway) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return g.Request(ctx, http.MethodGet, path, nil)
}

// Put replaces the resource at path with body.
func (g *Gateway) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return g.Request(ctx, http.MethodPut, path, body)
}

// Post sends body to path.
func (g *Gateway) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return g.Request(ctx, http.MethodPost, path, body)
}

// Help returns the control plane's API listing, or JSON null when it is
// absent or cannot be fetched.
func (g *Gateway) Help(ctx context.Context) json.RawMessage {
	client, err := g.requestClient(ctx, http.MethodGet, "/help")
	if err != nil {
		g.logger.Debug("help unavailable", "error", err)
		return lcu.Null
	}
	return client.Help(ctx)
}

// requestClient returns the request client, resolving the credential on
// first use when Initialize has not run yet.
func (g *Gateway) requestClient(ctx context.Context, method, path string) (*lcu.Client, error) {
	g.mu.Lock()
	client := g.client
	g.mu.Unlock()
	if client != nil {
		return client, nil
	}

	cred, err := g.source.Resolve(ctx)
	if err != nil {
		return nil, &lcu.RequestError{Kind: lcu.KindUnauthenticated, Method: method, Path: path, Err: err}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		g.client = lcu.NewClient(cred, g.clientOpts, g.logger)
	}
	return g.client, nil
}

// Subscribe registers h for events on sel.
func (g *Gateway) Subscribe(sel events.Selector, h events.Handler) events.ID {
	return g.dispatcher.Subscribe(sel, h)
}

// Unsubscribe removes a subscription.
func (g *Gateway) Unsubscribe(id events.ID) bool {
	return g.dispatcher.Unsubscribe(id)
}

// Roster returns the current lobby members in payload order.
func (g *Gateway) Roster() []string {
	return g.roster.Members()
}

// Signals streams every notifier signal until ctx ends.
func (g *Gateway) Signals(ctx context.Context) <-chan notify.Signal {
	ch, _ := g.broadcaster.Subscribe(ctx)
	return ch
}

// Close tears down the event channel. Initialize fails afterwards.
func (g *Gateway) Close() {
	g.mu.Lock()
	if g.status == Closed {
		g.mu.Unlock()
		return
	}
	g.status = Closed
	ch := g.channel
	g.channel = nil
	g.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	g.broadcaster.Close()
}

// Run serves the host API and blocks until ctx is canceled or the server
// fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since Run's context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	g.Close()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}
