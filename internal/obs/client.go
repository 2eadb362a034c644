package obs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Defaults applied by Dial when Options leaves them zero.
const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultSceneCacheTTL  = 30 * time.Second

	// writeWait is the deadline for a single frame write.
	writeWait = 10 * time.Second

	// maxMessageSize bounds inbound frames; scene lists of large collections stay well below this.
	maxMessageSize = 4 << 20
)

// Logger defines the logging interface used by the OBS client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a single OBS connection.
type Options struct {
	// URL is the obs-websocket endpoint, e.g. ws://127.0.0.1:4455.
	URL string

	// Password is sent when OBS requests authentication.
	Password string

	// RequestTimeout bounds each request/response round trip.
	RequestTimeout time.Duration

	// SceneCacheTTL is how long a fetched scene list is trusted.
	SceneCacheTTL time.Duration

	// Dialer overrides the websocket dialer (nil uses websocket.DefaultDialer).
	Dialer *websocket.Dialer
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.SceneCacheTTL <= 0 {
		o.SceneCacheTTL = DefaultSceneCacheTTL
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	return o
}

// Client is one identified obs-websocket session.
//
// Requests may be issued from any goroutine; responses are matched to
// callers by requestId. A single read goroutine owns the socket reader.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	conn   *websocket.Conn
	opts   Options
	logger Logger
	now    func() time.Time

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan responseData

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	cacheMu      sync.RWMutex
	scenes       []SceneInfo
	cachedAt     time.Time
	currentScene string

	hookMu  sync.RWMutex
	onEvent func(Event)
}

// Dial connects to OBS and completes the Hello/Identify handshake.
//
// Parameters:
//   - ctx: Bounds the dial and the handshake
//   - opts: Connection options; zero values get package defaults
//   - logger: May be nil
//
// Returns:
//   - *Client: An identified session with its read loop running
//   - error: ErrAuthRequired, ErrAuthFailed, ErrHandshake or a dial error
func Dial(ctx context.Context, opts Options, logger Logger) (*Client, error) {
	opts = opts.withDefaults()
	if logger == nil {
		logger = noopLogger{}
	}

	conn, _, err := opts.Dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", opts.URL, err)
	}
	conn.SetReadLimit(maxMessageSize)

	c := &Client{
		conn:    conn,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		pending: make(map[string]chan responseData),
		done:    make(chan struct{}),
	}

	if err := c.handshake(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go c.readLoop()
	logger.Info("connected to OBS", "url", opts.URL)
	return c, nil
}

// handshake reads Hello, sends Identify and waits for Identified.
func (c *Client) handshake(ctx context.Context) error {
	deadline := c.now().Add(c.opts.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	env, err := c.readEnvelope()
	if err != nil {
		return fmt.Errorf("%w: reading hello: %w", ErrHandshake, err)
	}
	if env.Op != opHello {
		return fmt.Errorf("%w: expected hello, got op %d", ErrHandshake, env.Op)
	}
	var hello helloData
	if err := json.Unmarshal(env.D, &hello); err != nil {
		return fmt.Errorf("%w: decoding hello: %w", ErrHandshake, err)
	}

	identify := identifyData{
		RPCVersion:         rpcVersion,
		EventSubscriptions: eventSubscriptions,
	}
	if hello.Authentication != nil {
		if c.opts.Password == "" {
			return ErrAuthRequired
		}
		identify.Authentication = authResponse(c.opts.Password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := c.send(opIdentify, identify); err != nil {
		return fmt.Errorf("%w: sending identify: %w", ErrHandshake, err)
	}

	env, err = c.readEnvelope()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == closeAuthenticationFailed {
			return ErrAuthFailed
		}
		return fmt.Errorf("%w: awaiting identified: %w", ErrHandshake, err)
	}
	if env.Op != opIdentified {
		return fmt.Errorf("%w: expected identified, got op %d", ErrHandshake, env.Op)
	}
	var ident identifiedData
	if err := json.Unmarshal(env.D, &ident); err != nil {
		return fmt.Errorf("%w: decoding identified: %w", ErrHandshake, err)
	}
	c.logger.Debug("OBS session identified",
		"obs_websocket_version", hello.ObsWebSocketVersion,
		"rpc_version", ident.NegotiatedRPCVersion,
	)
	return nil
}

func (c *Client) readEnvelope() (envelope, error) {
	var env envelope
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decoding frame: %w", err)
	}
	return env, nil
}

// send writes one envelope. Writes are serialised; gorilla allows one concurrent writer.
func (c *Client) send(op int, d any) error {
	data, err := marshalEnvelope(op, d)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(c.now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop dispatches responses and events until the socket fails.
func (c *Client) readLoop() {
	for {
		env, err := c.readEnvelope()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("OBS connection lost", "error", err)
			}
			c.shutdown(err)
			return
		}

		switch env.Op {
		case opResponse:
			var resp responseData
			if err := json.Unmarshal(env.D, &resp); err != nil {
				c.logger.Warn("discarding malformed OBS response", "error", err)
				continue
			}
			c.deliver(resp)
		case opEvent:
			var ev eventData
			if err := json.Unmarshal(env.D, &ev); err != nil {
				c.logger.Warn("discarding malformed OBS event", "error", err)
				continue
			}
			c.handleEvent(ev)
		default:
			c.logger.Debug("ignoring OBS frame", "op", env.Op)
		}
	}
}

func (c *Client) deliver(resp responseData) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.RequestID]
	delete(c.pending, resp.RequestID)
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Debug("response for unknown request", "request_id", resp.RequestID, "request_type", resp.RequestType)
		return
	}
	ch <- resp
}

// handleEvent keeps the scene cache coherent and forwards the event.
func (c *Client) handleEvent(ev eventData) {
	switch ev.EventType {
	case EventCurrentProgramSceneChanged:
		var data programSceneChanged
		if err := json.Unmarshal(ev.EventData, &data); err == nil {
			c.cacheMu.Lock()
			c.currentScene = data.SceneName
			c.cacheMu.Unlock()
		}
	case EventSceneListChanged, EventSceneCreated, EventSceneRemoved, EventSceneNameChanged:
		c.InvalidateScenes()
	}

	c.hookMu.RLock()
	hook := c.onEvent
	c.hookMu.RUnlock()
	if hook != nil {
		hook(Event{Type: ev.EventType, Data: ev.EventData})
	}
}

// OnEvent sets a callback for every OBS event. It runs on the read goroutine.
func (c *Client) OnEvent(fn func(Event)) {
	c.hookMu.Lock()
	c.onEvent = fn
	c.hookMu.Unlock()
}

// request sends a request and decodes the response body into out (may be nil).
func (c *Client) request(ctx context.Context, requestType string, data any, out any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	id := uuid.NewString()
	ch := make(chan responseData, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	req := requestData{RequestType: requestType, RequestID: id, RequestData: data}
	if err := c.send(opRequest, req); err != nil {
		return fmt.Errorf("sending %s: %w", requestType, err)
	}

	select {
	case resp := <-ch:
		if !resp.RequestStatus.Result {
			return &RequestError{
				RequestType: requestType,
				Code:        resp.RequestStatus.Code,
				Comment:     resp.RequestStatus.Comment,
			}
		}
		if out != nil && len(resp.ResponseData) > 0 {
			if err := json.Unmarshal(resp.ResponseData, out); err != nil {
				return fmt.Errorf("decoding %s response: %w", requestType, err)
			}
		}
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrTimeout, requestType)
		}
		return ctx.Err()
	}
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection ended, or nil while it is open.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.closeErr
	default:
		return nil
	}
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		c.now().Add(writeWait))
	c.writeMu.Unlock()

	c.shutdown(ErrClosed)
	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		_ = c.conn.Close()
		close(c.done)
	})
}
