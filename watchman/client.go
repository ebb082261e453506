// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchman

import (
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/bureau-foundation/watchman-go/bser"
	"github.com/bureau-foundation/watchman-go/lib/netutil"
)

// readChunkSize is how much the read loop pulls from the socket per
// read. Subscription bursts arrive as many small pdus; 1 KiB keeps the
// per-read latency low without thrashing the accumulator.
const readChunkSize = 1024

// defaultBinary is the CLI name resolved via PATH when no explicit
// path is configured.
const defaultBinary = "watchman"

// CommandCallback receives the outcome of one command: the decoded
// response object on success, or a non-nil error. It is invoked
// exactly once, without the client's lock held.
type CommandCallback func(response any, err error)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BinaryPath overrides the watchman CLI used for socket discovery.
	// Surrounding whitespace is trimmed. Empty means "watchman",
	// resolved via PATH.
	BinaryPath string

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client is a connection to the local watchman service. The zero
// value is not usable; create clients with NewClient.
//
// A client connects lazily on the first Command and serializes
// requests strictly one at a time: at most one command is in flight,
// the rest wait in a FIFO queue. Server-initiated subscription and log
// messages are delivered to the OnSubscription and OnLog callbacks and
// never complete a pending command.
//
// All methods are safe for concurrent use; internal state is confined
// behind one mutex, and callbacks run without it held.
type Client struct {
	binaryPath string
	logger     *slog.Logger

	mu         sync.Mutex
	conn       net.Conn
	decoder    *bser.StreamDecoder
	queue      []*pendingCommand
	inFlight   *pendingCommand
	connecting bool

	onConnect      func()
	onEnd          func()
	onError        func(error)
	onSubscription func(*bser.Object)
	onLog          func(*bser.Object)
}

// pendingCommand is one queue entry. finish is single-shot: a command
// cancelled at teardown must not complete again when a late response
// arrives for it.
type pendingCommand struct {
	request  []any
	callback CommandCallback
	once     sync.Once
}

func (p *pendingCommand) finish(response any, err error) {
	if p.callback == nil {
		return
	}
	p.once.Do(func() { p.callback(response, err) })
}

// NewClient creates a client. No connection is made until the first
// command is issued.
func NewClient(config ClientConfig) *Client {
	binaryPath := strings.TrimSpace(config.BinaryPath)
	if binaryPath == "" {
		binaryPath = defaultBinary
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{binaryPath: binaryPath, logger: logger}
}

// OnConnect registers a callback fired each time a connection to the
// service is established.
func (c *Client) OnConnect(callback func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = callback
}

// OnEnd registers a callback fired when the connection ends, after
// every pending command has been cancelled.
func (c *Client) OnEnd(callback func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEnd = callback
}

// OnError registers a callback for transport, discovery, and decode
// failures. Per-command failures travel through the command's own
// callback instead. Without a registered callback, errors are logged.
func (c *Client) OnError(callback func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// OnSubscription registers a callback for unilateral subscription
// messages.
func (c *Client) OnSubscription(callback func(*bser.Object)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSubscription = callback
}

// OnLog registers a callback for unilateral log messages.
func (c *Client) OnLog(callback func(*bser.Object)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLog = callback
}

// Command enqueues request and invokes callback exactly once with its
// outcome. Commands complete in submission order. A command enqueued
// while disconnected is sent once the forthcoming connection is up.
func (c *Client) Command(request []any, callback CommandCallback) {
	command := &pendingCommand{request: request, callback: callback}

	c.mu.Lock()
	c.queue = append(c.queue, command)
	startConnect := c.conn == nil && !c.connecting
	if startConnect {
		c.connecting = true
	}
	c.mu.Unlock()

	if startConnect {
		go c.connect()
		return
	}
	c.pump()
}

// End cancels every queued and in-flight command with ErrClientEnded,
// closes the socket, and drops the decoder. It is idempotent; a later
// Command starts a fresh connection.
func (c *Client) End() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.decoder = nil
	endCallback := c.onEnd
	c.mu.Unlock()

	c.cancelCommands(ErrClientEnded)
	if conn != nil {
		conn.Close()
		if endCallback != nil {
			endCallback()
		}
	}
}

// connect discovers the socket path, dials it, and starts the read
// loop. Runs on its own goroutine; at most one connect is in progress
// (guarded by the connecting flag).
func (c *Client) connect() {
	path, err := Sockname(c.binaryPath)
	if err != nil {
		c.connectFailed(err)
		return
	}

	conn, err := net.Dial("unix", path)
	if err != nil {
		c.connectFailed(err)
		return
	}

	decoder := bser.NewStreamDecoder()
	c.mu.Lock()
	c.conn = conn
	c.decoder = decoder
	c.connecting = false
	connectCallback := c.onConnect
	c.mu.Unlock()

	c.logger.Debug("watchman connected", "socket", path)
	if connectCallback != nil {
		connectCallback()
	}
	go c.readLoop(conn, decoder)
	c.pump()
}

// connectFailed surfaces a discovery or dial error and fails every
// pending command: with no connection forthcoming, the queue would
// otherwise wait forever.
func (c *Client) connectFailed(err error) {
	c.mu.Lock()
	c.connecting = false
	c.mu.Unlock()

	c.emitError(err)
	c.cancelCommands(err)
}

// pump sends the next queued command when the connection is idle.
// Must be called without the lock held.
func (c *Client) pump() {
	for {
		c.mu.Lock()
		if c.conn == nil || c.inFlight != nil || len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		command := c.queue[0]
		c.queue = c.queue[1:]

		data, err := bser.Dump(command.request)
		if err != nil {
			// Unserializable request: fail this command and try the
			// next one.
			c.mu.Unlock()
			command.finish(nil, err)
			continue
		}

		c.inFlight = command
		conn := c.conn
		c.mu.Unlock()

		if _, err := conn.Write(data); err != nil {
			if !netutil.IsExpectedCloseError(err) {
				c.emitError(err)
			}
			c.teardown(conn)
		}
		return
	}
}

// readLoop pulls socket bytes into the decoder and dispatches each
// decoded value. It exits on any read or decode failure, tearing the
// connection down.
func (c *Client) readLoop(conn net.Conn, decoder *bser.StreamDecoder) {
	buffer := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(buffer)
		if n > 0 {
			decoder.Append(buffer[:n])
			if decodeErr := c.drain(decoder); decodeErr != nil {
				// The framing is lost; the connection cannot be
				// salvaged.
				c.emitError(decodeErr)
				c.teardown(conn)
				return
			}
		}
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				c.emitError(err)
			}
			c.teardown(conn)
			return
		}
	}
}

// drain dispatches every complete value currently buffered. One value
// per loop iteration rather than recursion: a burst of subscription
// pdus is handed out pdu-by-pdu, and senders blocked on the state
// mutex get it back between iterations.
func (c *Client) drain(decoder *bser.StreamDecoder) error {
	for {
		value, ok, err := decoder.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		c.dispatch(value)
	}
}

// unilateralTags are the fields that mark a pdu as server-initiated.
// Checked before anything else — including an "error" field — so a pdu
// carrying both never consumes the in-flight command.
var unilateralTags = []string{"subscription", "log"}

// dispatch routes one decoded value: unilateral events to their
// callbacks, everything else to the in-flight command.
func (c *Client) dispatch(value any) {
	if object, ok := value.(*bser.Object); ok {
		for _, tag := range unilateralTags {
			if !object.Has(tag) {
				continue
			}
			c.mu.Lock()
			var callback func(*bser.Object)
			switch tag {
			case "subscription":
				callback = c.onSubscription
			case "log":
				callback = c.onLog
			}
			c.mu.Unlock()
			if callback != nil {
				callback(object)
			} else {
				c.logger.Debug("watchman unilateral message dropped", "tag", tag)
			}
			return
		}
	}

	c.mu.Lock()
	command := c.inFlight
	c.inFlight = nil
	c.mu.Unlock()

	if command == nil {
		// A response with nothing in flight: late reply for a command
		// that was already cancelled. Drop it.
		c.logger.Debug("watchman response with no command in flight")
		return
	}

	if object, ok := value.(*bser.Object); ok {
		if message, present := object.Get("error"); present {
			text, _ := message.(string)
			command.finish(nil, &ServiceError{Message: text, Response: object})
			c.pump()
			return
		}
	}
	command.finish(value, nil)
	c.pump()
}

// teardown dismantles the connection if conn is still current: nulls
// the socket and decoder, cancels every remaining command, and fires
// the end callback. Stale calls (End already swapped the connection
// out) are no-ops.
func (c *Client) teardown(conn net.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.decoder = nil
	endCallback := c.onEnd
	c.mu.Unlock()

	conn.Close()
	c.cancelCommands(ErrConnectionClosed)
	if endCallback != nil {
		endCallback()
	}
}

// cancelCommands fails every queued and in-flight command with reason.
// The queue is stolen atomically so a completion that enqueues a new
// command lands in the fresh queue rather than being cancelled too.
func (c *Client) cancelCommands(reason error) {
	c.mu.Lock()
	stolen := c.queue
	c.queue = nil
	if c.inFlight != nil {
		stolen = append([]*pendingCommand{c.inFlight}, stolen...)
		c.inFlight = nil
	}
	c.mu.Unlock()

	for _, command := range stolen {
		command.finish(nil, reason)
	}
}

// emitError delivers err to the error callback, or logs it when none
// is registered.
func (c *Client) emitError(err error) {
	c.mu.Lock()
	callback := c.onError
	c.mu.Unlock()

	if callback != nil {
		callback(err)
		return
	}
	c.logger.Error("watchman client error", "error", err)
}
