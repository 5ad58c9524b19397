package acp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/engine/internal/errfmt"
)

// Standard JSON-RPC 2.0 error codes.
const (
	rpcInvalidParams    = -32602
	rpcMethodNotFound   = -32601
	rpcInternalError    = -32603
	rpcApplicationError = -32000
)

// errLineTooLong reports an inbound line over the configured message size.
var errLineTooLong = errors.New("acp: message exceeds max size")

// errNoReply is returned by a request handler whose reply was already sent
// by someone else (teardown answers pending permission requests itself).
var errNoReply = errors.New("acp: reply already sent")

// RequestHandler services an agent-initiated request. The returned value is
// marshalled as the result; a returned *RPCError keeps its code, any other
// error becomes an application error reply.
type RequestHandler func(id agentbridge.RequestID, method string, params json.RawMessage) (any, error)

// NotificationHandler receives agent notifications (frames without an id).
type NotificationHandler func(method string, params json.RawMessage)

// Conn is a bidirectional JSON-RPC 2.0 multiplexer over newline-delimited JSON.
//
// Outbound frames (requests, notifications, replies) go through one ordered
// queue drained by a single writer goroutine, so wire order matches enqueue
// order. ReadLoop classifies inbound frames: responses are matched to
// pending calls by numeric id, agent requests run the RequestHandler in a
// dedicated goroutine, notifications run the NotificationHandler inline.
//
// The pending table is a sync.Mutex + map[int64]chan. Every entry is removed
// exactly once: by its response, by its caller's context, or by ReadLoop
// exit, which closes all remaining channels so no caller blocks forever.
type Conn struct {
	mu      sync.Mutex
	nextID  atomic.Int64
	pending map[int64]chan *rpcResponse
	closed  bool // set once ReadLoop has drained pending

	onRequest    RequestHandler
	onNotify     NotificationHandler
	onParseError func(line []byte, err error)

	r      *bufio.Reader
	w      *bufio.Writer
	closer io.Closer // closed by the writer on exit; may be nil

	outbox     chan []byte
	stopping   chan struct{}
	stopOnce   sync.Once
	writerDone chan struct{}

	done    chan struct{}
	readErr atomic.Value // stores error (nil = no error)

	maxMessageSize int
}

// connConfig holds optional configuration for a Conn.
type connConfig struct {
	maxMessageSize int
	onRequest      RequestHandler
	onNotify       NotificationHandler
	onParseError   func(line []byte, err error)
}

// newConn creates a JSON-RPC 2.0 connection reading from r and writing to w.
// If w is also an io.Closer it is closed once the writer stops. Call
// ReadLoop in a goroutine to start processing inbound messages; the writer
// starts immediately.
func newConn(r io.Reader, w io.Writer, cfg connConfig) *Conn {
	maxSize := cfg.maxMessageSize
	if maxSize <= 0 {
		maxSize = defaultMaxMessageSize
	}
	c := &Conn{
		pending:        make(map[int64]chan *rpcResponse),
		onRequest:      cfg.onRequest,
		onNotify:       cfg.onNotify,
		onParseError:   cfg.onParseError,
		r:              bufio.NewReaderSize(r, min(64<<10, maxSize)),
		w:              bufio.NewWriter(w),
		outbox:         make(chan []byte, outboxSize),
		stopping:       make(chan struct{}),
		writerDone:     make(chan struct{}),
		done:           make(chan struct{}),
		maxMessageSize: maxSize,
	}
	if cl, ok := w.(io.Closer); ok {
		c.closer = cl
	}
	go c.writeLoop()
	return c
}

// Call sends a JSON-RPC request and blocks until the response arrives, the
// connection closes, or ctx expires. Agent error payloads are returned as
// *RPCError.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	id := c.nextID.Add(1)

	ch := make(chan *rpcResponse, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("acp: %s: %w", method, agentbridge.ErrTerminated)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	rid := agentbridge.NumberID(id)
	req := &rpcRequest{
		JSONRPC: "2.0",
		ID:      &rid,
		Method:  method,
		Params:  params,
	}

	if err := c.send(req); err != nil {
		c.forget(id)
		return fmt.Errorf("acp: send %s: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		return c.handleCallResponse(resp, ok, method, result)
	case <-ctx.Done():
		c.forget(id)
		// Response may have arrived just before ctx cancellation;
		// drain ch to avoid discarding a successful result.
		select {
		case resp, ok := <-ch:
			return c.handleCallResponse(resp, ok, method, result)
		default:
			return ctx.Err()
		}
	}
}

// forget removes a pending call entry if it is still present.
func (c *Conn) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// handleCallResponse processes a response received from a pending Call channel.
func (c *Conn) handleCallResponse(resp *rpcResponse, ok bool, method string, result any) error {
	if !ok {
		return fmt.Errorf("acp: %s: %w", method, agentbridge.ErrTerminated)
	}
	if resp.Error != nil {
		return &RPCError{
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("acp: unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// Notify sends a JSON-RPC notification (no id, no response expected).
func (c *Conn) Notify(method string, params any) error {
	req := &rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}
	return c.send(req)
}

// ReadLoop reads and dispatches inbound JSON-RPC messages until the reader
// reaches end-of-stream or fails. On exit, all pending Call channels are
// closed. Must be called exactly once.
func (c *Conn) ReadLoop() {
	defer close(c.done)
	defer c.drainPending()

	for {
		line, err := c.readLine()
		if errors.Is(err, errLineTooLong) {
			c.parseError(nil, err)
			continue
		}
		if line = bytes.TrimSpace(line); len(line) > 0 {
			c.handleLine(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.readErr.Store(err)
			}
			return
		}
	}
}

// Close stops the writer after it flushes frames already queued, then
// closes the underlying writer. Later sends fail. Safe to call multiple
// times; does not wait for the flush (see WriterDone).
func (c *Conn) Close() {
	c.stopOnce.Do(func() { close(c.stopping) })
}

// WriterDone returns a channel that is closed when the writer has stopped.
func (c *Conn) WriterDone() <-chan struct{} {
	return c.writerDone
}

// Err returns the ReadLoop error after it exits. Returns nil if ReadLoop
// hasn't finished or the reader reached a clean end-of-stream.
func (c *Conn) Err() error {
	if v := c.readErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Done returns a channel that is closed when ReadLoop exits.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// --- Internal ---

// send serializes v and enqueues it for the writer. Thread-safe.
func (c *Conn) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	select {
	case <-c.stopping:
		return agentbridge.ErrTerminated
	default:
	}
	select {
	case c.outbox <- data:
		return nil
	case <-c.stopping:
		return agentbridge.ErrTerminated
	}
}

// writeLoop is the sole writer. After Close it flushes what is queued and
// exits. A write failure (agent gone) makes it discard further frames so
// senders never block on a dead pipe.
func (c *Conn) writeLoop() {
	defer close(c.writerDone)
	var werr error
	write := func(frame []byte) {
		if werr != nil {
			return
		}
		if _, werr = c.w.Write(frame); werr == nil {
			werr = c.w.Flush()
		}
	}
	defer func() {
		if c.closer != nil {
			_ = c.closer.Close()
		}
	}()

	for {
		select {
		case frame := <-c.outbox:
			write(frame)
		case <-c.stopping:
			for {
				select {
				case frame := <-c.outbox:
					write(frame)
				default:
					return
				}
			}
		}
	}
}

// readLine returns the next newline-terminated line. Lines longer than
// maxMessageSize are consumed and reported as errLineTooLong.
func (c *Conn) readLine() ([]byte, error) {
	var buf []byte
	oversized := false
	for {
		chunk, err := c.r.ReadSlice('\n')
		if !oversized {
			if len(buf)+len(chunk) > c.maxMessageSize {
				oversized = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if oversized {
			if err != nil {
				return nil, err
			}
			return nil, errLineTooLong
		}
		return buf, err
	}
}

// parseError reports a dropped line, if a reporter is configured.
func (c *Conn) parseError(line []byte, err error) {
	if c.onParseError != nil {
		c.onParseError(append([]byte(nil), line...), err)
	}
}

// handleLine decodes one frame and routes it.
func (c *Conn) handleLine(line []byte) {
	var msg rpcMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		c.parseError(line, err)
		return
	}
	switch {
	case msg.Method != "" && msg.ID == nil:
		c.handleNotification(&msg)
	case msg.Method != "":
		c.handleMethodCall(&msg)
	case msg.ID != nil && (msg.Result != nil || msg.Error != nil):
		c.handleResponse(&msg)
	default:
		c.parseError(line, errors.New("acp: frame is neither request, response, nor notification"))
	}
}

// handleResponse delivers a response to the waiting Call goroutine.
func (c *Conn) handleResponse(msg *rpcMessage) {
	id, ok := msg.ID.Int64()
	if !ok {
		return // host ids are always numeric, not ours
	}

	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return // duplicate or unsolicited response, drop
	}

	ch <- &rpcResponse{
		Result: msg.Result,
		Error:  msg.Error,
	}
}

// handleMethodCall runs the request handler in a dedicated goroutine to
// avoid blocking ReadLoop, then replies with the original id.
func (c *Conn) handleMethodCall(msg *rpcMessage) {
	id := *msg.ID
	if c.onRequest == nil {
		c.sendError(id, rpcMethodNotFound, "method not found: "+msg.Method)
		return
	}
	method, params := msg.Method, msg.Params
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.sendError(id, rpcInternalError, fmt.Sprintf("internal error handling %s: %v", method, r))
			}
		}()
		result, err := c.onRequest(id, method, params)
		if err != nil {
			if errors.Is(err, errNoReply) {
				return
			}
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) {
				c.sendError(id, rpcErr.Code, rpcErr.Message)
				return
			}
			c.sendError(id, rpcApplicationError, err.Error())
			return
		}
		c.sendResult(id, result)
	}()
}

// handleNotification dispatches a notification to the handler.
func (c *Conn) handleNotification(msg *rpcMessage) {
	if c.onNotify != nil {
		c.onNotify(msg.Method, msg.Params)
	}
}

// sendResult sends a JSON-RPC success response.
// Send errors are intentionally ignored: handlers finish asynchronously and
// the connection may already be closing.
func (c *Conn) sendResult(id agentbridge.RequestID, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		c.sendError(id, rpcInternalError, "marshal result: "+err.Error())
		return
	}
	resp := &rpcResponse{
		JSONRPC: "2.0",
		ID:      &id,
		Result:  data,
	}
	_ = c.send(resp) // best-effort, connection may be closing
}

// sendError sends a JSON-RPC error response.
// Send errors are intentionally ignored (same rationale as sendResult).
func (c *Conn) sendError(id agentbridge.RequestID, code int, message string) {
	resp := &rpcResponse{
		JSONRPC: "2.0",
		ID:      &id,
		Error: &rpcError{
			Code:    code,
			Message: errfmt.Truncate(message),
		},
	}
	_ = c.send(resp) // best-effort
}

// drainPending closes all pending Call channels so blocked callers unblock.
func (c *Conn) drainPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// --- Wire types ---

// rpcRequest is an outbound JSON-RPC 2.0 request or notification.
type rpcRequest struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      *agentbridge.RequestID `json:"id,omitempty"`
	Method  string                 `json:"method"`
	Params  any                    `json:"params,omitempty"`
}

// rpcMessage is a generic inbound JSON-RPC 2.0 message (request, response, or notification).
type rpcMessage struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      *agentbridge.RequestID `json:"id,omitempty"`
	Method  string                 `json:"method,omitempty"`
	Params  json.RawMessage        `json:"params,omitempty"`
	Result  json.RawMessage        `json:"result,omitempty"`
	Error   *rpcError              `json:"error,omitempty"`
}

// rpcResponse is an outbound JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string                 `json:"jsonrpc,omitempty"`
	ID      *agentbridge.RequestID `json:"id,omitempty"`
	Result  json.RawMessage        `json:"result,omitempty"`
	Error   *rpcError              `json:"error,omitempty"`
}

// rpcError is a JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is an exported error type for JSON-RPC errors returned by Call.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// invalidParams wraps a params decoding failure as a -32602 reply.
func invalidParams(err error) error {
	return &RPCError{Code: rpcInvalidParams, Message: "invalid params: " + err.Error()}
}
