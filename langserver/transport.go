package langserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teranos/codelens/errors"
	"github.com/teranos/codelens/logger"
)

// Transport frames JSON-RPC messages over a byte stream pair and correlates
// responses to pending requests by numeric id. The read loop runs on its own
// goroutine and never blocks request submission; multiple requests may be
// outstanding at once.
type Transport struct {
	in  io.WriteCloser
	out io.Reader

	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]chan *jsonrpcResponse
	closed  bool
	done    chan struct{}

	writeMu sync.Mutex

	defaultTimeout time.Duration
	onNotification func(method string, params json.RawMessage)
}

// TransportOptions configures a Transport.
type TransportOptions struct {
	// DefaultTimeout bounds each Call when the caller's context carries no
	// deadline of its own. Zero means no default.
	DefaultTimeout time.Duration

	// OnNotification receives server-initiated notifications. May be nil.
	OnNotification func(method string, params json.RawMessage)
}

// jsonrpcRequest represents a JSON-RPC 2.0 request or notification.
type jsonrpcRequest struct {
	Jsonrpc string      `json:"jsonrpc"`
	ID      int64       `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// jsonrpcResponse represents a JSON-RPC 2.0 response.
type jsonrpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int64           `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

// jsonrpcError represents a JSON-RPC 2.0 error object.
type jsonrpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// incomingMessage is the superset shape of everything the server may send:
// responses (id + result/error) and server-initiated requests or
// notifications (method).
type incomingMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

// NewTransport creates a Transport over the given streams and starts its read
// loop. The Transport takes ownership of in and closes it on Close.
func NewTransport(in io.WriteCloser, out io.Reader, opts TransportOptions) *Transport {
	t := &Transport{
		in:             in,
		out:            out,
		pending:        make(map[int64]chan *jsonrpcResponse),
		done:           make(chan struct{}),
		defaultTimeout: opts.DefaultTimeout,
		onNotification: opts.OnNotification,
	}
	go t.readLoop()
	return t
}

// Call sends a JSON-RPC request and waits for the matching response,
// unmarshaling it into result when result is non-nil.
//
// Failure modes: ErrTimeout when no response arrives within the deadline,
// ErrProtocol when the server reports an error, ErrTransportClosed when the
// transport shuts down while the request is pending. A response arriving
// after the deadline is dropped as unmatched.
func (t *Transport) Call(ctx context.Context, method string, params, result interface{}) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.Wrapf(errors.ErrTransportClosed, "method %s", method)
	}
	id := t.nextID.Add(1)
	responseChan := make(chan *jsonrpcResponse, 1)
	t.pending[id] = responseChan
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if t.defaultTimeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.defaultTimeout)
			defer cancel()
		}
	}

	req := jsonrpcRequest{
		Jsonrpc: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
	if err := t.writeMessage(req); err != nil {
		return errors.Wrapf(err, "failed to write request for method %s", method)
	}

	select {
	case resp := <-responseChan:
		if resp.Error != nil {
			return errors.Wrapf(errors.ErrProtocol,
				"server error %d on method %s: %s", resp.Error.Code, method, resp.Error.Message)
		}
		if result != nil && resp.Result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return errors.Wrapf(errors.ErrProtocol,
					"failed to unmarshal response for method %s: %v", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Wrapf(errors.ErrTimeout, "method %s", method)
		}
		return errors.Wrapf(ctx.Err(), "method %s", method)
	case <-t.done:
		return errors.Wrapf(errors.ErrTransportClosed, "method %s", method)
	}
}

// Notify sends a JSON-RPC notification. Fire-and-forget: no id, no response.
func (t *Transport) Notify(method string, params interface{}) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.Wrapf(errors.ErrTransportClosed, "method %s", method)
	}
	t.mu.Unlock()

	req := jsonrpcRequest{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  params,
	}
	return t.writeMessage(req)
}

// Close shuts the transport down. Idempotent. Every still-pending request
// fails immediately with ErrTransportClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	t.mu.Unlock()

	return t.in.Close()
}

// writeMessage frames and writes one message. The Content-Length header
// carries the UTF-8 byte length of the body, never a code-point count, and
// header plus body go out in a single write so concurrent senders cannot
// interleave frames.
func (t *Transport) writeMessage(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	frame := make([]byte, 0, len(data)+32)
	frame = append(frame, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))...)
	frame = append(frame, data...)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.in.Write(frame); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

// readLoop continuously reads framed messages from the server and dispatches
// them. It exits, closing the transport, when the stream ends.
func (t *Transport) readLoop() {
	defer t.Close()

	reader := bufio.NewReader(t.out)
	for {
		contentLength, err := readHeader(reader)
		if err != nil {
			return
		}
		if contentLength <= 0 {
			continue
		}

		body := make([]byte, contentLength)
		if _, err := io.ReadFull(reader, body); err != nil {
			return
		}

		var msg incomingMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			logger.Warnw("Dropping unparseable frame", "error", err, "bytes", contentLength)
			continue
		}

		t.dispatch(&msg)
	}
}

// readHeader scans header lines up to the blank-line delimiter and returns
// the Content-Length value. Header parsing stays on byte boundaries; the
// header itself is ASCII and the length it carries counts body bytes.
func readHeader(reader *bufio.Reader) (int, error) {
	contentLength := 0
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return contentLength, nil
		}
		if value, ok := strings.CutPrefix(line, "Content-Length:"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return 0, errors.Wrapf(errors.ErrProtocol, "bad Content-Length %q", value)
			}
			contentLength = n
		}
		// Other headers (Content-Type) are ignored.
	}
}

// dispatch routes one incoming message: responses to their pending request,
// notifications to the handler. Responses with unmatched ids (typically
// already timed out) are dropped silently. Server-initiated requests are not
// answered; the analyzers spoken to here tolerate that.
func (t *Transport) dispatch(msg *incomingMessage) {
	if msg.Method != "" {
		if msg.ID != nil {
			logger.Debugw("Ignoring server-initiated request", "method", msg.Method, "id", *msg.ID)
			return
		}
		if t.onNotification != nil {
			t.onNotification(msg.Method, msg.Params)
		}
		return
	}

	if msg.ID == nil {
		return
	}

	resp := &jsonrpcResponse{
		Jsonrpc: msg.Jsonrpc,
		ID:      *msg.ID,
		Result:  msg.Result,
		Error:   msg.Error,
	}

	t.mu.Lock()
	ch, ok := t.pending[resp.ID]
	t.mu.Unlock()
	if !ok {
		logger.Debugw("Dropping response with no pending request", "id", resp.ID)
		return
	}
	// Buffered; never blocks even if the caller already gave up.
	ch <- resp
}
