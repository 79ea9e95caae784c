package accel

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"time"

	"github.com/tokgraph/tokgraph/internal/model"
)

// Wire protocol: one newline-delimited JSON request per connection,
// answered by one newline-delimited JSON response.

const (
	methodGenerateGraph = "generate_graph"

	// DefaultMaxPayload bounds both request and response size.
	DefaultMaxPayload = 32 << 20
	// DefaultTimeout covers the whole round trip.
	DefaultTimeout = 30 * time.Second
)

type request struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args"`
}

type generateGraphArgs struct {
	Messages []model.UnifiedMessage `json:"messages"`
}

type response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

// Remote delegates graph generation to an external worker. Oversized
// payloads, deadline misses and malformed frames surface as
// *ProtocolError; errors the worker itself reports come back verbatim.
type Remote struct {
	Dial       func(ctx context.Context) (net.Conn, error)
	MaxPayload int64
	Timeout    time.Duration
}

func (r *Remote) GenerateGraph(ctx context.Context, msgs []model.UnifiedMessage) (*model.Export, error) {
	maxPayload := r.MaxPayload
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	args, err := json.Marshal(generateGraphArgs{Messages: msgs})
	if err != nil {
		return nil, &ProtocolError{Reason: "encode request", Err: err}
	}
	frame, err := json.Marshal(request{Method: methodGenerateGraph, Args: args})
	if err != nil {
		return nil, &ProtocolError{Reason: "encode request", Err: err}
	}
	if int64(len(frame)) > maxPayload {
		return nil, &ProtocolError{Reason: "request exceeds payload limit"}
	}

	conn, err := r.Dial(ctx)
	if err != nil {
		return nil, &ProtocolError{Reason: "dial worker", Err: err}
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	if _, err := conn.Write(append(frame, '\n')); err != nil {
		return nil, wireErr("write request", err)
	}

	reader := bufio.NewReaderSize(newLimitedConnReader(conn, maxPayload), 64*1024)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, errPayloadTooLarge) {
			return nil, &ProtocolError{Reason: "response exceeds payload limit"}
		}
		return nil, wireErr("read response", err)
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, &ProtocolError{Reason: "malformed response", Err: err}
	}
	if resp.Error != "" {
		if resp.Detail != "" {
			return nil, errors.New(resp.Error + ": " + resp.Detail)
		}
		return nil, errors.New(resp.Error)
	}

	var export model.Export
	if err := json.Unmarshal(resp.Result, &export); err != nil {
		return nil, &ProtocolError{Reason: "malformed result", Err: err}
	}
	return &export, nil
}

func wireErr(reason string, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return &ProtocolError{Reason: "worker deadline exceeded", Err: err}
	}
	return &ProtocolError{Reason: reason, Err: err}
}

var errPayloadTooLarge = errors.New("payload limit exceeded")

type limitedConnReader struct {
	conn      net.Conn
	remaining int64
}

func newLimitedConnReader(conn net.Conn, limit int64) *limitedConnReader {
	return &limitedConnReader{conn: conn, remaining: limit}
}

func (l *limitedConnReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, errPayloadTooLarge
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.conn.Read(p)
	l.remaining -= int64(n)
	return n, err
}

// ServeConn answers a single request on conn using the given engine. It
// is the worker half of the protocol; errors are reported to the peer
// where possible.
func ServeConn(ctx context.Context, conn net.Conn, engine Engine) error {
	return serveConn(ctx, conn, engine, DefaultMaxPayload)
}

func serveConn(ctx context.Context, conn net.Conn, engine Engine, maxPayload int64) error {
	defer conn.Close()

	reader := bufio.NewReaderSize(newLimitedConnReader(conn, maxPayload), 64*1024)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, errPayloadTooLarge) {
			return writeResponse(conn, response{Error: "request exceeds payload limit"})
		}
		return err
	}

	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return writeResponse(conn, response{Error: "malformed request", Detail: err.Error()})
	}
	if req.Method != methodGenerateGraph {
		return writeResponse(conn, response{Error: "unknown method", Detail: req.Method})
	}

	var args generateGraphArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return writeResponse(conn, response{Error: "malformed args", Detail: err.Error()})
	}

	export, err := engine.GenerateGraph(ctx, args.Messages)
	if err != nil {
		return writeResponse(conn, response{Error: "generate graph failed", Detail: err.Error()})
	}
	result, err := json.Marshal(export)
	if err != nil {
		return writeResponse(conn, response{Error: "encode result failed", Detail: err.Error()})
	}
	return writeResponse(conn, response{Result: result})
}

func writeResponse(conn net.Conn, resp response) error {
	frame, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(frame, '\n'))
	return err
}
