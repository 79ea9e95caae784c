package accel

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokgraph/tokgraph/internal/model"
)

func sampleMessages(t *testing.T) []model.UnifiedMessage {
	t.Helper()
	mk := func(date string, input int64, cost float64) model.UnifiedMessage {
		ts, err := time.Parse("2006-01-02", date)
		require.NoError(t, err)
		return model.NewMessage(model.SourceClaude, "claude-opus-4", "anthropic", "s", ts,
			model.TokenBreakdown{Input: input, Output: input / 2}, cost)
	}
	return []model.UnifiedMessage{
		mk("2026-01-01", 100, 1.0),
		mk("2026-01-02", 400, 4.0),
		mk("2026-01-02", 200, 2.0),
	}
}

func pipeRemote(t *testing.T, overrides Remote) *Remote {
	t.Helper()
	remote := overrides
	remote.Dial = func(ctx context.Context) (net.Conn, error) {
		client, server := net.Pipe()
		go ServeConn(context.Background(), server, InProcess{})
		return client, nil
	}
	return &remote
}

func TestRemoteMatchesInProcess(t *testing.T) {
	msgs := sampleMessages(t)

	local, err := InProcess{}.GenerateGraph(context.Background(), msgs)
	require.NoError(t, err)

	remote, err := pipeRemote(t, Remote{}).GenerateGraph(context.Background(), msgs)
	require.NoError(t, err)

	assert.Equal(t, local.Summary, remote.Summary)
	assert.Equal(t, local.Contributions, remote.Contributions)
	assert.Equal(t, local.Years, remote.Years)
	assert.Equal(t, local.Meta.DateRange, remote.Meta.DateRange)
}

func TestRemoteOversizeRequest(t *testing.T) {
	remote := &Remote{
		Dial: func(ctx context.Context) (net.Conn, error) {
			t.Fatal("dial should not happen for oversize request")
			return nil, nil
		},
		MaxPayload: 16,
	}

	_, err := remote.GenerateGraph(context.Background(), sampleMessages(t))
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Contains(t, protoErr.Reason, "payload limit")
}

func TestRemoteOversizeResponse(t *testing.T) {
	remote := &Remote{
		Dial: func(ctx context.Context) (net.Conn, error) {
			client, server := net.Pipe()
			go func() {
				defer server.Close()
				reader := bufio.NewReader(server)
				if _, err := reader.ReadBytes('\n'); err != nil {
					return
				}
				server.Write([]byte(strings.Repeat("x", 4096)))
			}()
			return client, nil
		},
		MaxPayload: 256,
	}

	_, err := remote.GenerateGraph(context.Background(), nil)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "response exceeds payload limit", protoErr.Reason)
}

func TestRemoteTimeout(t *testing.T) {
	remote := &Remote{
		Dial: func(ctx context.Context) (net.Conn, error) {
			// worker accepts the request but never answers
			client, server := net.Pipe()
			go func() {
				reader := bufio.NewReader(server)
				reader.ReadBytes('\n')
			}()
			return client, nil
		},
		Timeout: 50 * time.Millisecond,
	}

	_, err := remote.GenerateGraph(context.Background(), nil)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "worker deadline exceeded", protoErr.Reason)
}

type failingEngine struct{}

func (failingEngine) GenerateGraph(ctx context.Context, msgs []model.UnifiedMessage) (*model.Export, error) {
	return nil, errors.New("catalog unavailable")
}

func TestRemoteSurfacesWorkerError(t *testing.T) {
	remote := &Remote{
		Dial: func(ctx context.Context) (net.Conn, error) {
			client, server := net.Pipe()
			go ServeConn(context.Background(), server, failingEngine{})
			return client, nil
		},
	}

	_, err := remote.GenerateGraph(context.Background(), nil)
	require.Error(t, err)
	var protoErr *ProtocolError
	assert.False(t, errors.As(err, &protoErr))
	assert.Contains(t, err.Error(), "catalog unavailable")
}

func TestServeConnRejectsOversizeRequest(t *testing.T) {
	client, server := net.Pipe()
	go serveConn(context.Background(), server, InProcess{}, 64)

	// a frame past the limit with no newline in sight
	go client.Write([]byte(strings.Repeat("a", 256)))

	line, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "request exceeds payload limit")
}

func TestServeConnRejectsUnknownMethod(t *testing.T) {
	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ServeConn(context.Background(), server, InProcess{})
	}()

	_, err := client.Write([]byte(`{"method":"bogus","args":{}}` + "\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "unknown method")
	<-done
}
