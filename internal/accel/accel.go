// Package accel abstracts graph generation behind an engine interface so
// the heavy aggregation pass can run in process or be delegated to an
// external worker over a socket.
package accel

import (
	"context"
	"fmt"

	"github.com/tokgraph/tokgraph/internal/aggregator"
	"github.com/tokgraph/tokgraph/internal/model"
)

// Engine turns priced usage events into a full export document.
type Engine interface {
	GenerateGraph(ctx context.Context, msgs []model.UnifiedMessage) (*model.Export, error)
}

// InProcess runs aggregation directly. It is the default engine and the
// reference behavior a remote worker must reproduce.
type InProcess struct{}

func (InProcess) GenerateGraph(ctx context.Context, msgs []model.UnifiedMessage) (*model.Export, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return aggregator.BuildExport(msgs), nil
}

// ProtocolError is a failure of the remote engine transport itself,
// distinct from an error the worker reported.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("accel protocol: %s: %v", e.Reason, e.Err)
	}
	return "accel protocol: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }
