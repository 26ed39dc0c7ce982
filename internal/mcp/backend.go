// Package mcp exposes poolkit operations as MCP tools.
package mcp

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/gateway-fm/poolkit/internal/config"
	"github.com/gateway-fm/poolkit/internal/metrics"
	"github.com/gateway-fm/poolkit/internal/ops"
)

// ConnectFunc opens a Runner whose console output goes to out.
type ConnectFunc func(ctx context.Context, out io.Writer) (*ops.Runner, error)

// Backend runs one operation per tool call. Calls are serialized since they
// share a wallet and its nonce sequence.
type Backend struct {
	connect ConnectFunc
	logger  *slog.Logger

	mu sync.Mutex
}

// NewBackend creates a Backend that connects through connect.
func NewBackend(connect ConnectFunc, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{connect: connect, logger: logger}
}

// EnvConnector resolves the env files under env on every call, so addresses
// written back to the env file by a previous tool call are picked up. env is
// normally config.Environ() taken at startup.
func EnvConnector(env map[string]string, logger *slog.Logger, m *metrics.PrometheusMetrics) ConnectFunc {
	return func(ctx context.Context, out io.Writer) (*ops.Runner, error) {
		cfg, err := config.LoadWith(env)
		if err != nil {
			return nil, err
		}
		return ops.Connect(ctx, cfg, ops.Options{Out: out, Logger: logger, Metrics: m})
	}
}

// outcome is what a tool call produced: the operation's console transcript
// and its result or error.
type outcome struct {
	transcript string
	result     any
	err        error
}

func (b *Backend) run(ctx context.Context, command string, fn func(ctx context.Context, r *ops.Runner) (any, error)) outcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	var buf bytes.Buffer
	r, err := b.connect(ctx, &buf)
	if err != nil {
		return outcome{transcript: buf.String(), err: err}
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			b.logger.Warn("failed to close journal", slog.String("error", cerr.Error()))
		}
	}()

	var result any
	err = r.Run(ctx, command, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx, r)
		return err
	})
	b.logger.Debug("tool call finished", slog.String("command", command), slog.Bool("ok", err == nil))
	return outcome{transcript: buf.String(), result: result, err: err}
}
