// Poolkit MCP server.
// Exposes poolkit operations as tools over MCP stdio transport.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gateway-fm/poolkit/internal/config"
	mcptools "github.com/gateway-fm/poolkit/internal/mcp"
	"github.com/gateway-fm/poolkit/internal/metrics"
)

func main() {
	env := config.Environ()
	cfg, err := config.LoadWith(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	// stdout carries the MCP protocol, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	s := server.NewMCPServer(
		"poolkit",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	backend := mcptools.NewBackend(mcptools.EnvConnector(env, logger, metrics.NewPrometheusMetrics()), logger)
	mcptools.RegisterTools(s, backend)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
