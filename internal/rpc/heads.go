package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
)

// HeadSubscriber streams new block numbers from a WebSocket endpoint via
// eth_subscribe("newHeads").
type HeadSubscriber struct {
	url    string
	logger *slog.Logger
}

// NewHeadSubscriber creates a subscriber for url. An http(s) URL is
// converted to the matching ws(s) scheme.
func NewHeadSubscriber(url string, logger *slog.Logger) *HeadSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeadSubscriber{url: WSURL(url), logger: logger}
}

// WSURL converts http://host:port to ws://host:port (and https to wss).
// Other URLs are returned unchanged.
func WSURL(url string) string {
	switch {
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	return url
}

// Subscribe dials the endpoint and returns a channel of new head block
// numbers. The channel is closed when ctx is done or the connection drops.
func (s *HeadSubscriber) Subscribe(ctx context.Context) (<-chan uint64, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", s.url, err)
	}

	subscribeMsg := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "eth_subscribe",
		"params":  []string{"newHeads"},
		"id":      1,
	}
	if err := conn.WriteJSON(subscribeMsg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to newHeads: %w", err)
	}

	heads := make(chan uint64, 16)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(heads)
		for {
			var msg struct {
				Method string        `json:"method"`
				Error  *JSONRPCError `json:"error"`
				Params *struct {
					Result struct {
						Number string `json:"number"`
					} `json:"result"`
				} `json:"params"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil {
					s.logger.Debug("newHeads read error", slog.String("error", err.Error()))
				}
				return
			}
			if msg.Error != nil {
				s.logger.Warn("newHeads subscription rejected",
					slog.Int("code", msg.Error.Code),
					slog.String("message", msg.Error.Message),
				)
				return
			}
			if msg.Params == nil {
				continue
			}
			number, err := hexutil.DecodeUint64(msg.Params.Result.Number)
			if err != nil {
				continue
			}
			select {
			case heads <- number:
			case <-ctx.Done():
				return
			default:
				// Consumer only needs to know a block arrived; drop when full.
			}
		}
	}()

	return heads, nil
}
