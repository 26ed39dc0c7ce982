package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RPCError is an RPC-specific error.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// RevertData returns the raw revert payload carried in the error's data
// field, or nil if there is none. Nodes report it either as a hex string or
// nested under an object's "data" key.
func (e *RPCError) RevertData() []byte {
	return revertFromData(e.Data)
}

func revertFromData(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if !strings.HasPrefix(s, "0x") {
			// Some nodes prefix the payload with a label, e.g. "Reverted 0x...".
			idx := strings.Index(s, "0x")
			if idx < 0 {
				return nil
			}
			s = s[idx:]
		}
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil
		}
		return b
	}
	var nested struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested.Data) > 0 {
		return revertFromData(nested.Data)
	}
	return nil
}

// RevertData extracts revert data from anywhere in err's chain.
func RevertData(err error) []byte {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.RevertData()
	}
	return nil
}

// Message returns the node-reported message from err's chain, or "" if err
// did not originate from a JSON-RPC error response.
func Message(err error) string {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Message
	}
	return ""
}

func isRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}

// HTTPStatusError represents an HTTP-level error (non-2xx status).
type HTTPStatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s (body: %s)", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsRetryable returns true if this HTTP error should be retried.
func (e *HTTPStatusError) IsRetryable() bool {
	// 429 Too Many Requests, 502 Bad Gateway, 503 Service Unavailable, 504 Gateway Timeout
	return e.StatusCode == 429 || e.StatusCode == 502 ||
		e.StatusCode == 503 || e.StatusCode == 504
}

func isRetryableHTTPError(err error) bool {
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.IsRetryable()
	}
	return false
}

func getRetryDelay(err error, defaultBackoff time.Duration) time.Duration {
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}
	return defaultBackoff
}
