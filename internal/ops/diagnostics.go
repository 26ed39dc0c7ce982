package ops

import (
	"context"
	"errors"
	"strings"

	"github.com/gateway-fm/poolkit/internal/console"
	"github.com/gateway-fm/poolkit/internal/revert"
	"github.com/gateway-fm/poolkit/internal/rpc"
	"github.com/gateway-fm/poolkit/internal/txsender"
)

// Error codes, named after the ethers.js error codes operators know.
const (
	CodeCallException     = "CALL_EXCEPTION"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeNonceExpired      = "NONCE_EXPIRED"
	CodeTimeout           = "TIMEOUT"
	CodeCancelled         = "CANCELLED"
	CodeServerError       = "SERVER_ERROR"
	CodeUnknown           = "UNKNOWN_ERROR"
)

// failure is what can be learned from an error returned by a call or tx.
type failure struct {
	Code       string
	Reason     string
	RPCMessage string
	Data       []byte
	Decoded    *revert.Decoded
}

func inspect(err error, dec *revert.Decoder) failure {
	f := failure{
		Code:       errorCode(err),
		RPCMessage: rpc.Message(err),
		Data:       rpc.RevertData(err),
	}
	if dec != nil {
		if d, ok := dec.Decode(f.Data); ok {
			f.Decoded = d
		}
	}

	var failed *txsender.TxFailedError
	switch {
	case f.Decoded != nil && f.Decoded.Reason != "":
		f.Reason = f.Decoded.Reason
	case f.Decoded != nil:
		f.Reason = f.Decoded.Name
	case strings.HasPrefix(f.RPCMessage, "execution reverted: "):
		f.Reason = strings.TrimPrefix(f.RPCMessage, "execution reverted: ")
	case errors.As(err, &failed) && failed.OutOfGas():
		f.Reason = "out of gas"
	}
	return f
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var failed *txsender.TxFailedError
	var rpcErr *rpc.RPCError
	var httpErr *rpc.HTTPStatusError
	switch {
	case errors.As(err, &failed):
		return CodeCallException
	case errors.Is(err, txsender.ErrReceiptTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.As(err, &rpcErr):
		msg := strings.ToLower(rpcErr.Message)
		switch {
		case rpcErr.Code == 3 || strings.Contains(msg, "revert"):
			return CodeCallException
		case strings.Contains(msg, "insufficient funds"):
			return CodeInsufficientFunds
		case strings.Contains(msg, "nonce"):
			return CodeNonceExpired
		}
		return CodeServerError
	case errors.As(err, &httpErr):
		return CodeServerError
	}
	return CodeUnknown
}

// isSTF reports whether err is the Uniswap "STF" (safe transfer failed) revert.
func isSTF(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), "STF") {
		return true
	}
	if d, ok := revert.Factory.Decode(rpc.RevertData(err)); ok && d.Reason == "STF" {
		return true
	}
	return false
}

// printRevertDetails writes the reason, RPC message and raw data of err and
// tries to decode the data against dec, falling back to reading an
// Error(string) by hand.
func printRevertDetails(out *console.Printer, err error, dec *revert.Decoder) failure {
	f := inspect(err, dec)
	if f.Reason != "" {
		out.Field("Error reason", f.Reason)
	}
	if f.RPCMessage != "" {
		out.Field("RPC error message", f.RPCMessage)
	}
	if len(f.Data) == 0 {
		return f
	}
	out.Field("Raw error data", revert.Hex(f.Data))
	if f.Decoded != nil {
		out.Field("Decoded error", f.Decoded.String())
		return f
	}
	out.Println("Could not decode error data: no matching error signature")
	if len(f.Data) >= 4 && [4]byte(f.Data[:4]) == revert.ErrorSelector {
		if msg, derr := revert.DecodeErrorString(f.Data); derr == nil {
			out.Field("Manually decoded error message", msg)
		} else {
			out.Field("Could not manually decode error data", derr.Error())
		}
	}
	return f
}
