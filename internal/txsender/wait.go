package txsender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gateway-fm/poolkit/internal/rpc"
)

var errPending = errors.New("receipt not available yet")

// rpcLimitExceeded is the JSON-RPC code hosted nodes use for rate limiting.
const rpcLimitExceeded = -32005

// isPermanent reports whether a receipt lookup error will not go away by
// asking again. Transport failures and rate limits are retried.
func isPermanent(err error) bool {
	var rpcErr *rpc.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code != rpcLimitExceeded
}

// Wait blocks until tx is mined. A receipt with status 0 yields a
// *TxFailedError carrying the replayed revert.
func (s *Sender) Wait(ctx context.Context, name string, tx *types.Transaction) (*rpc.TransactionReceipt, error) {
	txHash := tx.Hash().Hex()
	start := time.Now()

	receipt, err := s.waitForReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if receipt.Status == 0 {
		failed := &TxFailedError{
			Name:        name,
			TxHash:      txHash,
			GasUsed:     receipt.GasUsed,
			GasLimit:    tx.Gas(),
			BlockNumber: receipt.BlockNumber,
			Replay:      s.replay(ctx, tx, receipt.BlockNumber),
		}
		return receipt, failed
	}

	s.logger.Debug("TX confirmed",
		slog.String("name", name),
		slog.String("txHash", txHash),
		slog.Uint64("block", receipt.BlockNumber),
		slog.Uint64("gasUsed", receipt.GasUsed),
		slog.Duration("wait", time.Since(start)),
	)
	return receipt, nil
}

func (s *Sender) waitForReceipt(ctx context.Context, txHash string) (*rpc.TransactionReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReceiptTimeout)
	defer cancel()

	fetch := func() (*rpc.TransactionReceipt, error) {
		receipt, err := s.client.GetTransactionReceipt(ctx, txHash)
		if err != nil {
			s.logger.Debug("Error getting receipt", slog.String("error", err.Error()))
			if isPermanent(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if receipt == nil {
			return nil, errPending
		}
		return receipt, nil
	}

	var receipt *rpc.TransactionReceipt
	var err error
	if s.cfg.Heads != nil {
		receipt, err = s.waitWithHeads(ctx, fetch)
	} else {
		receipt, err = s.poll(ctx, fetch)
	}
	if err == nil {
		return receipt, nil
	}
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s (txHash: %s)", ErrReceiptTimeout, s.cfg.ReceiptTimeout, txHash)
	}
	return nil, err
}

// poll fetches with exponential backoff until a receipt appears or ctx ends.
func (s *Sender) poll(ctx context.Context, fetch func() (*rpc.TransactionReceipt, error)) (*rpc.TransactionReceipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.PollInterval
	b.MaxInterval = s.cfg.MaxPollInterval
	b.MaxElapsedTime = 0 // bounded by ctx

	receipt, err := backoff.RetryWithData(fetch, backoff.WithContext(b, ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return receipt, nil
}

// waitWithHeads checks for the receipt on every new block, with a slow poll
// as a fallback. Subscription failure degrades to plain polling.
func (s *Sender) waitWithHeads(ctx context.Context, fetch func() (*rpc.TransactionReceipt, error)) (*rpc.TransactionReceipt, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	heads, err := s.cfg.Heads.Subscribe(subCtx)
	if err != nil {
		s.logger.Warn("newHeads subscription failed, polling instead", slog.String("error", err.Error()))
		return s.poll(ctx, fetch)
	}

	ticker := time.NewTicker(s.cfg.MaxPollInterval)
	defer ticker.Stop()

	// check yields a receipt, or an error only when waiting must stop.
	check := func() (*rpc.TransactionReceipt, error) {
		receipt, err := fetch()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		if err != nil {
			return nil, nil
		}
		return receipt, nil
	}

	// The tx may already be mined.
	if receipt, err := check(); receipt != nil || err != nil {
		return receipt, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case _, open := <-heads:
			if !open {
				s.logger.Debug("newHeads stream closed, polling instead")
				return s.poll(ctx, fetch)
			}
			if receipt, err := check(); receipt != nil || err != nil {
				return receipt, err
			}
		case <-ticker.C:
			if receipt, err := check(); receipt != nil || err != nil {
				return receipt, err
			}
		}
	}
}

// replay re-executes a failed tx as eth_call on the parent of its block to
// recover the revert reason.
func (s *Sender) replay(ctx context.Context, tx *types.Transaction, blockNumber uint64) error {
	block := "latest"
	if blockNumber > 0 {
		block = hexutil.EncodeUint64(blockNumber - 1)
	}
	msg := rpc.CallMsg{
		From:  s.acc.Address,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err := s.client.EthCall(ctx, msg, block)
	if err != nil {
		s.logger.Debug("replayed failed tx",
			slog.String("txHash", tx.Hash().Hex()),
			slog.String("error", err.Error()),
		)
	}
	return err
}
