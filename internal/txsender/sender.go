// Package txsender builds, signs and sends transactions from a single
// account and waits for their receipts.
package txsender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gateway-fm/poolkit/internal/account"
	"github.com/gateway-fm/poolkit/internal/rpc"
	"github.com/gateway-fm/poolkit/internal/units"
)

// FeeConfig sets the default fee caps. Nil caps are derived from the node's gas price.
type FeeConfig struct {
	GasTipCap *big.Int
	GasFeeCap *big.Int
	UseLegacy bool // Use legacy (type 0) transactions instead of EIP-1559
}

// HeadSource streams new block numbers. rpc.HeadSubscriber satisfies it.
type HeadSource interface {
	Subscribe(ctx context.Context) (<-chan uint64, error)
}

// Config configures a Sender.
type Config struct {
	ChainID *big.Int
	Fees    FeeConfig

	// GasMultiplier pads estimated gas limits. Zero means 1.2.
	GasMultiplier float64

	ReceiptTimeout  time.Duration
	PollInterval    time.Duration
	MaxPollInterval time.Duration

	// Heads, if set, is used to check for receipts as soon as a block
	// arrives. Polling continues alongside at MaxPollInterval.
	Heads HeadSource

	Logger *slog.Logger
}

// DefaultConfig returns defaults for chainID.
func DefaultConfig(chainID *big.Int) Config {
	return Config{
		ChainID:         chainID,
		GasMultiplier:   1.2,
		ReceiptTimeout:  2 * time.Minute,
		PollInterval:    500 * time.Millisecond,
		MaxPollInterval: 4 * time.Second,
	}
}

// TxOpts overrides per-transaction parameters. Zero values fall back to
// estimation and the sender's FeeConfig.
type TxOpts struct {
	GasLimit  uint64
	Value     *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// Sender sends transactions from one account.
type Sender struct {
	client rpc.Client
	acc    *account.Account
	cfg    Config
	logger *slog.Logger
}

// New creates a Sender.
func New(client rpc.Client, acc *account.Account, cfg Config) *Sender {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GasMultiplier <= 0 {
		cfg.GasMultiplier = 1.2
	}
	def := DefaultConfig(cfg.ChainID)
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = def.ReceiptTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxPollInterval <= 0 {
		cfg.MaxPollInterval = def.MaxPollInterval
	}
	return &Sender{client: client, acc: acc, cfg: cfg, logger: logger}
}

// From returns the sending address.
func (s *Sender) From() common.Address {
	return s.acc.Address
}

// Call simulates a call from the sender's account against the latest block.
func (s *Sender) Call(ctx context.Context, to common.Address, data []byte, value *big.Int) ([]byte, error) {
	return s.client.EthCall(ctx, rpc.CallMsg{From: s.acc.Address, To: &to, Data: data, Value: value}, "latest")
}

// Send builds, signs and broadcasts a transaction. to == nil creates a contract.
func (s *Sender) Send(ctx context.Context, to *common.Address, data []byte, opts TxOpts) (*types.Transaction, error) {
	value := opts.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		estimated, err := s.client.EstimateGas(ctx, rpc.CallMsg{From: s.acc.Address, To: to, Value: value, Data: data})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		gasLimit = uint64(float64(estimated) * s.cfg.GasMultiplier)
	}

	tipCap, feeCap, err := s.fees(ctx, opts)
	if err != nil {
		return nil, err
	}

	nonce, err := s.acc.ReserveNonce(ctx, s.client)
	if err != nil {
		return nil, err
	}
	defer nonce.Rollback()

	tx := s.buildTx(nonce.Value(), to, value, gasLimit, tipCap, feeCap, data)
	signed, err := s.acc.Sign(tx, s.cfg.ChainID)
	if err != nil {
		return nil, err
	}

	rawTx, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode tx: %w", err)
	}
	if _, err := s.client.SendRawTransaction(ctx, rawTx); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "nonce too low") {
			nonce.Rollback()
			if rerr := s.acc.Resync(ctx, s.client); rerr != nil {
				s.logger.Warn("nonce resync failed", slog.String("error", rerr.Error()))
			} else {
				s.logger.Info("nonce resynced", slog.Uint64("next", s.acc.PeekNonce()))
			}
		}
		return nil, fmt.Errorf("send tx: %w", err)
	}
	nonce.Commit()

	s.logger.Debug("tx sent",
		slog.String("txHash", signed.Hash().Hex()),
		slog.Uint64("nonce", signed.Nonce()),
		slog.Uint64("gas", signed.Gas()),
		slog.String("feeCapGwei", units.FormatGwei(signed.GasFeeCap())),
		slog.String("tipCapGwei", units.FormatGwei(signed.GasTipCap())),
	)
	return signed, nil
}

// buildTx creates either a DynamicFeeTx or LegacyTx depending on UseLegacy.
// For legacy transactions, feeCap is used as the gas price.
func (s *Sender) buildTx(nonce uint64, to *common.Address, value *big.Int, gasLimit uint64, tipCap, feeCap *big.Int, data []byte) *types.Transaction {
	if s.cfg.Fees.UseLegacy {
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: feeCap,
			Gas:      gasLimit,
			To:       to,
			Value:    value,
			Data:     data,
		})
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        to,
		Value:     value,
		Data:      data,
	})
}

// fees resolves tip and fee caps: per-tx opts, then FeeConfig, then the node.
func (s *Sender) fees(ctx context.Context, opts TxOpts) (*big.Int, *big.Int, error) {
	tipCap := firstNonNil(opts.GasTipCap, s.cfg.Fees.GasTipCap)
	feeCap := firstNonNil(opts.GasFeeCap, s.cfg.Fees.GasFeeCap)

	if feeCap == nil {
		gasPrice, err := s.client.GetGasPrice(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("get gas price: %w", err)
		}
		if s.cfg.Fees.UseLegacy {
			feeCap = gasPrice
		} else {
			// Headroom for base fee increases while the tx is pending
			feeCap = new(big.Int).Mul(gasPrice, big.NewInt(2))
		}
	}
	if tipCap == nil {
		tipCap = big.NewInt(0)
	}
	if tipCap.Cmp(feeCap) > 0 {
		s.logger.Warn("tip cap above fee cap, clamping",
			slog.String("tipCap", tipCap.String()),
			slog.String("feeCap", feeCap.String()),
		)
		tipCap = new(big.Int).Set(feeCap)
	}
	return tipCap, feeCap, nil
}

func firstNonNil(vals ...*big.Int) *big.Int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// Result is a mined transaction.
type Result struct {
	Tx      *types.Transaction
	Receipt *rpc.TransactionReceipt
}

// Hash returns the transaction hash.
func (r *Result) Hash() string {
	return r.Tx.Hash().Hex()
}

// Transact sends a transaction and waits for a successful receipt.
func (s *Sender) Transact(ctx context.Context, name string, to *common.Address, data []byte, opts TxOpts) (*Result, error) {
	tx, err := s.Send(ctx, to, data, opts)
	if err != nil {
		return nil, err
	}
	receipt, err := s.Wait(ctx, name, tx)
	if err != nil {
		return &Result{Tx: tx, Receipt: receipt}, err
	}
	return &Result{Tx: tx, Receipt: receipt}, nil
}

// Deploy sends a contract creation transaction and waits until code is
// present at the new address.
func (s *Sender) Deploy(ctx context.Context, name string, bytecode []byte, opts TxOpts) (common.Address, *Result, error) {
	res, err := s.Transact(ctx, name, nil, bytecode, opts)
	if err != nil {
		return common.Address{}, res, err
	}

	addr := crypto.CreateAddress(s.acc.Address, res.Tx.Nonce())
	if res.Receipt.ContractAddress != "" {
		addr = common.HexToAddress(res.Receipt.ContractAddress)
	}

	code, err := s.client.GetCode(ctx, addr.Hex())
	if err != nil {
		return addr, res, fmt.Errorf("get code at %s: %w", addr.Hex(), err)
	}
	if code == "" || code == "0x" {
		return addr, res, fmt.Errorf("%s deployment left no code at %s (txHash=%s)", name, addr.Hex(), res.Hash())
	}

	s.logger.Info("Contract deployed",
		slog.String("name", name),
		slog.String("address", addr.Hex()),
		slog.Uint64("gasUsed", res.Receipt.GasUsed),
	)
	return addr, res, nil
}

// ErrReceiptTimeout is returned when no receipt arrives within ReceiptTimeout.
var ErrReceiptTimeout = errors.New("timeout waiting for receipt")

// TxFailedError is returned for a mined transaction with status 0.
type TxFailedError struct {
	Name        string
	TxHash      string
	GasUsed     uint64
	GasLimit    uint64
	BlockNumber uint64

	// Replay holds the error from re-running the transaction as eth_call,
	// which is where the revert reason and data come from.
	Replay error
}

func (e *TxFailedError) Error() string {
	msg := fmt.Sprintf("%s tx failed (status=0, gasUsed=%d, txHash=%s)", e.Name, e.GasUsed, e.TxHash)
	if e.OutOfGas() {
		msg += ": out of gas"
	} else if reason := rpc.Message(e.Replay); reason != "" {
		msg += ": " + reason
	}
	return msg
}

// Unwrap exposes the replay error so rpc.RevertData can reach it.
func (e *TxFailedError) Unwrap() error {
	return e.Replay
}

// RevertData returns the revert payload recovered by replay, if any.
func (e *TxFailedError) RevertData() []byte {
	return rpc.RevertData(e.Replay)
}

// OutOfGas reports whether the transaction consumed its whole gas limit.
func (e *TxFailedError) OutOfGas() bool {
	return e.GasLimit > 0 && e.GasUsed >= e.GasLimit
}
