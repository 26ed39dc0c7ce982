// Package ops implements the poolkit operations: deploy, create-pool,
// init-pool, transfer, add-liquidity, status and history.
package ops

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gateway-fm/poolkit/internal/config"
	"github.com/gateway-fm/poolkit/internal/console"
	"github.com/gateway-fm/poolkit/internal/metrics"
	"github.com/gateway-fm/poolkit/internal/rpc"
	"github.com/gateway-fm/poolkit/internal/storage"
	"github.com/gateway-fm/poolkit/internal/txsender"
)

// Deps are the collaborators of a Runner. Journal, Metrics, Logger and Now
// are optional.
type Deps struct {
	Client  rpc.Client
	Sender  *txsender.Sender
	Config  *config.Config
	ChainID *big.Int
	Out     *console.Printer
	Journal storage.Journal
	Metrics *metrics.PrometheusMetrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Runner executes operations against one chain from one account.
type Runner struct {
	client  rpc.Client
	sender  *txsender.Sender
	cfg     *config.Config
	chainID *big.Int
	out     *console.Printer
	journal storage.Journal
	metrics *metrics.PrometheusMetrics
	logger  *slog.Logger
	now     func() time.Time

	runID string
}

// NewRunner creates a Runner.
func NewRunner(d Deps) *Runner {
	r := &Runner{
		client:  d.Client,
		sender:  d.Sender,
		cfg:     d.Config,
		chainID: d.ChainID,
		out:     d.Out,
		journal: d.Journal,
		metrics: d.Metrics,
		logger:  d.Logger,
		now:     d.Now,
	}
	if r.out == nil {
		r.out = console.New(nil)
	}
	if r.journal == nil {
		r.journal = storage.Nop{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.cfg == nil {
		r.cfg = &config.Config{}
	}
	return r
}

// Wallet returns the sending address.
func (r *Runner) Wallet() common.Address {
	return r.sender.From()
}

// ChainID returns the chain id reported by the node.
func (r *Runner) ChainID() *big.Int {
	return new(big.Int).Set(r.chainID)
}

// Config returns the runner's configuration.
func (r *Runner) Config() *config.Config {
	return r.cfg
}

// Metrics returns the metrics sink, which may be nil.
func (r *Runner) Metrics() *metrics.PrometheusMetrics {
	return r.metrics
}

// Close releases the journal.
func (r *Runner) Close() error {
	return r.journal.Close()
}

// Run executes fn as a journaled run of command.
func (r *Runner) Run(ctx context.Context, command string, fn func(context.Context) error) error {
	start := r.now()
	run := storage.NewRun(command, r.chainID.Int64(), r.Wallet().Hex())
	if err := r.journal.StartRun(ctx, run); err != nil {
		r.logger.Warn("journal: failed to start run", slog.String("command", command), slog.String("error", err.Error()))
	} else {
		r.runID = run.ID
	}

	err := fn(ctx)

	if r.runID != "" {
		if jerr := r.journal.CompleteRun(context.WithoutCancel(ctx), r.runID, err); jerr != nil {
			r.logger.Warn("journal: failed to complete run", slog.String("runID", r.runID), slog.String("error", jerr.Error()))
		}
	}
	r.runID = ""
	r.metrics.RecordRun(command, r.now().Sub(start), err)
	return err
}

// txRequest describes one state-changing call.
type txRequest struct {
	name      string
	to        common.Address
	data      []byte
	opts      txsender.TxOpts
	sentLabel string // printed with the hash once broadcast
	waitMsg   string // printed after sentLabel
}

// transact sends req, waits for it, and records the outcome.
func (r *Runner) transact(ctx context.Context, req txRequest) (*txsender.Result, error) {
	start := r.now()
	tx, err := r.sender.Send(ctx, &req.to, req.data, req.opts)
	if err != nil {
		r.recordTx(ctx, req.name, start, nil, nil, err)
		return nil, err
	}
	if req.sentLabel != "" {
		r.out.Field(req.sentLabel, tx.Hash().Hex())
	}
	if req.waitMsg != "" {
		r.out.Println(req.waitMsg)
	}

	receipt, err := r.sender.Wait(ctx, req.name, tx)
	r.recordTx(ctx, req.name, start, tx, receipt, err)
	return &txsender.Result{Tx: tx, Receipt: receipt}, err
}

// deploy creates a contract and journals it under kind.
func (r *Runner) deploy(ctx context.Context, name, kind string, bytecode []byte) (common.Address, *txsender.Result, error) {
	start := r.now()
	addr, res, err := r.sender.Deploy(ctx, name, bytecode, txsender.TxOpts{})
	var tx *types.Transaction
	var receipt *rpc.TransactionReceipt
	if res != nil {
		tx, receipt = res.Tx, res.Receipt
	}
	r.recordTx(ctx, name, start, tx, receipt, err)
	if err != nil {
		return addr, res, err
	}
	r.recordDeployment(ctx, kind, addr, res)
	return addr, res, nil
}

func (r *Runner) recordDeployment(ctx context.Context, kind string, addr common.Address, res *txsender.Result) {
	if r.runID == "" {
		return
	}
	d := &storage.Deployment{
		RunID:   r.runID,
		ChainID: r.chainID.Int64(),
		Name:    kind,
		Address: addr.Hex(),
	}
	if res != nil {
		d.TxHash = res.Hash()
		if res.Receipt != nil {
			d.BlockNumber = res.Receipt.BlockNumber
		}
	}
	if err := r.journal.RecordDeployment(ctx, d); err != nil {
		r.logger.Warn("journal: failed to record deployment", slog.String("address", addr.Hex()), slog.String("error", err.Error()))
	}
}

// fillFromJournal sets the token and pool addresses missing from the
// configuration to the latest ones journaled on this chain.
func (r *Runner) fillFromJournal(ctx context.Context) {
	for _, f := range []struct {
		kind string
		addr *common.Address
	}{
		{"token", &r.cfg.Token},
		{"pool", &r.cfg.Pool},
	} {
		if *f.addr != (common.Address{}) {
			continue
		}
		d, err := r.journal.LatestDeployment(ctx, r.chainID.Int64(), f.kind)
		if err != nil {
			r.logger.Warn("journal: failed to look up deployment", slog.String("kind", f.kind), slog.String("error", err.Error()))
			continue
		}
		if d == nil || !common.IsHexAddress(d.Address) {
			continue
		}
		*f.addr = common.HexToAddress(d.Address)
		r.logger.Info("using journaled address",
			slog.String("kind", f.kind),
			slog.String("address", d.Address),
			slog.String("runID", d.RunID),
		)
	}
}

func (r *Runner) recordTx(ctx context.Context, name string, start time.Time, tx *types.Transaction, receipt *rpc.TransactionReceipt, err error) {
	status := metrics.TxSuccess
	var failed *txsender.TxFailedError
	switch {
	case err == nil:
	case errors.As(err, &failed):
		status = metrics.TxReverted
	default:
		status = metrics.TxFailed
	}

	var gasUsed uint64
	if receipt != nil {
		gasUsed = receipt.GasUsed
	}
	r.metrics.RecordTx(name, status, gasUsed, r.now().Sub(start))
	if err != nil {
		r.metrics.RecordError(inspect(err, nil).Code)
	}

	if r.runID == "" {
		return
	}
	rec := &storage.TxRecord{
		RunID:   r.runID,
		ChainID: r.chainID.Int64(),
		Name:    name,
		From:    r.Wallet().Hex(),
		Status:  status,
		SentAt:  start.UTC(),
	}
	if tx != nil {
		rec.TxHash = tx.Hash().Hex()
		rec.Nonce = tx.Nonce()
		rec.GasLimit = tx.Gas()
		if tx.To() != nil {
			rec.To = tx.To().Hex()
		}
	}
	if receipt != nil {
		rec.GasUsed = receipt.GasUsed
		rec.BlockNumber = receipt.BlockNumber
	}
	if err != nil {
		rec.ErrorReason = err.Error()
	}
	if jerr := r.journal.RecordTx(ctx, rec); jerr != nil {
		r.logger.Warn("journal: failed to record tx", slog.String("name", name), slog.String("error", jerr.Error()))
	}
}

func (r *Runner) ethBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return r.client.GetBalance(ctx, addr.Hex())
}
