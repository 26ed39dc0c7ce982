package ops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/gateway-fm/poolkit/internal/account"
	"github.com/gateway-fm/poolkit/internal/config"
	"github.com/gateway-fm/poolkit/internal/console"
	"github.com/gateway-fm/poolkit/internal/metrics"
	"github.com/gateway-fm/poolkit/internal/rpc"
	"github.com/gateway-fm/poolkit/internal/storage"
	"github.com/gateway-fm/poolkit/internal/txsender"
)

// Options are the optional collaborators of Connect.
type Options struct {
	Out     io.Writer // nil discards console output
	Logger  *slog.Logger
	Metrics *metrics.PrometheusMetrics
	// Journal overrides opening cfg.JournalPath.
	Journal storage.Journal
}

// Connect dials cfg.RPCURL, loads the wallet, resolves the chain id and
// opens the journal. The caller must Close the returned Runner.
func Connect(ctx context.Context, cfg *config.Config, opts Options) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := rpc.DefaultClientConfig(cfg.RPCURL)
	clientCfg.Logger = logger
	if opts.Metrics != nil {
		clientCfg.OnCall = opts.Metrics.RecordRPC
	}
	client := rpc.NewHTTPClient(clientCfg)

	acc, err := account.NewAccountFromHex(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID from %s: %w", cfg.RPCURL, err)
	}
	switch {
	case cfg.ChainID == 0:
		cfg.ChainID = chainID.Int64()
		cfg.ApplyDeploymentDefaults()
	case cfg.ChainID != chainID.Int64():
		logger.Warn("node chain id differs from configuration",
			slog.Int64("configured", cfg.ChainID),
			slog.String("node", chainID.String()),
		)
	}
	logger.Debug("connected",
		slog.String("rpc", cfg.RPCURL),
		slog.String("chainID", chainID.String()),
		slog.String("account", acc.Address.Hex()),
	)

	sender := txsender.New(client, acc, senderConfig(cfg, chainID, logger))

	journal := opts.Journal
	if journal == nil {
		journal, err = storage.Open(cfg.JournalPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
	}

	r := NewRunner(Deps{
		Client:  client,
		Sender:  sender,
		Config:  cfg,
		ChainID: chainID,
		Out:     console.New(opts.Out),
		Journal: journal,
		Metrics: opts.Metrics,
		Logger:  logger,
	})
	r.fillFromJournal(ctx)
	return r, nil
}

func senderConfig(cfg *config.Config, chainID *big.Int, logger *slog.Logger) txsender.Config {
	sc := txsender.DefaultConfig(chainID)
	sc.Fees = txsender.FeeConfig{
		GasTipCap: cfg.GasTipCap,
		GasFeeCap: cfg.GasFeeCap,
		UseLegacy: cfg.UseLegacy,
	}
	if cfg.WSURL != "" {
		sc.Heads = rpc.NewHeadSubscriber(cfg.WSURL, logger)
	}
	sc.Logger = logger
	return sc
}
