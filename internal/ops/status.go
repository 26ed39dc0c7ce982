package ops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/poolkit/internal/config"
	"github.com/gateway-fm/poolkit/internal/erc20"
	"github.com/gateway-fm/poolkit/internal/storage"
	"github.com/gateway-fm/poolkit/internal/uniswapv3"
	"github.com/gateway-fm/poolkit/internal/units"
)

// TokenStatus describes the configured token.
type TokenStatus struct {
	Address     common.Address `json:"address"`
	Name        string         `json:"name,omitempty"`
	Symbol      string         `json:"symbol"`
	Decimals    uint8          `json:"decimals"`
	TotalSupply string         `json:"totalSupply"`
	Balance     string         `json:"balance"`
}

// PoolStatus describes the configured pool.
type PoolStatus struct {
	Address      common.Address `json:"address"`
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
	Fee          uint32         `json:"fee"`
	Initialized  bool           `json:"initialized"`
	SqrtPriceX96 string         `json:"sqrtPriceX96"`
	Price        string         `json:"price"`
	Tick         int32          `json:"tick"`
	Unlocked     bool           `json:"unlocked"`
	Liquidity    string         `json:"liquidity"`
}

// StatusResult is the outcome of Status. Sections whose addresses are not
// configured are nil.
type StatusResult struct {
	Wallet       common.Address  `json:"wallet"`
	ChainID      int64           `json:"chainId"`
	Network      string          `json:"network"`
	ETHBalance   string          `json:"ethBalance"`
	Token        *TokenStatus    `json:"token,omitempty"`
	Pool         *PoolStatus     `json:"pool,omitempty"`
	FactoryPool  *common.Address `json:"factoryPool,omitempty"`
	ExpectedPool *common.Address `json:"expectedPool,omitempty"`
}

// Status reads the wallet, token and pool state without sending anything.
func (r *Runner) Status(ctx context.Context) (*StatusResult, error) {
	wallet := r.Wallet()
	res := &StatusResult{
		Wallet:  wallet,
		ChainID: r.chainID.Int64(),
		Network: config.NetworkName(r.chainID.Int64()),
	}

	r.out.Header("Status")
	r.out.Field("Wallet Address", wallet.Hex())
	r.out.Field("Network", res.Network)
	r.out.Field("Chain ID", res.ChainID)

	balance, err := r.ethBalance(ctx, wallet)
	if err != nil {
		return nil, err
	}
	res.ETHBalance = units.FormatEther(balance)
	r.out.Field("ETH Balance", res.ETHBalance)

	if r.cfg.Token != (common.Address{}) {
		token := erc20.NewToken(r.client, r.cfg.Token)
		meta := r.tokenInfo(ctx, token)
		tb, err := token.BalanceOf(ctx, wallet)
		if err != nil {
			return nil, err
		}
		supply, err := token.TotalSupply(ctx)
		if err != nil {
			return nil, err
		}
		// name() is optional in ERC20.
		name, err := token.Name(ctx)
		if err != nil {
			r.logger.Debug("token name unavailable", slog.String("error", err.Error()))
		}
		res.Token = &TokenStatus{
			Address:     r.cfg.Token,
			Name:        name,
			Symbol:      meta.Symbol,
			Decimals:    meta.Decimals,
			TotalSupply: units.FormatUnits(supply, meta.Decimals),
			Balance:     units.FormatUnits(tb, meta.Decimals),
		}
		r.out.Block("Token Details")
		r.out.Field("Address", r.cfg.Token.Hex())
		if name != "" {
			r.out.Field("Name", name)
		}
		r.out.Field("Symbol", meta.Symbol)
		r.out.Field("Decimals", meta.Decimals)
		r.out.Field("Total supply", res.Token.TotalSupply)
		r.out.Field("Balance", res.Token.Balance)
	}

	if r.cfg.Pool != (common.Address{}) {
		ps, err := r.poolStatus(ctx)
		if err != nil {
			return nil, err
		}
		res.Pool = ps
		r.out.Block("Pool Status")
		r.out.Field("Address", ps.Address.Hex())
		r.out.Field("Token0", ps.Token0.Hex())
		r.out.Field("Token1", ps.Token1.Hex())
		r.out.Field("Fee", ps.Fee)
		if r.cfg.Token != (common.Address{}) && r.cfg.WETH != (common.Address{}) {
			want0, want1 := uniswapv3.SortTokens(r.cfg.Token, r.cfg.WETH)
			if ps.Token0 != want0 || ps.Token1 != want1 || ps.Fee != uniswapv3.DefaultFee {
				r.out.Printf("POOL_ADDRESS is not the TOKEN/WETH pool with fee %d", uniswapv3.DefaultFee)
			}
		}
		r.out.Field("Initialized", ps.Initialized)
		if ps.Initialized {
			r.out.Field("sqrtPriceX96", ps.SqrtPriceX96)
			r.out.Field("Price (token1/token0)", ps.Price)
			r.out.Field("Current tick", ps.Tick)
		}
		r.out.Field("Pool unlocked", ps.Unlocked)
		r.out.Field("Current liquidity", ps.Liquidity)
	}

	if r.cfg.Factory != (common.Address{}) && r.cfg.Token != (common.Address{}) && r.cfg.WETH != (common.Address{}) {
		factory := uniswapv3.NewFactory(r.client, r.cfg.Factory)
		pool, err := factory.GetPool(ctx, r.cfg.Token, r.cfg.WETH, uniswapv3.DefaultFee)
		if err != nil {
			return nil, err
		}
		expected := uniswapv3.ComputePoolAddress(r.cfg.Factory, r.cfg.Token, r.cfg.WETH, uniswapv3.DefaultFee)
		res.FactoryPool, res.ExpectedPool = &pool, &expected

		r.out.Block("Factory")
		if pool == (common.Address{}) {
			r.out.Field("Pool for TOKEN/WETH", "not created")
		} else {
			r.out.Field("Pool for TOKEN/WETH", pool.Hex())
		}
		r.out.Field("Expected CREATE2 address", expected.Hex())
		if r.cfg.Pool != (common.Address{}) && pool != (common.Address{}) && pool != r.cfg.Pool {
			r.out.Printf("POOL_ADDRESS (%s) does not match the factory pool", r.cfg.Pool.Hex())
		}
	}
	return res, nil
}

func (r *Runner) poolStatus(ctx context.Context) (*PoolStatus, error) {
	pool := uniswapv3.NewPool(r.client, r.cfg.Pool)
	slot0, err := pool.Slot0(ctx)
	if err != nil {
		return nil, err
	}
	liquidity, err := pool.Liquidity(ctx)
	if err != nil {
		return nil, err
	}
	token0, token1, err := pool.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	fee, err := pool.Fee(ctx)
	if err != nil {
		return nil, err
	}
	return &PoolStatus{
		Address:      r.cfg.Pool,
		Token0:       token0,
		Token1:       token1,
		Fee:          fee,
		Initialized:  slot0.Initialized(),
		SqrtPriceX96: slot0.SqrtPriceX96.String(),
		Price:        uniswapv3.PriceFromSqrtPriceX96(slot0.SqrtPriceX96, 10),
		Tick:         slot0.Tick,
		Unlocked:     slot0.Unlocked,
		Liquidity:    liquidity.String(),
	}, nil
}

// DefaultHistoryLimit bounds History when no limit is given.
const DefaultHistoryLimit = 20

// HistoryResult is the journaled activity on the current chain.
type HistoryResult struct {
	ChainID     int64                `json:"chainId"`
	Runs        []storage.Run        `json:"runs"`
	Deployments []storage.Deployment `json:"deployments"`
	Txs         []storage.TxRecord   `json:"transactions"`
}

// History lists the journaled runs, deployments and transactions for the
// current chain, newest first.
func (r *Runner) History(ctx context.Context, limit int) (*HistoryResult, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	chainID := r.chainID.Int64()
	res := &HistoryResult{ChainID: chainID}

	var err error
	if res.Runs, err = r.journal.ListRuns(ctx, chainID, limit); err != nil {
		return nil, err
	}
	if res.Deployments, err = r.journal.ListDeployments(ctx, chainID); err != nil {
		return nil, err
	}
	if res.Txs, err = r.journal.ListTxs(ctx, chainID, limit); err != nil {
		return nil, err
	}
	r.logger.Debug("history loaded",
		slog.Int("runs", len(res.Runs)),
		slog.Int("deployments", len(res.Deployments)),
		slog.Int("txs", len(res.Txs)),
	)

	r.out.Header("History for " + config.NetworkName(chainID))
	r.out.Section("Deployments")
	if len(res.Deployments) == 0 {
		r.out.Println("none")
	}
	for _, d := range res.Deployments {
		r.out.Printf("%s  %-6s %s  block %d  tx %s", d.CreatedAt.Format(timeLayout), d.Name, d.Address, d.BlockNumber, d.TxHash)
	}

	r.out.Section("Transactions")
	if len(res.Txs) == 0 {
		r.out.Println("none")
	}
	for _, tx := range res.Txs {
		line := fmt.Sprintf("%s  %-12s %-8s nonce %d  gas %d/%d", tx.SentAt.Format(timeLayout), tx.Name, tx.Status, tx.Nonce, tx.GasUsed, tx.GasLimit)
		if tx.TxHash != "" {
			line += "  tx " + tx.TxHash
		}
		if tx.ErrorReason != "" {
			line += "  error: " + tx.ErrorReason
		}
		r.out.Println(line)
	}

	r.out.Section("Runs")
	if len(res.Runs) == 0 {
		r.out.Println("none")
	}
	for _, run := range res.Runs {
		r.out.Printf("%s  %-14s %-9s %s", run.StartedAt.Format(timeLayout), run.Command, run.Status, run.ID)
	}
	return res, nil
}

const timeLayout = "2006-01-02 15:04:05"

// ErrTxNotJournaled is returned by LookupTx for a hash the journal has never seen.
var ErrTxNotJournaled = errors.New("transaction not in journal")

// TxLookup is a journaled transaction together with the run that sent it.
type TxLookup struct {
	Tx  storage.TxRecord `json:"transaction"`
	Run *storage.Run     `json:"run,omitempty"`
}

// LookupTx shows the journaled transaction with txHash and its run.
func (r *Runner) LookupTx(ctx context.Context, txHash string) (*TxLookup, error) {
	tx, err := r.journal.GetTxByHash(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("%w: %s", ErrTxNotJournaled, txHash)
	}
	res := &TxLookup{Tx: *tx}
	if tx.RunID != "" {
		if res.Run, err = r.journal.GetRun(ctx, tx.RunID); err != nil {
			return nil, err
		}
	}

	r.out.Header("Transaction " + tx.TxHash)
	r.out.Field("Name", tx.Name)
	r.out.Field("Status", tx.Status)
	r.out.Field("From", tx.From)
	if tx.To != "" {
		r.out.Field("To", tx.To)
	}
	r.out.Field("Nonce", tx.Nonce)
	r.out.Field("Gas used / limit", fmt.Sprintf("%d/%d", tx.GasUsed, tx.GasLimit))
	if tx.BlockNumber > 0 {
		r.out.Field("Block", tx.BlockNumber)
	}
	r.out.Field("Sent at", tx.SentAt.Format(timeLayout))
	if tx.ErrorReason != "" {
		r.out.Field("Error", tx.ErrorReason)
	}
	if res.Run != nil {
		r.out.Block("Run")
		r.out.Field("ID", res.Run.ID)
		r.out.Field("Command", res.Run.Command)
		r.out.Field("Status", res.Run.Status)
		r.out.Field("Started at", res.Run.StartedAt.Format(timeLayout))
		if res.Run.ErrorMessage != "" {
			r.out.Field("Error", res.Run.ErrorMessage)
		}
	}
	return res, nil
}
