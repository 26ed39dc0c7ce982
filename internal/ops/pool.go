package ops

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/poolkit/internal/config"
	"github.com/gateway-fm/poolkit/internal/revert"
	"github.com/gateway-fm/poolkit/internal/txsender"
	"github.com/gateway-fm/poolkit/internal/uniswapv3"
	"github.com/gateway-fm/poolkit/internal/units"
)

// createPool fee caps and gas limit, applied unless GAS_* is configured.
var (
	createPoolFeeCap = units.MustParse("0.1", units.GweiDecimals)
	createPoolTipCap = units.MustParse("0.05", units.GweiDecimals)
)

const createPoolGas = 300_000

// CreatePoolOptions configures CreatePool.
type CreatePoolOptions struct {
	Fee      uint32 // zero means uniswapv3.DefaultFee
	WriteEnv bool   // store POOL_ADDRESS in the env file
}

// CreatePoolResult is the outcome of CreatePool.
type CreatePoolResult struct {
	Pool        common.Address `json:"pool"`
	Created     bool           `json:"created"`
	TxHash      string         `json:"txHash,omitempty"`
	BlockNumber uint64         `json:"blockNumber,omitempty"`
}

// CreatePool creates the TOKEN/WETH pool through the factory unless it
// already exists.
func (r *Runner) CreatePool(ctx context.Context, opts CreatePoolOptions) (*CreatePoolResult, error) {
	if err := r.cfg.Validate(config.NeedToken, config.NeedWETH, config.NeedFactory); err != nil {
		return nil, err
	}
	fee := opts.Fee
	if fee == 0 {
		fee = uniswapv3.DefaultFee
	}

	res, err := r.createPool(ctx, fee)
	if err != nil {
		r.out.Block("Error Occurred")
		r.out.Field("Error", err.Error())
		printRevertDetails(r.out, err, revert.Factory)
		return nil, err
	}
	if opts.WriteEnv {
		if err := r.writeEnv("POOL_ADDRESS", res.Pool.Hex()); err != nil {
			return res, err
		}
	}
	r.cfg.Pool = res.Pool
	return res, nil
}

func (r *Runner) createPool(ctx context.Context, fee uint32) (*CreatePoolResult, error) {
	r.out.Header("Pool Creation Process")
	r.out.Field("Wallet Address", r.Wallet().Hex())

	balance, err := r.ethBalance(ctx, r.Wallet())
	if err != nil {
		return nil, fmt.Errorf("get ETH balance: %w", err)
	}
	r.out.Printf("ETH Balance: %s ETH", units.FormatEther(balance))

	r.out.Println("\nConnecting to Uniswap Factory...")
	factory := uniswapv3.NewFactory(r.client, r.cfg.Factory)

	r.out.Println("Checking if pool exists...")
	existing, err := factory.GetPool(ctx, r.cfg.Token, r.cfg.WETH, fee)
	if err != nil {
		return nil, err
	}
	if existing != (common.Address{}) {
		r.printPoolAddress("Pool already exists at", existing)
		return &CreatePoolResult{Pool: existing}, nil
	}

	r.out.Println("Creating new pool...")
	txOpts := txsender.TxOpts{
		GasLimit:  createPoolGas,
		GasFeeCap: firstSet(r.cfg.GasFeeCap, createPoolFeeCap),
		GasTipCap: firstSet(r.cfg.GasTipCap, createPoolTipCap),
	}
	res, err := r.transact(ctx, txRequest{
		name:      "createPool",
		to:        r.cfg.Factory,
		data:      uniswapv3.EncodeCreatePool(r.cfg.Token, r.cfg.WETH, fee),
		opts:      txOpts,
		sentLabel: "Transaction sent! Hash",
		waitMsg:   "Waiting for confirmation...",
	})
	if err != nil {
		return nil, err
	}
	r.out.Field("Pool creation confirmed in block", res.Receipt.BlockNumber)

	pool, err := factory.GetPool(ctx, r.cfg.Token, r.cfg.WETH, fee)
	if err != nil {
		return nil, err
	}
	if pool == (common.Address{}) {
		return nil, fmt.Errorf("factory returned no pool after createPool (txHash=%s)", res.Hash())
	}
	if expected := uniswapv3.ComputePoolAddress(r.cfg.Factory, r.cfg.Token, r.cfg.WETH, fee); expected != pool {
		r.logger.Debug("pool address differs from canonical CREATE2 derivation",
			slog.String("pool", pool.Hex()),
			slog.String("expected", expected.Hex()),
		)
	}
	r.printPoolAddress("New pool created at", pool)
	r.recordDeployment(ctx, "pool", pool, res)

	if final, err := r.ethBalance(ctx, r.Wallet()); err == nil {
		r.out.Printf("\nFinal ETH Balance: %s ETH", units.FormatEther(final))
	}

	return &CreatePoolResult{
		Pool:        pool,
		Created:     true,
		TxHash:      res.Hash(),
		BlockNumber: res.Receipt.BlockNumber,
	}, nil
}

func (r *Runner) printPoolAddress(label string, pool common.Address) {
	envFile := r.cfg.EnvFile
	if envFile == "" {
		envFile = config.DefaultEnvFile
	}
	r.out.Println("\n====== IMPORTANT ======")
	r.out.Field(label, pool.Hex())
	r.out.Printf("\n⚠️ YOU MUST UPDATE YOUR %s FILE WITH THIS ADDRESS:", envFile)
	r.out.Printf("POOL_ADDRESS=%s", pool.Hex())
	r.out.Println("===============================")
}

func firstSet(vals ...*big.Int) *big.Int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// InitPoolOptions configures InitPool. At most one of SqrtPriceX96 and
// Price may be set; neither means a 1:1 price.
type InitPoolOptions struct {
	SqrtPriceX96 *big.Int
	Price        string // token1 per token0 in raw units, e.g. "2500"
}

// InitPoolResult is the outcome of InitPool.
type InitPoolResult struct {
	Pool               common.Address `json:"pool"`
	AlreadyInitialized bool           `json:"alreadyInitialized"`
	TxHash             string         `json:"txHash,omitempty"`
	BlockNumber        uint64         `json:"blockNumber,omitempty"`
	SqrtPriceX96       string         `json:"sqrtPriceX96"`
	Tick               int32          `json:"tick"`
}

// InitPool sets the initial price of the pool.
func (r *Runner) InitPool(ctx context.Context, opts InitPoolOptions) (*InitPoolResult, error) {
	if err := r.cfg.Validate(config.NeedPool); err != nil {
		return nil, err
	}
	sqrtPrice, label, err := initialPrice(opts)
	if err != nil {
		return nil, err
	}

	r.out.Printf("Using pool address: %s", r.cfg.Pool.Hex())
	res, err := r.initPool(ctx, sqrtPrice, label)
	if err != nil {
		f := inspect(err, revert.Factory)
		if f.Reason != "" {
			r.out.Field("Error reason", f.Reason)
		} else {
			r.out.Field("Error", err.Error())
		}
		return nil, err
	}
	return res, nil
}

func initialPrice(opts InitPoolOptions) (*big.Int, string, error) {
	switch {
	case opts.SqrtPriceX96 != nil && opts.Price != "":
		return nil, "", fmt.Errorf("set either a price or a sqrtPriceX96, not both")
	case opts.SqrtPriceX96 != nil:
		if opts.SqrtPriceX96.Sign() <= 0 {
			return nil, "", fmt.Errorf("sqrtPriceX96 must be positive")
		}
		return opts.SqrtPriceX96, "sqrtPriceX96 " + opts.SqrtPriceX96.String(), nil
	case opts.Price != "":
		v, err := uniswapv3.SqrtPriceX96FromPrice(opts.Price)
		if err != nil {
			return nil, "", err
		}
		return v, "price " + opts.Price, nil
	}
	return new(big.Int).Set(uniswapv3.DefaultSqrtPriceX96), "price 1:1", nil
}

func (r *Runner) initPool(ctx context.Context, sqrtPrice *big.Int, label string) (*InitPoolResult, error) {
	r.out.Println("Connecting to pool...")
	pool := uniswapv3.NewPool(r.client, r.cfg.Pool)

	// A pool that already has a price rejects initialize with "AI".
	if slot0, err := pool.Slot0(ctx); err == nil && slot0.Initialized() {
		r.out.Printf("Pool already initialized with sqrtPrice: %s", slot0.SqrtPriceX96)
		return &InitPoolResult{
			Pool:               r.cfg.Pool,
			AlreadyInitialized: true,
			SqrtPriceX96:       slot0.SqrtPriceX96.String(),
			Tick:               slot0.Tick,
		}, nil
	}

	r.out.Printf("Initializing pool with %s...", label)
	res, err := r.transact(ctx, txRequest{
		name:      "initialize",
		to:        r.cfg.Pool,
		data:      uniswapv3.EncodeInitialize(sqrtPrice),
		sentLabel: "Transaction sent! Hash",
		waitMsg:   "Waiting for confirmation...",
	})
	if err != nil {
		return nil, err
	}
	r.out.Field("Pool initialization confirmed in block", res.Receipt.BlockNumber)

	slot0, err := pool.Slot0(ctx)
	if err != nil {
		return nil, err
	}
	r.out.Printf("\nPool initialized with sqrtPrice: %s", slot0.SqrtPriceX96)

	return &InitPoolResult{
		Pool:         r.cfg.Pool,
		TxHash:       res.Hash(),
		BlockNumber:  res.Receipt.BlockNumber,
		SqrtPriceX96: slot0.SqrtPriceX96.String(),
		Tick:         slot0.Tick,
	}, nil
}
