package ops

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/poolkit/internal/config"
	"github.com/gateway-fm/poolkit/internal/erc20"
	"github.com/gateway-fm/poolkit/internal/revert"
	"github.com/gateway-fm/poolkit/internal/txsender"
	"github.com/gateway-fm/poolkit/internal/uniswapv3"
	"github.com/gateway-fm/poolkit/internal/units"
)

// Add-liquidity defaults.
const (
	DefaultLiquidityAmount = "0.0001"
	DefaultApprovalAmount  = "2.0"
	DefaultDeadline        = time.Hour
)

// Default position range, one tick spacing either side of price 1:1 at the
// 0.3% fee tier.
const (
	DefaultTickLower int32 = -60
	DefaultTickUpper int32 = 60
)

const mintGas = 500_000

// AddLiquidityOptions configures AddLiquidity. Empty strings, a zero fee,
// nil ticks and a zero deadline take the defaults above. Amounts are in
// ether units.
type AddLiquidityOptions struct {
	Amount    string
	Approve   string
	Fee       uint32
	TickLower *int32
	TickUpper *int32
	Deadline  time.Duration
}

func (o AddLiquidityOptions) withDefaults() AddLiquidityOptions {
	if o.Amount == "" {
		o.Amount = DefaultLiquidityAmount
	}
	if o.Approve == "" {
		o.Approve = DefaultApprovalAmount
	}
	if o.Fee == 0 {
		o.Fee = uniswapv3.DefaultFee
	}
	if o.TickLower == nil {
		lower := DefaultTickLower
		o.TickLower = &lower
	}
	if o.TickUpper == nil {
		upper := DefaultTickUpper
		o.TickUpper = &upper
	}
	if o.Deadline <= 0 {
		o.Deadline = DefaultDeadline
	}
	return o
}

// AddLiquidityResult is the outcome of AddLiquidity.
type AddLiquidityResult struct {
	Params       uniswapv3.MintParams  `json:"params"`
	Simulated    *uniswapv3.MintResult `json:"simulated,omitempty"`
	TxHash       string                `json:"txHash"`
	BlockNumber  uint64                `json:"blockNumber"`
	GasUsed      uint64                `json:"gasUsed"`
	TokenBalance string                `json:"tokenBalance"`
	ETHBalance   string                `json:"ethBalance"`
}

// liquidityState is what AddLiquidity has learned so far, kept for the
// failure diagnostics.
type liquidityState struct {
	tokenBalance     *big.Int
	initialAllowance *big.Int
	finalAllowance   *big.Int
	amount           *big.Int
	token0, token1   common.Address
}

// AddLiquidity approves the position manager and mints a position in the
// TOKEN/WETH pool.
func (r *Runner) AddLiquidity(ctx context.Context, opts AddLiquidityOptions) (*AddLiquidityResult, error) {
	if err := r.cfg.Validate(config.NeedToken, config.NeedPool, config.NeedWETH, config.NeedPositionManager); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if err := uniswapv3.ValidateTicks(opts.Fee, *opts.TickLower, *opts.TickUpper); err != nil {
		return nil, err
	}
	amount, err := units.ParseEther(opts.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	approve, err := units.ParseEther(opts.Approve)
	if err != nil {
		return nil, fmt.Errorf("invalid approval amount: %w", err)
	}

	res, err := r.addLiquidity(ctx, opts, amount, approve)
	if err != nil {
		r.out.Block("Error Occurred")
		r.out.Field("Main Error", err.Error())
		if isSTF(err) {
			r.out.Println("\nPossible STF causes:")
			r.out.Numbered(
				"Token approval issue - check allowance",
				"Token has transfer restrictions",
				"Insufficient balance",
				"Token requires additional setup",
			)
			if msg := inspect(err, nil).RPCMessage; msg != "" {
				r.out.Printf("\nDetailed error: %s", msg)
			}
		}
		if balance, berr := r.ethBalance(context.WithoutCancel(ctx), r.Wallet()); berr == nil {
			r.out.Block("Final Balance")
			r.out.Field("Final ETH Balance", units.FormatEther(balance))
		}
		return nil, err
	}
	return res, nil
}

func (r *Runner) addLiquidity(ctx context.Context, opts AddLiquidityOptions, amount, approve *big.Int) (*AddLiquidityResult, error) {
	wallet, manager := r.Wallet(), r.cfg.PositionManager

	r.out.Header("Starting Liquidity Addition Process")
	r.out.Field("Wallet Address", wallet.Hex())

	token := erc20.NewToken(r.client, r.cfg.Token)
	meta := r.tokenInfo(ctx, token)
	state := liquidityState{amount: amount}

	var err error
	if state.tokenBalance, err = token.BalanceOf(ctx, wallet); err != nil {
		return nil, err
	}
	r.out.Block("Token Details")
	r.out.Field("Symbol", meta.Symbol)
	r.out.Field("Decimals", meta.Decimals)
	r.out.Field("Balance", units.FormatEther(state.tokenBalance))

	ethBalance, err := r.ethBalance(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("get ETH balance: %w", err)
	}
	r.out.Block("ETH Balance")
	r.out.Field("ETH Balance", units.FormatEther(ethBalance))

	pool := uniswapv3.NewPool(r.client, r.cfg.Pool)
	slot0, err := pool.Slot0(ctx)
	if err != nil {
		return nil, err
	}
	liquidity, err := pool.Liquidity(ctx)
	if err != nil {
		return nil, err
	}
	r.out.Block("Pool Status")
	r.out.Field("Current tick", slot0.Tick)
	r.out.Field("Pool unlocked", slot0.Unlocked)
	r.out.Field("Current liquidity", liquidity)

	state.token0, state.token1 = uniswapv3.SortTokens(r.cfg.Token, r.cfg.WETH)

	if state.initialAllowance, err = token.Allowance(ctx, wallet, manager); err != nil {
		return nil, err
	}
	r.out.Block("Initial Approval Status")
	r.out.Field("Current allowance", units.FormatEther(state.initialAllowance))

	// Some tokens reject changing a non-zero allowance to another non-zero value.
	r.out.Println("\nResetting approval...")
	if _, err := r.transact(ctx, txRequest{
		name: "approve",
		to:   r.cfg.Token,
		data: erc20.EncodeApprove(manager, new(big.Int)),
	}); err != nil {
		return nil, fmt.Errorf("reset approval: %w", err)
	}
	r.out.Println("Approval reset to 0")

	r.out.Println("\nSetting new approval...")
	if _, err := r.transact(ctx, txRequest{
		name: "approve",
		to:   r.cfg.Token,
		data: erc20.EncodeApprove(manager, approve),
	}); err != nil {
		return nil, fmt.Errorf("approve position manager: %w", err)
	}
	if state.finalAllowance, err = token.Allowance(ctx, wallet, manager); err != nil {
		return nil, err
	}
	r.out.Field("New allowance", units.FormatEther(state.finalAllowance))

	r.out.Block("Transaction Amount")
	r.out.Printf("Test amount: %s tokens", units.FormatEther(amount))

	params := uniswapv3.MintParams{
		Token0:         state.token0,
		Token1:         state.token1,
		Fee:            opts.Fee,
		TickLower:      *opts.TickLower,
		TickUpper:      *opts.TickUpper,
		Amount0Desired: amount,
		Amount1Desired: amount,
		Amount0Min:     new(big.Int),
		Amount1Min:     new(big.Int),
		Recipient:      wallet,
		Deadline:       big.NewInt(r.now().Add(opts.Deadline).Unix()),
	}
	r.out.Block("Transaction Parameters")
	if err := r.out.JSON(params); err != nil {
		return nil, err
	}
	calldata := uniswapv3.EncodeMintPosition(params)

	// The WETH side is paid in ETH and refunded by the position manager if unused.
	r.out.Println("\nSimulating transaction...")
	ret, err := r.sender.Call(ctx, manager, calldata, amount)
	if err != nil {
		r.out.Printf("\nSimulation failed: %s", simulationMessage(err))
		if isSTF(err) {
			r.printSTFDiagnostics(state)
		}
		return nil, fmt.Errorf("simulate mint: %w", err)
	}
	r.out.Println("Simulation successful")
	simulated, err := uniswapv3.DecodeMintResult(ret)
	if err != nil {
		r.logger.Debug("mint simulation returned no result", slog.String("error", err.Error()))
	}

	r.out.Println("\nExecuting transaction...")
	res, err := r.transact(ctx, txRequest{
		name:      "mint",
		to:        manager,
		data:      calldata,
		opts:      txsender.TxOpts{GasLimit: mintGas, Value: amount},
		sentLabel: "Transaction sent! Hash",
	})
	if err != nil {
		return nil, err
	}

	r.out.Block("Success")
	r.out.Println("Liquidity added successfully!")

	finalToken, err := token.BalanceOf(ctx, wallet)
	if err != nil {
		return nil, err
	}
	finalETH, err := r.ethBalance(ctx, wallet)
	if err != nil {
		return nil, err
	}
	r.out.Block("Final Balances")
	r.out.Field("Final Token Balance", units.FormatEther(finalToken))
	r.out.Field("Final ETH Balance", units.FormatEther(finalETH))

	return &AddLiquidityResult{
		Params:       params,
		Simulated:    simulated,
		TxHash:       res.Hash(),
		BlockNumber:  res.Receipt.BlockNumber,
		GasUsed:      res.Receipt.GasUsed,
		TokenBalance: units.FormatEther(finalToken),
		ETHBalance:   units.FormatEther(finalETH),
	}, nil
}

// simulationMessage prefers the decoded revert over the transport error.
func simulationMessage(err error) string {
	if f := inspect(err, revert.Factory); f.Reason != "" {
		return f.Reason
	}
	return err.Error()
}

func (r *Runner) printSTFDiagnostics(s liquidityState) {
	r.out.Println("\nSTF Error Diagnostics:")
	r.out.Numbered(
		"Token Balance: "+units.FormatEther(s.tokenBalance),
		"Amount Needed: "+units.FormatEther(s.amount),
		"Initial Allowance: "+units.FormatEther(s.initialAllowance),
		"Final Allowance: "+units.FormatEther(s.finalAllowance),
		"Token0: "+s.token0.Hex(),
		"Token1: "+s.token1.Hex(),
	)
}
