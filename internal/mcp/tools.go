package mcp

import (
	"context"
	"fmt"
	"math"
	"math/big"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gateway-fm/poolkit/internal/ops"
	"github.com/gateway-fm/poolkit/internal/uniswapv3"
)

// RegisterTools registers all poolkit tools on the MCP server.
func RegisterTools(s *server.MCPServer, b *Backend) {
	registerStatus(s, b)
	registerHistory(s, b)
	registerDeploy(s, b)
	registerCreatePool(s, b)
	registerInitPool(s, b)
	registerTransfer(s, b)
	registerAddLiquidity(s, b)
}

// intArg reads an optional integer argument that must lie in [lo, hi]. ok
// is false when the argument was not given.
func intArg(req gomcp.CallToolRequest, name string, lo, hi int64) (v int64, ok bool, err error) {
	if _, given := req.GetArguments()[name]; !given {
		return 0, false, nil
	}
	v = int64(req.GetInt(name, 0))
	if v < lo || v > hi {
		return 0, true, fmt.Errorf("%s %d is outside [%d, %d]", name, v, lo, hi)
	}
	return v, true, nil
}

// reply turns an outcome into a tool result. Operation failures are tool
// errors carrying the diagnostics transcript, not protocol errors.
func reply(title string, o outcome, summary func() string) (*gomcp.CallToolResult, error) {
	if o.err != nil {
		return gomcp.NewToolResultError(joinLines(
			section(title+" Failed"),
			kv("Error", o.err.Error()),
			transcript(o.transcript),
		)), nil
	}
	return gomcp.NewToolResultText(joinLines(
		section(title),
		summary(),
		transcript(o.transcript),
	)), nil
}

func registerStatus(s *server.MCPServer, b *Backend) {
	tool := gomcp.NewTool("poolkit_status",
		gomcp.WithDescription("Read wallet, token and pool state: ETH and token balances, pool slot0 and liquidity, and the factory pool for TOKEN/WETH. Read-only."),
	)
	s.AddTool(tool, b.statusHandler)
}

func (b *Backend) statusHandler(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	o := b.run(ctx, "status", func(ctx context.Context, r *ops.Runner) (any, error) {
		return r.Status(ctx)
	})
	return reply("Status", o, func() string { return formatJSON(o.result) })
}

func registerHistory(s *server.MCPServer, b *Backend) {
	tool := gomcp.NewTool("poolkit_history",
		gomcp.WithDescription("List journaled runs, deployments and transactions for the current chain."),
		gomcp.WithNumber("limit",
			gomcp.Description("Max runs and transactions to return (default: 20)"),
		),
		gomcp.WithString("tx_hash",
			gomcp.Description("Show one journaled transaction and the run that sent it"),
		),
	)
	s.AddTool(tool, b.historyHandler)
}

func (b *Backend) historyHandler(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	if hash := req.GetString("tx_hash", ""); hash != "" {
		o := b.run(ctx, "history", func(ctx context.Context, r *ops.Runner) (any, error) {
			return r.LookupTx(ctx, hash)
		})
		return reply("Transaction", o, func() string { return formatJSON(o.result) })
	}
	limit := req.GetInt("limit", ops.DefaultHistoryLimit)
	o := b.run(ctx, "history", func(ctx context.Context, r *ops.Runner) (any, error) {
		return r.History(ctx, limit)
	})
	if o.err != nil {
		return reply("History", o, nil)
	}
	h := o.result.(*ops.HistoryResult)
	lines := []string{kv("Chain ID", h.ChainID), "", section("Deployments")}
	for _, d := range h.Deployments {
		lines = append(lines, kv(d.Name, fmt.Sprintf("%s (block %d)", d.Address, d.BlockNumber)))
	}
	lines = append(lines, "", section("Transactions"))
	for _, tx := range h.Txs {
		lines = append(lines, kv(tx.Name, fmt.Sprintf("%-8s gas %s  %s", tx.Status, formatNumber(tx.GasUsed), shortHash(tx.TxHash))))
	}
	return gomcp.NewToolResultText(joinLines(append([]string{section("History")}, lines...)...)), nil
}

func registerDeploy(s *server.MCPServer, b *Backend) {
	tool := gomcp.NewTool("poolkit_deploy",
		gomcp.WithDescription("Deploy the ERC20 token contract. This is a MUTATING operation."),
		gomcp.WithBoolean("builtin",
			gomcp.Description("Deploy the embedded test ERC20 instead of TOKEN_ARTIFACT"),
		),
		gomcp.WithString("artifact",
			gomcp.Description("Path to a Hardhat or Foundry artifact JSON (default: TOKEN_ARTIFACT)"),
		),
		gomcp.WithBoolean("write_env",
			gomcp.Description("Write TOKEN_ADDRESS into the env file"),
		),
	)
	s.AddTool(tool, b.deployHandler)
}

func (b *Backend) deployHandler(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	opts := ops.DeployOptions{
		Builtin:      req.GetBool("builtin", false),
		ArtifactPath: req.GetString("artifact", ""),
		WriteEnv:     req.GetBool("write_env", false),
	}
	o := b.run(ctx, "deploy", func(ctx context.Context, r *ops.Runner) (any, error) {
		return r.Deploy(ctx, opts)
	})
	return reply("Token Deployed", o, func() string {
		res := o.result.(*ops.DeployResult)
		return joinLines(
			kv("Contract", res.Contract),
			kv("Address", res.Address.Hex()),
			kv("TX Hash", res.TxHash),
			kv("Gas Used", formatNumber(res.GasUsed)),
		)
	})
}

func registerCreatePool(s *server.MCPServer, b *Backend) {
	tool := gomcp.NewTool("poolkit_create_pool",
		gomcp.WithDescription("Create the TOKEN/WETH Uniswap V3 pool through the factory, or report the existing one. This is a MUTATING operation."),
		gomcp.WithNumber("fee",
			gomcp.Description("Fee tier in hundredths of a bip: 100, 500, 3000 (default) or 10000"),
		),
		gomcp.WithBoolean("write_env",
			gomcp.Description("Write POOL_ADDRESS into the env file"),
		),
	)
	s.AddTool(tool, b.createPoolHandler)
}

func (b *Backend) createPoolHandler(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	fee, _, err := intArg(req, "fee", 0, math.MaxUint32)
	if err != nil {
		return gomcp.NewToolResultError(err.Error()), nil
	}
	opts := ops.CreatePoolOptions{Fee: uint32(fee), WriteEnv: req.GetBool("write_env", false)}
	o := b.run(ctx, "create-pool", func(ctx context.Context, r *ops.Runner) (any, error) {
		return r.CreatePool(ctx, opts)
	})
	return reply("Pool", o, func() string {
		res := o.result.(*ops.CreatePoolResult)
		return joinLines(
			kv("Pool", res.Pool.Hex()),
			kv("Created", res.Created),
			kv("TX Hash", res.TxHash),
		)
	})
}

func registerInitPool(s *server.MCPServer, b *Backend) {
	tool := gomcp.NewTool("poolkit_init_pool",
		gomcp.WithDescription("Initialize POOL_ADDRESS with a starting price (default 1:1). Skips pools that already have a price. This is a MUTATING operation."),
		gomcp.WithString("price",
			gomcp.Description("Price of token1 in token0, raw units, e.g. \"2500\""),
		),
		gomcp.WithString("sqrt_price",
			gomcp.Description("Raw sqrtPriceX96 as a decimal integer"),
		),
	)
	s.AddTool(tool, b.initPoolHandler)
}

func (b *Backend) initPoolHandler(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	opts := ops.InitPoolOptions{Price: req.GetString("price", "")}
	if v := req.GetString("sqrt_price", ""); v != "" {
		sqrt, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return gomcp.NewToolResultError(fmt.Sprintf("sqrt_price %q is not a decimal integer", v)), nil
		}
		opts.SqrtPriceX96 = sqrt
	}
	o := b.run(ctx, "init-pool", func(ctx context.Context, r *ops.Runner) (any, error) {
		return r.InitPool(ctx, opts)
	})
	return reply("Pool Initialized", o, func() string {
		res := o.result.(*ops.InitPoolResult)
		return joinLines(
			kv("Pool", res.Pool.Hex()),
			kv("Already Initialized", res.AlreadyInitialized),
			kv("sqrtPriceX96", res.SqrtPriceX96),
			kv("Tick", res.Tick),
			kv("TX Hash", res.TxHash),
		)
	})
}

func registerTransfer(s *server.MCPServer, b *Backend) {
	tool := gomcp.NewTool("poolkit_transfer",
		gomcp.WithDescription("Transfer tokens to POOL_ADDRESS, falling back to approve + transferFrom. This is a MUTATING operation."),
		gomcp.WithString("amount",
			gomcp.Description("Amount in whole tokens (default: 1.0)"),
		),
	)
	s.AddTool(tool, b.transferHandler)
}

func (b *Backend) transferHandler(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	opts := ops.TransferOptions{Amount: req.GetString("amount", "")}
	o := b.run(ctx, "transfer", func(ctx context.Context, r *ops.Runner) (any, error) {
		return r.Transfer(ctx, opts)
	})
	return reply("Tokens Transferred", o, func() string {
		res := o.result.(*ops.TransferResult)
		return joinLines(
			kv("Method", res.Method),
			kv("Amount", res.Amount+" "+res.Symbol),
			kv("Wallet Balance", res.WalletBalance),
			kv("Pool Balance", res.PoolBalance),
			kv("TX Hash", res.TxHash),
		)
	})
}

func registerAddLiquidity(s *server.MCPServer, b *Backend) {
	tool := gomcp.NewTool("poolkit_add_liquidity",
		gomcp.WithDescription("Approve the position manager and mint a TOKEN/WETH position from the wallet. This is a MUTATING operation."),
		gomcp.WithString("amount",
			gomcp.Description("Desired amount of each token, in ether units (default: 0.0001)"),
		),
		gomcp.WithString("approve",
			gomcp.Description("Allowance granted to the position manager, in ether units (default: 2.0)"),
		),
		gomcp.WithNumber("fee",
			gomcp.Description("Fee tier (default: 3000)"),
		),
		gomcp.WithNumber("tick_lower",
			gomcp.Description("Lower tick (default: -60)"),
		),
		gomcp.WithNumber("tick_upper",
			gomcp.Description("Upper tick (default: 60)"),
		),
	)
	s.AddTool(tool, b.addLiquidityHandler)
}

func (b *Backend) addLiquidityHandler(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	fee, _, err := intArg(req, "fee", 0, math.MaxUint32)
	if err != nil {
		return gomcp.NewToolResultError(err.Error()), nil
	}
	opts := ops.AddLiquidityOptions{
		Amount:  req.GetString("amount", ""),
		Approve: req.GetString("approve", ""),
		Fee:     uint32(fee),
	}
	for _, t := range []struct {
		name string
		dst  **int32
	}{
		{"tick_lower", &opts.TickLower},
		{"tick_upper", &opts.TickUpper},
	} {
		v, ok, err := intArg(req, t.name, int64(uniswapv3.MinTick), int64(uniswapv3.MaxTick))
		if err != nil {
			return gomcp.NewToolResultError(err.Error()), nil
		}
		if ok {
			tick := int32(v)
			*t.dst = &tick
		}
	}
	o := b.run(ctx, "add-liquidity", func(ctx context.Context, r *ops.Runner) (any, error) {
		return r.AddLiquidity(ctx, opts)
	})
	return reply("Liquidity Added", o, func() string {
		res := o.result.(*ops.AddLiquidityResult)
		lines := []string{
			kv("Range", fmt.Sprintf("[%d, %d]", res.Params.TickLower, res.Params.TickUpper)),
			kv("TX Hash", res.TxHash),
			kv("Gas Used", formatNumber(res.GasUsed)),
			kv("Token Balance", res.TokenBalance),
			kv("ETH Balance", res.ETHBalance),
		}
		if res.Simulated != nil {
			lines = append(lines, kv("Liquidity", res.Simulated.Liquidity))
		}
		return joinLines(lines...)
	})
}
