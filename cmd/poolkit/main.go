// Command poolkit deploys a test ERC20 and sets up a Uniswap V3 pool for it
// on an Arbitrum test network.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gateway-fm/poolkit/internal/config"
	"github.com/gateway-fm/poolkit/internal/metrics"
	"github.com/gateway-fm/poolkit/internal/ops"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by all subcommands.
type app struct {
	logLevel string
	logJSON  bool
	rpcURL   string

	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.PrometheusMetrics
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "poolkit",
		Short:        "Deploy a test token and set up its Uniswap V3 pool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default LOG_LEVEL or info)")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "Write logs as JSON")
	root.PersistentFlags().StringVar(&a.rpcURL, "rpc-url", "", "JSON-RPC endpoint (overrides RPC_URL)")

	root.AddCommand(
		a.deployCmd(),
		a.createPoolCmd(),
		a.initPoolCmd(),
		a.transferCmd(),
		a.addLiquidityCmd(),
		a.statusCmd(),
		a.historyCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.rpcURL != "" {
		cfg.RPCURL = a.rpcURL
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: level}
	if a.logJSON {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	} else {
		a.logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	slog.SetDefault(a.logger)

	a.cfg = cfg
	a.metrics = metrics.NewPrometheusMetrics()
	return nil
}

// run connects, executes fn as a journaled run and exports metrics.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, r *ops.Runner) error) error {
	ctx := cmd.Context()
	r, err := ops.Connect(ctx, a.cfg, ops.Options{
		Out:     cmd.OutOrStdout(),
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			a.logger.Warn("failed to close journal", slog.String("error", cerr.Error()))
		}
	}()

	runErr := r.Run(ctx, cmd.Name(), func(ctx context.Context) error {
		return fn(ctx, r)
	})

	if err := a.metrics.Export(metrics.ExportConfig{
		TextfilePath:   a.cfg.MetricsTextfile,
		PushgatewayURL: a.cfg.PushgatewayURL,
		Grouping: map[string]string{
			"command":  cmd.Name(),
			"chain_id": strconv.FormatInt(r.ChainID().Int64(), 10),
		},
	}); err != nil {
		a.logger.Warn("metrics export failed", slog.String("error", err.Error()))
	}

	return runErr
}

func (a *app) deployCmd() *cobra.Command {
	var opts ops.DeployOptions
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the ERC20 token contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, r *ops.Runner) error {
				_, err := r.Deploy(ctx, opts)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Builtin, "builtin", false, "Deploy the embedded test ERC20 instead of TOKEN_ARTIFACT")
	cmd.Flags().StringVar(&opts.ArtifactPath, "artifact", "", "Hardhat or Foundry artifact JSON (default TOKEN_ARTIFACT)")
	cmd.Flags().BoolVar(&opts.WriteEnv, "write-env", false, "Write TOKEN_ADDRESS into the env file")
	return cmd
}

func (a *app) createPoolCmd() *cobra.Command {
	var opts ops.CreatePoolOptions
	cmd := &cobra.Command{
		Use:   "create-pool",
		Short: "Create the TOKEN/WETH pool through the Uniswap V3 factory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, r *ops.Runner) error {
				_, err := r.CreatePool(ctx, opts)
				return err
			})
		},
	}
	cmd.Flags().Uint32Var(&opts.Fee, "fee", 0, "Fee tier: 100, 500, 3000 or 10000 (default 3000)")
	cmd.Flags().BoolVar(&opts.WriteEnv, "write-env", false, "Write POOL_ADDRESS into the env file")
	return cmd
}

func (a *app) initPoolCmd() *cobra.Command {
	var price, sqrtPrice string
	cmd := &cobra.Command{
		Use:   "init-pool",
		Short: "Initialize POOL_ADDRESS with a starting price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := ops.InitPoolOptions{Price: price}
			if sqrtPrice != "" {
				v, ok := new(big.Int).SetString(sqrtPrice, 10)
				if !ok {
					return fmt.Errorf("--sqrt-price %q is not a decimal integer", sqrtPrice)
				}
				opts.SqrtPriceX96 = v
			}
			return a.run(cmd, func(ctx context.Context, r *ops.Runner) error {
				_, err := r.InitPool(ctx, opts)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "Price of token1 in token0, raw units (default 1)")
	cmd.Flags().StringVar(&sqrtPrice, "sqrt-price", "", "Raw sqrtPriceX96")
	cmd.MarkFlagsMutuallyExclusive("price", "sqrt-price")
	return cmd
}

func (a *app) transferCmd() *cobra.Command {
	var opts ops.TransferOptions
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer tokens to the pool, falling back to approve + transferFrom",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, r *ops.Runner) error {
				_, err := r.Transfer(ctx, opts)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&opts.Amount, "amount", ops.DefaultTransferAmount, "Amount in whole tokens")
	return cmd
}

func (a *app) addLiquidityCmd() *cobra.Command {
	var opts ops.AddLiquidityOptions
	var tickLower, tickUpper int32
	cmd := &cobra.Command{
		Use:   "add-liquidity",
		Short: "Approve the position manager and mint a TOKEN/WETH position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.TickLower, opts.TickUpper = &tickLower, &tickUpper
			return a.run(cmd, func(ctx context.Context, r *ops.Runner) error {
				_, err := r.AddLiquidity(ctx, opts)
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Amount, "amount", ops.DefaultLiquidityAmount, "Desired amount of each token, in ether units")
	f.StringVar(&opts.Approve, "approve", ops.DefaultApprovalAmount, "Allowance for the position manager, in ether units")
	f.Uint32Var(&opts.Fee, "fee", 0, "Fee tier (default 3000)")
	f.Int32Var(&tickLower, "tick-lower", ops.DefaultTickLower, "Lower tick")
	f.Int32Var(&tickUpper, "tick-upper", ops.DefaultTickUpper, "Upper tick")
	f.DurationVar(&opts.Deadline, "deadline", ops.DefaultDeadline, "Mint deadline from now")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show wallet, token and pool state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, r *ops.Runner) error {
				_, err := r.Status(ctx)
				return err
			})
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	var txHash string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled runs, deployments and transactions for this chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, r *ops.Runner) error {
				if txHash != "" {
					_, err := r.LookupTx(ctx, txHash)
					return err
				}
				_, err := r.History(ctx, limit)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", ops.DefaultHistoryLimit, "Max runs and transactions to list")
	cmd.Flags().StringVar(&txHash, "tx", "", "Show one journaled transaction and its run")
	return cmd
}
