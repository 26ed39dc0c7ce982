package ops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/poolkit/internal/config"
	"github.com/gateway-fm/poolkit/internal/erc20"
	"github.com/gateway-fm/poolkit/internal/revert"
	"github.com/gateway-fm/poolkit/internal/txsender"
	"github.com/gateway-fm/poolkit/internal/units"
)

// Gas limits for the transfer path.
const (
	transferGas = 2_000_000
	approveGas  = 1_000_000

	// Deployed ERC20s are well above this; anything smaller is likely a stub
	// or a proxy.
	standardTokenMinCodeSize = 100
)

// DefaultTransferAmount is one whole token.
const DefaultTransferAmount = "1.0"

var (
	// ErrApproveFailed is returned when the fallback approval fails.
	ErrApproveFailed = errors.New("could not approve tokens")
	// ErrAllTransfersFailed is returned when both transfer and transferFrom fail.
	ErrAllTransfersFailed = errors.New("all transfer methods failed")
)

// TransferOptions configures Transfer.
type TransferOptions struct {
	Amount string // in whole tokens; empty means DefaultTransferAmount
}

// TransferResult is the outcome of Transfer.
type TransferResult struct {
	Method        string `json:"method"` // "transfer" or "transferFrom"
	TxHash        string `json:"txHash"`
	Amount        string `json:"amount"`
	Symbol        string `json:"symbol"`
	WalletBalance string `json:"walletBalance"`
	PoolBalance   string `json:"poolBalance"`
}

// tokenMeta is the subset of token metadata the operations print.
type tokenMeta struct {
	Symbol   string
	Decimals uint8
}

// tokenInfo reads symbol and decimals, falling back to "?" and 18 for
// tokens that do not implement the optional metadata.
func (r *Runner) tokenInfo(ctx context.Context, token *erc20.Token) tokenMeta {
	meta := tokenMeta{Symbol: "?", Decimals: units.EtherDecimals}
	if symbol, err := token.Symbol(ctx); err == nil {
		meta.Symbol = symbol
	} else {
		r.logger.Warn("token symbol unavailable", slog.String("token", token.Address.Hex()), slog.String("error", err.Error()))
	}
	if decimals, err := token.Decimals(ctx); err == nil {
		meta.Decimals = decimals
	} else {
		r.logger.Warn("token decimals unavailable, assuming 18", slog.String("token", token.Address.Hex()), slog.String("error", err.Error()))
	}
	return meta
}

// tokenDecoder extends revert.Token with the custom errors declared in the
// configured artifact, when one can be read.
func (r *Runner) tokenDecoder() *revert.Decoder {
	if r.cfg.TokenArtifact == "" {
		return revert.Token
	}
	artifact, err := erc20.LoadArtifact(r.cfg.TokenArtifact)
	if err != nil || len(artifact.ErrorSignatures()) == 0 {
		return revert.Token
	}
	dec, err := revert.NewDecoder(append(revert.Token.Signatures(), artifact.ErrorSignatures()...)...)
	if err != nil {
		r.logger.Debug("artifact error signatures unusable", slog.String("error", err.Error()))
		return revert.Token
	}
	return dec
}

// Transfer sends tokens to the pool, falling back to approve + transferFrom
// when the direct transfer fails.
func (r *Runner) Transfer(ctx context.Context, opts TransferOptions) (*TransferResult, error) {
	if err := r.cfg.Validate(config.NeedToken, config.NeedPool); err != nil {
		return nil, err
	}
	res, err := r.transfer(ctx, opts)
	if err != nil {
		r.out.Section("DEBUG FAILED")
		r.out.Field("Final error", err.Error())
		return nil, err
	}
	return res, nil
}

func (r *Runner) transfer(ctx context.Context, opts TransferOptions) (*TransferResult, error) {
	wallet, pool := r.Wallet(), r.cfg.Pool

	r.out.Section("DEBUGGING TOKEN TRANSFER")
	r.out.Field("Wallet address", wallet.Hex())

	token := erc20.NewToken(r.client, r.cfg.Token)
	meta := r.tokenInfo(ctx, token)
	balance, err := token.BalanceOf(ctx, wallet)
	if err != nil {
		return nil, err
	}
	r.out.Field("Token", meta.Symbol)
	r.out.Field("Decimals", meta.Decimals)
	r.out.Printf("Your balance: %s %s", units.FormatUnits(balance, meta.Decimals), meta.Symbol)

	amountStr := opts.Amount
	if amountStr == "" {
		amountStr = DefaultTransferAmount
	}
	amount, err := units.ParseUnits(amountStr, meta.Decimals)
	if err != nil {
		return nil, err
	}
	formatted := units.FormatUnits(amount, meta.Decimals)

	r.out.Section("ATTEMPTING DIRECT TRANSFER")
	r.out.Printf("Transferring %s %s to %s", formatted, meta.Symbol, pool.Hex())

	method := "transfer"
	res, err := r.transact(ctx, txRequest{
		name:      "transfer",
		to:        r.cfg.Token,
		data:      erc20.EncodeTransfer(pool, amount),
		opts:      txsender.TxOpts{GasLimit: transferGas},
		sentLabel: "Transfer transaction hash",
	})
	if err == nil {
		r.out.Println("Transfer successful!")
	} else {
		r.out.Println("Direct transfer failed!")
		r.printTransferFailure(err, true)

		method = "transferFrom"
		res, err = r.transferFrom(ctx, token, meta, amount)
		if err != nil {
			return nil, err
		}
	}

	finalBalance, err := token.BalanceOf(ctx, wallet)
	if err != nil {
		return nil, err
	}
	poolBalance, err := token.BalanceOf(ctx, pool)
	if err != nil {
		return nil, err
	}
	r.out.Section("FINAL BALANCES")
	r.out.Printf("Your balance: %s %s", units.FormatUnits(finalBalance, meta.Decimals), meta.Symbol)
	r.out.Printf("Pool balance: %s %s", units.FormatUnits(poolBalance, meta.Decimals), meta.Symbol)

	return &TransferResult{
		Method:        method,
		TxHash:        res.Hash(),
		Amount:        formatted,
		Symbol:        meta.Symbol,
		WalletBalance: units.FormatUnits(finalBalance, meta.Decimals),
		PoolBalance:   units.FormatUnits(poolBalance, meta.Decimals),
	}, nil
}

func (r *Runner) printTransferFailure(err error, decode bool) {
	f := inspect(err, r.tokenDecoder())
	if decode && len(f.Data) > 0 {
		if f.Decoded != nil {
			r.out.Field("Decoded error", f.Decoded.Name)
		} else {
			r.out.Println("Could not decode error data")
		}
	}
	r.out.Field("Error type", f.Code)
	reason := f.Reason
	if reason == "" {
		reason = "Unknown reason"
	}
	r.out.Field("Error reason", reason)
	if f.RPCMessage != "" {
		r.out.Field("RPC error message", f.RPCMessage)
	}
}

func (r *Runner) transferFrom(ctx context.Context, token *erc20.Token, meta tokenMeta, amount *big.Int) (*txsender.Result, error) {
	wallet, pool := r.Wallet(), r.cfg.Pool

	r.out.Section("ATTEMPTING APPROVAL + TRANSFERFROM")
	r.out.Println("Checking current allowance...")
	allowance, err := token.Allowance(ctx, wallet, pool)
	if err != nil {
		return nil, err
	}
	r.out.Printf("Current allowance: %s %s", units.FormatUnits(allowance, meta.Decimals), meta.Symbol)

	if allowance.Cmp(amount) < 0 {
		r.out.Println("Approving tokens...")
		_, err := r.transact(ctx, txRequest{
			name:      "approve",
			to:        r.cfg.Token,
			data:      erc20.EncodeApprove(pool, amount),
			opts:      txsender.TxOpts{GasLimit: approveGas},
			sentLabel: "Approval transaction hash",
		})
		if err != nil {
			r.out.Field("Approval failed", err.Error())
			return nil, fmt.Errorf("%w: %w", ErrApproveFailed, err)
		}
		r.out.Println("Approval successful!")

		allowance, err = token.Allowance(ctx, wallet, pool)
		if err != nil {
			return nil, err
		}
		r.out.Printf("New allowance: %s %s", units.FormatUnits(allowance, meta.Decimals), meta.Symbol)
	} else {
		r.out.Println("Tokens already approved")
	}

	r.out.Println("Attempting transferFrom...")
	res, err := r.transact(ctx, txRequest{
		name:      "transferFrom",
		to:        r.cfg.Token,
		data:      erc20.EncodeTransferFrom(wallet, pool, amount),
		opts:      txsender.TxOpts{GasLimit: transferGas},
		sentLabel: "TransferFrom transaction hash",
	})
	if err == nil {
		r.out.Println("TransferFrom successful!")
		return res, nil
	}

	r.out.Println("TransferFrom failed!")
	r.printTransferFailure(err, false)
	r.printFinalDiagnostics(ctx)
	return nil, fmt.Errorf("%w: %w", ErrAllTransfersFailed, err)
}

func (r *Runner) printFinalDiagnostics(ctx context.Context) {
	r.out.Section("FINAL DIAGNOSTICS")
	r.out.Println("Let's check if the token has transfer restrictions...")

	code, err := r.client.GetCode(ctx, r.cfg.Token.Hex())
	if err != nil {
		r.out.Field("Could not read token code", err.Error())
	} else {
		size := len(common.FromHex(code))
		r.out.Printf("Token contract code size: %d bytes", size)
		verdict := "might not be"
		if size > standardTokenMinCodeSize {
			verdict = "appears to be"
		}
		r.out.Printf("This %s a standard ERC20 token", verdict)
	}

	r.out.Println("\nPossible reasons for transfer failure:")
	r.out.Numbered(
		"The token contract may have transfer restrictions",
		"The pool address may not be allowed to receive tokens directly",
		"The token may require a special method to transfer to contracts",
		"There might be a blacklist or whitelist mechanism",
	)
}
