package ops

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/poolkit/internal/storage"
	"github.com/gateway-fm/poolkit/internal/uniswapv3"
)

func TestStatus(t *testing.T) {
	w := newWorld(t)
	w.poolCreated = true
	w.sqrtPrice.Lsh(uniswapv3.Q96, 1)
	r, out, _ := w.runner()

	res, err := r.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if res.ETHBalance != "1.0" || res.Network != "arbitrumSepolia" {
		t.Errorf("result = %+v", res)
	}
	if res.Token == nil || res.Token.Symbol != "ATT" || res.Token.Balance != "100.0" {
		t.Errorf("token = %+v", res.Token)
	}
	if res.Token != nil && (res.Token.Name != "Arbitrum Test Token" || res.Token.TotalSupply != "1000000.0") {
		t.Errorf("token name = %q supply = %q", res.Token.Name, res.Token.TotalSupply)
	}
	if res.Pool == nil || !res.Pool.Initialized || res.Pool.Price != "4" {
		t.Errorf("pool = %+v", res.Pool)
	}
	token0, token1 := uniswapv3.SortTokens(testToken, testWETH)
	if res.Pool != nil && (res.Pool.Token0 != token0 || res.Pool.Token1 != token1 || res.Pool.Fee != uniswapv3.DefaultFee) {
		t.Errorf("pool tokens = %s/%s fee %d", res.Pool.Token0.Hex(), res.Pool.Token1.Hex(), res.Pool.Fee)
	}
	if res.FactoryPool == nil || *res.FactoryPool != testPool {
		t.Errorf("factory pool = %v", res.FactoryPool)
	}
	want := uniswapv3.ComputePoolAddress(testFactory, testToken, testWETH, uniswapv3.DefaultFee)
	if res.ExpectedPool == nil || *res.ExpectedPool != want {
		t.Errorf("expected pool = %v", res.ExpectedPool)
	}
	if len(w.chain.Sent) != 0 {
		t.Errorf("status sent %d txs", len(w.chain.Sent))
	}
	for _, unwanted := range []string{"does not match the factory pool", "is not the TOKEN/WETH pool"} {
		if strings.Contains(out.String(), unwanted) {
			t.Errorf("output has %q:\n%s", unwanted, out.String())
		}
	}
}

func TestStatusFlagsForeignPool(t *testing.T) {
	w := newWorld(t)
	w.poolFee = 500
	r, out, _ := w.runner()

	res, err := r.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if res.Pool == nil || res.Pool.Fee != 500 {
		t.Fatalf("pool = %+v", res.Pool)
	}
	if !strings.Contains(out.String(), "POOL_ADDRESS is not the TOKEN/WETH pool with fee 3000") {
		t.Errorf("output missing mismatch warning:\n%s", out.String())
	}
}

func TestStatusSkipsUnconfigured(t *testing.T) {
	w := newWorld(t)
	r, _, _ := w.runner()
	cfg := r.Config()
	cfg.Token, cfg.Pool, cfg.Factory = common.Address{}, common.Address{}, common.Address{}

	res, err := r.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if res.Token != nil || res.Pool != nil || res.FactoryPool != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestHistory(t *testing.T) {
	w := newWorld(t)
	r, out, _ := w.runner()
	ctx := context.Background()

	if err := r.Run(ctx, "transfer", func(ctx context.Context) error {
		_, err := r.Transfer(ctx, TransferOptions{})
		return err
	}); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	if err := r.Run(ctx, "init-pool", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v", err)
	}

	out.Reset()
	res, err := r.History(ctx, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(res.Runs) != 2 || len(res.Txs) != 1 {
		t.Fatalf("runs = %d txs = %d", len(res.Runs), len(res.Txs))
	}
	statuses := map[string]string{}
	for _, run := range res.Runs {
		statuses[run.Command] = run.Status
	}
	if statuses["transfer"] != storage.RunStatusCompleted || statuses["init-pool"] != storage.RunStatusError {
		t.Errorf("run statuses = %v", statuses)
	}
	if tx := res.Txs[0]; tx.Name != "transfer" || tx.Status != storage.TxStatusSuccess || tx.TxHash == "" {
		t.Errorf("tx = %+v", tx)
	}

	text := out.String()
	for _, want := range []string{"History for arbitrumSepolia", "=== Transactions ===", res.Txs[0].TxHash, "init-pool"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestLookupTx(t *testing.T) {
	w := newWorld(t)
	r, out, _ := w.runner()
	ctx := context.Background()

	var txHash string
	if err := r.Run(ctx, "transfer", func(ctx context.Context) error {
		res, err := r.Transfer(ctx, TransferOptions{})
		if err == nil {
			txHash = res.TxHash
		}
		return err
	}); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	got, err := r.LookupTx(ctx, txHash)
	if err != nil {
		t.Fatalf("LookupTx() error = %v", err)
	}
	if got.Tx.Name != "transfer" || got.Tx.Status != storage.TxStatusSuccess {
		t.Errorf("tx = %+v", got.Tx)
	}
	if got.Run == nil || got.Run.Command != "transfer" || got.Run.Status != storage.RunStatusCompleted {
		t.Errorf("run = %+v", got.Run)
	}
	for _, want := range []string{"Transaction " + txHash, "Command: transfer"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	if _, err := r.LookupTx(ctx, "0xdead"); !errors.Is(err, ErrTxNotJournaled) {
		t.Errorf("LookupTx(unknown) error = %v, want ErrTxNotJournaled", err)
	}
}
