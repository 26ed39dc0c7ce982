package ops

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/poolkit/internal/uniswapv3"
)

func TestCreatePoolAlreadyExists(t *testing.T) {
	w := newWorld(t)
	w.poolCreated = true
	r, out, _ := w.runner()

	res, err := r.CreatePool(context.Background(), CreatePoolOptions{})
	if err != nil {
		t.Fatalf("CreatePool() error = %v", err)
	}
	if res.Created || res.Pool != testPool {
		t.Errorf("result = %+v", res)
	}
	if len(w.chain.Sent) != 0 {
		t.Errorf("sent %d txs for an existing pool", len(w.chain.Sent))
	}
	text := out.String()
	for _, want := range []string{"Pool already exists at: " + testPool.Hex(), "POOL_ADDRESS=" + testPool.Hex(), "====== IMPORTANT ======"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestCreatePool(t *testing.T) {
	w := newWorld(t)
	r, out, journal := w.runner()
	ctx := context.Background()

	var res *CreatePoolResult
	err := r.Run(ctx, "create-pool", func(ctx context.Context) error {
		var err error
		res, err = r.CreatePool(ctx, CreatePoolOptions{WriteEnv: true})
		return err
	})
	if err != nil {
		t.Fatalf("CreatePool() error = %v", err)
	}
	if !res.Created || res.Pool != testPool || res.TxHash == "" {
		t.Errorf("result = %+v", res)
	}

	sent := w.chain.SentTo(testFactory, uniswapv3.SelectorCreatePool)
	if len(sent) != 1 {
		t.Fatalf("createPool txs = %d, want 1", len(sent))
	}
	tx := sent[0]
	if tx.Gas() != 300_000 {
		t.Errorf("gas = %d, want 300000", tx.Gas())
	}
	if tx.GasFeeCap().Int64() != 100_000_000 || tx.GasTipCap().Int64() != 50_000_000 {
		t.Errorf("fees = %v / %v, want 0.1 / 0.05 gwei", tx.GasFeeCap(), tx.GasTipCap())
	}
	if got := uniswapv3.EncodeCreatePool(testToken, testWETH, uniswapv3.DefaultFee); string(tx.Data()) != string(got) {
		t.Errorf("calldata = %x", tx.Data())
	}

	text := out.String()
	for _, want := range []string{"Transaction sent! Hash: " + tx.Hash().Hex(), "Pool creation confirmed in block", "New pool created at: " + testPool.Hex(), "Final ETH Balance"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	d, err := journal.LatestDeployment(ctx, testChainID, "pool")
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.Address != testPool.Hex() {
		t.Errorf("journaled pool = %+v", d)
	}
}

func TestCreatePoolConfiguredFeesWin(t *testing.T) {
	w := newWorld(t)
	r, _, _ := w.runner()
	r.Config().GasFeeCap = big.NewInt(300_000_000)

	if _, err := r.CreatePool(context.Background(), CreatePoolOptions{}); err != nil {
		t.Fatal(err)
	}
	tx := w.chain.SentTo(testFactory, uniswapv3.SelectorCreatePool)[0]
	if tx.GasFeeCap().Int64() != 300_000_000 || tx.GasTipCap().Int64() != 50_000_000 {
		t.Errorf("fees = %v / %v", tx.GasFeeCap(), tx.GasTipCap())
	}
}

func TestCreatePoolRevertDecoded(t *testing.T) {
	w := newWorld(t)
	w.rejectCreatePool = true
	r, out, _ := w.runner()

	if _, err := r.CreatePool(context.Background(), CreatePoolOptions{}); err == nil {
		t.Fatal("expected error")
	}
	text := out.String()
	for _, want := range []string{"==== Error Occurred ====", "Raw error data: 0x", "Decoded error: PoolAlreadyExists()"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestCreatePoolMissingConfig(t *testing.T) {
	w := newWorld(t)
	r, _, _ := w.runner()
	r.Config().Factory = common.Address{}
	r.Config().WETH = common.Address{}

	_, err := r.CreatePool(context.Background(), CreatePoolOptions{})
	if err == nil || !strings.Contains(err.Error(), "WETH, UNISWAP_FACTORY") {
		t.Fatalf("error = %v", err)
	}
}

func TestInitPool(t *testing.T) {
	w := newWorld(t)
	w.poolCreated = true
	r, out, _ := w.runner()

	res, err := r.InitPool(context.Background(), InitPoolOptions{})
	if err != nil {
		t.Fatalf("InitPool() error = %v", err)
	}
	if res.AlreadyInitialized || res.SqrtPriceX96 != "79228162514264337593543950336" {
		t.Errorf("result = %+v", res)
	}
	sent := w.chain.SentTo(testPool, uniswapv3.SelectorInitialize)
	if len(sent) != 1 {
		t.Fatalf("initialize txs = %d", len(sent))
	}
	text := out.String()
	for _, want := range []string{
		"Using pool address: " + testPool.Hex(),
		"Initializing pool with price 1:1...",
		"Pool initialization confirmed in block",
		"Pool initialized with sqrtPrice: 79228162514264337593543950336",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestInitPoolAlreadyInitialized(t *testing.T) {
	w := newWorld(t)
	w.sqrtPrice = new(big.Int).Set(uniswapv3.Q96)
	r, out, _ := w.runner()

	res, err := r.InitPool(context.Background(), InitPoolOptions{Price: "4"})
	if err != nil {
		t.Fatalf("InitPool() error = %v", err)
	}
	if !res.AlreadyInitialized {
		t.Error("expected AlreadyInitialized")
	}
	if len(w.chain.Sent) != 0 {
		t.Errorf("sent %d txs", len(w.chain.Sent))
	}
	if !strings.Contains(out.String(), "Pool already initialized with sqrtPrice") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestInitialPrice(t *testing.T) {
	tests := []struct {
		name    string
		opts    InitPoolOptions
		want    *big.Int
		wantErr bool
	}{
		{name: "default", want: uniswapv3.Q96},
		{name: "price 4", opts: InitPoolOptions{Price: "4"}, want: new(big.Int).Lsh(uniswapv3.Q96, 1)},
		{name: "raw", opts: InitPoolOptions{SqrtPriceX96: big.NewInt(12345)}, want: big.NewInt(12345)},
		{name: "both", opts: InitPoolOptions{Price: "1", SqrtPriceX96: big.NewInt(1)}, wantErr: true},
		{name: "zero raw", opts: InitPoolOptions{SqrtPriceX96: new(big.Int)}, wantErr: true},
		{name: "bad price", opts: InitPoolOptions{Price: "-2"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := initialPrice(tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Cmp(tt.want) != 0 {
				t.Errorf("sqrtPriceX96 = %s, want %s", got, tt.want)
			}
		})
	}
}
