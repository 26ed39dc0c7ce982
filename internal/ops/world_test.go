package ops

import (
	"bytes"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gateway-fm/poolkit/internal/account"
	"github.com/gateway-fm/poolkit/internal/config"
	"github.com/gateway-fm/poolkit/internal/console"
	"github.com/gateway-fm/poolkit/internal/erc20"
	"github.com/gateway-fm/poolkit/internal/metrics"
	"github.com/gateway-fm/poolkit/internal/revert"
	"github.com/gateway-fm/poolkit/internal/rpc"
	"github.com/gateway-fm/poolkit/internal/rpc/rpctest"
	"github.com/gateway-fm/poolkit/internal/storage"
	"github.com/gateway-fm/poolkit/internal/txsender"
	"github.com/gateway-fm/poolkit/internal/uniswapv3"
	"github.com/gateway-fm/poolkit/internal/units"
)

const testChainID = 421614

var (
	testToken   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testWETH    = common.HexToAddress("0x980B62Da83eFf3D4576C647993b0c1D7faf17c73")
	testFactory = common.HexToAddress("0x248AB79Bbb9bC29bB72f7Cd42F17e054Fc40188e")
	testManager = common.HexToAddress("0x6b2937Bde17889EDCf8fbD8dE31C3C2a70Bc4d65")
	testPool    = common.HexToAddress("0x3000000000000000000000000000000000000003")

	testNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
)

// world is a fake Arbitrum deployment: an ERC20, the Uniswap factory, one
// pool and the position manager, all answering from in-memory state.
type world struct {
	t     *testing.T
	chain *rpctest.Chain

	mu          sync.Mutex
	symbol      string
	decimals    uint8
	balances    map[common.Address]*big.Int
	allowances  map[[2]common.Address]*big.Int
	poolCreated bool
	sqrtPrice   *big.Int
	liquidity   *big.Int
	supply      *big.Int
	poolFee     uint32

	rejectTransfer     bool
	rejectTransferFrom bool
	rejectApprove      bool
	rejectCreatePool   bool
	mintSTF            bool
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		t:          t,
		chain:      rpctest.NewChain(testChainID),
		symbol:     "ATT",
		decimals:   18,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[[2]common.Address]*big.Int),
		sqrtPrice:  new(big.Int),
		liquidity:  new(big.Int),
		supply:     units.MustParse("1000000", 18),
		poolFee:    uniswapv3.DefaultFee,
	}
	w.chain.SetBalance(w.wallet(), units.MustParse("1", units.EtherDecimals))
	w.chain.SetCode(testToken, "0x6080")
	w.balances[w.wallet()] = units.MustParse("100", 18)

	w.registerToken()
	w.registerFactory()
	w.registerPool()
	w.registerManager()
	w.chain.Status = w.status
	w.chain.OnMined = w.mined
	return w
}

func (w *world) wallet() common.Address {
	acc, err := account.NewAccountFromHex(account.TestPrivateKeys[0])
	if err != nil {
		w.t.Fatal(err)
	}
	return acc.Address
}

func (w *world) config() *config.Config {
	return &config.Config{
		Network:         config.DefaultNetwork,
		RPCURL:          "http://fake",
		PrivateKey:      account.TestPrivateKeys[0],
		ChainID:         testChainID,
		Token:           testToken,
		WETH:            testWETH,
		Pool:            testPool,
		Factory:         testFactory,
		PositionManager: testManager,
		LogLevel:        "info",
		EnvFile:         filepath.Join(w.t.TempDir(), ".env"),
	}
}

// runner builds a Runner over the fake chain with a temp-dir journal.
func (w *world) runner() (*Runner, *bytes.Buffer, storage.Journal) {
	w.t.Helper()
	acc, err := account.NewAccountFromHex(account.TestPrivateKeys[0])
	if err != nil {
		w.t.Fatal(err)
	}
	sc := txsender.DefaultConfig(w.chain.ChainIDValue)
	sc.PollInterval = time.Millisecond
	sc.MaxPollInterval = 5 * time.Millisecond
	sc.ReceiptTimeout = time.Second

	journal, err := storage.NewSQLiteJournal(filepath.Join(w.t.TempDir(), "journal.db"))
	if err != nil {
		w.t.Fatal(err)
	}
	w.t.Cleanup(func() { journal.Close() })

	var out bytes.Buffer
	r := NewRunner(Deps{
		Client:  w.chain,
		Sender:  txsender.New(w.chain, acc, sc),
		Config:  w.config(),
		ChainID: w.chain.ChainIDValue,
		Out:     console.New(&out),
		Journal: journal,
		Metrics: metrics.NewPrometheusMetrics(),
		Now:     func() time.Time { return testNow },
	})
	return r, &out, journal
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func addrArg(data []byte, i int) common.Address {
	return common.BytesToAddress(data[4+i*32 : 4+(i+1)*32])
}

func uintArg(data []byte, i int) *big.Int {
	return new(big.Int).SetBytes(data[4+i*32 : 4+(i+1)*32])
}

func abiString(s string) []byte {
	out := make([]byte, 64+(len(s)+31)/32*32)
	out[31] = 0x20
	big.NewInt(int64(len(s))).FillBytes(out[32:64])
	copy(out[64:], s)
	return out
}

func customError(sig string) []byte {
	sel := revert.Selector(sig)
	return sel[:]
}

func (w *world) get(m map[common.Address]*big.Int, k common.Address) *big.Int {
	if v, ok := m[k]; ok {
		return v
	}
	return new(big.Int)
}

func (w *world) allowance(owner, spender common.Address) *big.Int {
	if v, ok := w.allowances[[2]common.Address{owner, spender}]; ok {
		return v
	}
	return new(big.Int)
}

func (w *world) setAllowance(owner, spender common.Address, v *big.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.allowances[[2]common.Address{owner, spender}] = new(big.Int).Set(v)
}

func (w *world) tokenBalance(addr common.Address) *big.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.get(w.balances, addr))
}

func (w *world) registerToken() {
	w.chain.HandleCall(testToken, erc20.SelectorSymbol, func(rpc.CallMsg, string) ([]byte, error) {
		return abiString(w.symbol), nil
	})
	w.chain.HandleCall(testToken, erc20.SelectorDecimals, func(rpc.CallMsg, string) ([]byte, error) {
		return word(big.NewInt(int64(w.decimals))), nil
	})
	w.chain.HandleCall(testToken, erc20.SelectorName, func(rpc.CallMsg, string) ([]byte, error) {
		return abiString("Arbitrum Test Token"), nil
	})
	w.chain.HandleCall(testToken, erc20.SelectorTotalSupply, func(rpc.CallMsg, string) ([]byte, error) {
		return word(w.supply), nil
	})
	w.chain.HandleCall(testToken, erc20.SelectorBalanceOf, func(msg rpc.CallMsg, _ string) ([]byte, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		return word(w.get(w.balances, addrArg(msg.Data, 0))), nil
	})
	w.chain.HandleCall(testToken, erc20.SelectorAllowance, func(msg rpc.CallMsg, _ string) ([]byte, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		return word(w.allowance(addrArg(msg.Data, 0), addrArg(msg.Data, 1))), nil
	})
	// Replays of failed transfers land here.
	w.chain.HandleCall(testToken, erc20.SelectorTransfer, func(rpc.CallMsg, string) ([]byte, error) {
		return nil, rpctest.RevertError("execution reverted", customError("TransferFailed()"))
	})
	w.chain.HandleCall(testToken, erc20.SelectorTransferFrom, func(rpc.CallMsg, string) ([]byte, error) {
		return nil, rpctest.RevertError("execution reverted", customError("Unauthorized()"))
	})
}

func (w *world) registerFactory() {
	w.chain.HandleCall(testFactory, uniswapv3.SelectorGetPool, func(rpc.CallMsg, string) ([]byte, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if !w.poolCreated {
			return make([]byte, 32), nil
		}
		return common.LeftPadBytes(testPool.Bytes(), 32), nil
	})
	w.chain.HandleCall(testFactory, uniswapv3.SelectorCreatePool, func(rpc.CallMsg, string) ([]byte, error) {
		return nil, rpctest.RevertError("execution reverted", customError("PoolAlreadyExists()"))
	})
}

func (w *world) registerPool() {
	w.chain.HandleCall(testPool, uniswapv3.SelectorSlot0, func(rpc.CallMsg, string) ([]byte, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		ret := make([]byte, 7*32)
		copy(ret[:32], word(w.sqrtPrice))
		ret[6*32+31] = 1
		return ret, nil
	})
	w.chain.HandleCall(testPool, uniswapv3.SelectorLiquidity, func(rpc.CallMsg, string) ([]byte, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		return word(w.liquidity), nil
	})
	token0, token1 := uniswapv3.SortTokens(testToken, testWETH)
	w.chain.HandleCall(testPool, uniswapv3.SelectorToken0, func(rpc.CallMsg, string) ([]byte, error) {
		return common.LeftPadBytes(token0.Bytes(), 32), nil
	})
	w.chain.HandleCall(testPool, uniswapv3.SelectorToken1, func(rpc.CallMsg, string) ([]byte, error) {
		return common.LeftPadBytes(token1.Bytes(), 32), nil
	})
	w.chain.HandleCall(testPool, uniswapv3.SelectorFee, func(rpc.CallMsg, string) ([]byte, error) {
		return word(big.NewInt(int64(w.poolFee))), nil
	})
}

func (w *world) registerManager() {
	w.chain.HandleCall(testManager, uniswapv3.SelectorMintPosition, func(rpc.CallMsg, string) ([]byte, error) {
		if w.mintSTF {
			return nil, rpctest.RevertError("execution reverted: STF", nil)
		}
		ret := make([]byte, 4*32)
		copy(ret[0:32], word(big.NewInt(42)))
		copy(ret[32:64], word(big.NewInt(1000)))
		return ret, nil
	})
}

func (w *world) status(tx *types.Transaction) uint64 {
	if tx.To() == nil || len(tx.Data()) < 4 {
		return 1
	}
	sel := string(tx.Data()[:4])
	switch {
	case *tx.To() == testToken && sel == string(erc20.SelectorTransfer) && w.rejectTransfer:
		return 0
	case *tx.To() == testToken && sel == string(erc20.SelectorTransferFrom) && w.rejectTransferFrom:
		return 0
	case *tx.To() == testToken && sel == string(erc20.SelectorApprove) && w.rejectApprove:
		return 0
	case *tx.To() == testFactory && sel == string(uniswapv3.SelectorCreatePool) && w.rejectCreatePool:
		return 0
	}
	return 1
}

func (w *world) mined(tx *types.Transaction) {
	if tx.To() == nil || len(tx.Data()) < 4 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	data, from := tx.Data(), w.wallet()
	move := func(src, dst common.Address, amount *big.Int) {
		w.balances[src] = new(big.Int).Sub(w.get(w.balances, src), amount)
		w.balances[dst] = new(big.Int).Add(w.get(w.balances, dst), amount)
	}
	switch sel := string(data[:4]); {
	case *tx.To() == testToken && sel == string(erc20.SelectorTransfer):
		move(from, addrArg(data, 0), uintArg(data, 1))
	case *tx.To() == testToken && sel == string(erc20.SelectorTransferFrom):
		move(addrArg(data, 0), addrArg(data, 1), uintArg(data, 2))
	case *tx.To() == testToken && sel == string(erc20.SelectorApprove):
		w.allowances[[2]common.Address{from, addrArg(data, 0)}] = uintArg(data, 1)
	case *tx.To() == testFactory && sel == string(uniswapv3.SelectorCreatePool):
		w.poolCreated = true
	case *tx.To() == testPool && sel == string(uniswapv3.SelectorInitialize):
		w.sqrtPrice = uintArg(data, 0)
	case *tx.To() == testManager && sel == string(uniswapv3.SelectorMintPosition):
		w.liquidity = new(big.Int).Add(w.liquidity, big.NewInt(1000))
		move(from, testPool, uintArg(data, 5))
	}
}
