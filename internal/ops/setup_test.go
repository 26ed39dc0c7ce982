package ops

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/poolkit/internal/account"
	"github.com/gateway-fm/poolkit/internal/config"
	"github.com/gateway-fm/poolkit/internal/metrics"
	"github.com/gateway-fm/poolkit/internal/storage"
	"github.com/gateway-fm/poolkit/internal/uniswapv3"
)

func chainIDServer(t *testing.T, chainID string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if req.Method == "eth_chainId" {
			resp["result"] = chainID
		} else {
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConnectResolvesChain(t *testing.T) {
	srv := chainIDServer(t, "0x66eee") // 421614
	cfg := &config.Config{
		RPCURL:     srv.URL,
		PrivateKey: account.TestPrivateKeys[0],
		LogLevel:   "info",
	}

	r, err := Connect(context.Background(), cfg, Options{Metrics: metrics.NewPrometheusMetrics()})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer r.Close()

	if r.ChainID().Int64() != 421614 || cfg.ChainID != 421614 {
		t.Errorf("chain id = %s / %d", r.ChainID(), cfg.ChainID)
	}
	known := uniswapv3.KnownDeployments[421614]
	if cfg.Factory != known.Factory || cfg.WETH != known.WETH {
		t.Errorf("deployment defaults not applied: %s %s", cfg.Factory.Hex(), cfg.WETH.Hex())
	}
	if r.Wallet() != common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266") {
		t.Errorf("wallet = %s", r.Wallet().Hex())
	}
	if _, ok := r.journal.(storage.Nop); !ok {
		t.Errorf("empty JOURNAL_PATH should give a no-op journal, got %T", r.journal)
	}
}

func TestConnectKeepsConfiguredChainID(t *testing.T) {
	srv := chainIDServer(t, "0x7a69") // 31337
	cfg := &config.Config{
		RPCURL:     srv.URL,
		PrivateKey: account.TestPrivateKeys[0],
		ChainID:    421614,
		LogLevel:   "info",
	}
	r, err := Connect(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer r.Close()
	if r.ChainID().Int64() != 31337 || cfg.ChainID != 421614 {
		t.Errorf("chain id = %s / %d", r.ChainID(), cfg.ChainID)
	}
}

func TestConnectFillsAddressesFromJournal(t *testing.T) {
	srv := chainIDServer(t, "0x66eee")
	ctx := context.Background()
	journal, err := storage.NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	run := storage.NewRun("deploy", 421614, "0xabc")
	if err := journal.StartRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	deployed := common.HexToAddress("0x1111111111111111111111111111111111111111")
	for _, d := range []*storage.Deployment{
		{RunID: run.ID, ChainID: 421614, Name: "token", Address: deployed.Hex()},
		{RunID: run.ID, ChainID: 421614, Name: "pool", Address: "0x3333333333333333333333333333333333333333"},
		{RunID: run.ID, ChainID: 42161, Name: "token", Address: "0x4444444444444444444444444444444444444444"},
	} {
		if err := journal.RecordDeployment(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	configured := common.HexToAddress("0x2222222222222222222222222222222222222222")
	cfg := &config.Config{
		RPCURL:     srv.URL,
		PrivateKey: account.TestPrivateKeys[0],
		Pool:       configured,
		LogLevel:   "info",
	}
	r, err := Connect(ctx, cfg, Options{Journal: journal})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer r.Close()
	if cfg.Token != deployed {
		t.Errorf("token = %s, want journaled %s", cfg.Token.Hex(), deployed.Hex())
	}
	if cfg.Pool != configured {
		t.Errorf("pool = %s, configured address should win", cfg.Pool.Hex())
	}
}

func TestConnectErrors(t *testing.T) {
	srv := chainIDServer(t, "0x66eee")
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr string
	}{
		{name: "missing everything", cfg: config.Config{LogLevel: "info"}, wantErr: "RPC_URL, PRIVATE_KEY"},
		{name: "bad key", cfg: config.Config{RPCURL: srv.URL, PrivateKey: "0x1234", LogLevel: "info"}, wantErr: "invalid private key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Connect(context.Background(), &tt.cfg, Options{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
