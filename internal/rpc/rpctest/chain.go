// Package rpctest provides an in-memory rpc.Client for tests.
package rpctest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gateway-fm/poolkit/internal/rpc"
)

// CallHandler answers eth_call for one (contract, selector) pair.
type CallHandler func(msg rpc.CallMsg, block string) ([]byte, error)

// Chain is a scriptable fake node. Sent transactions are decoded and kept;
// receipts are available immediately after sending.
type Chain struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	GasPrice     *big.Int
	GasEstimate  uint64

	balances map[common.Address]*big.Int
	codes    map[common.Address]string
	calls    map[string]CallHandler

	// EstimateErr, if set, fails eth_estimateGas for matching messages.
	EstimateErr func(msg rpc.CallMsg) error
	// SendErr, if set, rejects transactions before they are mined.
	SendErr func(tx *types.Transaction) error
	// Status decides the receipt status for a mined tx. Nil means success.
	Status func(tx *types.Transaction) uint64
	// OnMined runs after a successful tx is mined, outside the lock.
	OnMined func(tx *types.Transaction)
	// ReceiptErr, if set, fails eth_getTransactionReceipt when it returns
	// non-nil.
	ReceiptErr func(txHash string) error

	Sent     []*types.Transaction
	receipts map[common.Hash]*rpc.TransactionReceipt
	nonces   map[common.Address]uint64
	block    uint64
	Methods  []string
}

var _ rpc.Client = (*Chain)(nil)

// NewChain creates a fake chain with the given id.
func NewChain(chainID int64) *Chain {
	return &Chain{
		ChainIDValue: big.NewInt(chainID),
		GasPrice:     big.NewInt(100_000_000), // 0.1 gwei
		GasEstimate:  100_000,
		balances:     make(map[common.Address]*big.Int),
		codes:        make(map[common.Address]string),
		calls:        make(map[string]CallHandler),
		receipts:     make(map[common.Hash]*rpc.TransactionReceipt),
		nonces:       make(map[common.Address]uint64),
		block:        100,
	}
}

func callKey(to common.Address, sel []byte) string {
	return strings.ToLower(to.Hex()) + common.Bytes2Hex(sel)
}

// HandleCall registers h for calls to `to` starting with selector sel.
func (c *Chain) HandleCall(to common.Address, sel []byte, h CallHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[callKey(to, sel)] = h
}

// Return registers a fixed return value for (to, sel).
func (c *Chain) Return(to common.Address, sel []byte, ret []byte) {
	c.HandleCall(to, sel, func(rpc.CallMsg, string) ([]byte, error) { return ret, nil })
}

// Revert registers a revert with the given message and data for (to, sel).
func (c *Chain) Revert(to common.Address, sel []byte, message string, data []byte) {
	c.HandleCall(to, sel, func(rpc.CallMsg, string) ([]byte, error) {
		return nil, RevertError(message, data)
	})
}

// RevertError builds the error a node returns for a reverted call.
func RevertError(message string, data []byte) *rpc.RPCError {
	err := &rpc.RPCError{Code: 3, Message: message}
	if len(data) > 0 {
		raw, _ := json.Marshal(hexutil.Encode(data))
		err.Data = raw
	}
	return err
}

// SetBalance sets the ETH balance of addr.
func (c *Chain) SetBalance(addr common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[addr] = new(big.Int).Set(wei)
}

// SetCode sets the code at addr.
func (c *Chain) SetCode(addr common.Address, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[addr] = code
}

// SentTo returns the mined or rejected transactions sent to addr whose data
// starts with sel.
func (c *Chain) SentTo(addr common.Address, sel []byte) []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*types.Transaction
	for _, tx := range c.Sent {
		if tx.To() != nil && *tx.To() == addr && len(tx.Data()) >= 4 && string(tx.Data()[:4]) == string(sel) {
			out = append(out, tx)
		}
	}
	return out
}

func (c *Chain) record(method string) {
	c.mu.Lock()
	c.Methods = append(c.Methods, method)
	c.mu.Unlock()
}

// Call is not used by poolkit's typed helpers; it reports the method as unsupported.
func (c *Chain) Call(_ context.Context, method string, _ []interface{}) (json.RawMessage, error) {
	c.record(method)
	return nil, &rpc.RPCError{Code: -32601, Message: "method " + method + " not supported by fake chain"}
}

func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	c.record("eth_chainId")
	return new(big.Int).Set(c.ChainIDValue), nil
}

func (c *Chain) GetNonce(_ context.Context, address string) (uint64, error) {
	c.record("eth_getTransactionCount")
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[common.HexToAddress(address)], nil
}

func (c *Chain) GetCode(_ context.Context, address string) (string, error) {
	c.record("eth_getCode")
	c.mu.Lock()
	defer c.mu.Unlock()
	if code, ok := c.codes[common.HexToAddress(address)]; ok {
		return code, nil
	}
	return "0x", nil
}

func (c *Chain) GetGasPrice(context.Context) (*big.Int, error) {
	c.record("eth_gasPrice")
	return new(big.Int).Set(c.GasPrice), nil
}

func (c *Chain) GetBalance(_ context.Context, address string) (*big.Int, error) {
	c.record("eth_getBalance")
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.balances[common.HexToAddress(address)]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (c *Chain) EthCall(_ context.Context, msg rpc.CallMsg, block string) ([]byte, error) {
	c.record("eth_call")
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, RevertError("execution reverted", nil)
	}
	c.mu.Lock()
	h, ok := c.calls[callKey(*msg.To, msg.Data[:4])]
	c.mu.Unlock()
	if !ok {
		return nil, RevertError("execution reverted", nil)
	}
	return h(msg, block)
}

func (c *Chain) EstimateGas(_ context.Context, msg rpc.CallMsg) (uint64, error) {
	c.record("eth_estimateGas")
	if c.EstimateErr != nil {
		if err := c.EstimateErr(msg); err != nil {
			return 0, err
		}
	}
	return c.GasEstimate, nil
}

func (c *Chain) SendRawTransaction(_ context.Context, raw []byte) (string, error) {
	c.record("eth_sendRawTransaction")
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", &rpc.RPCError{Code: -32602, Message: "invalid transaction: " + err.Error()}
	}
	from, err := types.Sender(types.LatestSignerForChainID(c.ChainIDValue), tx)
	if err != nil {
		return "", &rpc.RPCError{Code: -32000, Message: "invalid sender: " + err.Error()}
	}

	c.mu.Lock()
	c.Sent = append(c.Sent, tx)
	if want := c.nonces[from]; tx.Nonce() != want {
		c.mu.Unlock()
		return "", &rpc.RPCError{Code: -32000, Message: fmt.Sprintf("nonce too low: have %d, want %d", tx.Nonce(), want)}
	}
	c.mu.Unlock()

	if c.SendErr != nil {
		if err := c.SendErr(tx); err != nil {
			return "", err
		}
	}

	status := uint64(1)
	if c.Status != nil {
		status = c.Status(tx)
	}

	c.mu.Lock()
	c.nonces[from]++
	c.block++
	receipt := &rpc.TransactionReceipt{
		TxHash:      tx.Hash().Hex(),
		Status:      status,
		GasUsed:     min(tx.Gas(), 50_000),
		BlockNumber: c.block,
	}
	if tx.To() == nil {
		addr := crypto.CreateAddress(from, tx.Nonce())
		receipt.ContractAddress = addr.Hex()
		if status == 1 {
			c.codes[addr] = "0x6080"
		}
	}
	c.receipts[tx.Hash()] = receipt
	c.mu.Unlock()

	if status == 1 && c.OnMined != nil {
		c.OnMined(tx)
	}
	return tx.Hash().Hex(), nil
}

func (c *Chain) GetTransactionReceipt(_ context.Context, txHash string) (*rpc.TransactionReceipt, error) {
	c.record("eth_getTransactionReceipt")
	if c.ReceiptErr != nil {
		if err := c.ReceiptErr(txHash); err != nil {
			return nil, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[common.HexToHash(txHash)]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}
