package erc20

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/poolkit/internal/rpc"
)

// Caller executes read-only contract calls. rpc.Client satisfies it.
type Caller interface {
	EthCall(ctx context.Context, msg rpc.CallMsg, block string) ([]byte, error)
}

var stringArgs = func() abi.Arguments {
	t, _ := abi.NewType("string", "", nil)
	return abi.Arguments{{Type: t}}
}()

// Token reads state from an ERC20 contract.
type Token struct {
	Address common.Address
	caller  Caller
}

// NewToken binds a token at addr.
func NewToken(c Caller, addr common.Address) *Token {
	return &Token{Address: addr, caller: c}
}

func (t *Token) call(ctx context.Context, data []byte) ([]byte, error) {
	return t.caller.EthCall(ctx, rpc.CallMsg{To: &t.Address, Data: data}, "latest")
}

func (t *Token) callUint(ctx context.Context, what string, data []byte) (*big.Int, error) {
	ret, err := t.call(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if len(ret) < 32 {
		return nil, fmt.Errorf("%s: short return (%d bytes)", what, len(ret))
	}
	return new(big.Int).SetBytes(ret[:32]), nil
}

// Symbol returns the token symbol. Tokens that return bytes32 instead of
// string are handled.
func (t *Token) Symbol(ctx context.Context) (string, error) {
	return t.callString(ctx, "symbol", SelectorSymbol)
}

// Name returns the token name.
func (t *Token) Name(ctx context.Context) (string, error) {
	return t.callString(ctx, "name", SelectorName)
}

func (t *Token) callString(ctx context.Context, what string, sel []byte) (string, error) {
	ret, err := t.call(ctx, sel)
	if err != nil {
		return "", fmt.Errorf("%s: %w", what, err)
	}
	return DecodeString(ret)
}

// DecodeString decodes an ABI string return value, falling back to a
// NUL-padded bytes32.
func DecodeString(ret []byte) (string, error) {
	if len(ret) == 32 {
		return string(bytes.TrimRight(ret, "\x00")), nil
	}
	out, err := stringArgs.Unpack(ret)
	if err != nil {
		return "", fmt.Errorf("decode string: %w", err)
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("decode string: unexpected %T", out[0])
	}
	return s, nil
}

// Decimals returns the token's decimals.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	v, err := t.callUint(ctx, "decimals", SelectorDecimals)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Uint64() > 255 {
		return 0, fmt.Errorf("decimals: value %s out of range", v)
	}
	return uint8(v.Uint64()), nil
}

// TotalSupply returns the total token supply.
func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	return t.callUint(ctx, "totalSupply", SelectorTotalSupply)
}

// BalanceOf returns the token balance of account.
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return t.callUint(ctx, "balanceOf", EncodeBalanceOf(account))
}

// Allowance returns how much spender may transfer on behalf of owner.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callUint(ctx, "allowance", EncodeAllowance(owner, spender))
}
