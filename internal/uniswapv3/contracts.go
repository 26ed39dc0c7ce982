package uniswapv3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/poolkit/internal/rpc"
)

// Caller executes read-only contract calls. rpc.Client satisfies it.
type Caller interface {
	EthCall(ctx context.Context, msg rpc.CallMsg, block string) ([]byte, error)
}

func call(ctx context.Context, c Caller, to common.Address, data []byte) ([]byte, error) {
	return c.EthCall(ctx, rpc.CallMsg{To: &to, Data: data}, "latest")
}

// Factory reads from a UniswapV3Factory.
type Factory struct {
	Address common.Address
	caller  Caller
}

// NewFactory binds a factory at addr.
func NewFactory(c Caller, addr common.Address) *Factory {
	return &Factory{Address: addr, caller: c}
}

// GetPool returns the pool for the pair and fee, or the zero address if none exists.
func (f *Factory) GetPool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	ret, err := call(ctx, f.caller, f.Address, EncodeGetPool(tokenA, tokenB, fee))
	if err != nil {
		return common.Address{}, fmt.Errorf("getPool: %w", err)
	}
	return DecodeAddress(ret)
}

// Pool reads from a UniswapV3Pool.
type Pool struct {
	Address common.Address
	caller  Caller
}

// NewPool binds a pool at addr.
func NewPool(c Caller, addr common.Address) *Pool {
	return &Pool{Address: addr, caller: c}
}

// Slot0 returns the pool's packed price and oracle state.
func (p *Pool) Slot0(ctx context.Context) (*Slot0, error) {
	ret, err := call(ctx, p.caller, p.Address, SelectorSlot0)
	if err != nil {
		return nil, fmt.Errorf("slot0: %w", err)
	}
	return DecodeSlot0(ret)
}

// Liquidity returns the pool's in-range liquidity.
func (p *Pool) Liquidity(ctx context.Context) (*big.Int, error) {
	ret, err := call(ctx, p.caller, p.Address, SelectorLiquidity)
	if err != nil {
		return nil, fmt.Errorf("liquidity: %w", err)
	}
	return DecodeUint(ret)
}

// Tokens returns the pool's token0 and token1.
func (p *Pool) Tokens(ctx context.Context) (common.Address, common.Address, error) {
	ret0, err := call(ctx, p.caller, p.Address, SelectorToken0)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token0: %w", err)
	}
	ret1, err := call(ctx, p.caller, p.Address, SelectorToken1)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token1: %w", err)
	}
	token0, err := DecodeAddress(ret0)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token1, err := DecodeAddress(ret1)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return token0, token1, nil
}

// Fee returns the pool's fee tier.
func (p *Pool) Fee(ctx context.Context) (uint32, error) {
	ret, err := call(ctx, p.caller, p.Address, SelectorFee)
	if err != nil {
		return 0, fmt.Errorf("fee: %w", err)
	}
	v, err := DecodeUint(ret)
	if err != nil {
		return 0, err
	}
	return uint32(v.Uint64()), nil
}
