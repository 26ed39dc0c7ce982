package uniswapv3

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Function selectors (first 4 bytes of keccak256(signature))
var (
	// UniswapV3Factory selectors
	SelectorCreatePool = selector("createPool(address,address,uint24)")
	SelectorGetPool    = selector("getPool(address,address,uint24)")

	// UniswapV3Pool selectors
	SelectorInitialize = selector("initialize(uint160)")
	SelectorSlot0      = selector("slot0()")
	SelectorLiquidity  = selector("liquidity()")
	SelectorToken0     = selector("token0()")
	SelectorToken1     = selector("token1()")
	SelectorFee        = selector("fee()")

	// NonfungiblePositionManager selectors
	SelectorMintPosition = selector("mint((address,address,uint24,int24,int24,uint256,uint256,uint256,uint256,address,uint256))")
)

// selector computes the 4-byte function selector from signature.
func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// putAddress writes addr right-aligned into the 32-byte word at data[off:].
func putAddress(data []byte, off int, addr common.Address) {
	copy(data[off+12:off+32], addr.Bytes())
}

// putInt writes v as a two's complement int256 word at data[off:].
func putInt(data []byte, off int, v int64) {
	b := big.NewInt(v)
	if v < 0 {
		b.Add(b, twoTo256)
	}
	b.FillBytes(data[off : off+32])
}

// putUint writes v at data[off:]; nil encodes as zero.
func putUint(data []byte, off int, v *big.Int) {
	if v == nil {
		return
	}
	v.FillBytes(data[off : off+32])
}

// EncodeCreatePool encodes UniswapV3Factory.createPool(address,address,uint24) call.
func EncodeCreatePool(tokenA, tokenB common.Address, fee uint32) []byte {
	data := make([]byte, 4+32+32+32)
	copy(data[:4], SelectorCreatePool)
	putAddress(data, 4, tokenA)
	putAddress(data, 36, tokenB)
	putInt(data, 68, int64(fee))
	return data
}

// EncodeGetPool encodes UniswapV3Factory.getPool(address,address,uint24) call.
func EncodeGetPool(tokenA, tokenB common.Address, fee uint32) []byte {
	data := make([]byte, 4+32+32+32)
	copy(data[:4], SelectorGetPool)
	putAddress(data, 4, tokenA)
	putAddress(data, 36, tokenB)
	putInt(data, 68, int64(fee))
	return data
}

// EncodeInitialize encodes UniswapV3Pool.initialize(uint160) call.
func EncodeInitialize(sqrtPriceX96 *big.Int) []byte {
	data := make([]byte, 4+32)
	copy(data[:4], SelectorInitialize)
	putUint(data, 4, sqrtPriceX96)
	return data
}

// EncodeMintPosition encodes NonfungiblePositionManager.mint(...) call.
// The struct has all static types, so no offset pointer is needed - fields are encoded directly.
func EncodeMintPosition(params MintParams) []byte {
	// 4 (selector) + 11*32 (11 fields) = 356 bytes
	data := make([]byte, 4+11*32)
	copy(data[:4], SelectorMintPosition)

	putAddress(data, 4, params.Token0)
	putAddress(data, 36, params.Token1)
	putInt(data, 68, int64(params.Fee))
	// int24 ticks are sign-extended to int256
	putInt(data, 100, int64(params.TickLower))
	putInt(data, 132, int64(params.TickUpper))
	putUint(data, 164, params.Amount0Desired)
	putUint(data, 196, params.Amount1Desired)
	putUint(data, 228, params.Amount0Min)
	putUint(data, 260, params.Amount1Min)
	putAddress(data, 292, params.Recipient)
	putUint(data, 324, params.Deadline)

	return data
}

// DecodeAddress decodes a single address return value.
func DecodeAddress(ret []byte) (common.Address, error) {
	if len(ret) < 32 {
		return common.Address{}, fmt.Errorf("address return too short: %d bytes", len(ret))
	}
	return common.BytesToAddress(ret[12:32]), nil
}

// DecodeUint decodes a single unsigned integer return value.
func DecodeUint(ret []byte) (*big.Int, error) {
	if len(ret) < 32 {
		return nil, fmt.Errorf("uint return too short: %d bytes", len(ret))
	}
	return new(big.Int).SetBytes(ret[:32]), nil
}

// DecodeSlot0 decodes the seven-word return value of UniswapV3Pool.slot0().
func DecodeSlot0(ret []byte) (*Slot0, error) {
	if len(ret) < 7*32 {
		return nil, fmt.Errorf("slot0 return too short: %d bytes", len(ret))
	}
	word := func(i int) []byte { return ret[i*32 : (i+1)*32] }

	return &Slot0{
		SqrtPriceX96: new(big.Int).SetBytes(word(0)),
		// int24 sign-extended to 32 bytes, so the low 4 bytes hold it as int32
		Tick:                       int32(binary.BigEndian.Uint32(word(1)[28:])),
		ObservationIndex:           binary.BigEndian.Uint16(word(2)[30:]),
		ObservationCardinality:     binary.BigEndian.Uint16(word(3)[30:]),
		ObservationCardinalityNext: binary.BigEndian.Uint16(word(4)[30:]),
		FeeProtocol:                word(5)[31],
		Unlocked:                   word(6)[31] != 0,
	}, nil
}

// MintResult is the return value of NonfungiblePositionManager.mint.
type MintResult struct {
	TokenID   *big.Int `json:"tokenId"`
	Liquidity *big.Int `json:"liquidity"`
	Amount0   *big.Int `json:"amount0"`
	Amount1   *big.Int `json:"amount1"`
}

// DecodeMintResult decodes (uint256 tokenId, uint128 liquidity, uint256 amount0, uint256 amount1).
func DecodeMintResult(ret []byte) (*MintResult, error) {
	if len(ret) < 4*32 {
		return nil, fmt.Errorf("mint return too short: %d bytes", len(ret))
	}
	word := func(i int) *big.Int { return new(big.Int).SetBytes(ret[i*32 : (i+1)*32]) }
	return &MintResult{
		TokenID:   word(0),
		Liquidity: word(1),
		Amount0:   word(2),
		Amount1:   word(3),
	}, nil
}
