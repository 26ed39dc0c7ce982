package uniswapv3

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// POOL_INIT_CODE_HASH is the keccak256 of the UniswapV3Pool bytecode.
// This is used by the factory to compute pool addresses via CREATE2.
// From: https://github.com/Uniswap/v3-core/blob/main/contracts/UniswapV3Factory.sol
var POOL_INIT_CODE_HASH = common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54")

// SortTokens returns tokens in pool order (numerically lower address first).
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address) {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) < 0 {
		return tokenA, tokenB
	}
	return tokenB, tokenA
}

// ComputePoolAddress computes the CREATE2 address for a Uniswap V3 pool.
// The pool address is deterministic based on factory address, token pair, and fee.
func ComputePoolAddress(factory common.Address, tokenA, tokenB common.Address, fee uint32) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)

	// salt = keccak256(abi.encode(token0, token1, fee))
	salt := crypto.Keccak256Hash(
		common.LeftPadBytes(token0.Bytes(), 32),
		common.LeftPadBytes(token1.Bytes(), 32),
		common.LeftPadBytes(big.NewInt(int64(fee)).Bytes(), 32),
	)

	return crypto.CreateAddress2(factory, salt, POOL_INIT_CODE_HASH.Bytes())
}
