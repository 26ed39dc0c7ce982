package uniswapv3

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Fee tiers in hundredths of a bip.
const (
	FeeLowest  uint32 = 100
	FeeLow     uint32 = 500
	FeeMedium  uint32 = 3000
	FeeHigh    uint32 = 10000
	DefaultFee        = FeeMedium
)

// Tick bounds enforced by TickMath.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// MintParams holds parameters for NFTPositionManager.mint
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            uint32
	TickLower      int32
	TickUpper      int32
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

// MarshalJSON renders the params the way they are shown to the operator,
// with amounts as decimal strings.
func (p MintParams) MarshalJSON() ([]byte, error) {
	str := func(v *big.Int) string {
		if v == nil {
			return "0"
		}
		return v.String()
	}
	return json.Marshal(struct {
		Token0         string `json:"token0"`
		Token1         string `json:"token1"`
		Fee            uint32 `json:"fee"`
		TickLower      int32  `json:"tickLower"`
		TickUpper      int32  `json:"tickUpper"`
		Amount0Desired string `json:"amount0Desired"`
		Amount1Desired string `json:"amount1Desired"`
		Amount0Min     string `json:"amount0Min"`
		Amount1Min     string `json:"amount1Min"`
		Recipient      string `json:"recipient"`
		Deadline       string `json:"deadline"`
	}{
		Token0:         p.Token0.Hex(),
		Token1:         p.Token1.Hex(),
		Fee:            p.Fee,
		TickLower:      p.TickLower,
		TickUpper:      p.TickUpper,
		Amount0Desired: str(p.Amount0Desired),
		Amount1Desired: str(p.Amount1Desired),
		Amount0Min:     str(p.Amount0Min),
		Amount1Min:     str(p.Amount1Min),
		Recipient:      p.Recipient.Hex(),
		Deadline:       str(p.Deadline),
	})
}

// Slot0 is the decoded UniswapV3Pool.slot0() state.
type Slot0 struct {
	SqrtPriceX96               *big.Int
	Tick                       int32
	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16
	FeeProtocol                uint8
	Unlocked                   bool
}

// Initialized reports whether the pool has a price set.
func (s *Slot0) Initialized() bool {
	return s.SqrtPriceX96 != nil && s.SqrtPriceX96.Sign() > 0
}

// Deployment holds the Uniswap V3 periphery addresses on a network.
type Deployment struct {
	Factory         common.Address
	PositionManager common.Address
	WETH            common.Address
}

// KnownDeployments maps chain IDs to the canonical Uniswap V3 deployments.
var KnownDeployments = map[uint64]Deployment{
	// Arbitrum Sepolia
	421614: {
		Factory:         common.HexToAddress("0x248AB79Bbb9bC29bB72f7Cd42F17e054Fc40188e"),
		PositionManager: common.HexToAddress("0x6b2937Bde17889EDCf8fbD8dE31C3C2a70Bc4d65"),
		WETH:            common.HexToAddress("0x980B62Da83eFf3D4576C647993b0c1D7faf17c73"),
	},
	// Arbitrum One
	42161: {
		Factory:         common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
		PositionManager: common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88"),
		WETH:            common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
	},
}

// MaxUint256 is the maximum uint256 value (used for approvals).
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
