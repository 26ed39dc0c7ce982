// Package erc20 encodes ERC20 calls and reads token state.
package erc20

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ERC20 function selectors
var (
	SelectorTransfer     = selector("transfer(address,uint256)")
	SelectorTransferFrom = selector("transferFrom(address,address,uint256)")
	SelectorApprove      = selector("approve(address,uint256)")
	SelectorBalanceOf    = selector("balanceOf(address)")
	SelectorAllowance    = selector("allowance(address,address)")
	SelectorTotalSupply  = selector("totalSupply()")
	SelectorSymbol       = selector("symbol()")
	SelectorName         = selector("name()")
	SelectorDecimals     = selector("decimals()")
)

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func encode(sel []byte, words ...[]byte) []byte {
	data := make([]byte, 4, 4+32*len(words))
	copy(data, sel)
	for _, w := range words {
		data = append(data, common.LeftPadBytes(w, 32)...)
	}
	return data
}

func amountBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}

// EncodeTransfer encodes transfer(address,uint256).
func EncodeTransfer(to common.Address, amount *big.Int) []byte {
	return encode(SelectorTransfer, to.Bytes(), amountBytes(amount))
}

// EncodeTransferFrom encodes transferFrom(address,address,uint256).
func EncodeTransferFrom(from, to common.Address, amount *big.Int) []byte {
	return encode(SelectorTransferFrom, from.Bytes(), to.Bytes(), amountBytes(amount))
}

// EncodeApprove encodes approve(address,uint256).
func EncodeApprove(spender common.Address, amount *big.Int) []byte {
	return encode(SelectorApprove, spender.Bytes(), amountBytes(amount))
}

// EncodeBalanceOf encodes balanceOf(address).
func EncodeBalanceOf(account common.Address) []byte {
	return encode(SelectorBalanceOf, account.Bytes())
}

// EncodeAllowance encodes allowance(address,address).
func EncodeAllowance(owner, spender common.Address) []byte {
	return encode(SelectorAllowance, owner.Bytes(), spender.Bytes())
}
