package revert

// Error sets raised by the contracts poolkit talks to.
var (
	// Factory covers pool creation failures.
	Factory = MustDecoder(
		"PoolAlreadyExists()",
		"InvalidToken()",
		"InvalidFee()",
		"InsufficientFunds()",
		"Unauthorized()",
	)

	// Token covers ERC20 transfer failures, including the OpenZeppelin 5.x
	// custom errors.
	Token = MustDecoder(
		"TransferInvalid()",
		"TransferFailed()",
		"InsufficientBalance()",
		"Unauthorized()",
		"ERC20InsufficientBalance(address,uint256,uint256)",
		"ERC20InsufficientAllowance(address,uint256,uint256)",
		"ERC20InvalidReceiver(address)",
		"ERC20InvalidSender(address)",
	)
)
