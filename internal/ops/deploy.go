package ops

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/poolkit/internal/config"
	"github.com/gateway-fm/poolkit/internal/erc20"
)

// DeployOptions configures Deploy.
type DeployOptions struct {
	// Builtin deploys the embedded test ERC20 instead of an artifact.
	Builtin bool
	// ArtifactPath overrides the configured TOKEN_ARTIFACT.
	ArtifactPath string
	// WriteEnv stores TOKEN_ADDRESS in the env file.
	WriteEnv bool
}

// DeployResult is the outcome of Deploy.
type DeployResult struct {
	Contract    string         `json:"contract"`
	Address     common.Address `json:"address"`
	TxHash      string         `json:"txHash"`
	BlockNumber uint64         `json:"blockNumber"`
	GasUsed     uint64         `json:"gasUsed"`
}

const builtinTokenName = "TestToken"

// Deploy deploys the token contract and prints its address.
func (r *Runner) Deploy(ctx context.Context, opts DeployOptions) (*DeployResult, error) {
	r.out.Field("Deploying contracts with account", r.Wallet().Hex())
	r.out.Field("Network", config.NetworkName(r.chainID.Int64()))

	name, bytecode, err := r.tokenBytecode(opts)
	if err != nil {
		return nil, err
	}

	addr, res, err := r.deploy(ctx, name, "token", bytecode)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	r.out.Field("Token deployed to", addr.Hex())
	r.out.Println("\nAdd this to your .env file:")
	r.out.Printf("TOKEN_ADDRESS=%s", addr.Hex())

	if opts.WriteEnv {
		if err := r.writeEnv("TOKEN_ADDRESS", addr.Hex()); err != nil {
			return nil, err
		}
	}
	r.cfg.Token = addr

	return &DeployResult{
		Contract:    name,
		Address:     addr,
		TxHash:      res.Hash(),
		BlockNumber: res.Receipt.BlockNumber,
		GasUsed:     res.Receipt.GasUsed,
	}, nil
}

func (r *Runner) tokenBytecode(opts DeployOptions) (string, []byte, error) {
	if opts.Builtin {
		return builtinTokenName, erc20.TestTokenBytecode, nil
	}
	path := opts.ArtifactPath
	if path == "" {
		path = r.cfg.TokenArtifact
	}
	if path == "" {
		path = erc20.DefaultArtifactPath
	}
	artifact, err := erc20.LoadArtifact(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w (use --builtin to deploy the embedded test token)", err)
	}
	if artifact.ConstructorTakesArgs() {
		return "", nil, fmt.Errorf("%s constructor takes arguments, which deploy does not supply", artifact.ContractName)
	}
	name := artifact.ContractName
	if name == "" {
		name = "Token"
	}
	return name, artifact.Bytecode, nil
}

func (r *Runner) writeEnv(key, value string) error {
	path := r.cfg.EnvFile
	if path == "" {
		path = config.DefaultEnvFile
	}
	if err := config.SetEnvValue(path, key, value); err != nil {
		return err
	}
	r.out.Printf("Updated %s in %s", key, path)
	return nil
}
