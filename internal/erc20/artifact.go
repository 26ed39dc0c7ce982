package erc20

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultArtifactPath is where Hardhat writes the test token artifact.
const DefaultArtifactPath = "artifacts/contracts/ArbitrumTestToken.sol/ArbitrumTestToken.json"

// Artifact is a compiled contract as emitted by Hardhat or Foundry.
type Artifact struct {
	ContractName string
	Bytecode     []byte
	ABI          *abi.ABI // nil if the artifact carries no ABI
}

// LoadArtifact reads an artifact JSON file. The bytecode field may be a hex
// string (Hardhat) or an object with an "object" key (Foundry).
func LoadArtifact(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return ParseArtifact(raw)
}

// ParseArtifact parses artifact JSON.
func ParseArtifact(raw []byte) (*Artifact, error) {
	var doc struct {
		ContractName string          `json:"contractName"`
		Bytecode     json.RawMessage `json:"bytecode"`
		ABI          json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}

	code, err := parseBytecode(doc.Bytecode)
	if err != nil {
		return nil, err
	}

	a := &Artifact{ContractName: doc.ContractName, Bytecode: code}
	if len(doc.ABI) > 0 && string(doc.ABI) != "null" {
		parsed, err := abi.JSON(bytes.NewReader(doc.ABI))
		if err != nil {
			return nil, fmt.Errorf("parse artifact abi: %w", err)
		}
		a.ABI = &parsed
	}
	return a, nil
}

func parseBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("artifact has no bytecode")
	}
	var hexCode string
	if err := json.Unmarshal(raw, &hexCode); err != nil {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("artifact bytecode is neither a string nor an object")
		}
		hexCode = obj.Object
	}
	if len(hexCode) < 2 || hexCode[:2] != "0x" {
		hexCode = "0x" + hexCode
	}
	code, err := hexutil.Decode(hexCode)
	if err != nil {
		return nil, fmt.Errorf("decode artifact bytecode: %w", err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("artifact bytecode is empty (abstract contract or interface?)")
	}
	return code, nil
}

// ErrorSignatures returns the custom error signatures declared in the ABI.
func (a *Artifact) ErrorSignatures() []string {
	if a.ABI == nil {
		return nil
	}
	sigs := make([]string, 0, len(a.ABI.Errors))
	for _, e := range a.ABI.Errors {
		sigs = append(sigs, e.Sig)
	}
	return sigs
}

// ConstructorTakesArgs reports whether deployment needs encoded constructor arguments.
func (a *Artifact) ConstructorTakesArgs() bool {
	return a.ABI != nil && len(a.ABI.Constructor.Inputs) > 0
}
