// Package revert decodes EVM revert payloads: custom errors declared by a
// contract, the built-in Error(string) and Panic(uint256).
package revert

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrorSelector is the selector of Error(string).
	ErrorSelector = [4]byte{0x08, 0xc3, 0x79, 0xa0}
	// PanicSelector is the selector of Panic(uint256).
	PanicSelector = [4]byte{0x4e, 0x48, 0x7b, 0x71}
)

// Decoded is a revert payload matched against a known error signature.
type Decoded struct {
	Name     string        // error name, e.g. "PoolAlreadyExists"
	Sig      string        // canonical signature, e.g. "PoolAlreadyExists()"
	Selector [4]byte       // first four bytes of the payload
	Args     []interface{} // decoded arguments, in declaration order
	Reason   string        // message for Error(string) and Panic(uint256)
}

func (d *Decoded) String() string {
	if d.Reason != "" {
		return fmt.Sprintf("%s: %s", d.Name, d.Reason)
	}
	if len(d.Args) == 0 {
		return d.Sig
	}
	parts := make([]string, len(d.Args))
	for i, a := range d.Args {
		parts[i] = fmt.Sprint(a)
	}
	return fmt.Sprintf("%s(%s)", d.Name, strings.Join(parts, ", "))
}

// Decoder matches revert data against a set of error signatures.
type Decoder struct {
	errors map[[4]byte]abi.Error
	sigs   map[[4]byte]string
}

// NewDecoder builds a decoder from signatures such as "Unauthorized()" or
// "InsufficientBalance(uint256,uint256)". Error(string) and Panic(uint256)
// are always understood.
func NewDecoder(sigs ...string) (*Decoder, error) {
	d := &Decoder{
		errors: make(map[[4]byte]abi.Error, len(sigs)),
		sigs:   make(map[[4]byte]string, len(sigs)),
	}
	for _, sig := range sigs {
		name, args, err := parseSignature(sig)
		if err != nil {
			return nil, err
		}
		e := abi.NewError(name, args)
		sel := Selector(e.Sig)
		d.errors[sel] = e
		d.sigs[sel] = e.Sig
	}
	return d, nil
}

// MustDecoder is NewDecoder that panics on a malformed signature.
func MustDecoder(sigs ...string) *Decoder {
	d, err := NewDecoder(sigs...)
	if err != nil {
		panic(err)
	}
	return d
}

// Signatures returns the canonical custom error signatures known to d.
func (d *Decoder) Signatures() []string {
	out := make([]string, 0, len(d.sigs))
	for _, s := range d.sigs {
		out = append(out, s)
	}
	return out
}

// Decode matches data against the known signatures. It returns false when
// data is too short or the selector is unknown.
func (d *Decoder) Decode(data []byte) (*Decoded, bool) {
	if len(data) < 4 {
		return nil, false
	}
	var sel [4]byte
	copy(sel[:], data[:4])

	switch sel {
	case ErrorSelector, PanicSelector:
		reason, err := abi.UnpackRevert(data)
		if err != nil {
			if sel != ErrorSelector {
				return nil, false
			}
			// Fall back to reading the string by hand.
			reason, err = DecodeErrorString(data)
			if err != nil {
				return nil, false
			}
		}
		name := "Error"
		if sel == PanicSelector {
			name = "Panic"
		}
		return &Decoded{Name: name, Sig: name + "(" + builtinArg(sel) + ")", Selector: sel, Reason: reason}, true
	}

	e, ok := d.errors[sel]
	if !ok {
		return nil, false
	}
	args, err := e.Unpack(data)
	if err != nil {
		return nil, false
	}
	values, _ := args.([]interface{})
	return &Decoded{Name: e.Name, Sig: e.Sig, Selector: sel, Args: values}, true
}

func builtinArg(sel [4]byte) string {
	if sel == PanicSelector {
		return "uint256"
	}
	return "string"
}

// DecodeErrorString reads an Error(string) payload without the ABI decoder:
// selector, 32-byte offset, 32-byte length, then the UTF-8 bytes.
func DecodeErrorString(data []byte) (string, error) {
	if len(data) < 68 || !bytes.Equal(data[:4], ErrorSelector[:]) {
		return "", fmt.Errorf("not an Error(string) payload")
	}
	length := new(big.Int).SetBytes(data[36:68])
	if !length.IsUint64() || length.Uint64() > uint64(len(data)-68) {
		return "", fmt.Errorf("error string length %s exceeds payload", length)
	}
	return string(data[68 : 68+length.Uint64()]), nil
}

// Selector returns the 4-byte selector of a signature.
func Selector(sig string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(sig))[:4])
	return sel
}

// Hex renders data as 0x-prefixed hex, or "0x" when empty.
func Hex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

// parseSignature splits "Name(t1,t2)" into the name and ABI arguments.
// Tuple parameters are not supported.
func parseSignature(sig string) (string, abi.Arguments, error) {
	sig = strings.ReplaceAll(sig, " ", "")
	open := strings.IndexByte(sig, '(')
	if open <= 0 || !strings.HasSuffix(sig, ")") {
		return "", nil, fmt.Errorf("malformed error signature %q", sig)
	}
	name := sig[:open]
	inner := sig[open+1 : len(sig)-1]
	if strings.ContainsAny(inner, "()") {
		return "", nil, fmt.Errorf("tuple parameters not supported in %q", sig)
	}

	var args abi.Arguments
	if inner == "" {
		return name, args, nil
	}
	for i, t := range strings.Split(inner, ",") {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			return "", nil, fmt.Errorf("bad type %q in %q: %w", t, sig, err)
		}
		args = append(args, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: typ})
	}
	return name, args, nil
}
