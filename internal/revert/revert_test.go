package revert

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

func encode(t *testing.T, sig string, types []string, values ...interface{}) []byte {
	t.Helper()
	var args abi.Arguments
	for _, ts := range types {
		typ, err := abi.NewType(ts, "", nil)
		if err != nil {
			t.Fatalf("NewType(%q): %v", ts, err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	packed, err := args.Pack(values...)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	return append(crypto.Keccak256([]byte(sig))[:4], packed...)
}

func selectorBytes(sig string) []byte {
	sel := Selector(sig)
	return sel[:]
}

func TestSelectors(t *testing.T) {
	if Selector("Error(string)") != ErrorSelector {
		t.Errorf("Error(string) selector = %x", Selector("Error(string)"))
	}
	if Selector("Panic(uint256)") != PanicSelector {
		t.Errorf("Panic(uint256) selector = %x", Selector("Panic(uint256)"))
	}
}

func TestDecodeCustomErrors(t *testing.T) {
	tests := []struct {
		name     string
		decoder  *Decoder
		data     []byte
		wantName string
		wantStr  string
	}{
		{
			name:     "no-arg factory error",
			decoder:  Factory,
			data:     selectorBytes("PoolAlreadyExists()"),
			wantName: "PoolAlreadyExists",
			wantStr:  "PoolAlreadyExists()",
		},
		{
			name:     "token error",
			decoder:  Token,
			data:     selectorBytes("TransferFailed()"),
			wantName: "TransferFailed",
			wantStr:  "TransferFailed()",
		},
		{
			name:     "error with arguments",
			decoder:  MustDecoder("InsufficientBalance(uint256,uint256)"),
			data:     encode(t, "InsufficientBalance(uint256,uint256)", []string{"uint256", "uint256"}, big.NewInt(5), big.NewInt(10)),
			wantName: "InsufficientBalance",
			wantStr:  "InsufficientBalance(5, 10)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.decoder.Decode(tt.data)
			if !ok {
				t.Fatalf("Decode(%x) not matched", tt.data)
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if got.String() != tt.wantStr {
				t.Errorf("String() = %q, want %q", got.String(), tt.wantStr)
			}
		})
	}
}

func TestDecodeErrorString(t *testing.T) {
	data := encode(t, "Error(string)", []string{"string"}, "STF")

	got, ok := Factory.Decode(data)
	if !ok {
		t.Fatal("Error(string) not decoded")
	}
	if got.Name != "Error" || got.Reason != "STF" {
		t.Errorf("decoded = %+v", got)
	}

	manual, err := DecodeErrorString(data)
	if err != nil || manual != "STF" {
		t.Errorf("DecodeErrorString() = %q, %v", manual, err)
	}

	if _, err := DecodeErrorString(data[:40]); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestDecodePanic(t *testing.T) {
	data := encode(t, "Panic(uint256)", []string{"uint256"}, big.NewInt(0x11))

	got, ok := Token.Decode(data)
	if !ok {
		t.Fatal("Panic(uint256) not decoded")
	}
	if got.Name != "Panic" || !strings.Contains(got.Reason, "overflow") {
		t.Errorf("decoded = %+v", got)
	}
}

func TestDecodeUnknown(t *testing.T) {
	if _, ok := Factory.Decode([]byte{0xde, 0xad, 0xbe, 0xef}); ok {
		t.Error("unknown selector should not match")
	}
	if _, ok := Factory.Decode([]byte{0x01}); ok {
		t.Error("short payload should not match")
	}
}

func TestNewDecoderRejectsMalformed(t *testing.T) {
	for _, sig := range []string{"NoParens", "Bad(notatype)", "Tuple((uint256,address))"} {
		if _, err := NewDecoder(sig); err == nil {
			t.Errorf("NewDecoder(%q) expected error", sig)
		}
	}
}
