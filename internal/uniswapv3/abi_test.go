package uniswapv3

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Test addresses
var (
	testAddress1 = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testAddress2 = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testAddress3 = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
)

func TestSelector(t *testing.T) {
	tests := []struct {
		name     string
		got      []byte
		expected string
	}{
		{"createPool", SelectorCreatePool, "a1671295"},
		{"getPool", SelectorGetPool, "1698ee82"},
		{"initialize", SelectorInitialize, "f637731d"},
		{"slot0", SelectorSlot0, "3850c7bd"},
		{"liquidity", SelectorLiquidity, "1a686502"},
		{"mint", SelectorMintPosition, "88316456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if common.Bytes2Hex(tt.got) != tt.expected {
				t.Errorf("selector = %x, want %s", tt.got, tt.expected)
			}
		})
	}

	if !bytes.Equal(selector("slot0()"), crypto.Keccak256([]byte("slot0()"))[:4]) {
		t.Error("selector() does not match keccak256 prefix")
	}
}

func TestEncodeCreatePool(t *testing.T) {
	data := EncodeCreatePool(testAddress1, testAddress2, 3000)

	if len(data) != 100 {
		t.Fatalf("EncodeCreatePool length = %d, want 100", len(data))
	}
	if !bytes.Equal(data[:4], SelectorCreatePool) {
		t.Errorf("selector = %x, want %x", data[:4], SelectorCreatePool)
	}
	if common.BytesToAddress(data[16:36]) != testAddress1 {
		t.Errorf("tokenA = %x", data[16:36])
	}
	if common.BytesToAddress(data[48:68]) != testAddress2 {
		t.Errorf("tokenB = %x", data[48:68])
	}
	if new(big.Int).SetBytes(data[68:100]).Int64() != 3000 {
		t.Errorf("fee = %x", data[68:100])
	}
}

func TestEncodeGetPool(t *testing.T) {
	data := EncodeGetPool(testAddress1, testAddress2, 500)

	if len(data) != 100 {
		t.Errorf("EncodeGetPool length = %d, want 100", len(data))
	}
	if !bytes.Equal(data[:4], SelectorGetPool) {
		t.Errorf("EncodeGetPool selector = %x, want %x", data[:4], SelectorGetPool)
	}
}

func TestEncodeInitialize(t *testing.T) {
	sqrtPriceX96, _ := new(big.Int).SetString("79228162514264337593543950336", 10)
	data := EncodeInitialize(sqrtPriceX96)

	if len(data) != 36 {
		t.Fatalf("EncodeInitialize length = %d, want 36", len(data))
	}
	if !bytes.Equal(data[:4], SelectorInitialize) {
		t.Errorf("EncodeInitialize selector = %x, want %x", data[:4], SelectorInitialize)
	}
	if new(big.Int).SetBytes(data[4:]).Cmp(sqrtPriceX96) != 0 {
		t.Errorf("encoded price = %x", data[4:])
	}
}

func TestEncodeMintPosition(t *testing.T) {
	params := MintParams{
		Token0:         testAddress1,
		Token1:         testAddress2,
		Fee:            3000,
		TickLower:      -60,
		TickUpper:      60,
		Amount0Desired: big.NewInt(1e14),
		Amount1Desired: big.NewInt(1e14),
		Amount0Min:     big.NewInt(0),
		Amount1Min:     nil,
		Recipient:      testAddress3,
		Deadline:       big.NewInt(9999999999),
	}

	data := EncodeMintPosition(params)

	// 4 (selector) + 11*32 (11 fields) = 356 bytes
	if len(data) != 356 {
		t.Fatalf("EncodeMintPosition length = %d, want 356", len(data))
	}
	if !bytes.Equal(data[:4], SelectorMintPosition) {
		t.Errorf("EncodeMintPosition selector = %x, want %x", data[:4], SelectorMintPosition)
	}

	// tickLower -60 sign-extends: 31 bytes of 0xff then 0xc4
	lower := data[100:132]
	for i := 0; i < 31; i++ {
		if lower[i] != 0xff {
			t.Fatalf("tickLower byte %d = %x, want ff", i, lower[i])
		}
	}
	if lower[31] != 0xc4 {
		t.Errorf("tickLower low byte = %x, want c4", lower[31])
	}
	if new(big.Int).SetBytes(data[132:164]).Int64() != 60 {
		t.Errorf("tickUpper = %x", data[132:164])
	}
	if common.BytesToAddress(data[304:324]) != testAddress3 {
		t.Errorf("recipient = %x", data[304:324])
	}
	if new(big.Int).SetBytes(data[324:356]).Int64() != 9999999999 {
		t.Errorf("deadline = %x", data[324:356])
	}
}

func TestMintParamsJSON(t *testing.T) {
	params := MintParams{
		Token0:         testAddress1,
		Token1:         testAddress2,
		Fee:            3000,
		TickLower:      -60,
		TickUpper:      60,
		Amount0Desired: big.NewInt(100000000000000),
		Recipient:      testAddress3,
		Deadline:       big.NewInt(1700000000),
	}
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out["amount0Desired"] != "100000000000000" || out["amount1Desired"] != "0" {
		t.Errorf("amounts = %v / %v", out["amount0Desired"], out["amount1Desired"])
	}
	if out["tickLower"] != float64(-60) || out["fee"] != float64(3000) {
		t.Errorf("ticks/fee = %v / %v", out["tickLower"], out["fee"])
	}
}

func word(v *big.Int) []byte {
	w := make([]byte, 32)
	if v.Sign() < 0 {
		v = new(big.Int).Add(v, twoTo256)
	}
	v.FillBytes(w)
	return w
}

func TestDecodeSlot0(t *testing.T) {
	var ret []byte
	ret = append(ret, word(Q96)...)
	ret = append(ret, word(big.NewInt(-60))...)
	ret = append(ret, word(big.NewInt(3))...)
	ret = append(ret, word(big.NewInt(10))...)
	ret = append(ret, word(big.NewInt(20))...)
	ret = append(ret, word(big.NewInt(0))...)
	ret = append(ret, word(big.NewInt(1))...)

	s, err := DecodeSlot0(ret)
	if err != nil {
		t.Fatalf("DecodeSlot0() error = %v", err)
	}
	if s.SqrtPriceX96.Cmp(Q96) != 0 {
		t.Errorf("SqrtPriceX96 = %v", s.SqrtPriceX96)
	}
	if s.Tick != -60 {
		t.Errorf("Tick = %d, want -60", s.Tick)
	}
	if s.ObservationIndex != 3 || s.ObservationCardinality != 10 || s.ObservationCardinalityNext != 20 {
		t.Errorf("observations = %d/%d/%d", s.ObservationIndex, s.ObservationCardinality, s.ObservationCardinalityNext)
	}
	if !s.Unlocked || !s.Initialized() {
		t.Errorf("Unlocked = %v, Initialized = %v", s.Unlocked, s.Initialized())
	}

	if _, err := DecodeSlot0(ret[:64]); err == nil {
		t.Error("expected error for short slot0 return")
	}
}

func TestDecodeAddressAndUint(t *testing.T) {
	addr, err := DecodeAddress(common.LeftPadBytes(testAddress2.Bytes(), 32))
	if err != nil || addr != testAddress2 {
		t.Errorf("DecodeAddress() = %s, %v", addr.Hex(), err)
	}
	if _, err := DecodeAddress([]byte{0x01}); err == nil {
		t.Error("expected error for short address return")
	}

	v, err := DecodeUint(word(big.NewInt(12345)))
	if err != nil || v.Int64() != 12345 {
		t.Errorf("DecodeUint() = %v, %v", v, err)
	}
}

func TestMaxUint256(t *testing.T) {
	if MaxUint256.BitLen() != 256 {
		t.Errorf("MaxUint256 bit length = %d, want 256", MaxUint256.BitLen())
	}
}

func TestDecodeMintResult(t *testing.T) {
	ret := make([]byte, 4*32)
	ret[31] = 7
	ret[63] = 100
	ret[95] = 1
	ret[127] = 2

	res, err := DecodeMintResult(ret)
	if err != nil {
		t.Fatalf("DecodeMintResult: %v", err)
	}
	if res.TokenID.Int64() != 7 || res.Liquidity.Int64() != 100 ||
		res.Amount0.Int64() != 1 || res.Amount1.Int64() != 2 {
		t.Errorf("decoded %+v", res)
	}

	if _, err := DecodeMintResult(ret[:96]); err == nil {
		t.Error("expected error for short return")
	}
}
