package units

import (
	"math/big"
	"testing"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{name: "one token 18 decimals", in: "1.0", decimals: 18, want: "1000000000000000000"},
		{name: "integer string", in: "2", decimals: 18, want: "2000000000000000000"},
		{name: "test amount", in: "0.0001", decimals: 18, want: "100000000000000"},
		{name: "six decimals", in: "12.345678", decimals: 6, want: "12345678"},
		{name: "zero decimals", in: "42", decimals: 0, want: "42"},
		{name: "trailing zeros beyond precision", in: "1.000", decimals: 0, want: "1"},
		{name: "gwei fee cap", in: "0.1", decimals: 9, want: "100000000"},
		{name: "too many decimals", in: "0.0000001", decimals: 6, wantErr: true},
		{name: "not a number", in: "abc", decimals: 18, wantErr: true},
		{name: "empty", in: " ", decimals: 18, wantErr: true},
		{name: "negative", in: "-1", decimals: 18, wantErr: true},
		{name: "negative fraction", in: "-0.5", decimals: 18, wantErr: true},
		{name: "above uint256", in: "1e80", decimals: 18, wantErr: true},
		{name: "max uint256", in: "115792089237316195423570985008687907853269984665640564039457584007913129639935", decimals: 0, want: "115792089237316195423570985008687907853269984665640564039457584007913129639935"},
		{name: "negative zero", in: "-0", decimals: 18, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnits(tt.in, tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseUnits(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUnits(%q) error = %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseUnits(%q, %d) = %s, want %s", tt.in, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		decimals uint8
		want     string
	}{
		{name: "whole ether", in: "1000000000000000000", decimals: 18, want: "1.0"},
		{name: "fractional", in: "1500000000000000000", decimals: 18, want: "1.5"},
		{name: "small", in: "100000000000000", decimals: 18, want: "0.0001"},
		{name: "zero", in: "0", decimals: 18, want: "0.0"},
		{name: "six decimals", in: "12345678", decimals: 6, want: "12.345678"},
		{name: "no decimals", in: "7", decimals: 0, want: "7.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := new(big.Int).SetString(tt.in, 10)
			if got := FormatUnits(v, tt.decimals); got != tt.want {
				t.Errorf("FormatUnits(%s, %d) = %q, want %q", tt.in, tt.decimals, got, tt.want)
			}
		})
	}

	if got := FormatUnits(nil, 18); got != "0.0" {
		t.Errorf("FormatUnits(nil) = %q, want 0.0", got)
	}
}

func TestEtherAndGwei(t *testing.T) {
	wei, err := ParseEther("2.0")
	if err != nil {
		t.Fatal(err)
	}
	if FormatEther(wei) != "2.0" {
		t.Errorf("FormatEther(ParseEther(2.0)) = %s", FormatEther(wei))
	}

	tip, err := ParseGwei("0.05")
	if err != nil {
		t.Fatal(err)
	}
	if tip.Int64() != 50_000_000 {
		t.Errorf("ParseGwei(0.05) = %v, want 50000000", tip)
	}
	if FormatGwei(tip) != "0.05" {
		t.Errorf("FormatGwei = %s", FormatGwei(tip))
	}
}
