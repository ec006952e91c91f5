package chain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTxRefRoundTrip(t *testing.T) {
	ref := FormatTxRef(48729430000003, []byte{0xde, 0xad, 0xbe, 0xef})
	if ref != "48729430000003:deadbeef" {
		t.Fatalf("FormatTxRef = %q", ref)
	}

	lt, hash, err := ParseTxRef(ref)
	if err != nil {
		t.Fatalf("ParseTxRef: %v", err)
	}
	if lt != 48729430000003 {
		t.Errorf("lt = %d, want 48729430000003", lt)
	}
	if string(hash) != string([]byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("hash = %x", hash)
	}
}

func TestParseTxRefInvalid(t *testing.T) {
	for _, ref := range []string{"", "nocolon", "abc:def0", "10:zzzz"} {
		if _, _, err := ParseTxRef(ref); err == nil {
			t.Errorf("ParseTxRef(%q) succeeded, want error", ref)
		}
	}
}

func TestNanoConversions(t *testing.T) {
	tests := []struct {
		nano string
		ton  string
	}{
		{"1000000000", "1"},
		{"1500000000", "1.5"},
		{"1", "0.000000001"},
		{"0", "0"},
		{"5000000000", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.ton, func(t *testing.T) {
			nano, _ := new(big.Int).SetString(tt.nano, 10)
			got := DecimalFromNano(nano)
			want := decimal.RequireFromString(tt.ton)
			if !got.Equal(want) {
				t.Errorf("DecimalFromNano(%s) = %s, want %s", tt.nano, got, want)
			}
			back := NanoFromDecimal(got)
			if back.Cmp(nano) != 0 {
				t.Errorf("NanoFromDecimal(%s) = %s, want %s", got, back, tt.nano)
			}
		})
	}
}
