package types

import (
	"bytes"
	"slices"
	"testing"
)

func TestOutpoint_Zero(t *testing.T) {
	for _, o := range []Outpoint{{TxID: Hash{0x01}}, {Index: 1}} {
		if o.IsZero() {
			t.Errorf("%s reported zero", o)
		}
	}
	if !(Outpoint{}).IsZero() {
		t.Error("zero value not zero")
	}
}

func TestOutpoint_String(t *testing.T) {
	o := Outpoint{TxID: Hash{0xab, 0xcd}, Index: 3}
	want := "abcd" + string(bytes.Repeat([]byte("0"), 60)) + ":3"
	if o.String() != want {
		t.Fatalf("String = %s, want %s", o, want)
	}
}

func TestOutpoint_OrderMatchesKeyOrder(t *testing.T) {
	ops := []Outpoint{
		{TxID: Hash{0x02}, Index: 0},
		{TxID: Hash{0x01}, Index: 256},
		{TxID: Hash{0x01}, Index: 6},
		{TxID: Hash{0x01, 0xff}, Index: 0},
		{TxID: Hash{0x01}, Index: 5},
	}
	byCompare := slices.Clone(ops)
	slices.SortFunc(byCompare, Outpoint.Compare)
	byKey := slices.Clone(ops)
	slices.SortFunc(byKey, func(a, b Outpoint) int { return bytes.Compare(a.Bytes(), b.Bytes()) })
	if !slices.Equal(byCompare, byKey) {
		t.Fatalf("Compare order %v differs from key order %v", byCompare, byKey)
	}
	if byCompare[0] != (Outpoint{TxID: Hash{0x01}, Index: 5}) {
		t.Errorf("first = %s", byCompare[0])
	}
	if c := ops[0].Compare(ops[0]); c != 0 {
		t.Errorf("self Compare = %d", c)
	}
}

func TestOutpointFromBytes(t *testing.T) {
	o := Outpoint{TxID: Hash{0xde, 0xad}, Index: 0x01020304}
	b := o.Bytes()
	if len(b) != OutpointSize || !bytes.Equal(b[HashSize:], []byte{1, 2, 3, 4}) {
		t.Fatalf("Bytes = %x", b)
	}
	got, err := OutpointFromBytes(b)
	if err != nil || got != o {
		t.Fatalf("OutpointFromBytes = %s, %v", got, err)
	}
	for _, n := range []int{0, OutpointSize - 1, OutpointSize + 1} {
		if _, err := OutpointFromBytes(make([]byte, n)); err == nil {
			t.Errorf("accepted %d bytes", n)
		}
	}
}
