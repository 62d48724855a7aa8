package wallet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// fastParams keeps Argon2 cheap in tests.
func fastParams() EncryptionParams {
	return EncryptionParams{Memory: 64, Iterations: 1, Parallelism: 1}
}

func sealedTestSeed(t *testing.T) (seed, sealed []byte) {
	t.Helper()
	seed, err := SeedFromMnemonic(phrase12, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	sealed, err = SealSeed(seed, []byte("hunter2"), "alice", fastParams())
	if err != nil {
		t.Fatalf("SealSeed() error: %v", err)
	}
	return seed, sealed
}

func TestSealOpenSeed(t *testing.T) {
	seed, sealed := sealedTestSeed(t)

	if got := len(sealed); got != sealHeaderSize+24+len(seed)+16 {
		t.Errorf("sealed length = %d", got)
	}
	if sealed[0] != sealVersion {
		t.Errorf("version byte = %d, want %d", sealed[0], sealVersion)
	}
	if bytes.Contains(sealed, seed[:16]) {
		t.Error("sealed blob contains seed bytes")
	}

	got, err := OpenSeed(sealed, []byte("hunter2"), "alice")
	if err != nil {
		t.Fatalf("OpenSeed() error: %v", err)
	}
	if !bytes.Equal(got, seed) {
		t.Error("opened seed differs from original")
	}

	again, _ := SealSeed(seed, []byte("hunter2"), "alice", fastParams())
	if bytes.Equal(again, sealed) {
		t.Error("sealing twice produced identical output")
	}
}

func TestOpenSeed_Refuses(t *testing.T) {
	_, sealed := sealedTestSeed(t)

	flip := func(i int) []byte {
		c := append([]byte(nil), sealed...)
		c[i] ^= 0x01
		return c
	}

	tests := []struct {
		name       string
		blob       []byte
		passphrase string
		wallet     string
	}{
		{"wrong passphrase", sealed, "hunter3", "alice"},
		{"other wallet name", sealed, "hunter2", "bob"},
		{"tampered salt", flip(12), "hunter2", "alice"},
		{"tampered iterations", func() []byte {
			c := append([]byte(nil), sealed...)
			binary.LittleEndian.PutUint32(c[5:], 2)
			return c
		}(), "hunter2", "alice"},
		{"tampered ciphertext", flip(len(sealed) - 20), "hunter2", "alice"},
		{"tampered tag", flip(len(sealed) - 1), "hunter2", "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenSeed(tt.blob, []byte(tt.passphrase), tt.wallet)
			if !errors.Is(err, ErrWrongPassphrase) {
				t.Errorf("err = %v, want ErrWrongPassphrase", err)
			}
		})
	}
}

func TestOpenSeed_MalformedHeader(t *testing.T) {
	_, sealed := sealedTestSeed(t)

	if _, err := OpenSeed(sealed[:sealHeaderSize+10], []byte("hunter2"), "alice"); err == nil {
		t.Error("truncated blob accepted")
	}

	bad := append([]byte(nil), sealed...)
	bad[0] = 9
	if _, err := OpenSeed(bad, []byte("hunter2"), "alice"); err == nil || errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("unknown version: err = %v", err)
	}

	hostile := append([]byte(nil), sealed...)
	binary.LittleEndian.PutUint32(hostile[1:], 0xffffffff)
	if _, err := OpenSeed(hostile, []byte("hunter2"), "alice"); err == nil || errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("hostile memory cost: err = %v", err)
	}
}

func TestSealSeed_RejectsBadParams(t *testing.T) {
	bad := []EncryptionParams{
		{Memory: 0, Iterations: 1, Parallelism: 1},
		{Memory: 64, Iterations: 0, Parallelism: 1},
		{Memory: 64, Iterations: 1, Parallelism: 0},
		{Memory: maxMemoryKiB + 1, Iterations: 1, Parallelism: 1},
		{Memory: 64, Iterations: maxIterations + 1, Parallelism: 1},
	}
	for _, p := range bad {
		if _, err := SealSeed([]byte("x"), []byte("p"), "w", p); err == nil {
			t.Errorf("SealSeed(%+v) should fail", p)
		}
	}
	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("DefaultParams invalid: %v", err)
	}
}
