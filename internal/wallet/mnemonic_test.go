package wallet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

const (
	phrase12 = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	phrase24 = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"
)

func TestGenerateMnemonic(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		m, err := GenerateMnemonic()
		if err != nil {
			t.Fatalf("GenerateMnemonic() error: %v", err)
		}
		if n := len(strings.Fields(m)); n != 24 {
			t.Errorf("word count = %d, want 24", n)
		}
		if !ValidateMnemonic(m) {
			t.Errorf("generated phrase does not validate: %q", m)
		}
		if seen[m] {
			t.Fatal("GenerateMnemonic returned a duplicate phrase")
		}
		seen[m] = true
	}
}

func TestParseMnemonic(t *testing.T) {
	tests := []struct {
		name    string
		phrase  string
		want    string
		wantErr string
	}{
		{name: "12 words", phrase: phrase12, want: phrase12},
		{name: "24 words", phrase: phrase24, want: phrase24},
		{
			name:   "messy spacing and case",
			phrase: "  ABANDON\tabandon abandon  abandon abandon abandon abandon abandon abandon abandon Abandon\nabout \n",
			want:   phrase12,
		},
		{name: "empty", phrase: "", wantErr: "0 words"},
		{name: "single word", phrase: "abandon", wantErr: "1 words"},
		{name: "13 words", phrase: phrase12 + " abandon", wantErr: "13 words"},
		{
			name:    "unknown word",
			phrase:  strings.Replace(phrase12, "about", "aboot", 1),
			wantErr: "word 12 not in wordlist",
		},
		{
			name:    "bad checksum",
			phrase:  strings.Replace(phrase24, " art", " abandon", 1),
			wantErr: "checksum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMnemonic(tt.phrase)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrInvalidMnemonic) {
					t.Fatalf("err = %v, want ErrInvalidMnemonic", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("err = %q, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMnemonic() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseMnemonic() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSeedFromMnemonic_TrezorVector(t *testing.T) {
	seed, err := SeedFromMnemonic(phrase12, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	want, _ := hex.DecodeString("c55257c360c07c72029aebc1b53c05ed0362ada38ead3e3e9efa3708e53495531f09a6987599d18264c1e1c92f2cf141630c7a3c4ab7c81b2f001698e7463b04")
	if !bytes.Equal(seed, want) {
		t.Errorf("seed = %x, want %x", seed, want)
	}
}

func TestSeedFromMnemonic_NormalizedInputSameSeed(t *testing.T) {
	canonical, err := SeedFromMnemonic(phrase24, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	if len(canonical) != SeedSize {
		t.Fatalf("seed length = %d, want %d", len(canonical), SeedSize)
	}
	sloppy, err := SeedFromMnemonic(" "+strings.ToUpper(phrase24)+"\n", "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic(sloppy) error: %v", err)
	}
	if !bytes.Equal(canonical, sloppy) {
		t.Error("normalized phrase should derive the same seed")
	}
	other, _ := SeedFromMnemonic(phrase24, "extra")
	if bytes.Equal(canonical, other) {
		t.Error("passphrase should change the seed")
	}
}

func TestSeedFromMnemonic_Rejects(t *testing.T) {
	if _, err := SeedFromMnemonic("not valid words here", ""); !errors.Is(err, ErrInvalidMnemonic) {
		t.Errorf("got %v, want ErrInvalidMnemonic", err)
	}
}
