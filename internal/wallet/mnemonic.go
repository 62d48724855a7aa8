// Package wallet implements HD key derivation, the address book and the
// encrypted key store.
package wallet

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tyler-smith/go-bip39"
)

// New wallets always get 24 words. Restore accepts any BIP-39 length.
const (
	MnemonicEntropyBits = 256
	SeedSize            = 64
)

var (
	wordIndexOnce sync.Once
	wordIndex     map[string]struct{}
)

func isBIP39Word(w string) bool {
	wordIndexOnce.Do(func() {
		list := bip39.GetWordList()
		wordIndex = make(map[string]struct{}, len(list))
		for _, word := range list {
			wordIndex[word] = struct{}{}
		}
	})
	_, ok := wordIndex[w]
	return ok
}

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return phrase, nil
}

// ParseMnemonic normalizes a user supplied phrase (case, spacing) and
// checks it against the English wordlist and its checksum. Every failure
// wraps ErrInvalidMnemonic and names the offending part.
func ParseMnemonic(phrase string) (string, error) {
	words := strings.Fields(strings.ToLower(phrase))
	switch len(words) {
	case 12, 15, 18, 21, 24:
	default:
		return "", fmt.Errorf("%w: %d words", ErrInvalidMnemonic, len(words))
	}
	for i, w := range words {
		if !isBIP39Word(w) {
			return "", fmt.Errorf("%w: word %d not in wordlist", ErrInvalidMnemonic, i+1)
		}
	}
	normalized := strings.Join(words, " ")
	if !bip39.IsMnemonicValid(normalized) {
		return "", fmt.Errorf("%w: checksum mismatch", ErrInvalidMnemonic)
	}
	return normalized, nil
}

// ValidateMnemonic reports whether ParseMnemonic accepts the phrase.
func ValidateMnemonic(phrase string) bool {
	_, err := ParseMnemonic(phrase)
	return err == nil
}

// SeedFromMnemonic derives the 64-byte BIP-39 seed. The phrase goes
// through ParseMnemonic first, so sloppy input yields the same seed as
// the canonical phrase.
func SeedFromMnemonic(phrase, passphrase string) ([]byte, error) {
	normalized, err := ParseMnemonic(phrase)
	if err != nil {
		return nil, err
	}
	return bip39.NewSeed(normalized, passphrase), nil
}
