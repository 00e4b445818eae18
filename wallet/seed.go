// Package wallet holds the contributor's keys.
//
// A single BIP39 mnemonic backs every account. Accounts are derived on the
// Ethereum BIP44 path m/44'/60'/0'/0/{index}, so the same mnemonic yields
// the same addresses as browser wallets. The seed is stored on disk only in
// encrypted form (see keyfile.go).
package wallet

import (
	"fmt"
	"strings"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
)

// Supported recovery phrase lengths.
const (
	ShortPhrase = 12
	LongPhrase  = 24
)

// NewMnemonic returns a fresh recovery phrase of ShortPhrase or LongPhrase
// words. Every three words carry 32 bits of entropy.
func NewMnemonic(words int) (string, error) {
	if words != ShortPhrase && words != LongPhrase {
		return "", fmt.Errorf("%w: %d", ErrInvalidWordCount, words)
	}
	entropy, err := bip39.NewEntropy(words / 3 * 32)
	if err != nil {
		return "", fmt.Errorf("wallet: read entropy: %w", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("wallet: encode phrase: %w", err)
	}
	return phrase, nil
}

// ParseMnemonic normalizes a typed or pasted phrase (case, surrounding and
// repeated whitespace) and checks its word count and checksum.
func ParseMnemonic(s string) (string, error) {
	words := strings.Fields(strings.ToLower(s))
	if len(words) != ShortPhrase && len(words) != LongPhrase {
		return "", fmt.Errorf("%w: %d words", ErrInvalidMnemonic, len(words))
	}
	phrase := strings.Join(words, " ")
	if !bip39.IsMnemonicValid(phrase) {
		return "", fmt.Errorf("%w: unknown word or bad checksum", ErrInvalidMnemonic)
	}
	return phrase, nil
}

// MnemonicSeed parses phrase and stretches it into the 64-byte seed the HD
// tree is built from. An empty passphrase is valid and differs from any
// other.
func MnemonicSeed(phrase, passphrase string) ([]byte, error) {
	phrase, err := ParseMnemonic(phrase)
	if err != nil {
		return nil, err
	}
	seed, err := bip39.NewSeedWithErrorChecking(phrase, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	return seed, nil
}
