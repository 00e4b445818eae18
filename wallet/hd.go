package wallet

import (
	"crypto/ecdsa"
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// BIP44 path constants.
	PurposeBIP44    = 44
	CoinTypeEther   = 60
	DefaultAccount  = 0
	ExternalChain   = 0
	MaxAccountIndex = 1<<31 - 1

	// BIP32 hardened offset.
	Hardened = 0x80000000
)

// Wallet is an HD wallet rooted at a BIP39 seed.
type Wallet struct {
	masterKey *bip32.ExtendedKey
	chain     *bip32.ExtendedKey // m/44'/60'/0'/0
}

// Account is one derived signing key.
type Account struct {
	Index   uint32         `json:"index"`
	Path    string         `json:"path"`
	Address common.Address `json:"address"`
	key     *ecdsa.PrivateKey
}

// PrivateKey returns the account's signing key.
func (a *Account) PrivateKey() *ecdsa.PrivateKey { return a.key }

// NewWallet creates a Wallet from a BIP39 seed.
func NewWallet(seed []byte) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}

	// The network parameters only affect extended-key serialization,
	// which is never exposed.
	masterKey, err := bip32.NewMaster(seed, &chaincfg.MainNet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}

	chain := masterKey
	for _, step := range []uint32{PurposeBIP44 + Hardened, CoinTypeEther + Hardened, DefaultAccount + Hardened, ExternalChain} {
		chain, err = chain.Child(step)
		if err != nil {
			return nil, fmt.Errorf("%w: m/44'/60'/0'/0: %w", ErrDerivationFailed, err)
		}
	}

	return &Wallet{masterKey: masterKey, chain: chain}, nil
}

// FromMnemonic is MnemonicSeed followed by NewWallet.
func FromMnemonic(mnemonic, passphrase string) (*Wallet, error) {
	seed, err := MnemonicSeed(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return NewWallet(seed)
}

// DeriveAccount derives the account at m/44'/60'/0'/0/index.
func (w *Wallet) DeriveAccount(index uint32) (*Account, error) {
	if index > MaxAccountIndex {
		return nil, ErrAccountOutOfRange
	}

	child, err := w.chain.Child(index)
	if err != nil {
		return nil, fmt.Errorf("%w: index derivation: %w", ErrDerivationFailed, err)
	}
	privKey, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}

	key, err := crypto.ToECDSA(math.PaddedBigBytes(privKey.D, 32))
	if err != nil {
		return nil, fmt.Errorf("%w: convert key: %w", ErrDerivationFailed, err)
	}

	return &Account{
		Index:   index,
		Path:    fmt.Sprintf("m/44'/60'/0'/0/%d", index),
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}, nil
}
