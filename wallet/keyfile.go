package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// KeyfileName is the keyfile's name inside the data directory.
const KeyfileName = "wallet.json"

const (
	keyfileVersion = 1
	kdfArgon2id    = "argon2id"
	saltLen        = 16
)

// KDFParams are the Argon2id cost parameters recorded in a keyfile.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"` // KiB
	Threads uint8  `json:"threads"`
	KeyLen  uint32 `json:"keylen"`
}

// DefaultKDF is used for new keyfiles.
var DefaultKDF = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4, KeyLen: 32}

// keyfile is the on-disk JSON envelope. The header fields are bound to the
// ciphertext as AES-GCM additional data.
type keyfile struct {
	Version    int       `json:"version"`
	KDF        string    `json:"kdf"`
	Params     KDFParams `json:"params"`
	Salt       string    `json:"salt"`
	Nonce      string    `json:"nonce"`
	Ciphertext string    `json:"ciphertext"`
	Address    string    `json:"address,omitempty"`
}

func (k *keyfile) aad() []byte {
	return []byte(fmt.Sprintf("%d|%s|%d|%d|%d|%d|%s",
		k.Version, k.KDF, k.Params.Time, k.Params.Memory, k.Params.Threads, k.Params.KeyLen, k.Salt))
}

// EncryptSeed seals seed under password with Argon2id + AES-256-GCM and
// returns the JSON keyfile. address is stored in clear so the account can
// be shown without unlocking; it may be empty.
func EncryptSeed(seed []byte, password string, params KDFParams, address string) ([]byte, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if params.KeyLen != 32 || params.Time == 0 || params.Threads == 0 {
		return nil, fmt.Errorf("%w: bad kdf params %+v", ErrUnsupportedKeyfile, params)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate salt: %w", err)
	}

	kf := keyfile{
		Version: keyfileVersion,
		KDF:     kdfArgon2id,
		Params:  params,
		Salt:    hex.EncodeToString(salt),
		Address: address,
	}

	gcm, err := newGCM(password, salt, params)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate nonce: %w", err)
	}

	kf.Nonce = hex.EncodeToString(nonce)
	kf.Ciphertext = hex.EncodeToString(gcm.Seal(nil, nonce, seed, kf.aad()))

	out, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("wallet: encode keyfile: %w", err)
	}
	return out, nil
}

// SealMnemonic derives the seed of phrase and seals it into a new keyfile
// labelled with the default account's address. The unlocked wallet is
// returned alongside.
func SealMnemonic(phrase, password string, params KDFParams) ([]byte, *Wallet, error) {
	seed, err := MnemonicSeed(phrase, "")
	if err != nil {
		return nil, nil, err
	}
	w, err := NewWallet(seed)
	if err != nil {
		return nil, nil, err
	}
	acct, err := w.DeriveAccount(DefaultAccount)
	if err != nil {
		return nil, nil, err
	}
	data, err := EncryptSeed(seed, password, params, acct.Address.Hex())
	if err != nil {
		return nil, nil, err
	}
	return data, w, nil
}

// DecryptSeed opens a keyfile produced by EncryptSeed.
func DecryptSeed(data []byte, password string) ([]byte, error) {
	kf, err := parseKeyfile(data)
	if err != nil {
		return nil, err
	}

	salt, err1 := hex.DecodeString(kf.Salt)
	nonce, err2 := hex.DecodeString(kf.Nonce)
	ciphertext, err3 := hex.DecodeString(kf.Ciphertext)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	gcm, err := newGCM(password, salt, kf.Params)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrDecryptionFailed
	}
	seed, err := gcm.Open(nil, nonce, ciphertext, kf.aad())
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return seed, nil
}

// KeyfileAddress returns the clear-text address recorded in a keyfile.
func KeyfileAddress(data []byte) (string, error) {
	kf, err := parseKeyfile(data)
	if err != nil {
		return "", err
	}
	return kf.Address, nil
}

func parseKeyfile(data []byte) (*keyfile, error) {
	var kf keyfile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedKeyfile, err)
	}
	if kf.Version != keyfileVersion || kf.KDF != kdfArgon2id {
		return nil, fmt.Errorf("%w: version %d kdf %q", ErrUnsupportedKeyfile, kf.Version, kf.KDF)
	}
	if kf.Params.KeyLen != 32 || kf.Params.Time == 0 || kf.Params.Threads == 0 {
		return nil, fmt.Errorf("%w: bad kdf params %+v", ErrUnsupportedKeyfile, kf.Params)
	}
	return &kf, nil
}

func newGCM(password string, salt []byte, p KDFParams) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: GCM creation failed: %w", err)
	}
	return gcm, nil
}

// SaveKeyfile writes data to path with 0600 permissions, creating the
// parent directory. An existing keyfile is never overwritten.
func SaveKeyfile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("wallet: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeyfileExists, path)
		}
		return fmt.Errorf("wallet: create keyfile: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("wallet: write keyfile: %w", err)
	}
	return f.Close()
}

// LoadKeyfile reads the keyfile at path.
func LoadKeyfile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyfileNotFound, path)
		}
		return nil, fmt.Errorf("wallet: read keyfile: %w", err)
	}
	return data, nil
}
