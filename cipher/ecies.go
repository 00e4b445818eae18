package cipher

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// ECIESScheme is the tag used by ECIES.
const ECIESScheme = "ECIES"

// ECIES encrypts content to a secp256k1 public key, typically the key of
// the party that computes royalties. Open needs the matching private key.
type ECIES struct {
	pub  *ecies.PublicKey
	priv *ecies.PrivateKey
}

var _ ContentCipher = (*ECIES)(nil)

// NewECIES returns a cipher that seals to pub. priv may be nil for a
// seal-only cipher.
func NewECIES(pub *ecdsa.PublicKey, priv *ecdsa.PrivateKey) (*ECIES, error) {
	if pub == nil && priv != nil {
		pub = &priv.PublicKey
	}
	if pub == nil {
		return nil, ErrNilKey
	}
	c := &ECIES{pub: ecies.ImportECDSAPublic(pub)}
	if priv != nil {
		c.priv = ecies.ImportECDSA(priv)
	}
	return c, nil
}

func (c *ECIES) Scheme() string { return ECIESScheme }

func (c *ECIES) Seal(plaintext []byte) (string, error) {
	ct, err := ecies.Encrypt(rand.Reader, c.pub, plaintext, nil, nil)
	if err != nil {
		return "", fmt.Errorf("cipher: ecies encrypt: %w", err)
	}
	return ECIESScheme + "-" + base64.StdEncoding.EncodeToString(ct), nil
}

func (c *ECIES) Open(sealed string) ([]byte, error) {
	if c.priv == nil {
		return nil, fmt.Errorf("%w: private key required to open", ErrNilKey)
	}
	body, err := trimScheme(sealed, ECIESScheme)
	if err != nil {
		return nil, err
	}
	ct, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	pt, err := c.priv.Decrypt(ct, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return pt, nil
}
