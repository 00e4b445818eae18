// Package cipher seals contribution content before it is written to the
// contract.
//
// The ContentCipher interface isolates the encryption step so the
// synchronizer and lifecycle code never depend on a particular scheme.
// Placeholder is a reversible text encoding standing in for confidential
// computation; it provides no secrecy. ECIES encrypts to a secp256k1
// public key.
package cipher

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ContentCipher seals plaintext into the string stored in a record's data
// member and opens it again.
type ContentCipher interface {
	// Scheme returns the prefix tag written in front of sealed values.
	Scheme() string

	// Seal encodes plaintext into its stored form.
	Seal(plaintext []byte) (string, error)

	// Open reverses Seal.
	Open(sealed string) ([]byte, error)
}

// SchemeOf returns the scheme tag of a sealed value, e.g. "FHE" for
// "FHE-YWJj".
func SchemeOf(sealed string) (string, error) {
	i := strings.IndexByte(sealed, '-')
	if i <= 0 {
		return "", ErrUnknownScheme
	}
	return sealed[:i], nil
}

// Placeholder is the simulated FHE encoding: "FHE-" + base64(plaintext).
type Placeholder struct{}

// PlaceholderScheme is the tag used by Placeholder.
const PlaceholderScheme = "FHE"

var _ ContentCipher = Placeholder{}

func (Placeholder) Scheme() string { return PlaceholderScheme }

func (Placeholder) Seal(plaintext []byte) (string, error) {
	return PlaceholderScheme + "-" + base64.StdEncoding.EncodeToString(plaintext), nil
}

func (Placeholder) Open(sealed string) ([]byte, error) {
	body, err := trimScheme(sealed, PlaceholderScheme)
	if err != nil {
		return nil, err
	}
	out, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return out, nil
}

func trimScheme(sealed, scheme string) (string, error) {
	prefix := scheme + "-"
	if !strings.HasPrefix(sealed, prefix) {
		return "", fmt.Errorf("%w: want %q prefix", ErrUnknownScheme, prefix)
	}
	return sealed[len(prefix):], nil
}
