package cipher

import "errors"

var (
	// ErrUnknownScheme indicates an encoded value carries no recognised scheme prefix.
	ErrUnknownScheme = errors.New("cipher: unknown scheme")

	// ErrMalformed indicates the encoded payload could not be decoded.
	ErrMalformed = errors.New("cipher: malformed ciphertext")

	// ErrNilKey indicates a required key was not supplied.
	ErrNilKey = errors.New("cipher: nil key")

	// ErrDecryptionFailed indicates the ciphertext did not open with the given key.
	ErrDecryptionFailed = errors.New("cipher: decryption failed")
)
