package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidWordCount indicates a phrase length other than 12 or 24 words.
	ErrInvalidWordCount = errors.New("wallet: recovery phrase must be 12 or 24 words")

	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")

	// ErrAccountOutOfRange indicates an account index at or above the hardened offset.
	ErrAccountOutOfRange = errors.New("wallet: account index exceeds maximum (2^31-1)")

	// ErrDecryptionFailed indicates wrong password or corrupted keyfile.
	ErrDecryptionFailed = errors.New("wallet: seed decryption failed (wrong password or corrupted data)")

	// ErrUnsupportedKeyfile indicates an unknown keyfile version or KDF.
	ErrUnsupportedKeyfile = errors.New("wallet: unsupported keyfile")

	// ErrKeyfileNotFound indicates no keyfile exists at the given path.
	ErrKeyfileNotFound = errors.New("wallet: keyfile not found")

	// ErrKeyfileExists indicates a keyfile would be overwritten.
	ErrKeyfileExists = errors.New("wallet: keyfile already exists")

	// ErrInvalidNetwork indicates unknown network name with no custom config.
	ErrInvalidNetwork = errors.New("wallet: invalid network name")

	// ErrNotConnected indicates no account is connected to the session.
	ErrNotConnected = errors.New("wallet: not connected")

	// ErrLocked indicates a session opened without a wallet.
	ErrLocked = errors.New("wallet: no wallet unlocked")

	// ErrRejected indicates the account owner declined a signature request.
	// The message matches what browser wallets report.
	ErrRejected = errors.New("wallet: user rejected transaction")
)
