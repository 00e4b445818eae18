package record

const (
	// IndexKey is the storage key of the key index.
	IndexKey = "royalty_keys"

	// KeyPrefix prefixes every per-record storage key.
	KeyPrefix = "royalty_"
)

// Key returns the storage key for the record with the given id.
func Key(id string) string {
	return KeyPrefix + id
}

// IDFromKey strips KeyPrefix from a storage key. It returns false for the
// index key and for keys outside the record namespace.
func IDFromKey(key string) (string, bool) {
	if key == IndexKey || len(key) <= len(KeyPrefix) || key[:len(KeyPrefix)] != KeyPrefix {
		return "", false
	}
	return key[len(KeyPrefix):], true
}
