package gateway

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"go.etcd.io/bbolt"
)

var (
	bucketData = []byte("data")
	bucketMeta = []byte("meta")
	keyNonce   = []byte("nonce")
	keyHeight  = []byte("height")
)

// LocalContract is the placeholder contract address used by local backends.
var LocalContract = common.HexToAddress("0x00000000000000000000000000000000000f4e1e")

// BoltGateway is a single-file local backend with the contract's key/value
// semantics. Writes are signed like on-chain writes, so a declined
// signature behaves the same way, but nothing is broadcast.
type BoltGateway struct {
	db      *bbolt.DB
	chainID *big.Int
	signer  Signer
	root    bool
}

// Compile-time interface checks.
var (
	_ Gateway   = (*BoltGateway)(nil)
	_ Connector = (*BoltGateway)(nil)
	_ Lister    = (*BoltGateway)(nil)
)

// OpenBolt opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBolt(dbPath string, chainID *big.Int) (*BoltGateway, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("gateway: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketData, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("gateway: create buckets: %w", err)
	}

	if chainID == nil {
		chainID = big.NewInt(31337)
	}
	return &BoltGateway{db: db, chainID: chainID, root: true}, nil
}

// Close closes the underlying database. Only the handle returned by
// OpenBolt owns the database; closing a derived handle is a no-op.
func (g *BoltGateway) Close() error {
	if !g.root {
		return nil
	}
	return g.db.Close()
}

// ReadOnly returns a handle without a signer.
func (g *BoltGateway) ReadOnly() Reader {
	return &BoltGateway{db: g.db, chainID: g.chainID}
}

// WithSigner returns a handle whose writes are signed by s.
func (g *BoltGateway) WithSigner(s Signer) (Gateway, error) {
	if s == nil {
		return nil, ErrNoSigner
	}
	return &BoltGateway{db: g.db, chainID: g.chainID, signer: s}, nil
}

// IsAvailable reports whether the database is open.
func (g *BoltGateway) IsAvailable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := g.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketData) == nil {
			return ErrClosed
		}
		return nil
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

// GetData returns a copy of the value stored under key, or an empty slice.
func (g *BoltGateway) GetData(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := g.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketData).Get([]byte(key))
		out = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return out, nil
}

// SetData signs the write with the bound signer and stores value under key.
func (g *BoltGateway) SetData(ctx context.Context, key string, value []byte) (*Tx, error) {
	if g.signer == nil {
		return nil, ErrNoSigner
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *Tx
	err := g.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		nonce := readUint64(meta.Get(keyNonce))

		signed, err := signLocal(ctx, g.signer, g.chainID, LocalContract, nonce, key, value)
		if err != nil {
			return err
		}

		if err := tx.Bucket(bucketData).Put([]byte(key), value); err != nil {
			return fmt.Errorf("gateway: put %q: %w", key, err)
		}
		height := readUint64(meta.Get(keyHeight)) + 1
		if err := meta.Put(keyNonce, writeUint64(nonce+1)); err != nil {
			return err
		}
		if err := meta.Put(keyHeight, writeUint64(height)); err != nil {
			return err
		}

		result = &Tx{
			Hash:        signed.Hash().Hex(),
			From:        g.signer.Address().Hex(),
			Key:         key,
			BlockNumber: height,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Keys returns all stored keys with the given prefix in byte order.
func (g *BoltGateway) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := g.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketData).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return keys, nil
}

func readUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func writeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
