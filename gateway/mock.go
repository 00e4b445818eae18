package gateway

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"sync"
)

// MockGateway is a test double for Gateway.
// All function fields must be set before the corresponding method is called.
type MockGateway struct {
	IsAvailableFn func(ctx context.Context) (bool, error)
	GetDataFn     func(ctx context.Context, key string) ([]byte, error)
	SetDataFn     func(ctx context.Context, key string, value []byte) (*Tx, error)
}

func (m *MockGateway) IsAvailable(ctx context.Context) (bool, error) {
	return m.IsAvailableFn(ctx)
}
func (m *MockGateway) GetData(ctx context.Context, key string) ([]byte, error) {
	return m.GetDataFn(ctx, key)
}
func (m *MockGateway) SetData(ctx context.Context, key string, value []byte) (*Tx, error) {
	return m.SetDataFn(ctx, key, value)
}

// Write is one SetData call recorded by MemoryGateway.
type Write struct {
	Key   string
	Value []byte
	From  string
}

// MemoryGateway is an in-process backend for tests and demos. Handles
// returned by ReadOnly and WithSigner share state with the original.
type MemoryGateway struct {
	*memState
	signer Signer
}

type memState struct {
	mu        sync.Mutex
	data      map[string][]byte
	available bool
	probeErr  error
	getErrs   map[string]error
	setErr    func(key string) error
	writes    []Write
	reads     int
	nonce     uint64
}

// Compile-time interface checks.
var (
	_ Gateway   = (*MemoryGateway)(nil)
	_ Connector = (*MemoryGateway)(nil)
	_ Lister    = (*MemoryGateway)(nil)
)

// NewMemoryGateway returns an empty, available backend.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{memState: &memState{
		data:      make(map[string][]byte),
		available: true,
		getErrs:   make(map[string]error),
	}}
}

// Put seeds a value directly, bypassing signing and the write log.
func (m *MemoryGateway) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte{}, value...)
}

// Get returns the raw stored value, or nil.
func (m *MemoryGateway) Get(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil
	}
	return append([]byte{}, v...)
}

// SetAvailable controls the IsAvailable answer; err, if non-nil, is
// returned instead.
func (m *MemoryGateway) SetAvailable(ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = ok
	m.probeErr = err
}

// FailGet makes GetData(key) return err. A nil err clears the failure.
func (m *MemoryGateway) FailGet(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.getErrs, key)
		return
	}
	m.getErrs[key] = err
}

// FailSet installs a hook consulted before every write.
func (m *MemoryGateway) FailSet(fn func(key string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr = fn
}

// Writes returns the recorded SetData calls in order.
func (m *MemoryGateway) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Write(nil), m.writes...)
}

// Reads returns the number of GetData calls served.
func (m *MemoryGateway) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *MemoryGateway) ReadOnly() Reader {
	return &MemoryGateway{memState: m.memState}
}

func (m *MemoryGateway) WithSigner(s Signer) (Gateway, error) {
	if s == nil {
		return nil, ErrNoSigner
	}
	return &MemoryGateway{memState: m.memState, signer: s}, nil
}

func (m *MemoryGateway) IsAvailable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.probeErr != nil {
		return false, m.probeErr
	}
	return m.available, nil
}

func (m *MemoryGateway) GetData(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if err, ok := m.getErrs[key]; ok {
		return nil, err
	}
	return append([]byte{}, m.data[key]...), nil
}

func (m *MemoryGateway) SetData(ctx context.Context, key string, value []byte) (*Tx, error) {
	if m.signer == nil {
		return nil, ErrNoSigner
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	hook := m.setErr
	nonce := m.nonce
	m.nonce++
	m.mu.Unlock()

	signed, err := signLocal(ctx, m.signer, big.NewInt(31337), LocalContract, nonce, key, value)
	if err != nil {
		return nil, err
	}
	if hook != nil {
		if err := hook(key); err != nil {
			return nil, wrapSignErr(err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte{}, value...)
	from := m.signer.Address().Hex()
	m.writes = append(m.writes, Write{Key: key, Value: append([]byte{}, value...), From: from})
	return &Tx{Hash: signed.Hash().Hex(), From: from, Key: key, BlockNumber: uint64(len(m.writes))}, nil
}

func (m *MemoryGateway) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
