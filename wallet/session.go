package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bitfsorg/royalties-go/gateway"
)

// Approval describes a transaction awaiting the owner's signature.
type Approval struct {
	From    common.Address
	To      *common.Address
	ChainID *big.Int
	Nonce   uint64
	Data    []byte
}

// Approver asks the account owner to confirm a signature. Returning an
// error declines it.
type Approver func(ctx context.Context, req Approval) error

// AutoApprove signs every request.
func AutoApprove(context.Context, Approval) error { return nil }

// Session tracks which account, if any, is connected and signs on its
// behalf. It is safe for concurrent use.
type Session struct {
	wallet  *Wallet
	approve Approver
	log     *slog.Logger

	mu      sync.RWMutex
	current *Account
	subs    map[int]chan string
	nextSub int
}

// NewSession returns a disconnected session over w. A nil approve is
// AutoApprove; a nil log discards. A nil w gives a read-only session that
// cannot connect.
func NewSession(w *Wallet, approve Approver, log *slog.Logger) *Session {
	if approve == nil {
		approve = AutoApprove
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Session{
		wallet:  w,
		approve: approve,
		log:     log,
		subs:    make(map[int]chan string),
	}
}

// Connect makes the account at index current and notifies subscribers.
// Connecting while connected switches accounts.
func (s *Session) Connect(index uint32) (common.Address, error) {
	if s.wallet == nil {
		return common.Address{}, ErrLocked
	}
	acct, err := s.wallet.DeriveAccount(index)
	if err != nil {
		return common.Address{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.Address == acct.Address {
		return acct.Address, nil
	}
	s.current = acct
	s.log.Info("wallet connected", "account", acct.Address.Hex(), "path", acct.Path)
	s.publish(acct.Address.Hex())
	return acct.Address, nil
}

// Switch is Connect under the name wallets use for an account change.
func (s *Session) Switch(index uint32) (common.Address, error) {
	return s.Connect(index)
}

// Disconnect forgets the current account and notifies subscribers with "".
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.log.Info("wallet disconnected", "account", s.current.Address.Hex())
	s.current = nil
	s.publish("")
}

// Account returns the connected address, or "" when disconnected.
func (s *Session) Account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Address.Hex()
}

// Connected reports whether an account is connected.
func (s *Session) Connected() bool {
	return s.Account() != ""
}

// Subscribe returns a channel receiving the new address on every account
// change ("" on disconnect) and a function that ends the subscription.
// Slow readers see only the latest value.
func (s *Session) Subscribe() (<-chan string, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan string, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// publish must be called with mu held.
func (s *Session) publish(addr string) {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- addr
	}
}

// Signer returns a signer for the connected account. The signer stays
// bound to that account even if the session switches later.
func (s *Session) Signer() (gateway.Signer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNotConnected
	}
	return &AccountSigner{account: s.current, approve: s.approve}, nil
}

// AccountSigner signs transactions with one account's key after the
// owner approves them.
type AccountSigner struct {
	account *Account
	approve Approver
}

var _ gateway.Signer = (*AccountSigner)(nil)

// NewAccountSigner returns a signer for acct. A nil approve is AutoApprove.
func NewAccountSigner(acct *Account, approve Approver) *AccountSigner {
	if approve == nil {
		approve = AutoApprove
	}
	return &AccountSigner{account: acct, approve: approve}
}

// Address returns the signing account's address.
func (a *AccountSigner) Address() common.Address { return a.account.Address }

// SignTx asks for approval and signs tx for chainID.
func (a *AccountSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	req := Approval{
		From:    a.account.Address,
		To:      tx.To(),
		ChainID: chainID,
		Nonce:   tx.Nonce(),
		Data:    tx.Data(),
	}
	if err := a.approve(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), a.account.key)
	if err != nil {
		return nil, fmt.Errorf("wallet: sign transaction: %w", err)
	}
	return signed, nil
}
