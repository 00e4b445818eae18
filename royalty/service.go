// Package royalty is the business logic layer of the client. The CLI and
// the HTTP API both call Service methods to load, contribute and claim
// royalty records.
package royalty

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bitfsorg/royalties-go/cipher"
	"github.com/bitfsorg/royalties-go/gateway"
	"github.com/bitfsorg/royalties-go/lifecycle"
	"github.com/bitfsorg/royalties-go/metrics"
	"github.com/bitfsorg/royalties-go/record"
	"github.com/bitfsorg/royalties-go/storage"
	"github.com/bitfsorg/royalties-go/syncer"
)

// Messages shown on the transaction indicator.
const (
	MsgConnectWallet   = "Please connect wallet first"
	MsgEncrypting      = "Encrypting contribution with FHE..."
	MsgContributed     = "Contribution submitted securely!"
	MsgRejected        = "Transaction rejected by user"
	MsgSubmitFailed    = "Submission failed: "
	MsgClaiming        = "Processing royalty claim with FHE..."
	MsgClaimed         = "Royalty claimed successfully!"
	MsgClaimFailed     = "Claim failed: "
	MsgRecordNotFound  = "Record not found"
	MsgRepairing       = "Repairing key index..."
	MsgRepaired        = "Key index repaired"
	MsgRepairFailed    = "Repair failed: "
	MsgUnknownFailure  = "Unknown error"
	MsgEmptyContribute = "Please enter contribution data"
)

// Session is the connected-wallet view the service needs.
type Session interface {
	// Account returns the connected address, or "" when disconnected.
	Account() string
	// Signer returns a signer for the connected account.
	Signer() (gateway.Signer, error)
}

type Config struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Connector gateway.Connector
	Session   Session
	Syncer    *syncer.Synchronizer
	Lifecycle *lifecycle.Controller
	Cipher    cipher.ContentCipher // defaults to cipher.Placeholder
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Connector == nil {
		return errors.New("gateway connector is required")
	}
	if cfg.Session == nil {
		return errors.New("wallet session is required")
	}
	if cfg.Syncer == nil {
		return errors.New("synchronizer is required")
	}
	if cfg.Lifecycle == nil {
		return errors.New("lifecycle controller is required")
	}
	if cfg.Cipher == nil {
		cfg.Cipher = cipher.Placeholder{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Result is the outcome of a write.
type Result struct {
	TxID     string `json:"txid"`
	RecordID string `json:"recordId,omitempty"`
	Message  string `json:"message"`
}

type Service struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{log: cfg.Logger, cfg: cfg}, nil
}

// Lifecycle returns the transaction indicator.
func (s *Service) Lifecycle() *lifecycle.Controller { return s.cfg.Lifecycle }

// Cipher returns the content cipher contributions are sealed with.
func (s *Service) Cipher() cipher.ContentCipher { return s.cfg.Cipher }

// Account returns the connected address, or "".
func (s *Service) Account() string { return s.cfg.Session.Account() }

// Refresh reloads all records from the contract.
func (s *Service) Refresh(ctx context.Context) (*syncer.Result, error) {
	return s.cfg.Syncer.LoadRecords(ctx)
}

// Records returns the loaded records matching term (see storage.Filter),
// newest first.
func (s *Service) Records(term string) []record.Record {
	return s.cfg.Syncer.Store().Filter(term)
}

// LoadedAt returns when the loaded records were fetched.
func (s *Service) LoadedAt() time.Time {
	return s.cfg.Syncer.Store().LoadedAt()
}

// Record returns one loaded record.
func (s *Service) Record(id string) (record.Record, bool) {
	return s.cfg.Syncer.Store().Get(id)
}

// Stats returns aggregates over all loaded records.
func (s *Service) Stats() storage.Stats {
	return s.cfg.Syncer.Store().Stats()
}

// signerGateway returns a gateway bound to the connected account.
func (s *Service) signerGateway() (gateway.Gateway, string, error) {
	account := s.cfg.Session.Account()
	if account == "" {
		return nil, "", ErrWalletNotConnected
	}
	signer, err := s.cfg.Session.Signer()
	if err != nil {
		return nil, "", errors.Join(ErrWalletNotConnected, err)
	}
	gw, err := s.cfg.Connector.WithSigner(signer)
	if err != nil {
		return nil, "", err
	}
	return gw, account, nil
}

// reload refreshes after a successful write. Failures are only logged.
func (s *Service) reload(ctx context.Context) {
	if _, err := s.cfg.Syncer.LoadRecords(ctx); err != nil {
		s.log.Warn("royalty: reload after write failed", "error", err)
	}
}

// observe records a write's metrics.
func (s *Service) observe(op string, start time.Time, err error) {
	status := metrics.StatusSuccess
	switch {
	case err == nil:
	case gateway.IsUserRejected(err):
		status = metrics.StatusRejected
	default:
		status = metrics.StatusError
	}
	metrics.WritesTotal.WithLabelValues(op, status).Inc()
	metrics.WriteDuration.WithLabelValues(op).Observe(s.cfg.Clock.Since(start).Seconds())
}

// describe renders err for the indicator.
func describe(err error) string {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return MsgRecordNotFound
	case err == nil || err.Error() == "":
		return MsgUnknownFailure
	}
	return err.Error()
}

// UserMessage maps errors returned before an operation starts to the text
// shown to the user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrWalletNotConnected):
		return MsgConnectWallet
	case errors.Is(err, ErrEmptyContribution):
		return MsgEmptyContribute
	case gateway.IsUserRejected(err):
		return MsgRejected
	}
	return describe(err)
}
