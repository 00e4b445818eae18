package royalty

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/royalties-go/cipher"
	"github.com/bitfsorg/royalties-go/gateway"
	"github.com/bitfsorg/royalties-go/lifecycle"
	"github.com/bitfsorg/royalties-go/record"
	"github.com/bitfsorg/royalties-go/revshare"
	"github.com/bitfsorg/royalties-go/storage"
	"github.com/bitfsorg/royalties-go/syncer"
	"github.com/bitfsorg/royalties-go/wallet"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type testEnv struct {
	mem     *gateway.MemoryGateway
	session *wallet.Session
	reject  *atomic.Bool
	clock   *clockwork.FakeClock
	lc      *lifecycle.Controller
	store   *storage.RecordStore
	svc     *Service
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	mem := gateway.NewMemoryGateway()

	reject := &atomic.Bool{}
	approve := func(context.Context, wallet.Approval) error {
		if reject.Load() {
			return errors.New("denied at prompt")
		}
		return nil
	}
	w, err := wallet.FromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	session := wallet.NewSession(w, approve, log)

	store := storage.NewRecordStore()
	sy, err := syncer.New(syncer.Config{Logger: log, Clock: clock, Reader: mem.ReadOnly(), Store: store})
	require.NoError(t, err)
	lc, err := lifecycle.New(lifecycle.Config{Logger: log, Clock: clock})
	require.NoError(t, err)

	svc, err := New(Config{
		Logger:    log,
		Clock:     clock,
		Connector: mem,
		Session:   session,
		Syncer:    sy,
		Lifecycle: lc,
	})
	require.NoError(t, err)

	return &testEnv{mem: mem, session: session, reject: reject, clock: clock, lc: lc, store: store, svc: svc}
}

func (e *testEnv) connect(t *testing.T) string {
	t.Helper()
	addr, err := e.session.Connect(0)
	require.NoError(t, err)
	return addr.Hex()
}

func (e *testEnv) index(t *testing.T) []string {
	t.Helper()
	ids, err := record.DecodeIndex(e.mem.Get(record.IndexKey))
	require.NoError(t, err)
	return ids
}

func putRecord(t *testing.T, mem *gateway.MemoryGateway, r record.Record) {
	t.Helper()
	blob, err := record.Encode(r)
	require.NoError(t, err)
	mem.Put(record.Key(r.ID), blob)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.Validate())
}

// --- Contribute ---

func TestContribute_Disconnected(t *testing.T) {
	e := newEnv(t)
	e.store.Replace([]record.Record{{ID: "existing"}}, time.Time{})

	_, err := e.svc.Contribute(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrWalletNotConnected)
	assert.Contains(t, err.Error(), "connect wallet first")
	assert.Equal(t, MsgConnectWallet, UserMessage(err))

	assert.Empty(t, e.mem.Writes())
	assert.False(t, e.lc.Snapshot().Visible())
	assert.Equal(t, 1, e.store.Len())
}

func TestContribute_Empty(t *testing.T) {
	e := newEnv(t)
	e.connect(t)

	_, err := e.svc.Contribute(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyContribution)
	assert.Empty(t, e.mem.Writes())
	assert.False(t, e.lc.Snapshot().Visible())
}

func TestContribute_Success(t *testing.T) {
	e := newEnv(t)
	account := e.connect(t)

	res, err := e.svc.Contribute(context.Background(), "abc")
	require.NoError(t, err)
	assert.NotEmpty(t, res.TxID)
	assert.Equal(t, MsgContributed, res.Message)
	assert.Regexp(t, `^\d{13}-[0-9a-z]{7}$`, res.RecordID)

	writes := e.mem.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, record.Key(res.RecordID), writes[0].Key)
	assert.Equal(t, record.IndexKey, writes[1].Key)
	assert.Equal(t, []string{res.RecordID}, e.index(t))

	recs := e.svc.Records("")
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, res.RecordID, r.ID)
	assert.Equal(t, "FHE-YWJj", r.EncryptedData)
	assert.Equal(t, account, r.Contributor)
	assert.Equal(t, e.clock.Now().Unix(), r.Timestamp)
	assert.Equal(t, int64(0), r.ModelUsage)
	assert.Equal(t, "0", r.RoyaltyAmount)
	assert.Equal(t, record.StatusPending, r.Status)

	plain, err := cipher.Placeholder{}.Open(r.EncryptedData)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(plain))

	s := e.lc.Snapshot()
	assert.Equal(t, lifecycle.PhaseSuccess, s.Phase)
	assert.Equal(t, MsgContributed, s.Message)

	e.clock.Advance(lifecycle.SuccessDismiss)
	require.Eventually(t, func() bool { return !e.lc.Snapshot().Visible() }, time.Second, time.Millisecond)
}

func TestContribute_AppendsToExistingIndex(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	putRecord(t, e.mem, record.New("old", "FHE-", "0x1", 1))
	idx, err := record.EncodeIndex([]string{"old"})
	require.NoError(t, err)
	e.mem.Put(record.IndexKey, idx)

	res, err := e.svc.Contribute(context.Background(), "new art")
	require.NoError(t, err)
	assert.Equal(t, []string{"old", res.RecordID}, e.index(t))
	assert.Equal(t, 2, e.store.Len())
}

func TestContribute_MalformedIndexRestarts(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	e.mem.Put(record.IndexKey, []byte("{corrupt"))

	res, err := e.svc.Contribute(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{res.RecordID}, e.index(t))
}

func TestContribute_Rejected(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	e.reject.Store(true)

	_, err := e.svc.Contribute(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, gateway.IsUserRejected(err))
	assert.Equal(t, MsgRejected, UserMessage(err))

	s := e.lc.Snapshot()
	assert.Equal(t, lifecycle.PhaseError, s.Phase)
	assert.Equal(t, MsgRejected, s.Message)
	assert.Empty(t, e.mem.Writes())

	e.clock.Advance(lifecycle.ErrorDismiss)
	require.Eventually(t, func() bool { return !e.lc.Snapshot().Visible() }, time.Second, time.Millisecond)
}

func TestContribute_IndexWriteFailureLeavesOrphan(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	e.mem.FailSet(func(key string) error {
		if key == record.IndexKey {
			return errors.New("out of gas")
		}
		return nil
	})

	_, err := e.svc.Contribute(context.Background(), "abc")
	require.ErrorIs(t, err, gateway.ErrTxFailed)

	s := e.lc.Snapshot()
	assert.Equal(t, lifecycle.PhaseError, s.Phase)
	assert.Contains(t, s.Message, MsgSubmitFailed)
	assert.Contains(t, s.Message, "out of gas")

	writes := e.mem.Writes()
	require.Len(t, writes, 1)
	orphanID, ok := record.IDFromKey(writes[0].Key)
	require.True(t, ok)
	assert.Nil(t, e.mem.Get(record.IndexKey))

	e.mem.FailSet(nil)
	report, err := e.svc.Reconcile(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{orphanID}, report.Orphans)
	assert.False(t, report.Repaired)

	report, err = e.svc.Reconcile(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.Repaired)
	assert.NotEmpty(t, report.TxID)
	assert.Equal(t, []string{orphanID}, e.index(t))
	assert.Equal(t, 1, e.store.Len())
}

func TestContribute_CustomCipher(t *testing.T) {
	e := newEnv(t)
	e.svc.cfg.Cipher = upperCipher{}
	e.connect(t)

	res, err := e.svc.Contribute(context.Background(), "abc")
	require.NoError(t, err)
	r, ok := e.svc.Record(res.RecordID)
	require.True(t, ok)
	assert.Equal(t, "UP-abc", r.EncryptedData)
}

type upperCipher struct{}

func (upperCipher) Scheme() string                { return "UP" }
func (upperCipher) Seal(p []byte) (string, error) { return "UP-" + string(p), nil }
func (upperCipher) Open(s string) ([]byte, error) { return []byte(s[3:]), nil }

// --- Claim ---

func TestClaim_Success(t *testing.T) {
	e := newEnv(t)
	account := e.connect(t)

	original := []byte(`{"data":"FHE-YWJj","timestamp":100,"contributor":"` + account + `","modelUsage":7,"royaltyAmount":"1.25","status":"pending","note":"keep"}`)
	e.mem.Put(record.Key("r1"), original)
	idx, err := record.EncodeIndex([]string{"r1"})
	require.NoError(t, err)
	e.mem.Put(record.IndexKey, idx)

	res, err := e.svc.Claim(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, MsgClaimed, res.Message)
	assert.Equal(t, "r1", res.RecordID)

	before, err := record.Decode("r1", original)
	require.NoError(t, err)
	after, err := record.Decode("r1", e.mem.Get(record.Key("r1")))
	require.NoError(t, err)
	assert.Equal(t, before.Claimed(), after)
	assert.Contains(t, string(e.mem.Get(record.Key("r1"))), `"note":"keep"`)

	r, ok := e.svc.Record("r1")
	require.True(t, ok)
	assert.Equal(t, record.StatusClaimed, r.Status)
	assert.Equal(t, lifecycle.PhaseSuccess, e.lc.Snapshot().Phase)
	assert.Equal(t, MsgClaimed, e.lc.Snapshot().Message)
}

func TestClaim_NotFound(t *testing.T) {
	e := newEnv(t)
	e.connect(t)

	_, err := e.svc.Claim(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Empty(t, e.mem.Writes())

	s := e.lc.Snapshot()
	assert.Equal(t, lifecycle.PhaseError, s.Phase)
	assert.Equal(t, MsgClaimFailed+MsgRecordNotFound, s.Message)
}

func TestClaim_Disconnected(t *testing.T) {
	e := newEnv(t)
	putRecord(t, e.mem, record.New("r1", "FHE-", "0x1", 1))

	_, err := e.svc.Claim(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrWalletNotConnected)
	assert.Empty(t, e.mem.Writes())
	assert.False(t, e.lc.Snapshot().Visible())
}

func TestClaim_OtherContributorAndReclaimAllowed(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	putRecord(t, e.mem, record.New("r1", "FHE-", "0xSOMEONEELSE", 1).Claimed())

	_, err := e.svc.Claim(context.Background(), "r1")
	require.NoError(t, err)
	assert.Len(t, e.mem.Writes(), 1)
}

func TestClaim_Rejected(t *testing.T) {
	e := newEnv(t)
	e.connect(t)
	putRecord(t, e.mem, record.New("r1", "FHE-", "0x1", 1))
	e.reject.Store(true)

	_, err := e.svc.Claim(context.Background(), "r1")
	require.Error(t, err)
	assert.Equal(t, MsgRejected, e.lc.Snapshot().Message)
	assert.Equal(t, record.StatusPending, mustDecode(t, e.mem.Get(record.Key("r1"))).Status)
}

func mustDecode(t *testing.T, blob []byte) record.Record {
	t.Helper()
	r, err := record.Decode("x", blob)
	require.NoError(t, err)
	return r
}

// --- Read side ---

func TestRefreshRecordsStats(t *testing.T) {
	e := newEnv(t)
	putRecord(t, e.mem, record.Record{ID: "a1", Contributor: "0xAlice", Timestamp: 100, RoyaltyAmount: "1.5", Status: record.StatusPending})
	putRecord(t, e.mem, record.Record{ID: "b2", Contributor: "0xBob", Timestamp: 200, RoyaltyAmount: "2.25", Status: record.StatusClaimed})
	idx, err := record.EncodeIndex([]string{"a1", "b2"})
	require.NoError(t, err)
	e.mem.Put(record.IndexKey, idx)

	res, err := e.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)

	assert.Len(t, e.svc.Records(""), 2)
	filtered := e.svc.Records("ALICE")
	require.Len(t, filtered, 1)
	assert.Equal(t, "a1", filtered[0].ID)

	st := e.svc.Stats()
	assert.Equal(t, "3.7500", st.TotalRoyalties)
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 1, st.Claimed)
}

// --- Reconcile ---

func TestReconcile_Unsupported(t *testing.T) {
	e := newEnv(t)
	e.svc.cfg.Connector = readOnlyConnector{r: &gateway.MockGateway{}}

	_, err := e.svc.Reconcile(context.Background(), false)
	assert.ErrorIs(t, err, ErrListingUnsupported)
}

type readOnlyConnector struct{ r gateway.Reader }

func (c readOnlyConnector) ReadOnly() gateway.Reader { return c.r }
func (c readOnlyConnector) WithSigner(gateway.Signer) (gateway.Gateway, error) {
	return nil, gateway.ErrNoSigner
}

func TestReconcile_Dangling(t *testing.T) {
	e := newEnv(t)
	putRecord(t, e.mem, record.New("a", "FHE-", "0x1", 1))
	idx, err := record.EncodeIndex([]string{"a", "ghost"})
	require.NoError(t, err)
	e.mem.Put(record.IndexKey, idx)

	report, err := e.svc.Reconcile(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 1, report.Stored)
	assert.Empty(t, report.Orphans)
	assert.Equal(t, []string{"ghost"}, report.Dangling)
	assert.False(t, report.Repaired)
	assert.Empty(t, e.mem.Writes())
}

func TestReconcile_RepairNeedsWallet(t *testing.T) {
	e := newEnv(t)
	putRecord(t, e.mem, record.New("orphan", "FHE-", "0x1", 1))

	report, err := e.svc.Reconcile(context.Background(), true)
	assert.ErrorIs(t, err, ErrWalletNotConnected)
	require.NotNil(t, report)
	assert.Equal(t, []string{"orphan"}, report.Orphans)
	assert.Empty(t, e.mem.Writes())
}

// --- Estimate ---

func TestEstimatePayouts(t *testing.T) {
	records := []record.Record{
		{Contributor: "0xAA", ModelUsage: 3},
		{Contributor: "0xbb", ModelUsage: 1},
		{Contributor: "0xaa", ModelUsage: 1},
		{Contributor: "0xcc", ModelUsage: 0},
	}
	dist, err := EstimatePayouts(100, records)
	require.NoError(t, err)
	assert.Equal(t, []revshare.Distribution{
		{Contributor: "0xAA", Weight: 4, Amount: 80},
		{Contributor: "0xbb", Weight: 1, Amount: 20},
	}, dist)

	_, err = EstimatePayouts(100, []record.Record{{Contributor: "0x1"}})
	assert.ErrorIs(t, err, ErrNoUsage)

	_, err = EstimatePayouts(0, records)
	assert.ErrorIs(t, err, revshare.ErrInsufficientPayment)
}

func TestEstimatePayouts_UsageOverflow(t *testing.T) {
	records := []record.Record{
		{Contributor: "0xAA", ModelUsage: math.MaxInt64},
		{Contributor: "0xaa", ModelUsage: math.MaxInt64},
		{Contributor: "0xAA", ModelUsage: 2},
	}
	_, err := EstimatePayouts(100, records)
	assert.ErrorIs(t, err, ErrUsageOverflow)
	assert.ErrorIs(t, err, revshare.ErrZeroTotalShares)

	dist, err := EstimatePayouts(100, records[:2])
	require.NoError(t, err)
	require.Len(t, dist, 1)
	assert.Equal(t, uint64(math.MaxUint64-1), dist[0].Weight)
	assert.Equal(t, uint64(100), dist[0].Amount)
}

func TestService_Estimate(t *testing.T) {
	e := newEnv(t)
	e.store.Replace([]record.Record{{Contributor: "0x1", ModelUsage: 2}}, time.Time{})

	dist, err := e.svc.Estimate(10)
	require.NoError(t, err)
	require.Len(t, dist, 1)
	assert.Equal(t, uint64(10), dist[0].Amount)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, MsgEmptyContribute, UserMessage(ErrEmptyContribution))
	assert.Equal(t, MsgRecordNotFound, UserMessage(ErrRecordNotFound))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
	assert.Equal(t, MsgUnknownFailure, UserMessage(nil))
}
