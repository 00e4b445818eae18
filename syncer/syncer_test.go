package syncer

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/royalties-go/gateway"
	"github.com/bitfsorg/royalties-go/record"
	"github.com/bitfsorg/royalties-go/storage"
)

func putRecord(t *testing.T, mem *gateway.MemoryGateway, id string, ts int64) {
	t.Helper()
	blob, err := record.Encode(record.New(id, "FHE-YWJj", "0xC0FFEE", ts))
	require.NoError(t, err)
	mem.Put(record.Key(id), blob)
}

func putIndex(t *testing.T, mem *gateway.MemoryGateway, ids ...string) {
	t.Helper()
	blob, err := record.EncodeIndex(ids)
	require.NoError(t, err)
	mem.Put(record.IndexKey, blob)
}

func newSync(t *testing.T, r gateway.Reader, clock clockwork.Clock) (*Synchronizer, *storage.RecordStore) {
	t.Helper()
	store := storage.NewRecordStore()
	s, err := New(Config{
		Logger: slog.New(slog.DiscardHandler),
		Clock:  clock,
		Reader: r,
		Store:  store,
	})
	require.NoError(t, err)
	return s, store
}

func ids(records []record.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.Validate())

	cfg = Config{Logger: slog.New(slog.DiscardHandler), Reader: gateway.NewMemoryGateway(), Store: storage.NewRecordStore()}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.NotNil(t, cfg.Clock)
}

func TestLoadRecords_SortedNewestFirst(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	putRecord(t, mem, "r1", 100)
	putRecord(t, mem, "r2", 200)
	putIndex(t, mem, "r1", "r2")

	s, store := newSync(t, mem.ReadOnly(), nil)
	res, err := s.LoadRecords(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"r2", "r1"}, ids(res.Records))
	assert.Equal(t, []string{"r2", "r1"}, ids(store.Records()))
	assert.Equal(t, 2, res.Indexed)
	assert.Zero(t, res.Skipped)
}

func TestLoadRecords_TiesKeepIndexOrder(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	putRecord(t, mem, "a", 100)
	putRecord(t, mem, "b", 100)
	putRecord(t, mem, "c", 300)
	putIndex(t, mem, "a", "b", "c")

	s, _ := newSync(t, mem, nil)
	res, err := s.LoadRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(res.Records))
}

func TestLoadRecords_SkipsBadRecordsIndependently(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	putRecord(t, mem, "good1", 10)
	putRecord(t, mem, "good2", 20)
	mem.Put(record.Key("garbled"), []byte("{not json"))
	mem.Put(record.Key("null"), []byte("null"))
	mem.Put(record.Key("badstatus"), []byte(`{"data":"x","timestamp":5,"contributor":"0x1","status":"refunded"}`))
	putRecord(t, mem, "unreachable", 30)
	mem.FailGet(record.Key("unreachable"), errors.New("rpc timeout"))
	putIndex(t, mem, "good1", "garbled", "null", "missing", "badstatus", "unreachable", "good2")

	s, store := newSync(t, mem, nil)
	res, err := s.LoadRecords(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"good2", "good1"}, ids(res.Records))
	assert.Equal(t, 7, res.Indexed)
	assert.Equal(t, 5, res.Skipped)
	assert.Equal(t, 2, store.Len())
}

func TestLoadRecords_TolerantDecode(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	mem.Put(record.Key("old"), []byte(`{"data":"FHE-eA==","timestamp":42,"contributor":"0xABC"}`))
	putIndex(t, mem, "old")

	s, _ := newSync(t, mem, nil)
	res, err := s.LoadRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	r := res.Records[0]
	assert.Equal(t, int64(0), r.ModelUsage)
	assert.Equal(t, "0", r.RoyaltyAmount)
	assert.Equal(t, record.StatusPending, r.Status)
}

func TestLoadRecords_UnavailableLeavesStoreUntouched(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	putRecord(t, mem, "r1", 100)
	putIndex(t, mem, "r1")

	s, store := newSync(t, mem, nil)
	_, err := s.LoadRecords(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	putRecord(t, mem, "r2", 200)
	putIndex(t, mem, "r1", "r2")

	mem.SetAvailable(false, nil)
	_, err = s.LoadRecords(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, []string{"r1"}, ids(store.Records()))

	mem.SetAvailable(true, errors.New("connection refused"))
	_, err = s.LoadRecords(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, []string{"r1"}, ids(store.Records()))
}

func TestLoadRecords_BadIndexIsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		setup func(mem *gateway.MemoryGateway)
	}{
		{"missing", func(*gateway.MemoryGateway) {}},
		{"malformed", func(mem *gateway.MemoryGateway) { mem.Put(record.IndexKey, []byte("not-json")) }},
		{"wrong shape", func(mem *gateway.MemoryGateway) { mem.Put(record.IndexKey, []byte(`{"a":1}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := gateway.NewMemoryGateway()
			putRecord(t, mem, "r1", 1)
			tt.setup(mem)

			s, store := newSync(t, mem, nil)
			store.Replace([]record.Record{{ID: "stale"}}, time.Time{})

			res, err := s.LoadRecords(context.Background())
			require.NoError(t, err)
			assert.Empty(t, res.Records)
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestLoadRecords_IndexFetchErrorKeepsPrevious(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	putRecord(t, mem, "r1", 100)
	putIndex(t, mem, "r1")

	snap, err := storage.NewSnapshot(filepath.Join(t.TempDir(), storage.SnapshotName))
	require.NoError(t, err)
	store := storage.NewRecordStore()
	s, err := New(Config{
		Logger:   slog.New(slog.DiscardHandler),
		Reader:   mem,
		Store:    store,
		Snapshot: snap,
	})
	require.NoError(t, err)

	_, err = s.LoadRecords(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	var loads int
	s.cfg.OnLoad = func(*Result) { loads++ }
	mem.FailGet(record.IndexKey, errors.New("rpc: connection reset"))

	res, err := s.LoadRecords(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, res)
	assert.Equal(t, []string{"r1"}, ids(store.Records()))
	assert.Zero(t, loads)

	saved, _, err := snap.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids(saved))
}

func TestLoadRecords_Idempotent(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	for i, id := range []string{"x", "y", "z"} {
		putRecord(t, mem, id, int64(i*10))
	}
	putIndex(t, mem, "x", "y", "z")

	s, _ := newSync(t, mem, nil)
	first, err := s.LoadRecords(context.Background())
	require.NoError(t, err)
	second, err := s.LoadRecords(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Empty(t, mem.Writes())
}

func TestLoadRecords_CancelledContext(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	s, _ := newSync(t, mem, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.LoadRecords(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadRecords_SavesSnapshot(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	putRecord(t, mem, "r1", 100)
	putIndex(t, mem, "r1")

	snap, err := storage.NewSnapshot(filepath.Join(t.TempDir(), storage.SnapshotName))
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	s, err := New(Config{
		Logger:   slog.New(slog.DiscardHandler),
		Clock:    clock,
		Reader:   mem,
		Store:    storage.NewRecordStore(),
		Snapshot: snap,
	})
	require.NoError(t, err)

	_, err = s.LoadRecords(context.Background())
	require.NoError(t, err)

	records, at, err := snap.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids(records))
	assert.True(t, clock.Now().Equal(at))
}

func TestStart_RefreshesOnInterval(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	putIndex(t, mem)
	clock := clockwork.NewFakeClock()
	s, _ := newSync(t, mem, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, time.Minute)

	require.Eventually(t, func() bool { return mem.Reads() >= 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return mem.Reads() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestLoadRecords_OnLoad(t *testing.T) {
	mem := gateway.NewMemoryGateway()
	putRecord(t, mem, "r1", 100)
	putIndex(t, mem, "r1")

	var got *Result
	s, err := New(Config{
		Logger: slog.New(slog.DiscardHandler),
		Reader: mem.ReadOnly(),
		Store:  storage.NewRecordStore(),
		OnLoad: func(r *Result) { got = r },
	})
	require.NoError(t, err)

	res, err := s.LoadRecords(context.Background())
	require.NoError(t, err)
	assert.Same(t, res, got)

	got = nil
	mem.SetAvailable(false, nil)
	_, err = s.LoadRecords(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, got, "failed loads are not reported")
}

func TestSortNewestFirst(t *testing.T) {
	records := []record.Record{{ID: "a", Timestamp: 1}, {ID: "b", Timestamp: 3}, {ID: "c", Timestamp: 2}}
	SortNewestFirst(records)
	assert.Equal(t, []string{"b", "c", "a"}, ids(records))
}
