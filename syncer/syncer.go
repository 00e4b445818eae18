// Package syncer rebuilds the local record list from the contract.
//
// A load reads the key index, fetches every listed record independently,
// decodes what it can, and swaps the sorted result into the RecordStore in
// one step. A failed availability probe aborts the load without touching
// the store; any single record that cannot be fetched or decoded is left
// out without affecting the others.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/royalties-go/gateway"
	"github.com/bitfsorg/royalties-go/metrics"
	"github.com/bitfsorg/royalties-go/record"
	"github.com/bitfsorg/royalties-go/storage"
)

// DefaultConcurrency bounds parallel record fetches.
const DefaultConcurrency = 8

type Config struct {
	Logger      *slog.Logger
	Clock       clockwork.Clock
	Reader      gateway.Reader
	Store       *storage.RecordStore
	Snapshot    *storage.Snapshot // optional; saved after each successful load
	Concurrency int

	// OnLoad, if set, runs after each successful load.
	OnLoad func(*Result)
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Reader == nil {
		return errors.New("contract reader is required")
	}
	if cfg.Store == nil {
		return errors.New("record store is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Result summarizes one load.
type Result struct {
	Records  []record.Record
	Indexed  int // ids listed in the index
	Skipped  int // ids left out because of fetch, empty or decode failures
	LoadedAt time.Time
	Duration time.Duration
}

type Synchronizer struct {
	log *slog.Logger
	cfg Config

	// serializes periodic refreshes; explicit loads may still overlap
	refreshMu sync.Mutex
}

func New(cfg Config) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Synchronizer{log: cfg.Logger, cfg: cfg}, nil
}

// Store returns the record store loads are written to.
func (s *Synchronizer) Store() *storage.RecordStore { return s.cfg.Store }

// LoadRecords performs one full load. On ErrUnavailable, including a failed
// read of the key index, the store and snapshot keep their previous contents. Loads are idempotent and never write to the contract.
func (s *Synchronizer) LoadRecords(ctx context.Context) (*Result, error) {
	start := s.cfg.Clock.Now()
	defer func() {
		metrics.SyncDuration.Observe(s.cfg.Clock.Since(start).Seconds())
	}()

	ok, err := s.cfg.Reader.IsAvailable(ctx)
	if err != nil {
		s.log.Error("syncer: availability check failed", "error", err)
		metrics.SyncRunsTotal.WithLabelValues(metrics.StatusUnavailable).Inc()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !ok {
		s.log.Error("syncer: contract is not available")
		metrics.SyncRunsTotal.WithLabelValues(metrics.StatusUnavailable).Inc()
		return nil, ErrUnavailable
	}

	ids, err := s.fetchIndex(ctx)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues(metrics.StatusUnavailable).Inc()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	records, skipped := s.fetchRecords(ctx, ids)

	// A cancelled context makes every fetch fail; do not publish that as
	// an empty list.
	if err := ctx.Err(); err != nil {
		metrics.SyncRunsTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, err
	}

	SortNewestFirst(records)

	now := s.cfg.Clock.Now()
	s.cfg.Store.Replace(records, now)
	metrics.SyncRunsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	metrics.RecordsLoaded.Set(float64(len(records)))

	if s.cfg.Snapshot != nil {
		if err := s.cfg.Snapshot.Save(records, now); err != nil {
			s.log.Warn("syncer: failed to save snapshot", "path", s.cfg.Snapshot.Path(), "error", err)
		}
	}

	res := &Result{
		Records:  records,
		Indexed:  len(ids),
		Skipped:  skipped,
		LoadedAt: now,
		Duration: s.cfg.Clock.Since(start),
	}
	s.log.Info("syncer: records loaded", "count", len(records), "indexed", len(ids), "skipped", skipped, "duration", res.Duration.String())
	if s.cfg.OnLoad != nil {
		s.cfg.OnLoad(res)
	}
	return res, nil
}

// fetchIndex reads the key index. A missing or malformed index is empty;
// a failed read is returned so the previous list survives.
func (s *Synchronizer) fetchIndex(ctx context.Context) ([]string, error) {
	blob, err := s.cfg.Reader.GetData(ctx, record.IndexKey)
	if err != nil {
		s.log.Error("syncer: failed to fetch key index", "error", err)
		return nil, err
	}
	ids, err := record.DecodeIndex(blob)
	if err != nil {
		s.log.Error("syncer: failed to parse key index", "error", err)
		return nil, nil
	}
	return ids, nil
}

// fetchRecords loads each id concurrently. Each worker writes only its own
// slot, so failures stay isolated; the surviving records keep index order.
func (s *Synchronizer) fetchRecords(ctx context.Context, ids []string) ([]record.Record, int) {
	slots := make([]*record.Record, len(ids))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			slots[i] = s.fetchOne(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	records := make([]record.Record, 0, len(ids))
	for _, r := range slots {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records, len(ids) - len(records)
}

func (s *Synchronizer) fetchOne(ctx context.Context, id string) *record.Record {
	blob, err := s.cfg.Reader.GetData(ctx, record.Key(id))
	if err != nil {
		s.log.Error("syncer: failed to load record", "id", id, "error", err)
		metrics.SyncRecordsSkipped.WithLabelValues(metrics.SkipFetchError).Inc()
		return nil
	}
	if len(blob) == 0 {
		s.log.Warn("syncer: record listed in index has no data", "id", id)
		metrics.SyncRecordsSkipped.WithLabelValues(metrics.SkipEmpty).Inc()
		return nil
	}
	r, err := record.Decode(id, blob)
	if err != nil {
		s.log.Error("syncer: failed to parse record", "id", id, "error", err)
		metrics.SyncRecordsSkipped.WithLabelValues(metrics.SkipInvalid).Inc()
		return nil
	}
	return &r
}

// SortNewestFirst orders records by timestamp descending. Records with
// equal timestamps keep their relative order.
func SortNewestFirst(records []record.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
}

// Start refreshes every interval until ctx is done. The first refresh runs
// immediately.
func (s *Synchronizer) Start(ctx context.Context, interval time.Duration) {
	go func() {
		s.log.Info("syncer: starting refresh loop", "interval", interval)

		s.safeRefresh(ctx)

		ticker := s.cfg.Clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				s.safeRefresh(ctx)
			}
		}
	}()
}

func (s *Synchronizer) safeRefresh(ctx context.Context) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("syncer: refresh panicked", "panic", r)
			metrics.SyncRunsTotal.WithLabelValues("panic").Inc()
		}
	}()

	if _, err := s.LoadRecords(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("syncer: refresh failed", "error", err)
	}
}
