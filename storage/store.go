// Package storage holds the client's view of contribution records: the
// in-memory RecordStore and an optional on-disk snapshot of the last
// successful load.
package storage

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/bitfsorg/royalties-go/record"
	"github.com/bitfsorg/royalties-go/revshare"
)

// Stats are the aggregate figures shown next to the record list.
type Stats struct {
	Total          int    `json:"total"`
	Pending        int    `json:"pending"`
	Claimed        int    `json:"claimed"`
	TotalRoyalties string `json:"totalRoyalties"`
	InvalidAmounts int    `json:"invalidAmounts,omitempty"`
}

type generation struct {
	records  []record.Record
	loadedAt time.Time
}

// RecordStore is the ordered list of records last loaded from the contract.
// Every load replaces the whole list; readers never see a partial update.
// It is safe for concurrent use.
type RecordStore struct {
	cur atomic.Pointer[generation]
}

// NewRecordStore returns an empty store.
func NewRecordStore() *RecordStore {
	s := &RecordStore{}
	s.cur.Store(&generation{})
	return s
}

// Replace swaps in records as the new list. The slice is copied.
func (s *RecordStore) Replace(records []record.Record, loadedAt time.Time) {
	cp := make([]record.Record, len(records))
	copy(cp, records)
	s.cur.Store(&generation{records: cp, loadedAt: loadedAt})
}

// Records returns a copy of the current list.
func (s *RecordStore) Records() []record.Record {
	g := s.cur.Load()
	cp := make([]record.Record, len(g.records))
	copy(cp, g.records)
	return cp
}

// LoadedAt returns when the current list was loaded, or the zero time.
func (s *RecordStore) LoadedAt() time.Time {
	return s.cur.Load().loadedAt
}

// Len returns the number of records.
func (s *RecordStore) Len() int {
	return len(s.cur.Load().records)
}

// Get returns the record with the given id.
func (s *RecordStore) Get(id string) (record.Record, bool) {
	for _, r := range s.cur.Load().records {
		if r.ID == id {
			return r, true
		}
	}
	return record.Record{}, false
}

// Filter returns the records whose id or contributor contains term,
// case-insensitively, in list order. An empty term matches everything.
func (s *RecordStore) Filter(term string) []record.Record {
	return Filter(s.cur.Load().records, term)
}

// Stats computes aggregates over the whole list.
func (s *RecordStore) Stats() Stats {
	return ComputeStats(s.cur.Load().records)
}

// Filter applies the search rule of RecordStore.Filter to records.
func Filter(records []record.Record, term string) []record.Record {
	needle := strings.ToLower(term)
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		if needle == "" ||
			strings.Contains(strings.ToLower(r.ID), needle) ||
			strings.Contains(strings.ToLower(r.Contributor), needle) {
			out = append(out, r)
		}
	}
	return out
}

// ComputeStats counts records by status and totals their royalty amounts
// to revshare.DisplayDecimals decimals.
func ComputeStats(records []record.Record) Stats {
	st := Stats{Total: len(records)}
	amounts := make([]string, 0, len(records))
	for _, r := range records {
		switch r.Status {
		case record.StatusClaimed:
			st.Claimed++
		default:
			st.Pending++
		}
		amounts = append(amounts, r.RoyaltyAmount)
	}
	st.TotalRoyalties, st.InvalidAmounts = revshare.TotalRoyalties(amounts)
	return st
}
