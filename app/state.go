// Package app holds the client's view state and the event loop that
// drives it.
//
// State is only ever changed by Reduce, a pure function of the previous
// state and one Event. Loop owns the current State; operations run as
// goroutines and report back by posting events.
package app

import (
	"time"

	"github.com/bitfsorg/royalties-go/lifecycle"
	"github.com/bitfsorg/royalties-go/record"
	"github.com/bitfsorg/royalties-go/storage"
)

// State is everything a view renders.
type State struct {
	Account      string          `json:"account"`
	Records      []record.Record `json:"records"`
	LoadedAt     time.Time       `json:"loadedAt"`
	Search       string          `json:"search"`
	ShowStats    bool            `json:"showStats"`
	Loading      bool            `json:"loading"`
	Refreshing   bool            `json:"refreshing"`
	Contributing bool            `json:"contributing"`
	Claiming     []string        `json:"claiming"`
	Tx           lifecycle.State `json:"tx"`
	Notice       string          `json:"notice,omitempty"`
	LastError    string          `json:"lastError,omitempty"`
}

// Initial is the state before the first load.
func Initial() State {
	return State{Loading: true, Records: []record.Record{}, Claiming: []string{}}
}

// Connected reports whether a wallet account is connected.
func (s State) Connected() bool { return s.Account != "" }

// Visible returns the records matching the search term.
func (s State) Visible() []record.Record {
	return storage.Filter(s.Records, s.Search)
}

// Stats aggregates over all records, regardless of the search term.
func (s State) Stats() storage.Stats {
	return storage.ComputeStats(s.Records)
}

// IsClaiming reports whether a claim for id is in flight.
func (s State) IsClaiming(id string) bool {
	for _, c := range s.Claiming {
		if c == id {
			return true
		}
	}
	return false
}
