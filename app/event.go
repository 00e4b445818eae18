package app

import (
	"time"

	"github.com/bitfsorg/royalties-go/lifecycle"
	"github.com/bitfsorg/royalties-go/record"
)

// Event is one state change request.
type Event interface {
	event()
}

type (
	// AccountChanged reports the connected account; "" means disconnected.
	AccountChanged struct{ Account string }

	// RefreshStarted marks the start of a reload.
	RefreshStarted struct{}

	// RecordsLoaded carries a completed load.
	RecordsLoaded struct {
		Records  []record.Record
		LoadedAt time.Time
	}

	// RefreshFailed reports a load that left the records unchanged.
	RefreshFailed struct{ Err error }

	// SearchChanged sets the search term.
	SearchChanged struct{ Term string }

	// StatsToggled flips the statistics panel.
	StatsToggled struct{}

	// ContributeStarted marks a contribution in flight.
	ContributeStarted struct{}

	// ContributeFinished ends a contribution; Err is nil on success.
	ContributeFinished struct{ Err error }

	// ClaimStarted marks a claim for ID in flight.
	ClaimStarted struct{ ID string }

	// ClaimFinished ends a claim; Err is nil on success.
	ClaimFinished struct {
		ID  string
		Err error
	}

	// TxChanged mirrors the transaction indicator.
	TxChanged struct{ Tx lifecycle.State }

	// NoticeShown displays a one-off message such as a missing wallet.
	NoticeShown struct{ Text string }

	// NoticeCleared dismisses the notice.
	NoticeCleared struct{}
)

func (AccountChanged) event()     {}
func (RefreshStarted) event()     {}
func (RecordsLoaded) event()      {}
func (RefreshFailed) event()      {}
func (SearchChanged) event()      {}
func (StatsToggled) event()       {}
func (ContributeStarted) event()  {}
func (ContributeFinished) event() {}
func (ClaimStarted) event()       {}
func (ClaimFinished) event()      {}
func (TxChanged) event()          {}
func (NoticeShown) event()        {}
func (NoticeCleared) event()      {}
