package app

import "github.com/bitfsorg/royalties-go/record"

// Reduce returns the state that results from applying ev to s. It never
// mutates s.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case AccountChanged:
		s.Account = e.Account

	case RefreshStarted:
		s.Refreshing = true

	case RecordsLoaded:
		recs := make([]record.Record, len(e.Records))
		copy(recs, e.Records)
		s.Records = recs
		s.LoadedAt = e.LoadedAt
		s.Loading = false
		s.Refreshing = false

	case RefreshFailed:
		s.Loading = false
		s.Refreshing = false
		if e.Err != nil {
			s.LastError = e.Err.Error()
		}

	case SearchChanged:
		s.Search = e.Term

	case StatsToggled:
		s.ShowStats = !s.ShowStats

	case ContributeStarted:
		s.Contributing = true

	case ContributeFinished:
		s.Contributing = false
		if e.Err != nil {
			s.LastError = e.Err.Error()
		}

	case ClaimStarted:
		if !s.IsClaiming(e.ID) {
			s.Claiming = append(append([]string{}, s.Claiming...), e.ID)
		}

	case ClaimFinished:
		claiming := make([]string, 0, len(s.Claiming))
		for _, id := range s.Claiming {
			if id != e.ID {
				claiming = append(claiming, id)
			}
		}
		s.Claiming = claiming
		if e.Err != nil {
			s.LastError = e.Err.Error()
		}

	case TxChanged:
		s.Tx = e.Tx

	case NoticeShown:
		s.Notice = e.Text

	case NoticeCleared:
		s.Notice = ""
	}
	return s
}
