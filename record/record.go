// Package record defines the royalty record model and its on-contract
// encoding.
//
// Records live in the contract's generic key/value storage:
//
//	royalty_keys   -> JSON array of record ids (the key index)
//	royalty_<id>   -> JSON object {data, timestamp, contributor, modelUsage, royaltyAmount, status}
package record

import "fmt"

// Status is the claim state of a record.
type Status string

const (
	StatusPending Status = "pending"
	StatusClaimed Status = "claimed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusClaimed
}

// ParseStatus converts a stored status string. An empty string is pending.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return StatusPending, nil
	}
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Record is a single art contribution and its royalty state.
type Record struct {
	ID            string `json:"id"`
	EncryptedData string `json:"encryptedData"`
	Timestamp     int64  `json:"timestamp"` // seconds since epoch, fixed at creation
	Contributor   string `json:"contributor"`
	ModelUsage    int64  `json:"modelUsage"`
	RoyaltyAmount string `json:"royaltyAmount"` // decimal string
	Status        Status `json:"status"`
}

// New returns a fresh pending record with zero usage and royalty.
func New(id, encryptedData, contributor string, timestamp int64) Record {
	return Record{
		ID:            id,
		EncryptedData: encryptedData,
		Timestamp:     timestamp,
		Contributor:   contributor,
		ModelUsage:    0,
		RoyaltyAmount: "0",
		Status:        StatusPending,
	}
}

// Claimed returns a copy of r with Status set to claimed.
func (r Record) Claimed() Record {
	r.Status = StatusClaimed
	return r
}

// IsPending reports whether the record can still be claimed.
func (r Record) IsPending() bool {
	return r.Status == StatusPending
}
