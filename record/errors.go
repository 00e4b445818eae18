package record

import "errors"

var (
	// ErrInvalidRecord indicates a stored record blob could not be decoded.
	ErrInvalidRecord = errors.New("record: invalid record data")

	// ErrInvalidIndex indicates the stored key index is not a JSON string array.
	ErrInvalidIndex = errors.New("record: invalid key index")

	// ErrInvalidStatus indicates a status value other than pending or claimed.
	ErrInvalidStatus = errors.New("record: invalid status")

	// ErrEmptyID indicates a record id is empty.
	ErrEmptyID = errors.New("record: empty id")
)
