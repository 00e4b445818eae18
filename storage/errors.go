package storage

import "errors"

var (
	// ErrNotFound indicates no record or snapshot exists.
	ErrNotFound = errors.New("storage: not found")

	// ErrIOFailure indicates a file read/write error.
	ErrIOFailure = errors.New("storage: I/O failure")

	// ErrInvalidPath indicates the snapshot path is empty.
	ErrInvalidPath = errors.New("storage: invalid snapshot path")

	// ErrCorruptSnapshot indicates a snapshot file that cannot be decoded.
	ErrCorruptSnapshot = errors.New("storage: corrupt snapshot")

	// ErrSnapshotTooLarge indicates decompressed data exceeds the safety limit.
	ErrSnapshotTooLarge = errors.New("storage: decompressed snapshot exceeds maximum size")
)
