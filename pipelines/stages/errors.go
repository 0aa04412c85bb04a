// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages

import "fmt"

// ErrDiscovery is returned when the upstream index document cannot be
// fetched or lists no matching archives. Callers treat it as "nothing
// to do," not as a fatal fault.
type ErrDiscovery struct {
	URL string
	Err error
}

func (e *ErrDiscovery) Error() string {
	return fmt.Sprintf("discover %s: %v", e.URL, e.Err)
}

func (e *ErrDiscovery) Unwrap() error {
	return e.Err
}

// ErrFetchFile is returned when a single archive download fails.
// The fetch batch continues past it.
type ErrFetchFile struct {
	Filename   string
	StatusCode int // zero on transport errors
	Err        error
}

func (e *ErrFetchFile) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.Filename, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.Filename, e.Err)
}

func (e *ErrFetchFile) Unwrap() error {
	return e.Err
}

// ErrWriteFile is returned when file I/O operations fail.
type ErrWriteFile struct {
	Op   string // mkdir, write, read, rename
	Path string
	Err  error
}

func (e *ErrWriteFile) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ErrWriteFile) Unwrap() error {
	return e.Err
}

// ErrArchive is returned when a cached archive cannot be opened or decoded.
type ErrArchive struct {
	Path string
	Err  error
}

func (e *ErrArchive) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Path, e.Err)
}

func (e *ErrArchive) Unwrap() error {
	return e.Err
}

// ErrDatabase is returned when manifest store operations fail.
type ErrDatabase struct {
	Op  string
	Err error
}

func (e *ErrDatabase) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *ErrDatabase) Unwrap() error {
	return e.Err
}

// Error code constants for manifest storage.
const (
	ErrCodeDiscovery = "DISCOVERY"
	ErrCodeFetchFile = "FETCH_FILE"
	ErrCodeWriteFile = "WRITE_FILE"
	ErrCodeArchive   = "ARCHIVE"
	ErrCodeDatabase  = "DATABASE"
	ErrCodeUnknown   = "UNKNOWN"
)

// ErrorCode returns the error code string for a given error.
func ErrorCode(err error) string {
	switch err.(type) {
	case *ErrDiscovery:
		return ErrCodeDiscovery
	case *ErrFetchFile:
		return ErrCodeFetchFile
	case *ErrWriteFile:
		return ErrCodeWriteFile
	case *ErrArchive:
		return ErrCodeArchive
	case *ErrDatabase:
		return ErrCodeDatabase
	default:
		return ErrCodeUnknown
	}
}
