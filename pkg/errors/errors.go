// Package errors defines the sentinel errors and typed errors shared across
// the index engine, query parser, and CLI front ends.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrLockConflict is returned when a second writer tries to open an
	// index directory that is already write-locked.
	ErrLockConflict = errors.New("index is locked by another writer")

	// ErrCorruptSegment is returned when a segment file fails its checksum
	// or structural validation on read.
	ErrCorruptSegment = errors.New("corrupt segment")

	// ErrPartialResults is returned when a search is cancelled before it
	// finished scanning all postings. The hits collected so far are still
	// returned alongside this error.
	ErrPartialResults = errors.New("search returned partial results")

	// ErrWriterClosed is returned for operations on a closed index writer.
	ErrWriterClosed = errors.New("index writer is closed")

	// ErrReaderClosed is returned for operations on a closed index reader.
	ErrReaderClosed = errors.New("index reader is closed")
)

// AnalysisError reports a document whose text could not be analyzed, for
// example because a field held malformed UTF-8. Key identifies the offending
// document so bulk indexing runs can skip it and keep going.
type AnalysisError struct {
	Key   string
	Field string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyzing field %q of document %q: %v", e.Field, e.Key, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// IsAnalysis reports whether err is an AnalysisError.
func IsAnalysis(err error) bool {
	var ae *AnalysisError
	return errors.As(err, &ae)
}

// SyntaxError reports a malformed query string. Input holds the offending
// substring and Pos its byte offset in the original query.
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query syntax error at offset %d near %q: %s", e.Pos, e.Input, e.Msg)
}

// IsSyntax reports whether err is a SyntaxError.
func IsSyntax(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// Corrupt wraps ErrCorruptSegment with the file name and a detail message so
// that errors.Is(err, ErrCorruptSegment) holds for callers.
func Corrupt(file string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrCorruptSegment, file, fmt.Sprintf(format, args...))
}
