package core

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrConfigNotFound    = errors.New("record spec not found")
	ErrDecode            = errors.New("decode error")
	ErrNormalization     = errors.New("normalization error")
	ErrCoercion          = errors.New("coercion error")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSinkWrite         = errors.New("sink write failed")
)

// ConfigNotFoundError is returned when no column layout exists for a record type.
type ConfigNotFoundError struct {
	RecordType string
	Err        error // Underlying lookup error, may be nil
}

func (e *ConfigNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("record spec not found for %q: %v", e.RecordType, e.Err)
	}
	return fmt.Sprintf("record spec not found for %q", e.RecordType)
}

func (e *ConfigNotFoundError) Unwrap() error { return e.Err }

func (e *ConfigNotFoundError) Is(target error) bool { return target == ErrConfigNotFound }

// DecodeError reports a byte range that cannot be decoded as Shift_JIS text,
// usually because a column boundary splits a double-byte character.
type DecodeError struct {
	Record int    // 0-based index of the record in the input
	Column string // Empty when the whole line failed to encode
	Start  int
	End    int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("decode error: record %d: %v", e.Record, e.Err)
	}
	return fmt.Sprintf("decode error: record %d column %q bytes [%d:%d]: %v",
		e.Record, e.Column, e.Start, e.End, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// NormalizationError reports a value a normalizer could not convert.
// The formatter recovers from it by leaving the column unnormalized.
type NormalizationError struct {
	Normalizer NormalizerName
	Value      string
	Err        error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s(%q): %v", e.Normalizer, e.Value, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

func (e *NormalizationError) Is(target error) bool { return target == ErrNormalization }

// CoercionError reports a value that cannot be converted to the declared type.
type CoercionError struct {
	Type  ValueType
	Value any
	Err   error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("coerce %v to %s: %v", e.Value, e.Type, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

func (e *CoercionError) Is(target error) bool { return target == ErrCoercion }

// SourceUnavailableError is returned by line sources that cannot supply records.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source unavailable: %s: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

func (e *SourceUnavailableError) Is(target error) bool { return target == ErrSourceUnavailable }

// SinkWriteError is returned by sinks that fail to store a table.
type SinkWriteError struct {
	Destination string
	Err         error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("sink write failed: %s: %v", e.Destination, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

func (e *SinkWriteError) Is(target error) bool { return target == ErrSinkWrite }
