package core

// error_messages.go maps technical errors to short messages with codes.
//
// Error codes are grouped by category:
//
//	CFG001 - Layout missing: no column layout exists for the record type
//	CFG002 - Layout invalid: the layout file has a bad range, normalizer or type
//	DEC001 - Split character: a byte range cuts a double-byte character in half
//	DEC002 - Undecodable record: a record is not valid Shift_JIS
//	SRC001 - Source unavailable: the data file or directory cannot be read
//	SNK001 - Write failed: the destination rejected the table
//	DL001  - Download unauthorized: JRDB rejected the credentials
//	DL002  - Download failed: JRDB returned an unexpected status
//	DB004  - Connection refused
//	DB005  - Connection reset
//	DB006  - Timeout
//	DB007  - Deadlock
//	ERR000 - Unknown error
//
// Typed errors are matched first with errors.Is; everything else falls back to
// case-insensitive substring patterns. The first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgLayoutMissing = UserMessage{
		Message: "No column layout exists for this record type",
		Action:  "Add <TYPE>.json or <TYPE>.yaml to the spec directory",
		Code:    "CFG001",
	}
	msgLayoutInvalid = UserMessage{
		Message: "The column layout is invalid",
		Action:  "Check start/end offsets, normalizer names and value types",
		Code:    "CFG002",
	}
	msgSplitCharacter = UserMessage{
		Message: "A column boundary splits a double-byte character",
		Action:  "Fix the byte offsets of the reported column",
		Code:    "DEC001",
	}
	msgUndecodable = UserMessage{
		Message: "A record is not valid Shift_JIS text",
		Action:  "Check the file encoding or run with record isolation",
		Code:    "DEC002",
	}
	msgSourceUnavailable = UserMessage{
		Message: "The data file could not be read",
		Action:  "Check the path and file permissions",
		Code:    "SRC001",
	}
	msgSinkWrite = UserMessage{
		Message: "The table could not be written to the destination",
		Action:  "Check the destination schema and connectivity",
		Code:    "SNK001",
	}
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted after the typed checks in MapError.
// More specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "splits a double-byte", msg: msgSplitCharacter},
	{pattern: "unknown normalizer", msg: msgLayoutInvalid},
	{pattern: "unknown value type", msg: msgLayoutInvalid},
	{pattern: "invalid spec", msg: msgLayoutInvalid},
	{
		pattern: "401 unauthorized",
		msg: UserMessage{
			Message: "JRDB rejected the credentials",
			Action:  "Check JRDB_USERNAME and JRDB_PASSWORD",
			Code:    "DL001",
		},
	},
	{
		pattern: "unexpected status",
		msg: UserMessage{
			Message: "JRDB returned an unexpected response",
			Action:  "Check the file name and try again later",
			Code:    "DL002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Import fewer files at once or raise INGEST_TIMEOUT",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Import fewer files at once or raise INGEST_TIMEOUT",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for details",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, errSplitCharacter):
		return msgSplitCharacter
	case errors.Is(err, ErrConfigNotFound):
		return msgLayoutMissing
	case errors.Is(err, ErrDecode):
		return msgUndecodable
	case errors.Is(err, ErrSourceUnavailable):
		return msgSourceUnavailable
	case errors.Is(err, ErrSinkWrite):
		// Database patterns below are more useful when they match.
		if msg, ok := matchPattern(err); ok {
			return msg
		}
		return msgSinkWrite
	}

	if msg, ok := matchPattern(err); ok {
		return msg
	}
	return defaultMessage
}

func matchPattern(err error) (UserMessage, bool) {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown for it.
type UserError struct {
	Technical error       // Original error for logging
	User      UserMessage // Message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
