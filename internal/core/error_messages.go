package core

// error_messages.go maps failures to user-facing messages with a support code.
//
// Session failures map by kind:
//
//	LOAD001 - the source file could not be read or parsed
//	SAVE001 - the output file could not be written
//	SES001  - no file has been loaded yet
//	SES002  - confirm was requested with nothing staged
//	FLT001  - unknown filter rule
//	FLT002  - column index outside the loaded table
//
// Any other error is matched case-insensitively against a short pattern
// list (first match wins). Unmatched errors get ERR000.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var kindMessages = map[Kind]UserMessage{
	KindLoadFailure: {
		Message: "Could not load file",
		Action:  "Check that the file is a readable .csv, .xls or .xlsx file",
		Code:    "LOAD001",
	},
	KindSaveFailure: {
		Message: "Error saving records",
		Action:  "Check that the output location exists and is writable",
		Code:    "SAVE001",
	},
	KindNoFileLoaded: {
		Message: "No file has been loaded",
		Action:  "Load a file before filtering or saving",
		Code:    "SES001",
	},
	KindNoPendingFilter: {
		Message: "No filtering has been done",
		Action:  "Run a filter before confirming",
		Code:    "SES002",
	},
	KindInvalidFilterRule: {
		Message: "Unknown filter rule",
		Action:  "Choose the address or email filter",
		Code:    "FLT001",
	},
	KindInvalidColumn: {
		Message: "No valid column selected",
		Action:  "Pick one of the file's columns",
		Code:    "FLT002",
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to load",
			Code:    "FILE002",
		},
	},
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "The server is busy loading other files",
			Action:  "Please wait a moment before trying again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Session not found",
			Action:  "The session may have expired. Please start a new one",
			Code:    "REQ001",
		},
	},
	{
		pattern: "session limit reached",
		msg: UserMessage{
			Message: "Too many open sessions",
			Action:  "Close an unused session or try again later",
			Code:    "SES003",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Check the request body and parameters",
			Code:    "REQ002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "REQ003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},	{
		pattern: "missing api key",
		msg: UserMessage{
			Message: "An API key is required",
			Action:  "Send your key in the X-API-Key header",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "invalid api key",
		msg: UserMessage{
			Message: "The API key was not accepted",
			Action:  "Check the key with your administrator",
			Code:    "AUTH002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error into a user-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var se *Error
	if errors.As(err, &se) {
		if msg, ok := kindMessages[se.Kind]; ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
