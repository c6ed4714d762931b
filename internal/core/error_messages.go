package core

// # Error Codes Reference
//
// Every failed file produces one user-visible notice. The notice carries a
// code so users can quote it to support staff.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Unsupported type: the file is not an allowed image, a PDF, or a document
//	          Action: Use PNG, JPEG, GIF or WebP images, PDFs, or office/text documents
//	          Source: *UnsupportedTypeError
//
//	FILE002 - File too large: the file exceeds its category limit
//	          Action: Reduce the file size or split it
//	          Source: *SizeExceededError
//
//	FILE003 - Image type rejected: the image content is not an allowed format
//	          Action: Re-save the image as PNG, JPEG, GIF or WebP
//	          Source: ErrRejectedMediaType
//
// # Read Errors (READ001-READ099)
//
//	READ001 - Read failed: the file could not be read locally
//	          Action: Check the file still exists and try again
//	          Source: *ReadError
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - Upload rejected: the server refused the file (status code in message)
//	         Action: Try again later or contact support with the status code
//	         Source: *UploadError
//
//	UPL002 - Network error: the upload server could not be reached
//	         Action: Check your connection and try again
//	         Source: *NetworkError
//
//	UPL003 - System busy: too many uploads in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many uploads"
//
//	UPL004 - Request cancelled
//	         Patterns: "context canceled"
//
//	UPL005 - Request timed out
//	         Patterns: "context deadline exceeded", "timeout"
//
// # Request Errors (REQ001-REQ099, RATE001)
//
// Written by the web layer for requests rejected before any file is seen.
//
//	REQ001  - No files provided in the multipart body
//	REQ002  - Request body exceeds SERVER_MAX_REQUEST_BYTES
//	RATE001 - Too many requests from one client
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// Typed errors are matched first with errors.As; the pattern table is the
// fallback for untyped errors and is matched case-insensitively, first hit wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`          // What happened (user-friendly)
	Action  string `json:"action,omitempty"` // What to do about it
	Code    string `json:"code"`             // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an ingestion error to a user-facing message.
// The message embeds the detail users need: category and limit for size
// errors, status code for upload errors, declared type for unsupported files.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		unsupported *UnsupportedTypeError
		tooLarge    *SizeExceededError
		uploadErr   *UploadError
		netErr      *NetworkError
		readErr     *ReadError
	)
	switch {
	case errors.As(err, &tooLarge):
		return UserMessage{
			Message: tooLarge.Error(),
			Action:  "Reduce the file size or split it",
			Code:    "FILE002",
		}
	case errors.As(err, &unsupported):
		return UserMessage{
			Message: unsupported.Error(),
			Action:  "Use PNG, JPEG, GIF or WebP images, PDFs, or office/text documents",
			Code:    "FILE001",
		}
	case errors.Is(err, ErrRejectedMediaType):
		return UserMessage{
			Message: err.Error(),
			Action:  "Re-save the image as PNG, JPEG, GIF or WebP",
			Code:    "FILE003",
		}
	case errors.As(err, &uploadErr):
		return UserMessage{
			Message: uploadErr.Error(),
			Action:  "Try again later or contact support with the status code",
			Code:    "UPL001",
		}
	case errors.As(err, &readErr):
		return UserMessage{
			Message: readErr.Error(),
			Action:  "Check the file still exists and try again",
			Code:    "READ001",
		}
	case errors.As(err, &netErr):
		if m, ok := matchPattern(netErr.Err); ok {
			return m
		}
		return UserMessage{
			Message: netErr.Error(),
			Action:  "Check your connection and try again",
			Code:    "UPL002",
		}
	}

	if m, ok := matchPattern(err); ok {
		return m
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

// FormatUserError renders err as "Message (Code: XXX). Action".
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

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
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
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
