package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable failure reason the UI can branch on and localize.
type Code string

const (
	CodeInvalidDuration       Code = "invalid_duration"
	CodeInvalidTime           Code = "invalid_time"
	CodeInvalidTitle          Code = "invalid_title"
	CodeNoCategories          Code = "no_categories"
	CodeFileNotFound          Code = "file_not_found"
	CodeNoWriteAccess         Code = "no_write_access"
	CodeThumbnailFailed       Code = "thumbnail_failed"
	CodeFFmpegFailed          Code = "ffmpeg_failed"
	CodeInsufficientDiskSpace Code = "insufficient_disk_space"
	CodeDatabaseFailed        Code = "database_failed"
	CodeCreationInProgress    Code = "creation_in_progress"
	CodeSystemCheckFailed     Code = "system_check_failed"
	CodeCreationFailed        Code = "creation_failed"
)

var codeMessages = map[Code]string{
	CodeInvalidDuration:       "The clip must end after it starts.",
	CodeInvalidTime:           "Clip times cannot be negative.",
	CodeInvalidTitle:          "Enter a title for the clip.",
	CodeNoCategories:          "Select at least one category.",
	CodeFileNotFound:          "The source video file could not be found.",
	CodeNoWriteAccess:         "The clip folder is not writable.",
	CodeThumbnailFailed:       "Could not create the clip thumbnail.",
	CodeFFmpegFailed:          "Video encoding failed.",
	CodeInsufficientDiskSpace: "There is not enough disk space to save the clip.",
	CodeDatabaseFailed:        "The clip was encoded but could not be saved.",
	CodeCreationInProgress:    "A clip is already being created.",
	CodeSystemCheckFailed:     "The system is not ready to create clips.",
	CodeCreationFailed:        "Clip creation failed.",
}

func (c Code) Message() string {
	if m, ok := codeMessages[c]; ok {
		return m
	}
	return codeMessages[CodeCreationFailed]
}

// Retryable reports whether a failed attempt with this code may be re-driven.
func (c Code) Retryable() bool {
	switch c {
	case CodeInsufficientDiskSpace, CodeNoWriteAccess, CodeThumbnailFailed, CodeFFmpegFailed:
		return true
	}
	return false
}

// Error is a terminal clip-creation failure. Attempts is set once retries are
// exhausted; Issues carries pre-flight issue codes for system_check_failed.
type Error struct {
	Code     Code
	Attempts int
	Issues   []string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.Message())
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " (after %d attempts)", e.Attempts)
	}
	if len(e.Issues) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Issues, ", "))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// CodeOf extracts the failure code; unknown errors map to creation_failed.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeCreationFailed
}
