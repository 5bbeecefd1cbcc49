package chatlog

import (
	"errors"
	"fmt"
	"io/fs"
)

const (
	ErrorMalformedInput     = "malformed_input"
	ErrorStorageUnavailable = "storage_unavailable"
	ErrorResourceGuard      = "resource_guard"
	ErrorNotFound           = "not_found"
	ErrorInvalidPath        = "invalid_path"
	ErrorInvalidArgument    = "invalid_argument"
)

// Error is a categorized analysis failure. Category values are stable and
// safe to expose to API clients.
type Error struct {
	Category string
	Detail   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return e.Category
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Detail)
}

// NewError creates a categorized error.
func NewError(category string, detail string) error {
	return &Error{Category: category, Detail: detail}
}

// Errorf creates a categorized error with a formatted detail.
func Errorf(category string, format string, args ...any) error {
	return &Error{Category: category, Detail: fmt.Sprintf(format, args...)}
}

// CategoryFromError returns the stable category for err. Uncategorized errors
// come from I/O and report as storage_unavailable.
func CategoryFromError(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	return ErrorStorageUnavailable
}

// StorageError converts a read failure into a storage_unavailable error. A log
// that vanishes mid-read must never look like an empty conversation.
func StorageError(err error, detail string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Errorf(ErrorStorageUnavailable, "%s: log content vanished during read", detail)
	case errors.Is(err, fs.ErrPermission):
		return Errorf(ErrorStorageUnavailable, "%s: permission denied", detail)
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return Errorf(ErrorStorageUnavailable, "%s: %s", detail, pathErr.Err.Error())
	}

	return Errorf(ErrorStorageUnavailable, "%s: %s", detail, err.Error())
}
