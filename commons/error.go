package commons

import (
	"errors"
	"fmt"
)

// EntryNotFoundError contains cache entry not found error information
type EntryNotFoundError struct {
	Path string
}

// NewEntryNotFoundError creates an error for cache entry not found error
func NewEntryNotFoundError(path string) error {
	return &EntryNotFoundError{
		Path: path,
	}
}

// Error returns error message
func (err *EntryNotFoundError) Error() string {
	return fmt.Sprintf("cache entry for path '%s' not found error", err.Path)
}

// Is tests type of error
func (err *EntryNotFoundError) Is(other error) bool {
	_, ok := other.(*EntryNotFoundError)
	return ok
}

// ToString stringifies the object
func (err *EntryNotFoundError) ToString() string {
	return "<EntryNotFoundError>"
}

// IsEntryNotFoundError evaluates if the given error is cache entry not found error
func IsEntryNotFoundError(err error) bool {
	return errors.Is(err, &EntryNotFoundError{})
}

// ImageDecodeError contains image decode error information
type ImageDecodeError struct {
	Path string
}

// NewImageDecodeError creates an error for image decode error
func NewImageDecodeError(path string) error {
	return &ImageDecodeError{
		Path: path,
	}
}

// Error returns error message
func (err *ImageDecodeError) Error() string {
	return fmt.Sprintf("failed to decode image '%s'", err.Path)
}

// Is tests type of error
func (err *ImageDecodeError) Is(other error) bool {
	_, ok := other.(*ImageDecodeError)
	return ok
}

// ToString stringifies the object
func (err *ImageDecodeError) ToString() string {
	return "<ImageDecodeError>"
}

// IsImageDecodeError evaluates if the given error is image decode error
func IsImageDecodeError(err error) bool {
	return errors.Is(err, &ImageDecodeError{})
}
