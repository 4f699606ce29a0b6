package resource

import (
	"errors"
	"fmt"
)

var (
	// ErrMapped is returned when a buffer is written or mapped while it is already mapped.
	ErrMapped = errors.New("resource: buffer is mapped")

	// ErrNotMapped is returned by Unmap on a buffer that is not mapped.
	ErrNotMapped = errors.New("resource: buffer is not mapped")

	// ErrReleased is returned when a released resource is used.
	ErrReleased = errors.New("resource: resource was released")

	// ErrLayered is returned for operations that need a single-layer image.
	ErrLayered = errors.New("resource: operation not supported on array or cubemap images")
)

// InvalidSizeError reports invalid creation parameters of a buffer or image.
type InvalidSizeError struct {
	Resource string
	Reason   string
	Err      error
}

func (e *InvalidSizeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resource: invalid %s: %s: %v", e.Resource, e.Reason, e.Err)
	}
	return fmt.Sprintf("resource: invalid %s: %s", e.Resource, e.Reason)
}

func (e *InvalidSizeError) Unwrap() error {
	return e.Err
}

// OutOfBoundsError reports a buffer access outside the buffer. No bytes were transferred.
type OutOfBoundsError struct {
	Offset int
	Length int
	Size   int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("resource: access of %d bytes at offset %d is outside the buffer of %d bytes", e.Length, e.Offset, e.Size)
}

// ClearValueError reports a clear value with the wrong number of components for the image format.
type ClearValueError struct {
	Format string
	Want   int
	Got    int
}

func (e *ClearValueError) Error() string {
	return fmt.Sprintf("resource: clear value for %s needs %d components, got %d", e.Format, e.Want, e.Got)
}

// BlitError reports an invalid blit request.
type BlitError struct {
	Reason string
}

func (e *BlitError) Error() string {
	return "resource: invalid blit: " + e.Reason
}
