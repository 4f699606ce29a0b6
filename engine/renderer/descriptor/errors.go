package descriptor

import "fmt"

// BindingMismatchError reports a layout entry, resource or shader declaration without a
// matching counterpart, or a bound resource that does not fit its declaration.
type BindingMismatchError struct {
	Group   int
	Binding int
	Reason  string
}

func (e *BindingMismatchError) Error() string {
	return fmt.Sprintf("descriptor: binding mismatch at @group(%d) @binding(%d): %s", e.Group, e.Binding, e.Reason)
}

// FormatParseError reports a malformed vertex format string or attribute locations that do
// not fit it.
type FormatParseError struct {
	Layout string
	Reason string
	Err    error
}

func (e *FormatParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("descriptor: vertex format %q: %v", e.Layout, e.Err)
	}
	return fmt.Sprintf("descriptor: vertex format %q: %s", e.Layout, e.Reason)
}

func (e *FormatParseError) Unwrap() error {
	return e.Err
}

// FramebufferMismatchError reports attachments that cannot form one framebuffer, or state
// that needs an attachment the framebuffer lacks.
type FramebufferMismatchError struct {
	Reason string
}

func (e *FramebufferMismatchError) Error() string {
	return "descriptor: framebuffer mismatch: " + e.Reason
}

// UnsupportedOptionError reports a value outside the recognized set of an option.
type UnsupportedOptionError struct {
	Option string
	Value  string
}

func (e *UnsupportedOptionError) Error() string {
	return fmt.Sprintf("descriptor: unsupported %s %q", e.Option, e.Value)
}

// FeedbackHazardError reports an image that is both rendered to and sampled by the same
// pipeline.
type FeedbackHazardError struct {
	Group   int
	Binding int
}

func (e *FeedbackHazardError) Error() string {
	return fmt.Sprintf("descriptor: image sampled at @group(%d) @binding(%d) is also a framebuffer attachment", e.Group, e.Binding)
}

// VertexCountError reports a vertex count that is missing and cannot be inferred.
type VertexCountError struct {
	Reason string
}

func (e *VertexCountError) Error() string {
	return "descriptor: vertex count: " + e.Reason
}
