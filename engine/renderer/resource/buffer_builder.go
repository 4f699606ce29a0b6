package resource

// BufferUsage flags extra binding intents of a buffer. Every buffer can be used as a vertex
// buffer, a uniform buffer and a copy source or destination.
type BufferUsage uint8

const (
	UsageIndex BufferUsage = 1 << iota
	UsageStorage
)

// BufferBuilderOption is a functional option for configuring a buffer at creation.
type BufferBuilderOption func(b *buffer)

// WithData sets the initial content of the buffer; the buffer size is len(data).
// Exclusive with WithSize.
//
// Parameters:
//   - data: the initial bytes
//
// Returns:
//   - BufferBuilderOption: option function to apply
func WithData(data []byte) BufferBuilderOption {
	return func(b *buffer) {
		b.data = data
		b.hasData = true
	}
}

// WithSize sets the size of a zero-filled buffer. Exclusive with WithData.
//
// Parameters:
//   - size: the size in bytes
//
// Returns:
//   - BufferBuilderOption: option function to apply
func WithSize(size int) BufferBuilderOption {
	return func(b *buffer) {
		b.size = size
		b.hasSize = true
	}
}

// WithUsage adds index or storage usage.
//
// Parameters:
//   - usage: the usage flags
//
// Returns:
//   - BufferBuilderOption: option function to apply
func WithUsage(usage BufferUsage) BufferBuilderOption {
	return func(b *buffer) {
		b.usage |= usage
	}
}

// WithLabel sets the debug label of the buffer.
func WithLabel(label string) BufferBuilderOption {
	return func(b *buffer) {
		b.label = label
	}
}

// MapOption configures a Map call.
type MapOption func(m *mapRequest)

type mapRequest struct {
	offset  int
	size    int
	sized   bool
	discard bool
}

// WithMapRange maps size bytes starting at offset instead of the whole buffer.
//
// Parameters:
//   - offset: the first byte
//   - size: the number of bytes
//
// Returns:
//   - MapOption: option function to apply
func WithMapRange(offset, size int) MapOption {
	return func(m *mapRequest) {
		m.offset, m.size, m.sized = offset, size, true
	}
}

// WithDiscard maps without reading back the current content; the mapped bytes start zeroed.
func WithDiscard() MapOption {
	return func(m *mapRequest) {
		m.discard = true
	}
}
