package resource

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-zen/engine/logger"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
)

// buffer is the implementation of the Buffer interface.
type buffer struct {
	mu     *sync.Mutex
	owner  Owner
	handle backend.Handle
	label  string

	size    int
	hasSize bool
	data    []byte
	hasData bool
	usage   BufferUsage

	mapped    bool
	mapOffset int
	mapData   []byte
	released  bool
}

// Buffer is a GPU buffer of fixed size.
type Buffer interface {
	// Handle returns the backend object of the buffer.
	//
	// Returns:
	//   - backend.Handle: the buffer handle
	Handle() backend.Handle

	// Size returns the size of the buffer in bytes.
	//
	// Returns:
	//   - int: the size in bytes
	Size() int

	// Usage returns the extra usage flags the buffer was created with.
	//
	// Returns:
	//   - BufferUsage: the usage flags
	Usage() BufferUsage

	// Write copies data into the buffer at offset. The whole range must lie inside the buffer;
	// otherwise nothing is written.
	//
	// Parameters:
	//   - data: the bytes to write
	//   - offset: the first byte to write
	//
	// Returns:
	//   - error: *OutOfBoundsError, ErrMapped or ErrReleased
	Write(data []byte, offset int) error

	// Read returns size bytes of the buffer starting at offset.
	//
	// Parameters:
	//   - offset: the first byte to read
	//   - size: the number of bytes
	//
	// Returns:
	//   - []byte: the buffer content
	//   - error: *OutOfBoundsError or ErrReleased
	Read(offset, size int) ([]byte, error)

	// Map returns a host copy of a range of the buffer. Changes to the returned slice are written
	// back by Unmap. While any buffer of a Context is mapped, its pipelines refuse to render.
	//
	// Parameters:
	//   - opts: WithMapRange and WithDiscard
	//
	// Returns:
	//   - []byte: the mapped bytes
	//   - error: ErrMapped, *OutOfBoundsError or ErrReleased
	Map(opts ...MapOption) ([]byte, error)

	// Unmap writes the mapped range back to the buffer and ends the mapping.
	//
	// Returns:
	//   - error: ErrNotMapped or a backend error
	Unmap() error

	// Mapped reports whether the buffer is currently mapped.
	Mapped() bool

	// Release frees the buffer. Further use fails with ErrReleased.
	Release()

	// Released reports whether Release was called.
	Released() bool
}

var _ Buffer = &buffer{}

// NewBuffer creates a buffer owned by owner. Exactly one of WithData and WithSize must be
// given, and the resulting size must be positive.
//
// Parameters:
//   - owner: the Context the buffer belongs to
//   - opts: variadic list of BufferBuilderOption functions
//
// Returns:
//   - Buffer: the new buffer
//   - error: *InvalidSizeError, or a backend allocation error
func NewBuffer(owner Owner, opts ...BufferBuilderOption) (Buffer, error) {
	b := &buffer{mu: &sync.Mutex{}, owner: owner}
	for _, opt := range opts {
		opt(b)
	}

	switch {
	case b.hasData && b.hasSize:
		return nil, &InvalidSizeError{Resource: "buffer", Reason: "data and size are exclusive"}
	case !b.hasData && !b.hasSize:
		return nil, &InvalidSizeError{Resource: "buffer", Reason: "one of data or size is required"}
	case b.hasData:
		b.size = len(b.data)
	}
	if b.size <= 0 {
		return nil, &InvalidSizeError{Resource: "buffer", Reason: "size must be positive"}
	}

	h, err := owner.Backend().CreateBuffer(backend.BufferDesc{
		Label:   b.label,
		Size:    b.size,
		Data:    b.data,
		Index:   b.usage&UsageIndex != 0,
		Storage: b.usage&UsageStorage != 0,
	})
	if err != nil {
		return nil, err
	}
	b.handle = h
	b.data = nil
	logger.Logger().Debug("created buffer", "handle", h, "size", b.size, "label", b.label)
	return b, nil
}

func (b *buffer) Handle() backend.Handle {
	return b.handle
}

func (b *buffer) Size() int {
	return b.size
}

func (b *buffer) Usage() BufferUsage {
	return b.usage
}

func (b *buffer) checkRange(offset, length int) error {
	if offset < 0 || length < 0 || offset > b.size || length > b.size-offset {
		return &OutOfBoundsError{Offset: offset, Length: length, Size: b.size}
	}
	return nil
}

func (b *buffer) Write(data []byte, offset int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	if b.mapped {
		return ErrMapped
	}
	if err := b.checkRange(offset, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return b.owner.Backend().WriteBuffer(b.handle, offset, data)
}

func (b *buffer) Read(offset, size int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return nil, ErrReleased
	}
	if err := b.checkRange(offset, size); err != nil {
		return nil, err
	}
	return b.owner.Backend().ReadBuffer(b.handle, offset, size)
}

func (b *buffer) Map(opts ...MapOption) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return nil, ErrReleased
	}
	if b.mapped {
		return nil, ErrMapped
	}
	req := mapRequest{size: b.size}
	for _, opt := range opts {
		opt(&req)
	}
	if err := b.checkRange(req.offset, req.size); err != nil {
		return nil, err
	}

	var data []byte
	if req.discard {
		data = make([]byte, req.size)
	} else {
		var err error
		if data, err = b.owner.Backend().ReadBuffer(b.handle, req.offset, req.size); err != nil {
			return nil, err
		}
	}
	b.mapped, b.mapOffset, b.mapData = true, req.offset, data
	b.owner.MapChanged(1)
	return data, nil
}

func (b *buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.mapped {
		return ErrNotMapped
	}
	data, offset := b.mapData, b.mapOffset
	b.mapped, b.mapData = false, nil
	b.owner.MapChanged(-1)
	if len(data) == 0 {
		return nil
	}
	return b.owner.Backend().WriteBuffer(b.handle, offset, data)
}

func (b *buffer) Mapped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapped
}

func (b *buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return
	}
	if b.mapped {
		b.mapped, b.mapData = false, nil
		b.owner.MapChanged(-1)
	}
	b.released = true
	b.owner.Backend().Release(b.handle)
	b.owner.Released(b.handle)
}

func (b *buffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}
