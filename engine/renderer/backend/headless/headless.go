// Package headless implements a backend without a GPU. It records every command it receives,
// keeps CPU mirrors of buffers and images, validates shaders with naga and performs clears,
// uploads, blits and mipmap generation on the mirrors. Draw calls are validated against the
// bound state and recorded, not rasterized.
package headless

import (
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/logger"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
	"github.com/anthonynsimon/bild/clone"
)

// CommandKind names a recorded command.
type CommandKind string

const (
	CmdBindFramebuffer  CommandKind = "bind_framebuffer"
	CmdSetViewport      CommandKind = "set_viewport"
	CmdBindFixedState   CommandKind = "bind_fixed_state"
	CmdBindProgram      CommandKind = "bind_program"
	CmdBindVertexBuffer CommandKind = "bind_vertex_buffer"
	CmdBindIndexBuffer  CommandKind = "bind_index_buffer"
	CmdBindResourceSet  CommandKind = "bind_resource_set"
	CmdDraw             CommandKind = "draw"
	CmdClear            CommandKind = "clear"
	CmdBlit             CommandKind = "blit"
	CmdNewFrame         CommandKind = "new_frame"
	CmdEndFrame         CommandKind = "end_frame"
)

// Command is one recorded backend command. Only the fields relevant to Kind are set.
type Command struct {
	Kind     CommandKind
	Handle   backend.Handle
	Slot     int
	Offset   int
	Short    bool
	Viewport common.Viewport
	State    backend.FixedState
	Draw     backend.DrawCall
	Blit     backend.BlitDesc
	Clear    common.ClearValue
}

type bufferObject struct {
	desc backend.BufferDesc
	data []byte
}

type imageObject struct {
	desc backend.ImageDesc
	// levels[level][layer] holds tightly packed pixels.
	levels [][][]byte
}

func (o *imageObject) layers() int {
	return max(1, o.desc.Layers)
}

func (o *imageObject) levelSize(level int) (int, int) {
	return max(1, o.desc.Width>>level), max(1, o.desc.Height>>level)
}

type resourceSet struct {
	program backend.Handle
	group   int
	entries []backend.ResourceEntry
}

// headlessBackend is the implementation of the Backend interface.
type headlessBackend struct {
	mu   *sync.Mutex
	next backend.Handle

	buffers      map[backend.Handle]*bufferObject
	images       map[backend.Handle]*imageObject
	framebuffers map[backend.Handle][]backend.Handle
	programs     map[backend.Handle]*backend.ProgramDesc
	sets         map[backend.Handle]*resourceSet

	commands []Command
	compiler ShaderCompiler
	info     backend.Info

	surface      *image.RGBA
	surfaceDirty bool
	frames       int
	presented    int

	boundFramebuffer backend.Handle
	boundProgram     backend.Handle
	boundVertex      map[int]backend.Handle
	boundIndex       backend.Handle
	boundSets        map[int]backend.Handle
}

// Backend is a backend.Backend that exposes its recorded commands and CPU mirrors.
type Backend interface {
	backend.Backend

	// Commands returns a copy of the commands recorded since creation or the last ResetCommands.
	//
	// Returns:
	//   - []Command: the recorded commands in issue order
	Commands() []Command

	// ResetCommands discards the recorded commands.
	ResetCommands()

	// Surface returns a copy of the simulated display surface.
	//
	// Returns:
	//   - *image.RGBA: the surface pixels
	Surface() *image.RGBA

	// Frames returns the number of completed frames.
	Frames() int

	// Presented returns the number of frames that drew to the surface.
	Presented() int

	// Live returns the number of objects that have not been released.
	Live() int

	// Mip returns the mirrored pixels of one mip level and layer of an image.
	//
	// Parameters:
	//   - img: the image handle
	//   - level: the mip level
	//   - layer: the array layer or cube face
	//
	// Returns:
	//   - []byte: tightly packed pixels
	//   - error: error if the image or level does not exist
	Mip(img backend.Handle, level, layer int) ([]byte, error)
}

var _ Backend = &headlessBackend{}

// NewBackend creates a headless backend with a 640x480 surface and naga syntax validation.
//
// Parameters:
//   - opts: variadic list of BackendBuilderOption functions
//
// Returns:
//   - Backend: the new backend
func NewBackend(opts ...BackendBuilderOption) Backend {
	b := &headlessBackend{
		mu:           &sync.Mutex{},
		buffers:      make(map[backend.Handle]*bufferObject),
		images:       make(map[backend.Handle]*imageObject),
		framebuffers: make(map[backend.Handle][]backend.Handle),
		programs:     make(map[backend.Handle]*backend.ProgramDesc),
		sets:         make(map[backend.Handle]*resourceSet),
		boundVertex:  make(map[int]backend.Handle),
		boundSets:    make(map[int]backend.Handle),
		compiler:     ParseCompiler,
		info: backend.Info{
			Vendor:   "oxy-zen",
			Renderer: "headless",
			Version:  "1.0",
			Backend:  "headless",
		},
	}
	b.resizeSurface(640, 480)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *headlessBackend) handle() backend.Handle {
	b.next++
	return b.next
}

func (b *headlessBackend) record(c Command) {
	b.commands = append(b.commands, c)
}

func (b *headlessBackend) resizeSurface(width, height int) {
	b.surface = image.NewRGBA(image.Rect(0, 0, max(1, width), max(1, height)))
}

func (b *headlessBackend) CreateBuffer(desc backend.BufferDesc) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Size <= 0 {
		return 0, fmt.Errorf("headless: invalid buffer size %d", desc.Size)
	}
	obj := &bufferObject{desc: desc, data: make([]byte, desc.Size)}
	copy(obj.data, desc.Data)
	h := b.handle()
	b.buffers[h] = obj
	logger.Logger().Debug("headless: created buffer", "handle", h, "size", desc.Size)
	return h, nil
}

func (b *headlessBackend) WriteBuffer(buf backend.Handle, offset int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.buffers[buf]
	if !ok {
		return fmt.Errorf("headless: write buffer %d: %w", buf, backend.ErrInvalidHandle)
	}
	if offset < 0 || offset+len(data) > len(obj.data) {
		return fmt.Errorf("headless: write of %d bytes at %d exceeds buffer size %d", len(data), offset, len(obj.data))
	}
	copy(obj.data[offset:], data)
	return nil
}

func (b *headlessBackend) ReadBuffer(buf backend.Handle, offset, size int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.buffers[buf]
	if !ok {
		return nil, fmt.Errorf("headless: read buffer %d: %w", buf, backend.ErrInvalidHandle)
	}
	if offset < 0 || size < 0 || offset+size > len(obj.data) {
		return nil, fmt.Errorf("headless: read of %d bytes at %d exceeds buffer size %d", size, offset, len(obj.data))
	}
	out := make([]byte, size)
	copy(out, obj.data[offset:])
	return out, nil
}

func (b *headlessBackend) CreateImage(desc backend.ImageDesc) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("headless: invalid image size %dx%d", desc.Width, desc.Height)
	}
	obj := &imageObject{desc: desc}
	layerSize := desc.Width * desc.Height * desc.Format.PixelSize
	level := make([][]byte, obj.layers())
	for i := range level {
		level[i] = make([]byte, layerSize)
	}
	if len(desc.Data) > 0 {
		if len(desc.Data) != layerSize*len(level) {
			return 0, fmt.Errorf("headless: image data is %d bytes, expected %d", len(desc.Data), layerSize*len(level))
		}
		for i := range level {
			copy(level[i], desc.Data[i*layerSize:])
		}
	}
	obj.levels = [][][]byte{level}

	h := b.handle()
	b.images[h] = obj
	logger.Logger().Debug("headless: created image", "handle", h, "width", desc.Width, "height", desc.Height, "format", desc.Format.Name)
	return h, nil
}

func (b *headlessBackend) imageRect(obj *imageObject, region backend.ImageRegion) (common.Viewport, error) {
	rect := region.Rect
	if rect.IsZero() {
		rect = common.Viewport{Width: obj.desc.Width, Height: obj.desc.Height}
	}
	if !rect.Within(obj.desc.Width, obj.desc.Height) {
		return rect, fmt.Errorf("headless: region %+v outside %dx%d image", rect, obj.desc.Width, obj.desc.Height)
	}
	if region.Layer < 0 || region.Layer >= obj.layers() {
		return rect, fmt.Errorf("headless: layer %d outside 0..%d", region.Layer, obj.layers()-1)
	}
	return rect, nil
}

func (b *headlessBackend) WriteImage(region backend.ImageRegion, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.images[region.Image]
	if !ok {
		return fmt.Errorf("headless: write image %d: %w", region.Image, backend.ErrInvalidHandle)
	}
	rect, err := b.imageRect(obj, region)
	if err != nil {
		return err
	}
	ps := obj.desc.Format.PixelSize
	if len(data) != rect.Width*rect.Height*ps {
		return fmt.Errorf("headless: image write is %d bytes, expected %d", len(data), rect.Width*rect.Height*ps)
	}
	dst := obj.levels[0][region.Layer]
	rowBytes := rect.Width * ps
	for y := 0; y < rect.Height; y++ {
		off := ((rect.Y+y)*obj.desc.Width + rect.X) * ps
		copy(dst[off:off+rowBytes], data[y*rowBytes:])
	}
	return nil
}

func (b *headlessBackend) ReadImage(region backend.ImageRegion) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.images[region.Image]
	if !ok {
		return nil, fmt.Errorf("headless: read image %d: %w", region.Image, backend.ErrInvalidHandle)
	}
	rect, err := b.imageRect(obj, region)
	if err != nil {
		return nil, err
	}
	ps := obj.desc.Format.PixelSize
	src := obj.levels[0][region.Layer]
	rowBytes := rect.Width * ps
	out := make([]byte, rect.Height*rowBytes)
	for y := 0; y < rect.Height; y++ {
		off := ((rect.Y+y)*obj.desc.Width + rect.X) * ps
		copy(out[y*rowBytes:], src[off:off+rowBytes])
	}
	return out, nil
}

func (b *headlessBackend) ClearImage(img backend.Handle, value common.ClearValue) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.images[img]
	if !ok {
		return fmt.Errorf("headless: clear image %d: %w", img, backend.ErrInvalidHandle)
	}
	px := format.EncodePixel(obj.desc.Format, value)
	for _, layer := range obj.levels[0] {
		for off := 0; off < len(layer); off += len(px) {
			copy(layer[off:], px)
		}
	}
	b.record(Command{Kind: CmdClear, Handle: img, Clear: append(common.ClearValue(nil), value...)})
	return nil
}

func (b *headlessBackend) GenerateMipmaps(img backend.Handle, base, levels int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.images[img]
	if !ok {
		return fmt.Errorf("headless: mipmaps %d: %w", img, backend.ErrInvalidHandle)
	}
	switch obj.desc.Format.Scalar {
	case format.ScalarUnorm8, format.ScalarUint8:
	default:
		return fmt.Errorf("headless: mipmaps for %s: %w", obj.desc.Format.Name, backend.ErrUnsupported)
	}
	if base < 0 || base >= len(obj.levels) || levels < 1 {
		return fmt.Errorf("headless: invalid mip range base=%d levels=%d", base, levels)
	}

	ps := obj.desc.Format.PixelSize
	for level := base + 1; level < base+levels; level++ {
		sw, sh := obj.levelSize(level - 1)
		if sw == 1 && sh == 1 {
			break
		}
		dw, dh := obj.levelSize(level)
		next := make([][]byte, obj.layers())
		for layer := range next {
			next[layer] = boxDownsample(obj.levels[level-1][layer], sw, sh, dw, dh, ps)
		}
		if level < len(obj.levels) {
			obj.levels[level] = next
		} else {
			obj.levels = append(obj.levels, next)
		}
	}
	return nil
}

// boxDownsample averages 2x2 blocks of 8-bit components, clamping at odd edges.
func boxDownsample(src []byte, sw, sh, dw, dh, ps int) []byte {
	dst := make([]byte, dw*dh*ps)
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			x0, y0 := min(2*x, sw-1), min(2*y, sh-1)
			x1, y1 := min(2*x+1, sw-1), min(2*y+1, sh-1)
			for c := 0; c < ps; c++ {
				sum := int(src[(y0*sw+x0)*ps+c]) + int(src[(y0*sw+x1)*ps+c]) +
					int(src[(y1*sw+x0)*ps+c]) + int(src[(y1*sw+x1)*ps+c])
				dst[(y*dw+x)*ps+c] = byte((sum + 2) / 4)
			}
		}
	}
	return dst
}

func (b *headlessBackend) Mip(img backend.Handle, level, layer int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.images[img]
	if !ok {
		return nil, backend.ErrInvalidHandle
	}
	if level < 0 || level >= len(obj.levels) || layer < 0 || layer >= obj.layers() {
		return nil, fmt.Errorf("headless: no mip level %d layer %d", level, layer)
	}
	return append([]byte(nil), obj.levels[level][layer]...), nil
}

func (b *headlessBackend) CreateFramebuffer(attachments []backend.Handle) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(attachments) == 0 {
		return 0, fmt.Errorf("headless: framebuffer without attachments")
	}
	var first *imageObject
	depth := false
	for _, a := range attachments {
		obj, ok := b.images[a]
		if !ok {
			return 0, fmt.Errorf("headless: framebuffer attachment %d: %w", a, backend.ErrInvalidHandle)
		}
		if first == nil {
			first = obj
		}
		if obj.desc.Width != first.desc.Width || obj.desc.Height != first.desc.Height || obj.desc.Samples != first.desc.Samples {
			return 0, fmt.Errorf("headless: framebuffer attachments differ in size or samples")
		}
		if depth {
			return 0, fmt.Errorf("headless: attachment after the depth attachment")
		}
		depth = obj.desc.Format.IsDepth()
	}
	h := b.handle()
	b.framebuffers[h] = append([]backend.Handle(nil), attachments...)
	return h, nil
}

func (b *headlessBackend) CompileProgram(desc backend.ProgramDesc) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, st := range []struct {
		stage  shader.Stage
		source string
		entry  string
	}{
		{shader.StageVertex, desc.VertexSource, desc.VertexEntry},
		{shader.StageFragment, desc.FragmentSource, desc.FragmentEntry},
	} {
		if st.entry == "" {
			return 0, &backend.ShaderCompilationError{Label: desc.Label, Stage: st.stage, Diagnostic: "missing entry point"}
		}
		if b.compiler == nil {
			continue
		}
		if err := b.compiler(st.stage, st.source); err != nil {
			return 0, &backend.ShaderCompilationError{Label: desc.Label, Stage: st.stage, Diagnostic: err.Error()}
		}
	}

	h := b.handle()
	d := desc
	b.programs[h] = &d
	logger.Logger().Info("headless: compiled program", "handle", h, "label", desc.Label)
	return h, nil
}

func (b *headlessBackend) CreateResourceSet(program backend.Handle, group int, entries []backend.ResourceEntry) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prog, ok := b.programs[program]
	if !ok {
		return 0, fmt.Errorf("headless: resource set program %d: %w", program, backend.ErrInvalidHandle)
	}
	for _, e := range entries {
		decl, ok := shader.FindBinding(prog.Bindings, group, e.Binding)
		if !ok {
			return 0, fmt.Errorf("headless: program does not declare @group(%d) @binding(%d)", group, e.Binding)
		}
		switch {
		case decl.Kind.IsBuffer():
			buf, ok := b.buffers[e.Buffer]
			if !ok {
				return 0, fmt.Errorf("headless: binding %d buffer %d: %w", e.Binding, e.Buffer, backend.ErrInvalidHandle)
			}
			if e.Offset < 0 || e.Offset+e.Size > len(buf.data) {
				return 0, fmt.Errorf("headless: binding %d range %d+%d exceeds buffer size %d", e.Binding, e.Offset, e.Size, len(buf.data))
			}
		case decl.Kind == shader.BindingTexture:
			if _, ok := b.images[e.Image]; !ok {
				return 0, fmt.Errorf("headless: binding %d image %d: %w", e.Binding, e.Image, backend.ErrInvalidHandle)
			}
		default:
			return 0, fmt.Errorf("headless: binding %d has unsupported kind %d", e.Binding, decl.Kind)
		}
	}
	h := b.handle()
	b.sets[h] = &resourceSet{program: program, group: group, entries: append([]backend.ResourceEntry(nil), entries...)}
	return h, nil
}

func (b *headlessBackend) BindFramebuffer(fb backend.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundFramebuffer = fb
	b.record(Command{Kind: CmdBindFramebuffer, Handle: fb})
}

func (b *headlessBackend) SetViewport(vp common.Viewport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Command{Kind: CmdSetViewport, Viewport: vp})
}

func (b *headlessBackend) BindFixedState(s backend.FixedState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Command{Kind: CmdBindFixedState, State: s})
}

func (b *headlessBackend) BindProgram(program backend.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundProgram = program
	b.record(Command{Kind: CmdBindProgram, Handle: program})
}

func (b *headlessBackend) BindVertexBuffer(slot int, buf backend.Handle, offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundVertex[slot] = buf
	b.record(Command{Kind: CmdBindVertexBuffer, Handle: buf, Slot: slot, Offset: offset})
}

func (b *headlessBackend) BindIndexBuffer(buf backend.Handle, short bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundIndex = buf
	b.record(Command{Kind: CmdBindIndexBuffer, Handle: buf, Short: short})
}

func (b *headlessBackend) BindResourceSet(group int, set backend.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundSets[group] = set
	b.record(Command{Kind: CmdBindResourceSet, Handle: set, Slot: group})
}

func (b *headlessBackend) Draw(call backend.DrawCall) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prog, ok := b.programs[b.boundProgram]
	if !ok {
		return fmt.Errorf("headless: draw without a program")
	}
	attachments, ok := b.framebuffers[b.boundFramebuffer]
	if !ok {
		return fmt.Errorf("headless: draw without a framebuffer")
	}

	var colors []format.ImageFormat
	var depth *format.ImageFormat
	samples := 0
	for _, a := range attachments {
		obj, ok := b.images[a]
		if !ok {
			return fmt.Errorf("headless: framebuffer attachment %d: %w", a, backend.ErrInvalidHandle)
		}
		samples = obj.desc.Samples
		if obj.desc.Format.IsDepth() {
			f := obj.desc.Format
			depth = &f
		} else {
			colors = append(colors, obj.desc.Format)
		}
	}
	if len(colors) != len(prog.ColorFormats) || (depth == nil) != (prog.DepthFormat == nil) || samples != prog.Samples {
		return fmt.Errorf("headless: program %q targets differ from the bound framebuffer", prog.Label)
	}
	for i := range colors {
		if colors[i].Name != prog.ColorFormats[i].Name {
			return fmt.Errorf("headless: program %q color %d is %s, framebuffer has %s", prog.Label, i, prog.ColorFormats[i].Name, colors[i].Name)
		}
	}

	for slot := range prog.VertexLayouts {
		if _, ok := b.buffers[b.boundVertex[slot]]; !ok {
			return fmt.Errorf("headless: vertex slot %d is not bound", slot)
		}
	}
	for _, g := range shader.Groups(prog.Bindings) {
		set, ok := b.sets[b.boundSets[g]]
		if !ok || set.group != g {
			return fmt.Errorf("headless: resource group %d is not bound", g)
		}
	}
	if call.Indexed {
		if _, ok := b.buffers[b.boundIndex]; !ok {
			return fmt.Errorf("headless: indexed draw without an index buffer")
		}
	}
	if call.Instances < 1 || call.Count < 0 {
		return fmt.Errorf("headless: invalid draw %+v", call)
	}

	b.record(Command{Kind: CmdDraw, Draw: call})
	return nil
}

func (b *headlessBackend) NewFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surfaceDirty = false
	b.record(Command{Kind: CmdNewFrame})
	return nil
}

func (b *headlessBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames++
	if b.surfaceDirty {
		b.presented++
		b.surfaceDirty = false
	}
	b.record(Command{Kind: CmdEndFrame})
	return nil
}

func (b *headlessBackend) Resize(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resizeSurface(width, height)
}

func (b *headlessBackend) SurfaceSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surface.Rect.Dx(), b.surface.Rect.Dy()
}

func (b *headlessBackend) Release(h backend.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.buffers, h)
	delete(b.images, h)
	delete(b.framebuffers, h)
	delete(b.programs, h)
	delete(b.sets, h)
}

func (b *headlessBackend) Info() backend.Info {
	return b.info
}

func (b *headlessBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.buffers)
	clear(b.images)
	clear(b.framebuffers)
	clear(b.programs)
	clear(b.sets)
}

func (b *headlessBackend) Commands() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Command(nil), b.commands...)
}

func (b *headlessBackend) ResetCommands() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = b.commands[:0]
}

func (b *headlessBackend) Surface() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clone.AsRGBA(b.surface)
}

func (b *headlessBackend) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

func (b *headlessBackend) Presented() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presented
}

func (b *headlessBackend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffers) + len(b.images) + len(b.framebuffers) + len(b.programs) + len(b.sets)
}
