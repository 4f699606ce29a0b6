// Package renderer provides the rendering Context: the owner of every buffer, image and
// pipeline drawn through one backend, together with the include registry, the program and
// framebuffer caches and the state-diff cache shared by its pipelines.
package renderer

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-zen/engine/logger"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/descriptor"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/state"
	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"
)

// ReleaseTarget selects a group of objects for Context.Release.
type ReleaseTarget int

const (
	// ReleaseShaderCache frees every cached program that no live pipeline uses.
	ReleaseShaderCache ReleaseTarget = iota

	// ReleaseAll frees every pipeline, image, buffer, framebuffer and program of the Context.
	ReleaseAll
)

// ErrUnknownObject is returned by Release for values it cannot release.
var ErrUnknownObject = errors.New("renderer: unknown object")

type framebufferEntry struct {
	handle      backend.Handle
	attachments []backend.Handle
}

type programEntry struct {
	handle backend.Handle
	users  int
}

// renderContext is the implementation of the Context interface.
type renderContext struct {
	mu *sync.Mutex

	b        backend.Backend
	cache    *state.Cache
	includes shader.IncludeRegistry

	framebuffers map[string]framebufferEntry
	programs     map[string]*programEntry
	// retired holds programs dropped from the cache while pipelines still use them
	retired      map[backend.Handle]*programEntry
	pipelines    map[pipeline.Pipeline]struct{}
	buffers      map[backend.Handle]resource.Buffer
	images       map[backend.Handle]resource.Image

	mapped int
	closed bool
}

// Context owns every resource and pipeline drawn through one backend. Contexts are
// independent: each has its own backend, include registry and caches, so several can live in
// one process (for example an on-screen and an offscreen one).
//
// A Context is driven from a single render thread; the frame callback runs to completion
// before the next frame starts.
type Context interface {
	resource.Owner

	// Includes returns the include registry consulted when pipelines are created.
	//
	// Returns:
	//   - shader.IncludeRegistry: the Context's registry
	Includes() shader.IncludeRegistry

	// Buffer creates a buffer. Exactly one of resource.WithData and resource.WithSize is required.
	//
	// Parameters:
	//   - opts: variadic list of resource.BufferBuilderOption functions
	//
	// Returns:
	//   - resource.Buffer: the new buffer
	//   - error: *resource.InvalidSizeError or a backend error
	Buffer(opts ...resource.BufferBuilderOption) (resource.Buffer, error)

	// Image creates an image.
	//
	// Parameters:
	//   - width: the width in pixels
	//   - height: the height in pixels
	//   - format: the pixel format name, e.g. "rgba8unorm" or "depth24plus"
	//   - opts: variadic list of resource.ImageBuilderOption functions
	//
	// Returns:
	//   - resource.Image: the new image
	//   - error: *resource.InvalidSizeError, *resource.ClearValueError or a backend error
	Image(width, height int, format string, opts ...resource.ImageBuilderOption) (resource.Image, error)

	// ImageFromFile decodes a PNG or JPEG file into a new rgba8unorm texture.
	//
	// Parameters:
	//   - path: the image file
	//   - opts: variadic list of resource.ImageBuilderOption functions
	//
	// Returns:
	//   - resource.Image: the new image
	//   - error: a decode error or any error of Image
	ImageFromFile(path string, opts ...resource.ImageBuilderOption) (resource.Image, error)

	// Pipeline validates desc, expands and reflects its shaders, compiles the program (or reuses
	// a cached one) and creates its resource sets.
	//
	// Parameters:
	//   - desc: the pipeline description
	//
	// Returns:
	//   - pipeline.Pipeline: the compiled pipeline
	//   - error: a descriptor validation error, a shader pre-processing error or
	//     *backend.ShaderCompilationError
	Pipeline(desc descriptor.PipelineDescriptor) (pipeline.Pipeline, error)

	// NewFrame begins a frame.
	//
	// Returns:
	//   - error: error if the backend cannot begin a frame
	NewFrame() error

	// EndFrame submits the frame's commands and presents the display surface.
	//
	// Returns:
	//   - error: error if submission or presentation fails
	EndFrame() error

	// Release frees a resource.Buffer, resource.Image or pipeline.Pipeline, or the group
	// selected by a ReleaseTarget.
	//
	// Parameters:
	//   - obj: the object or ReleaseTarget
	//
	// Returns:
	//   - error: ErrUnknownObject for anything else
	Release(obj any) error

	// ClearShaderCache forgets every cached program so the next pipelines compile afresh.
	// Programs in use by live pipelines stay allocated.
	ClearShaderCache()

	// Info describes the backend driver.
	//
	// Returns:
	//   - backend.Info: vendor, renderer and version strings
	Info() backend.Info

	// Reset forgets the state cache so the next render re-emits every binding.
	Reset()

	// Resize changes the display surface size.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height int)

	// SurfaceSize returns the display surface size in pixels.
	SurfaceSize() (int, int)

	// Close releases everything and closes the backend.
	Close()
}

var _ Context = &renderContext{}

// NewContext creates a Context drawing through b.
//
// Parameters:
//   - b: the backend to draw with
//   - options: variadic list of ContextBuilderOption functions
//
// Returns:
//   - Context: the new Context
func NewContext(b backend.Backend, options ...ContextBuilderOption) Context {
	c := &renderContext{
		mu:           &sync.Mutex{},
		b:            b,
		cache:        state.New(b),
		includes:     shader.NewIncludeRegistry(),
		framebuffers: make(map[string]framebufferEntry),
		programs:     make(map[string]*programEntry),
		retired:      make(map[backend.Handle]*programEntry),
		pipelines:    make(map[pipeline.Pipeline]struct{}),
		buffers:      make(map[backend.Handle]resource.Buffer),
		images:       make(map[backend.Handle]resource.Image),
	}
	for _, opt := range options {
		opt(c)
	}
	info := b.Info()
	logger.Logger().Info("renderer: context created", "backend", info.Backend, "vendor", info.Vendor, "renderer", info.Renderer)
	return c
}

func (c *renderContext) Backend() backend.Backend {
	return c.b
}

func (c *renderContext) State() *state.Cache {
	return c.cache
}

func framebufferKey(attachments []backend.Handle) string {
	var sb strings.Builder
	for _, a := range attachments {
		fmt.Fprintf(&sb, "%d,", a)
	}
	return sb.String()
}

func (c *renderContext) Framebuffer(attachments []backend.Handle) (backend.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := framebufferKey(attachments)
	if fb, ok := c.framebuffers[key]; ok {
		return fb.handle, nil
	}
	h, err := c.b.CreateFramebuffer(attachments)
	if err != nil {
		return 0, err
	}
	c.framebuffers[key] = framebufferEntry{handle: h, attachments: slices.Clone(attachments)}
	return h, nil
}

func (c *renderContext) MapChanged(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapped += delta
}

func (c *renderContext) mappedBuffers() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mapped > 0
}

func (c *renderContext) Released(h backend.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.buffers, h)
	delete(c.images, h)
	for key, fb := range c.framebuffers {
		if slices.Contains(fb.attachments, h) {
			c.b.Release(fb.handle)
			delete(c.framebuffers, key)
		}
	}
	c.cache.Invalidate()
}

func (c *renderContext) Includes() shader.IncludeRegistry {
	return c.includes
}

func (c *renderContext) Buffer(opts ...resource.BufferBuilderOption) (resource.Buffer, error) {
	buf, err := resource.NewBuffer(c, opts...)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.buffers[buf.Handle()] = buf
	c.mu.Unlock()
	return buf, nil
}

func (c *renderContext) Image(width, height int, format string, opts ...resource.ImageBuilderOption) (resource.Image, error) {
	img, err := resource.NewImage(c, width, height, format, opts...)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.images[img.Handle()] = img
	c.mu.Unlock()
	return img, nil
}

func (c *renderContext) ImageFromFile(path string, opts ...resource.ImageBuilderOption) (resource.Image, error) {
	src, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to open image %q: %w", path, err)
	}
	rgba := clone.AsRGBA(src)
	b := rgba.Bounds()
	opts = append([]resource.ImageBuilderOption{resource.WithImageData(rgba.Pix), resource.WithImageLabel(path)}, opts...)
	return c.Image(b.Dx(), b.Dy(), "rgba8unorm", opts...)
}

func (c *renderContext) Pipeline(desc descriptor.PipelineDescriptor) (pipeline.Pipeline, error) {
	r, err := descriptor.Resolve(desc)
	if err != nil {
		return nil, err
	}

	label := r.Label
	if label == "" {
		label = "pipeline"
	}
	pp := shader.NewPreProcessor(c.includes)
	vs, err := shader.NewShader(label+".vertex", shader.StageVertex, r.VertexShader, pp)
	if err != nil {
		return nil, err
	}
	fs, err := shader.NewShader(label+".fragment", shader.StageFragment, r.FragmentShader, pp)
	if err != nil {
		return nil, err
	}
	bindings, err := shader.MergeBindings(vs.Reflection().Bindings, fs.Reflection().Bindings)
	if err != nil {
		return nil, err
	}
	if err := descriptor.CheckReflection(r, bindings, vs.Reflection().Inputs); err != nil {
		return nil, err
	}

	layouts := make([]backend.VertexLayout, len(r.Slots))
	slots := make([]pipeline.VertexSlot, len(r.Slots))
	for i, s := range r.Slots {
		layouts[i] = s.Layout
		slots[i] = pipeline.VertexSlot{Buffer: s.Buffer, Offset: s.Offset}
	}
	programKey, program, err := c.program(backend.ProgramDesc{
		Label:          label,
		VertexSource:   vs.Source(),
		FragmentSource: fs.Source(),
		VertexEntry:    vs.EntryPoint(),
		FragmentEntry:  fs.EntryPoint(),
		VertexLayouts:  layouts,
		Bindings:       bindings,
		State:          r.State,
		ColorFormats:   r.ColorFormats,
		DepthFormat:    r.DepthFormat,
		Samples:        r.Samples,
	})
	if err != nil {
		return nil, err
	}

	attachments := make([]backend.Handle, len(r.Framebuffer))
	for i, img := range r.Framebuffer {
		attachments[i] = img.Handle()
	}
	fb, err := c.Framebuffer(attachments)
	if err != nil {
		c.dropProgram(programKey, program)
		return nil, err
	}

	sets, err := c.resourceSets(program, r.Resources, bindings)
	if err != nil {
		c.dropProgram(programKey, program)
		return nil, err
	}

	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithShaders(vs, fs),
		pipeline.WithProgram(program),
		pipeline.WithFramebuffer(fb),
		pipeline.WithFixedState(r.State),
		pipeline.WithVertexSlots(slots...),
		pipeline.WithResourceSets(sets...),
		pipeline.WithDraw(r.VertexCount, r.InstanceCount, r.FirstVertex),
		pipeline.WithViewport(r.Viewport),
		pipeline.WithMappedCheck(c.mappedBuffers),
	}
	if r.IndexBuffer != nil {
		opts = append(opts, pipeline.WithIndexBuffer(r.IndexBuffer))
	}
	var p pipeline.Pipeline
	opts = append(opts, pipeline.WithReleaseHook(func() {
		for _, s := range sets {
			c.b.Release(s.Handle)
		}
		c.dropProgram(programKey, program)
		c.mu.Lock()
		delete(c.pipelines, p)
		c.mu.Unlock()
		c.cache.Invalidate()
	}))
	p = pipeline.NewPipeline(label, c.cache, opts...)

	c.mu.Lock()
	c.pipelines[p] = struct{}{}
	c.mu.Unlock()
	logger.Logger().Info("renderer: pipeline created", "label", label, "program", program, "vertices", r.VertexCount, "instances", r.InstanceCount)
	return p, nil
}

func programKey(desc backend.ProgramDesc) string {
	var sb strings.Builder
	sb.WriteString(desc.VertexSource)
	sb.WriteByte(0)
	sb.WriteString(desc.FragmentSource)
	sb.WriteByte(0)
	fmt.Fprintf(&sb, "%s|%s|%v|%+v|%d|", desc.VertexEntry, desc.FragmentEntry, desc.VertexLayouts, desc.State, desc.Samples)
	for _, f := range desc.ColorFormats {
		sb.WriteString(f.Name)
		sb.WriteByte(',')
	}
	if desc.DepthFormat != nil {
		sb.WriteString(desc.DepthFormat.Name)
	}
	return sb.String()
}

// program returns the cached program for desc, compiling it on first use.
func (c *renderContext) program(desc backend.ProgramDesc) (string, backend.Handle, error) {
	key := programKey(desc)

	c.mu.Lock()
	if e, ok := c.programs[key]; ok {
		e.users++
		c.mu.Unlock()
		return key, e.handle, nil
	}
	c.mu.Unlock()

	h, err := c.b.CompileProgram(desc)
	if err != nil {
		logger.Logger().Warn("renderer: program rejected", "label", desc.Label, "error", err)
		return "", 0, err
	}
	c.mu.Lock()
	c.programs[key] = &programEntry{handle: h, users: 1}
	c.mu.Unlock()
	return key, h, nil
}

// dropProgram releases one use of a program. Unused cached programs stay cached until the
// shader cache is released; a retired program is released with its last user.
func (c *renderContext) dropProgram(key string, h backend.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.programs[key]; ok && e.handle == h {
		if e.users > 0 {
			e.users--
		}
		return
	}
	if e, ok := c.retired[h]; ok {
		e.users--
		if e.users <= 0 {
			c.b.Release(h)
			delete(c.retired, h)
		}
	}
}

func (c *renderContext) resourceSets(program backend.Handle, resources []descriptor.Resource, bindings []shader.Binding) ([]pipeline.ResourceSet, error) {
	groups := map[int][]backend.ResourceEntry{}
	for _, res := range resources {
		decl, _ := shader.FindBinding(bindings, res.Group, res.Binding)
		e := backend.ResourceEntry{Binding: res.Binding, Kind: decl.Kind, SamplerBinding: -1}
		if res.Type == descriptor.ResourceSampler {
			e.Image = res.Image.Handle()
			s := res.Sampler
			e.Sampler = &s
			if sd, ok := shader.FindBinding(bindings, res.Group, res.Binding+1); ok && sd.Kind.IsSampler() {
				e.SamplerBinding = res.Binding + 1
			}
		} else {
			e.Buffer = res.Buffer.Handle()
			e.Offset = res.Offset
			e.Size = res.Size
		}
		groups[res.Group] = append(groups[res.Group], e)
	}

	order := make([]int, 0, len(groups))
	for g := range groups {
		order = append(order, g)
	}
	sort.Ints(order)

	sets := make([]pipeline.ResourceSet, 0, len(order))
	for _, g := range order {
		h, err := c.b.CreateResourceSet(program, g, groups[g])
		if err != nil {
			for _, s := range sets {
				c.b.Release(s.Handle)
			}
			return nil, fmt.Errorf("renderer: resource set for group %d: %w", g, err)
		}
		sets = append(sets, pipeline.ResourceSet{Group: g, Handle: h})
	}
	return sets, nil
}

func (c *renderContext) NewFrame() error {
	return c.b.NewFrame()
}

func (c *renderContext) EndFrame() error {
	return c.b.EndFrame()
}

func (c *renderContext) Release(obj any) error {
	switch o := obj.(type) {
	case resource.Buffer:
		o.Release()
	case resource.Image:
		o.Release()
	case pipeline.Pipeline:
		o.Release()
	case ReleaseTarget:
		switch o {
		case ReleaseShaderCache:
			c.releaseShaderCache()
		case ReleaseAll:
			c.releaseAll()
		default:
			return fmt.Errorf("renderer: release target %d: %w", o, ErrUnknownObject)
		}
	default:
		return fmt.Errorf("renderer: release %T: %w", obj, ErrUnknownObject)
	}
	return nil
}

func (c *renderContext) releaseShaderCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.programs {
		if e.users == 0 {
			c.b.Release(e.handle)
			delete(c.programs, key)
		}
	}
	c.cache.Invalidate()
}

func (c *renderContext) releaseAll() {
	c.mu.Lock()
	pipelines := make([]pipeline.Pipeline, 0, len(c.pipelines))
	for p := range c.pipelines {
		pipelines = append(pipelines, p)
	}
	images := make([]resource.Image, 0, len(c.images))
	for _, img := range c.images {
		images = append(images, img)
	}
	buffers := make([]resource.Buffer, 0, len(c.buffers))
	for _, buf := range c.buffers {
		buffers = append(buffers, buf)
	}
	c.mu.Unlock()

	for _, p := range pipelines {
		p.Release()
	}
	for _, img := range images {
		img.Release()
	}
	for _, buf := range buffers {
		buf.Release()
	}

	c.mu.Lock()
	for key, fb := range c.framebuffers {
		c.b.Release(fb.handle)
		delete(c.framebuffers, key)
	}
	for key, e := range c.programs {
		c.b.Release(e.handle)
		delete(c.programs, key)
	}
	for h := range c.retired {
		c.b.Release(h)
		delete(c.retired, h)
	}
	c.mu.Unlock()
	c.cache.Invalidate()
	logger.Logger().Debug("renderer: released all objects")
}

func (c *renderContext) ClearShaderCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.programs {
		if e.users == 0 {
			c.b.Release(e.handle)
		} else {
			c.retired[e.handle] = e
		}
		delete(c.programs, key)
	}
}

func (c *renderContext) Info() backend.Info {
	return c.b.Info()
}

func (c *renderContext) Reset() {
	c.cache.Invalidate()
}

func (c *renderContext) Resize(width, height int) {
	c.b.Resize(width, height)
}

func (c *renderContext) SurfaceSize() (int, int) {
	return c.b.SurfaceSize()
}

func (c *renderContext) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.releaseAll()
	c.b.Close()
}
