// Package webgpu implements the renderer backend on a real GPU through wgpu-native. Programs map to
// render pipelines with their fixed state baked in, resource sets map to bind groups and every
// framebuffer switch opens a new render pass on a shared command encoder.
package webgpu

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/logger"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoSurface is returned when the display surface is targeted by a backend created without one.
var ErrNoSurface = errors.New("webgpu: backend has no display surface")

type bufferObject struct {
	buf *wgpu.Buffer
	// shadow holds the host copy used to widen unaligned writes to 4 byte boundaries.
	shadow []byte
	size   int
}

type imageObject struct {
	desc   backend.ImageDesc
	format wgpu.TextureFormat
	tex    *wgpu.Texture
	// view samples the whole image; targets holds one 2D view per layer for attachments.
	view    *wgpu.TextureView
	targets []*wgpu.TextureView

	// resolved is the single-sampled copy of a multisampled image, created on first use.
	resolved     *wgpu.Texture
	resolvedView *wgpu.TextureView
}

func (o *imageObject) release() {
	for _, v := range o.targets {
		v.Release()
	}
	o.view.Release()
	o.tex.Release()
	if o.resolved != nil {
		o.resolvedView.Release()
		o.resolved.Release()
	}
}

type programObject struct {
	desc     backend.ProgramDesc
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.PipelineLayout
	groups   []*wgpu.BindGroupLayout
}

func (o *programObject) release() {
	o.pipeline.Release()
	o.layout.Release()
	for _, g := range o.groups {
		g.Release()
	}
}

type setObject struct {
	group     int
	bindGroup *wgpu.BindGroup
	samplers  []*wgpu.Sampler
}

func (o *setObject) release() {
	o.bindGroup.Release()
	for _, s := range o.samplers {
		s.Release()
	}
}

type vertexBinding struct {
	buf    backend.Handle
	offset int
}

// webgpuBackend is the implementation of the Backend interface.
type webgpuBackend struct {
	mu   *sync.Mutex
	next backend.Handle

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceDescriptor    *wgpu.SurfaceDescriptor
	surfaceFormat        wgpu.TextureFormat
	presentMode          PresentMode
	forceFallbackAdapter bool
	width, height        int

	buffers      map[backend.Handle]*bufferObject
	images       map[backend.Handle]*imageObject
	framebuffers map[backend.Handle][]backend.Handle
	programs     map[backend.Handle]*programObject
	sets         map[backend.Handle]*setObject

	// encoder collects the commands issued since the last submission; pass is the open render
	// pass on passFramebuffer, if any.
	encoder         *wgpu.CommandEncoder
	pass            *wgpu.RenderPassEncoder
	passFramebuffer backend.Handle
	// transient releases objects that only live until the next submission.
	transient []func()

	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	boundFramebuffer backend.Handle
	viewport         common.Viewport
	fixedState       backend.FixedState
	boundProgram     backend.Handle
	boundVertex      map[int]vertexBinding
	boundIndex       backend.Handle
	shortIndex       bool
	boundSets        map[int]backend.Handle

	blit   *blitter
	info   backend.Info
	closed bool
}

// Backend is a backend.Backend running on a wgpu device.
type Backend interface {
	backend.Backend

	// Device returns the underlying wgpu device.
	Device() *wgpu.Device

	// SurfaceFormat returns the texture format of the display surface, or
	// wgpu.TextureFormatUndefined when the backend has no surface.
	SurfaceFormat() wgpu.TextureFormat
}

var _ Backend = &webgpuBackend{}

// NewBackend creates the wgpu instance, adapter and device, and configures the display surface
// when one is given. The calling goroutine is locked to its OS thread. Failing to obtain an adapter
// or device panics.
//
// Parameters:
//   - opts: variadic list of BackendBuilderOption functions
//
// Returns:
//   - Backend: the new backend
func NewBackend(opts ...BackendBuilderOption) Backend {
	runtime.LockOSThread()
	b := &webgpuBackend{
		mu:           &sync.Mutex{},
		instance:     wgpu.CreateInstance(nil),
		width:        640,
		height:       480,
		buffers:      make(map[backend.Handle]*bufferObject),
		images:       make(map[backend.Handle]*imageObject),
		framebuffers: make(map[backend.Handle][]backend.Handle),
		programs:     make(map[backend.Handle]*programObject),
		sets:         make(map[backend.Handle]*setObject),
		boundVertex:  make(map[int]vertexBinding),
		boundSets:    make(map[int]backend.Handle),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.surfaceDescriptor != nil {
		b.surface = b.instance.CreateSurface(b.surfaceDescriptor)
	}

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		panic(err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-zen device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		panic(err)
	}
	b.device = d
	b.queue = d.GetQueue()

	ai := a.GetInfo()
	b.info = backend.Info{
		Vendor:   ai.VendorName,
		Renderer: ai.Name,
		Version:  ai.DriverDescription,
		Backend:  fmt.Sprint(ai.BackendType),
	}
	b.blit = newBlitter(d, b.queue)

	if b.surface != nil {
		b.configureSurface()
	}
	logger.Logger().Info("webgpu: device ready", "vendor", b.info.Vendor, "renderer", b.info.Renderer, "backend", b.info.Backend)
	return b
}

func (b *webgpuBackend) configureSurface() {
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(b.width),
		Height:      uint32(b.height),
		PresentMode: b.presentMode.wgpu(),
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (b *webgpuBackend) handle() backend.Handle {
	b.next++
	return b.next
}

func (b *webgpuBackend) Device() *wgpu.Device {
	return b.device
}

func (b *webgpuBackend) SurfaceFormat() wgpu.TextureFormat {
	if b.surface == nil {
		return wgpu.TextureFormatUndefined
	}
	return b.surfaceFormat
}

func (b *webgpuBackend) CreateBuffer(desc backend.BufferDesc) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Size <= 0 {
		return 0, fmt.Errorf("webgpu: invalid buffer size %d", desc.Size)
	}
	usage := wgpu.BufferUsageVertex | wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	if desc.Index {
		usage |= wgpu.BufferUsageIndex
	}
	if desc.Storage {
		usage |= wgpu.BufferUsageStorage
	}
	alloc := align4(desc.Size)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  uint64(alloc),
		Usage: usage,
	})
	if err != nil {
		return 0, fmt.Errorf("webgpu: create buffer %q: %w", desc.Label, err)
	}
	obj := &bufferObject{buf: buf, shadow: make([]byte, alloc), size: desc.Size}
	if len(desc.Data) > 0 {
		copy(obj.shadow, desc.Data)
		b.queue.WriteBuffer(buf, 0, obj.shadow)
	}
	h := b.handle()
	b.buffers[h] = obj
	logger.Logger().Debug("webgpu: created buffer", "handle", h, "size", desc.Size)
	return h, nil
}

func (b *webgpuBackend) WriteBuffer(buf backend.Handle, offset int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.buffers[buf]
	if !ok {
		return fmt.Errorf("webgpu: write buffer %d: %w", buf, backend.ErrInvalidHandle)
	}
	if offset < 0 || offset+len(data) > obj.size {
		return fmt.Errorf("webgpu: write of %d bytes at %d exceeds buffer size %d", len(data), offset, obj.size)
	}
	// queue writes land before the next submission, so recorded draws must go first
	if err := b.flushLocked(); err != nil {
		return err
	}
	copy(obj.shadow[offset:], data)
	start := offset &^ 3
	end := align4(offset + len(data))
	b.queue.WriteBuffer(obj.buf, uint64(start), obj.shadow[start:end])
	return nil
}

func (b *webgpuBackend) ReadBuffer(buf backend.Handle, offset, size int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.buffers[buf]
	if !ok {
		return nil, fmt.Errorf("webgpu: read buffer %d: %w", buf, backend.ErrInvalidHandle)
	}
	if offset < 0 || size < 0 || offset+size > obj.size {
		return nil, fmt.Errorf("webgpu: read of %d bytes at %d exceeds buffer size %d", size, offset, obj.size)
	}
	if size == 0 {
		return []byte{}, nil
	}

	start := offset &^ 3
	end := align4(offset + size)
	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback",
		Size:  uint64(end - start),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	if err := b.ensureEncoder(); err != nil {
		return nil, err
	}
	b.endPass()
	b.encoder.CopyBufferToBuffer(obj.buf, uint64(start), staging, 0, uint64(end-start))
	if err := b.flushLocked(); err != nil {
		return nil, err
	}
	data, err := b.mapRead(staging, end-start)
	if err != nil {
		return nil, err
	}
	return data[offset-start : offset-start+size], nil
}

// mapRead maps a staging buffer, waits for the device and copies the mapped bytes out.
func (b *webgpuBackend) mapRead(staging *wgpu.Buffer, size int) ([]byte, error) {
	var status wgpu.BufferMapAsyncStatus
	err := staging.MapAsync(wgpu.MapModeRead, 0, uint64(size), func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("webgpu: buffer map failed with status %v", status)
	}
	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return out, nil
}

func (b *webgpuBackend) CreateImage(desc backend.ImageDesc) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("webgpu: invalid image size %dx%d", desc.Width, desc.Height)
	}
	tf, err := TextureFormat(desc.Format)
	if err != nil {
		return 0, err
	}
	samples := max(1, desc.Samples)
	if samples > 1 && len(desc.Data) > 0 {
		return 0, fmt.Errorf("webgpu: multisampled image %q cannot take initial data", desc.Label)
	}
	layers := max(1, desc.Layers)

	usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopyDst
	if samples == 1 {
		usage |= wgpu.TextureUsageCopySrc | wgpu.TextureUsageTextureBinding
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: uint32(layers),
		},
		MipLevelCount: 1,
		SampleCount:   uint32(samples),
		Dimension:     wgpu.TextureDimension2D,
		Format:        tf,
		Usage:         usage,
	})
	if err != nil {
		return 0, fmt.Errorf("webgpu: create image %q: %w", desc.Label, err)
	}

	dim := wgpu.TextureViewDimension2D
	switch {
	case desc.Cubemap:
		dim = wgpu.TextureViewDimensionCube
	case desc.Layers > 0:
		dim = wgpu.TextureViewDimension2DArray
	}
	obj := &imageObject{desc: desc, format: tf, tex: tex}
	obj.view, err = tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          tf,
		Dimension:       dim,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: uint32(layers),
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		tex.Release()
		return 0, err
	}
	for layer := range layers {
		v, err := tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           fmt.Sprintf("%s layer %d", desc.Label, layer),
			Format:          tf,
			Dimension:       wgpu.TextureViewDimension2D,
			BaseMipLevel:    0,
			MipLevelCount:   1,
			BaseArrayLayer:  uint32(layer),
			ArrayLayerCount: 1,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			obj.release()
			return 0, err
		}
		obj.targets = append(obj.targets, v)
	}

	if len(desc.Data) > 0 {
		layerSize := desc.Width * desc.Height * desc.Format.PixelSize
		if len(desc.Data) != layerSize*layers {
			obj.release()
			return 0, fmt.Errorf("webgpu: image data is %d bytes, expected %d", len(desc.Data), layerSize*layers)
		}
		b.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			desc.Data,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(desc.Width * desc.Format.PixelSize),
				RowsPerImage: uint32(desc.Height),
			},
			&wgpu.Extent3D{
				Width:              uint32(desc.Width),
				Height:             uint32(desc.Height),
				DepthOrArrayLayers: uint32(layers),
			},
		)
	}

	h := b.handle()
	b.images[h] = obj
	logger.Logger().Debug("webgpu: created image", "handle", h, "width", desc.Width, "height", desc.Height, "format", desc.Format.Name)
	return h, nil
}

func (b *webgpuBackend) imageRect(obj *imageObject, region backend.ImageRegion) (common.Viewport, error) {
	rect := region.Rect
	if rect.IsZero() {
		rect = common.Viewport{Width: obj.desc.Width, Height: obj.desc.Height}
	}
	if !rect.Within(obj.desc.Width, obj.desc.Height) {
		return rect, fmt.Errorf("webgpu: region %+v outside %dx%d image", rect, obj.desc.Width, obj.desc.Height)
	}
	if region.Layer < 0 || region.Layer >= len(obj.targets) {
		return rect, fmt.Errorf("webgpu: layer %d outside 0..%d", region.Layer, len(obj.targets)-1)
	}
	return rect, nil
}

func (b *webgpuBackend) WriteImage(region backend.ImageRegion, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.images[region.Image]
	if !ok {
		return fmt.Errorf("webgpu: write image %d: %w", region.Image, backend.ErrInvalidHandle)
	}
	rect, err := b.imageRect(obj, region)
	if err != nil {
		return err
	}
	ps := obj.desc.Format.PixelSize
	if len(data) != rect.Width*rect.Height*ps {
		return fmt.Errorf("webgpu: image write is %d bytes, expected %d", len(data), rect.Width*rect.Height*ps)
	}
	if err := b.flushLocked(); err != nil {
		return err
	}
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  obj.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: uint32(rect.X), Y: uint32(rect.Y), Z: uint32(region.Layer)},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(rect.Width * ps),
			RowsPerImage: uint32(rect.Height),
		},
		&wgpu.Extent3D{
			Width:              uint32(rect.Width),
			Height:             uint32(rect.Height),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *webgpuBackend) ReadImage(region backend.ImageRegion) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.images[region.Image]
	if !ok {
		return nil, fmt.Errorf("webgpu: read image %d: %w", region.Image, backend.ErrInvalidHandle)
	}
	rect, err := b.imageRect(obj, region)
	if err != nil {
		return nil, err
	}
	switch obj.format {
	case wgpu.TextureFormatDepth24Plus, wgpu.TextureFormatDepth24PlusStencil8:
		return nil, fmt.Errorf("webgpu: read back %s: %w", obj.desc.Format.Name, backend.ErrUnsupported)
	}

	if err := b.ensureEncoder(); err != nil {
		return nil, err
	}
	b.endPass()
	src := obj.tex
	if obj.desc.Samples > 1 {
		if src, _, err = b.resolve(obj); err != nil {
			return nil, err
		}
	}

	ps := obj.desc.Format.PixelSize
	rowBytes := rect.Width * ps
	stride := alignedRowBytes(rowBytes)
	size := stride * rect.Height
	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "image readback",
		Size:  uint64(size),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	b.encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  src,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: uint32(rect.X), Y: uint32(rect.Y), Z: uint32(region.Layer)},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(stride),
				RowsPerImage: uint32(rect.Height),
			},
		},
		&wgpu.Extent3D{
			Width:              uint32(rect.Width),
			Height:             uint32(rect.Height),
			DepthOrArrayLayers: 1,
		},
	)
	if err := b.flushLocked(); err != nil {
		return nil, err
	}
	padded, err := b.mapRead(staging, size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, rowBytes*rect.Height)
	for y := 0; y < rect.Height; y++ {
		copy(out[y*rowBytes:(y+1)*rowBytes], padded[y*stride:])
	}
	return out, nil
}

// resolve copies a multisampled image into its single-sampled twin and returns the twin.
func (b *webgpuBackend) resolve(obj *imageObject) (*wgpu.Texture, *wgpu.TextureView, error) {
	if obj.desc.Format.IsDepth() {
		return nil, nil, fmt.Errorf("webgpu: resolve %s: %w", obj.desc.Format.Name, backend.ErrUnsupported)
	}
	if obj.resolved == nil {
		tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: obj.desc.Label + " resolved",
			Size: wgpu.Extent3D{
				Width:              uint32(obj.desc.Width),
				Height:             uint32(obj.desc.Height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        obj.format,
			Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
		})
		if err != nil {
			return nil, nil, err
		}
		view, err := tex.CreateView(nil)
		if err != nil {
			tex.Release()
			return nil, nil, err
		}
		obj.resolved, obj.resolvedView = tex, view
	}

	pass := b.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:          obj.targets[0],
			ResolveTarget: obj.resolvedView,
			LoadOp:        wgpu.LoadOpLoad,
			StoreOp:       wgpu.StoreOpStore,
		}},
	})
	pass.End()
	return obj.resolved, obj.resolvedView, nil
}

func (b *webgpuBackend) ClearImage(img backend.Handle, value common.ClearValue) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.images[img]
	if !ok {
		return fmt.Errorf("webgpu: clear image %d: %w", img, backend.ErrInvalidHandle)
	}
	if err := b.ensureEncoder(); err != nil {
		return err
	}
	b.endPass()

	for _, target := range obj.targets {
		desc := &wgpu.RenderPassDescriptor{}
		if obj.desc.Format.IsDepth() {
			ds := &wgpu.RenderPassDepthStencilAttachment{
				View:         target,
				DepthLoadOp:  wgpu.LoadOpClear,
				DepthStoreOp: wgpu.StoreOpStore,
			}
			if len(value) > 0 {
				ds.DepthClearValue = float32(value[0])
			}
			if obj.desc.Format.HasStencil() {
				ds.StencilLoadOp = wgpu.LoadOpClear
				ds.StencilStoreOp = wgpu.StoreOpStore
				if len(value) > 1 {
					ds.StencilClearValue = uint32(value[1])
				}
			}
			desc.DepthStencilAttachment = ds
		} else {
			desc.ColorAttachments = []wgpu.RenderPassColorAttachment{{
				View:       target,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clearColor(value),
			}}
		}
		pass := b.encoder.BeginRenderPass(desc)
		pass.End()
	}
	return nil
}

func (b *webgpuBackend) BlitImage(desc backend.BlitDesc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, ok := b.images[desc.Source]
	if !ok {
		return fmt.Errorf("webgpu: blit source %d: %w", desc.Source, backend.ErrInvalidHandle)
	}
	// 32-bit float textures are not filterable without an optional device feature
	if src.desc.Format.ClearType != format.ClearFloat || src.desc.Format.IsDepth() || src.desc.Format.Scalar == format.ScalarFloat32 {
		return fmt.Errorf("webgpu: blit from %s: %w", src.desc.Format.Name, backend.ErrUnsupported)
	}
	if err := b.ensureEncoder(); err != nil {
		return err
	}
	b.endPass()

	view := src.view
	if src.desc.Samples > 1 {
		_, v, err := b.resolve(src)
		if err != nil {
			return err
		}
		view = v
	}

	draw := blitDraw{
		source:       view,
		sourceWidth:  src.desc.Width,
		sourceHeight: src.desc.Height,
		sourceRect:   desc.SourceViewport,
		targetRect:   desc.TargetViewport,
		filter:       desc.Filter,
	}
	if desc.Target == 0 {
		if err := b.acquireSurface(); err != nil {
			return err
		}
		draw.target, draw.targetFormat = b.frameView, b.surfaceFormat
		draw.targetWidth, draw.targetHeight = b.width, b.height
	} else {
		dst, ok := b.images[desc.Target]
		if !ok {
			return fmt.Errorf("webgpu: blit target %d: %w", desc.Target, backend.ErrInvalidHandle)
		}
		draw.target, draw.targetFormat = dst.targets[0], dst.format
		draw.targetWidth, draw.targetHeight = dst.desc.Width, dst.desc.Height
	}

	done, err := b.blit.draw(b.encoder, draw)
	if err != nil {
		return err
	}
	b.transient = append(b.transient, done)
	return nil
}

func (b *webgpuBackend) acquireSurface() error {
	if b.surface == nil {
		return ErrNoSurface
	}
	if b.frameSurface != nil {
		return nil
	}
	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *webgpuBackend) GenerateMipmaps(img backend.Handle, base, levels int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.images[img]; !ok {
		return fmt.Errorf("webgpu: mipmaps %d: %w", img, backend.ErrInvalidHandle)
	}
	// images are allocated with a single mip level
	if base != 0 || levels > 1 {
		return fmt.Errorf("webgpu: mip levels beyond the base level: %w", backend.ErrUnsupported)
	}
	return nil
}

func (b *webgpuBackend) CreateFramebuffer(attachments []backend.Handle) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(attachments) == 0 {
		return 0, fmt.Errorf("webgpu: framebuffer without attachments")
	}
	for _, a := range attachments {
		if _, ok := b.images[a]; !ok {
			return 0, fmt.Errorf("webgpu: framebuffer attachment %d: %w", a, backend.ErrInvalidHandle)
		}
	}
	h := b.handle()
	b.framebuffers[h] = append([]backend.Handle(nil), attachments...)
	return h, nil
}

func (b *webgpuBackend) CompileProgram(desc backend.ProgramDesc) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label + ".vertex",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.VertexSource,
		},
	})
	if err != nil {
		return 0, &backend.ShaderCompilationError{Label: desc.Label, Stage: shader.StageVertex, Diagnostic: err.Error()}
	}
	defer vs.Release()
	fs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label + ".fragment",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.FragmentSource,
		},
	})
	if err != nil {
		return 0, &backend.ShaderCompilationError{Label: desc.Label, Stage: shader.StageFragment, Diagnostic: err.Error()}
	}
	defer fs.Release()

	layouts, err := bindGroupLayouts(desc.Label, desc.Bindings)
	if err != nil {
		return 0, err
	}
	obj := &programObject{desc: desc}
	groups := shader.Groups(desc.Bindings)
	count := 0
	if len(groups) > 0 {
		count = groups[len(groups)-1] + 1
	}
	for g := range count {
		ld, ok := layouts[g]
		if !ok {
			ld = wgpu.BindGroupLayoutDescriptor{Label: fmt.Sprintf("%s group %d", desc.Label, g)}
		}
		layout, err := b.device.CreateBindGroupLayout(&ld)
		if err != nil {
			obj.releaseLayouts()
			return 0, fmt.Errorf("webgpu: bind group layout %d of %q: %w", g, desc.Label, err)
		}
		obj.groups = append(obj.groups, layout)
	}

	obj.layout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: obj.groups,
	})
	if err != nil {
		obj.releaseLayouts()
		return 0, err
	}

	buffers, err := vertexBufferLayouts(desc.VertexLayouts)
	if err != nil {
		obj.releaseLayouts()
		return 0, err
	}
	targets := make([]wgpu.ColorTargetState, 0, len(desc.ColorFormats))
	for _, cf := range desc.ColorFormats {
		tf, err := TextureFormat(cf)
		if err != nil {
			obj.releaseLayouts()
			return 0, err
		}
		targets = append(targets, wgpu.ColorTargetState{
			Format:    tf,
			Blend:     blendState(desc.State.Blend),
			WriteMask: colorWriteMask(desc.State.ColorMask),
		})
	}
	var depthStencil *wgpu.DepthStencilState
	if desc.DepthFormat != nil {
		df, err := TextureFormat(*desc.DepthFormat)
		if err != nil {
			obj.releaseLayouts()
			return 0, err
		}
		depthStencil = depthStencilState(desc.State, df)
	}

	obj.pipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: obj.layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.VertexEntry,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.FragmentEntry,
			Targets:    targets,
		},
		Primitive:    primitiveState(desc.State),
		DepthStencil: depthStencil,
		Multisample: wgpu.MultisampleState{
			Count: uint32(max(1, desc.Samples)),
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		obj.releaseLayouts()
		return 0, &backend.ShaderCompilationError{Label: desc.Label, Stage: shader.StageVertex | shader.StageFragment, Diagnostic: err.Error()}
	}

	h := b.handle()
	b.programs[h] = obj
	logger.Logger().Info("webgpu: compiled program", "handle", h, "label", desc.Label)
	return h, nil
}

func (o *programObject) releaseLayouts() {
	if o.layout != nil {
		o.layout.Release()
	}
	for _, g := range o.groups {
		g.Release()
	}
}

func (b *webgpuBackend) CreateResourceSet(program backend.Handle, group int, entries []backend.ResourceEntry) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prog, ok := b.programs[program]
	if !ok {
		return 0, fmt.Errorf("webgpu: resource set program %d: %w", program, backend.ErrInvalidHandle)
	}
	if group < 0 || group >= len(prog.groups) {
		return 0, fmt.Errorf("webgpu: program %q has no group %d", prog.desc.Label, group)
	}

	set := &setObject{group: group}
	bindEntries := make([]wgpu.BindGroupEntry, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Kind.IsBuffer():
			buf, ok := b.buffers[e.Buffer]
			if !ok {
				set.releaseSamplers()
				return 0, fmt.Errorf("webgpu: binding %d buffer %d: %w", e.Binding, e.Buffer, backend.ErrInvalidHandle)
			}
			size := uint64(e.Size)
			if size == 0 {
				size = wgpu.WholeSize
			}
			bindEntries = append(bindEntries, wgpu.BindGroupEntry{
				Binding: uint32(e.Binding),
				Buffer:  buf.buf,
				Offset:  uint64(e.Offset),
				Size:    size,
			})
		case e.Kind == shader.BindingTexture || e.Kind == shader.BindingStorageTexture:
			img, ok := b.images[e.Image]
			if !ok {
				set.releaseSamplers()
				return 0, fmt.Errorf("webgpu: binding %d image %d: %w", e.Binding, e.Image, backend.ErrInvalidHandle)
			}
			view := img.view
			if e.Kind == shader.BindingStorageTexture {
				view = img.targets[0]
			}
			bindEntries = append(bindEntries, wgpu.BindGroupEntry{
				Binding:     uint32(e.Binding),
				TextureView: view,
			})
			if e.Sampler != nil && e.SamplerBinding >= 0 {
				sampler, err := b.device.CreateSampler(samplerDescriptor(fmt.Sprintf("%s sampler %d", prog.desc.Label, e.SamplerBinding), *e.Sampler))
				if err != nil {
					set.releaseSamplers()
					return 0, err
				}
				set.samplers = append(set.samplers, sampler)
				bindEntries = append(bindEntries, wgpu.BindGroupEntry{
					Binding: uint32(e.SamplerBinding),
					Sampler: sampler,
				})
			}
		default:
			set.releaseSamplers()
			return 0, fmt.Errorf("webgpu: binding %d has unsupported kind %d", e.Binding, e.Kind)
		}
	}

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s group %d", prog.desc.Label, group),
		Layout:  prog.groups[group],
		Entries: bindEntries,
	})
	if err != nil {
		set.releaseSamplers()
		return 0, err
	}
	set.bindGroup = bg

	h := b.handle()
	b.sets[h] = set
	return h, nil
}

func (o *setObject) releaseSamplers() {
	for _, s := range o.samplers {
		s.Release()
	}
	o.samplers = nil
}

func (b *webgpuBackend) BindFramebuffer(fb backend.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundFramebuffer = fb
}

func (b *webgpuBackend) SetViewport(vp common.Viewport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewport = vp
}

func (b *webgpuBackend) BindFixedState(s backend.FixedState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fixedState = s
}

func (b *webgpuBackend) BindProgram(program backend.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundProgram = program
}

func (b *webgpuBackend) BindVertexBuffer(slot int, buf backend.Handle, offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundVertex[slot] = vertexBinding{buf: buf, offset: offset}
}

func (b *webgpuBackend) BindIndexBuffer(buf backend.Handle, short bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundIndex = buf
	b.shortIndex = short
}

func (b *webgpuBackend) BindResourceSet(group int, set backend.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundSets[group] = set
}

func (b *webgpuBackend) ensureEncoder() error {
	if b.closed {
		return fmt.Errorf("webgpu: backend is closed")
	}
	if b.encoder != nil {
		return nil
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.encoder = encoder
	return nil
}

func (b *webgpuBackend) endPass() {
	if b.pass == nil {
		return
	}
	b.pass.End()
	b.pass = nil
	b.passFramebuffer = 0
}

// beginPass opens a render pass on a framebuffer, keeping the current contents of every
// attachment.
func (b *webgpuBackend) beginPass(fb backend.Handle) (*imageObject, error) {
	attachments, ok := b.framebuffers[fb]
	if !ok {
		return nil, fmt.Errorf("webgpu: framebuffer %d: %w", fb, backend.ErrInvalidHandle)
	}
	desc := &wgpu.RenderPassDescriptor{}
	var first *imageObject
	for _, a := range attachments {
		obj, ok := b.images[a]
		if !ok {
			return nil, fmt.Errorf("webgpu: framebuffer attachment %d: %w", a, backend.ErrInvalidHandle)
		}
		if first == nil {
			first = obj
		}
		if obj.desc.Format.IsDepth() {
			ds := &wgpu.RenderPassDepthStencilAttachment{
				View:         obj.targets[0],
				DepthLoadOp:  wgpu.LoadOpLoad,
				DepthStoreOp: wgpu.StoreOpStore,
			}
			if obj.desc.Format.HasStencil() {
				ds.StencilLoadOp = wgpu.LoadOpLoad
				ds.StencilStoreOp = wgpu.StoreOpStore
			}
			desc.DepthStencilAttachment = ds
			continue
		}
		desc.ColorAttachments = append(desc.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:    obj.targets[0],
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		})
	}
	b.pass = b.encoder.BeginRenderPass(desc)
	b.passFramebuffer = fb
	return first, nil
}

func (b *webgpuBackend) Draw(call backend.DrawCall) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prog, ok := b.programs[b.boundProgram]
	if !ok {
		return fmt.Errorf("webgpu: draw without a program")
	}
	if call.Instances < 1 || call.Count < 0 {
		return fmt.Errorf("webgpu: invalid draw %+v", call)
	}
	if err := b.ensureEncoder(); err != nil {
		return err
	}
	if b.pass != nil && b.passFramebuffer != b.boundFramebuffer {
		b.endPass()
	}
	var first *imageObject
	if b.pass == nil {
		var err error
		if first, err = b.beginPass(b.boundFramebuffer); err != nil {
			return err
		}
	} else {
		first = b.images[b.framebuffers[b.passFramebuffer][0]]
	}

	vp := b.viewport
	if vp.IsZero() {
		vp = common.Viewport{Width: first.desc.Width, Height: first.desc.Height}
	}
	b.pass.SetViewport(float32(vp.X), float32(vp.Y), float32(vp.Width), float32(vp.Height), 0, 1)
	b.pass.SetPipeline(prog.pipeline)
	if b.fixedState.Stencil.Test {
		b.pass.SetStencilReference(b.fixedState.Stencil.Front.Reference)
	}

	for slot := range prog.desc.VertexLayouts {
		vb, ok := b.boundVertex[slot]
		buf, found := b.buffers[vb.buf]
		if !ok || !found {
			return fmt.Errorf("webgpu: vertex slot %d is not bound", slot)
		}
		b.pass.SetVertexBuffer(uint32(slot), buf.buf, uint64(vb.offset), wgpu.WholeSize)
	}
	for g := range prog.groups {
		set, ok := b.sets[b.boundSets[g]]
		if !ok || set.group != g {
			return fmt.Errorf("webgpu: resource group %d is not bound", g)
		}
		b.pass.SetBindGroup(uint32(g), set.bindGroup, nil)
	}

	if call.Indexed {
		idx, ok := b.buffers[b.boundIndex]
		if !ok {
			return fmt.Errorf("webgpu: indexed draw without an index buffer")
		}
		b.pass.SetIndexBuffer(idx.buf, indexFormat(b.shortIndex), 0, wgpu.WholeSize)
		b.pass.DrawIndexed(uint32(call.Count), uint32(call.Instances), uint32(call.First), 0, 0)
		return nil
	}
	b.pass.Draw(uint32(call.Count), uint32(call.Instances), uint32(call.First), 0)
	return nil
}

// flushLocked ends the open pass and submits everything recorded so far.
func (b *webgpuBackend) flushLocked() error {
	if b.encoder == nil {
		return nil
	}
	b.endPass()

	commandBuffer, err := b.encoder.Finish(nil)
	b.encoder.Release()
	b.encoder = nil
	if err != nil {
		b.releaseTransient()
		return fmt.Errorf("webgpu: finish commands: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.releaseTransient()
	return nil
}

func (b *webgpuBackend) releaseTransient() {
	for _, release := range b.transient {
		release()
	}
	b.transient = b.transient[:0]
}

func (b *webgpuBackend) NewFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// a surface texture still held from an unfinished frame must not be acquired twice
	if b.frameSurface != nil {
		return fmt.Errorf("webgpu: previous frame surface not yet presented")
	}
	return b.ensureEncoder()
}

func (b *webgpuBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.flushLocked()
	if b.frameSurface != nil {
		if err == nil {
			b.surface.Present()
		}
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameView = nil
		b.frameSurface = nil
	}
	return err
}

func (b *webgpuBackend) Resize(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width <= 0 || height <= 0 {
		return
	}
	b.width, b.height = width, height
	if b.surface != nil {
		b.configureSurface()
	}
}

func (b *webgpuBackend) SurfaceSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

func (b *webgpuBackend) Release(h backend.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// objects referenced by recorded commands must outlive the submission
	if b.encoder != nil {
		_ = b.flushLocked()
	}
	if o, ok := b.buffers[h]; ok {
		o.buf.Release()
		delete(b.buffers, h)
	}
	if o, ok := b.images[h]; ok {
		o.release()
		delete(b.images, h)
	}
	delete(b.framebuffers, h)
	if o, ok := b.programs[h]; ok {
		o.release()
		delete(b.programs, h)
	}
	if o, ok := b.sets[h]; ok {
		o.release()
		delete(b.sets, h)
	}
}

func (b *webgpuBackend) Info() backend.Info {
	return b.info
}

func (b *webgpuBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if err := b.flushLocked(); err != nil {
		logger.Logger().Warn("webgpu: final submission failed", "error", err)
	}
	b.closed = true
	if b.frameSurface != nil {
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameView, b.frameSurface = nil, nil
	}
	for h, o := range b.sets {
		o.release()
		delete(b.sets, h)
	}
	for h, o := range b.programs {
		o.release()
		delete(b.programs, h)
	}
	clear(b.framebuffers)
	for h, o := range b.images {
		o.release()
		delete(b.images, h)
	}
	for h, o := range b.buffers {
		o.buf.Release()
		delete(b.buffers, h)
	}
	b.blit.release()
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	if b.surface != nil {
		b.surface.Release()
	}
	b.instance.Release()
	logger.Logger().Info("webgpu: device closed")
}

func align4(n int) int {
	return (n + 3) &^ 3
}
