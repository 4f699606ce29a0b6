package descriptor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
)

// Slot is one vertex buffer slot of a resolved pipeline.
type Slot struct {
	Buffer resource.Buffer
	Offset int
	Layout backend.VertexLayout
}

// Resolved is a validated descriptor with every default applied.
type Resolved struct {
	Label          string
	VertexShader   string
	FragmentShader string

	Layout []LayoutEntry
	// Resources are sorted by group then binding; buffer sizes are resolved.
	Resources []Resource

	State       backend.FixedState
	Slots       []Slot
	IndexBuffer resource.Buffer

	Framebuffer  []resource.Image
	ColorFormats []format.ImageFormat
	DepthFormat  *format.ImageFormat
	Samples      int
	Width        int
	Height       int

	VertexCount   int
	InstanceCount int
	FirstVertex   int
	Viewport      common.Viewport
}

// Validate checks d without creating anything on the GPU. Identical descriptors always give
// the same result.
//
// Parameters:
//   - d: the descriptor to check
//
// Returns:
//   - error: the first violation found, see Resolve
func Validate(d PipelineDescriptor) error {
	_, err := Resolve(d)
	return err
}

// Resolve validates d and returns its normalized form.
//
// Parameters:
//   - d: the descriptor to resolve
//
// Returns:
//   - *Resolved: the normalized descriptor
//   - error: *FramebufferMismatchError, *UnsupportedOptionError, *BindingMismatchError,
//     *FeedbackHazardError, *FormatParseError or *VertexCountError
func Resolve(d PipelineDescriptor) (*Resolved, error) {
	r := &Resolved{
		Label:          d.Label,
		VertexShader:   d.VertexShader,
		FragmentShader: d.FragmentShader,
		Layout:         append([]LayoutEntry(nil), d.Layout...),
		Framebuffer:    append([]resource.Image(nil), d.Framebuffer...),
		IndexBuffer:    d.IndexBuffer,
		FirstVertex:    d.FirstVertex,
	}

	if err := r.resolveFramebuffer(); err != nil {
		return nil, err
	}
	if err := r.resolveState(d); err != nil {
		return nil, err
	}
	if err := r.resolveResources(d); err != nil {
		return nil, err
	}
	if err := r.resolveVertices(d); err != nil {
		return nil, err
	}
	if err := r.resolveDraw(d); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolved) resolveFramebuffer() error {
	if len(r.Framebuffer) == 0 {
		return &FramebufferMismatchError{Reason: "no attachments"}
	}
	for i, img := range r.Framebuffer {
		switch {
		case img == nil:
			return &FramebufferMismatchError{Reason: fmt.Sprintf("attachment %d is nil", i)}
		case img.Released():
			return fmt.Errorf("descriptor: attachment %d: %w", i, resource.ErrReleased)
		case img.IsArray() || img.IsCubemap():
			return &FramebufferMismatchError{Reason: fmt.Sprintf("attachment %d is an array or cubemap image", i)}
		}
		if i == 0 {
			r.Width, r.Height, r.Samples = img.Width(), img.Height(), img.Samples()
		} else if img.Width() != r.Width || img.Height() != r.Height {
			return &FramebufferMismatchError{Reason: fmt.Sprintf("attachment %d is %dx%d, expected %dx%d", i, img.Width(), img.Height(), r.Width, r.Height)}
		} else if img.Samples() != r.Samples {
			return &FramebufferMismatchError{Reason: fmt.Sprintf("attachment %d has %d samples, expected %d", i, img.Samples(), r.Samples)}
		}

		f := img.Format()
		if r.DepthFormat != nil {
			return &FramebufferMismatchError{Reason: fmt.Sprintf("attachment %d follows the depth attachment", i)}
		}
		if f.IsDepth() {
			r.DepthFormat = &f
		} else {
			r.ColorFormats = append(r.ColorFormats, f)
		}
	}
	return nil
}

func (r *Resolved) resolveState(d PipelineDescriptor) error {
	s := backend.FixedState{
		Topology:      common.Coalesce(d.Topology, common.TopologyTriangles),
		CullFace:      common.Coalesce(d.CullFace, common.CullNone),
		FrontFace:     common.Coalesce(d.FrontFace, common.FrontFaceCCW),
		PolygonOffset: d.PolygonOffset,
		ColorMask:     common.ColorMaskAll,
	}
	if !s.Topology.Valid() {
		return &UnsupportedOptionError{Option: "topology", Value: string(s.Topology)}
	}
	if !s.CullFace.Valid() {
		return &UnsupportedOptionError{Option: "cull_face", Value: string(s.CullFace)}
	}
	if !s.FrontFace.Valid() {
		return &UnsupportedOptionError{Option: "front_face", Value: string(s.FrontFace)}
	}
	if d.ColorMask != nil {
		if *d.ColorMask&^common.ColorMaskAll != 0 {
			return &UnsupportedOptionError{Option: "color_mask", Value: fmt.Sprintf("%#x", uint8(*d.ColorMask))}
		}
		s.ColorMask = *d.ColorMask
	}
	if d.IndexBuffer != nil {
		s.ShortIndex = d.ShortIndex
		s.PrimitiveRestart = d.PrimitiveRestart == nil || *d.PrimitiveRestart
	}

	if d.Blending != nil {
		if err := checkBlend(*d.Blending); err != nil {
			return err
		}
	}
	if d.Blending != nil && d.Blending.Enable {
		b := *d.Blending
		b.SrcColor = common.Coalesce(b.SrcColor, common.BlendOne)
		b.DstColor = common.Coalesce(b.DstColor, common.BlendZero)
		b.SrcAlpha = common.Coalesce(b.SrcAlpha, b.SrcColor)
		b.DstAlpha = common.Coalesce(b.DstAlpha, b.DstColor)
		b.OpColor = common.Coalesce(b.OpColor, common.BlendOpAdd)
		b.OpAlpha = common.Coalesce(b.OpAlpha, common.BlendOpAdd)
		for _, f := range []common.BlendFactor{b.SrcColor, b.DstColor, b.SrcAlpha, b.DstAlpha} {
			if !f.Valid() {
				return &UnsupportedOptionError{Option: "blend factor", Value: string(f)}
			}
		}
		for _, op := range []common.BlendOp{b.OpColor, b.OpAlpha} {
			if !op.Valid() {
				return &UnsupportedOptionError{Option: "blend operation", Value: string(op)}
			}
		}
		s.Blend = b
	}

	hasDepth := r.DepthFormat != nil
	switch {
	case d.Depth == nil && hasDepth:
		s.Depth = common.DepthState{Test: true, Write: true, Func: common.CompareLess}
	case d.Depth != nil:
		s.Depth = *d.Depth
		s.Depth.Func = common.Coalesce(s.Depth.Func, common.CompareLess)
		if !s.Depth.Func.Valid() {
			return &UnsupportedOptionError{Option: "depth function", Value: string(s.Depth.Func)}
		}
		if (s.Depth.Test || s.Depth.Write) && !hasDepth {
			return &FramebufferMismatchError{Reason: "depth test without a depth attachment"}
		}
	}

	if d.Stencil != nil && !d.Stencil.Test {
		for _, face := range []common.StencilFace{d.Stencil.Front, d.Stencil.Back} {
			if err := checkStencilFace(face); err != nil {
				return err
			}
		}
	}
	if d.Stencil != nil && d.Stencil.Test {
		if !hasDepth || !r.DepthFormat.HasStencil() {
			return &FramebufferMismatchError{Reason: "stencil test without a stencil attachment"}
		}
		st := *d.Stencil
		for _, face := range []*common.StencilFace{&st.Front, &st.Back} {
			if err := resolveStencilFace(face); err != nil {
				return err
			}
		}
		s.Stencil = st
	}

	r.State = s
	return nil
}

// checkBlend rejects unrecognized factors and operations whether or not blending is enabled.
func checkBlend(b common.BlendState) error {
	for _, f := range []common.BlendFactor{b.SrcColor, b.DstColor, b.SrcAlpha, b.DstAlpha} {
		if f != "" && !f.Valid() {
			return &UnsupportedOptionError{Option: "blend factor", Value: string(f)}
		}
	}
	for _, op := range []common.BlendOp{b.OpColor, b.OpAlpha} {
		if op != "" && !op.Valid() {
			return &UnsupportedOptionError{Option: "blend operation", Value: string(op)}
		}
	}
	return nil
}

// checkStencilFace rejects unrecognized values of a face whose test is disabled.
func checkStencilFace(f common.StencilFace) error {
	for _, op := range []common.StencilOp{f.FailOp, f.PassOp, f.DepthFailOp} {
		if op != "" && !op.Valid() {
			return &UnsupportedOptionError{Option: "stencil operation", Value: string(op)}
		}
	}
	if f.Compare != "" && !f.Compare.Valid() {
		return &UnsupportedOptionError{Option: "stencil function", Value: string(f.Compare)}
	}
	return nil
}

// resolveStencilFace applies keep/always defaults; zero masks select 0xff.
func resolveStencilFace(f *common.StencilFace) error {
	f.FailOp = common.Coalesce(f.FailOp, common.StencilKeep)
	f.PassOp = common.Coalesce(f.PassOp, common.StencilKeep)
	f.DepthFailOp = common.Coalesce(f.DepthFailOp, common.StencilKeep)
	f.Compare = common.Coalesce(f.Compare, common.CompareAlways)
	f.CompareMask = common.Coalesce(f.CompareMask, 0xff)
	f.WriteMask = common.Coalesce(f.WriteMask, 0xff)
	for _, op := range []common.StencilOp{f.FailOp, f.PassOp, f.DepthFailOp} {
		if !op.Valid() {
			return &UnsupportedOptionError{Option: "stencil operation", Value: string(op)}
		}
	}
	if !f.Compare.Valid() {
		return &UnsupportedOptionError{Option: "stencil function", Value: string(f.Compare)}
	}
	return nil
}

type slotKey struct{ group, binding int }

func (r *Resolved) resolveResources(d PipelineDescriptor) error {
	layout := make(map[slotKey]bool, len(d.Layout))
	for _, e := range d.Layout {
		k := slotKey{e.Group, e.Binding}
		if layout[k] {
			return &BindingMismatchError{Group: e.Group, Binding: e.Binding, Reason: fmt.Sprintf("duplicate layout entry %q", e.Name)}
		}
		layout[k] = true
	}

	bound := make(map[slotKey]bool, len(d.Resources))
	for _, res := range d.Resources {
		k := slotKey{res.Group, res.Binding}
		if bound[k] {
			return &BindingMismatchError{Group: res.Group, Binding: res.Binding, Reason: "duplicate resource"}
		}
		bound[k] = true
		if !layout[k] {
			return &BindingMismatchError{Group: res.Group, Binding: res.Binding, Reason: "resource without a layout entry"}
		}
	}
	for _, e := range d.Layout {
		if !bound[slotKey{e.Group, e.Binding}] {
			return &BindingMismatchError{Group: e.Group, Binding: e.Binding, Reason: fmt.Sprintf("layout entry %q has no resource", e.Name)}
		}
	}

	r.Resources = make([]Resource, 0, len(d.Resources))
	for _, res := range d.Resources {
		if !res.Type.Valid() {
			return &UnsupportedOptionError{Option: "resource type", Value: string(res.Type)}
		}
		var err error
		if res.Type == ResourceSampler {
			err = r.resolveSampler(&res)
		} else {
			err = resolveBufferRange(&res)
		}
		if err != nil {
			return err
		}
		r.Resources = append(r.Resources, res)
	}
	sort.SliceStable(r.Resources, func(i, j int) bool {
		if r.Resources[i].Group != r.Resources[j].Group {
			return r.Resources[i].Group < r.Resources[j].Group
		}
		return r.Resources[i].Binding < r.Resources[j].Binding
	})
	return nil
}

func resolveBufferRange(res *Resource) error {
	mismatch := func(reason string) error {
		return &BindingMismatchError{Group: res.Group, Binding: res.Binding, Reason: reason}
	}
	if res.Buffer == nil {
		return mismatch(string(res.Type) + " without a buffer")
	}
	if res.Buffer.Released() {
		return fmt.Errorf("descriptor: @group(%d) @binding(%d): %w", res.Group, res.Binding, resource.ErrReleased)
	}
	if res.Type == ResourceStorageBuffer && res.Buffer.Usage()&resource.UsageStorage == 0 {
		return mismatch("storage_buffer bound to a buffer without storage usage")
	}
	size := res.Buffer.Size()
	if res.Size == 0 {
		res.Size = size - res.Offset
	}
	if res.Offset < 0 || res.Size <= 0 || res.Offset+res.Size > size {
		return mismatch(fmt.Sprintf("range %d+%d outside buffer of %d bytes", res.Offset, res.Size, size))
	}
	return nil
}

func (r *Resolved) resolveSampler(res *Resource) error {
	if res.Image == nil {
		return &BindingMismatchError{Group: res.Group, Binding: res.Binding, Reason: "sampler without an image"}
	}
	if res.Image.Released() {
		return fmt.Errorf("descriptor: @group(%d) @binding(%d): %w", res.Group, res.Binding, resource.ErrReleased)
	}
	if !res.Image.IsTexture() {
		return &BindingMismatchError{Group: res.Group, Binding: res.Binding, Reason: "sampled image is not a texture"}
	}
	for _, att := range r.Framebuffer {
		if att.Handle() == res.Image.Handle() {
			return &FeedbackHazardError{Group: res.Group, Binding: res.Binding}
		}
	}

	s := res.Sampler.WithDefaults()
	for _, f := range []common.FilterMode{s.MinFilter, s.MagFilter, s.MipmapFilter} {
		if !f.Valid() {
			return &UnsupportedOptionError{Option: "sampler filter", Value: string(f)}
		}
	}
	for _, a := range []common.AddressMode{s.WrapX, s.WrapY, s.WrapZ} {
		if !a.Valid() {
			return &UnsupportedOptionError{Option: "sampler wrap", Value: string(a)}
		}
	}
	if s.Compare != "" && !s.Compare.Valid() {
		return &UnsupportedOptionError{Option: "sampler compare", Value: string(s.Compare)}
	}
	res.Sampler = s
	return nil
}

func (r *Resolved) resolveVertices(d PipelineDescriptor) error {
	locations := map[int]bool{}
	for _, vb := range d.VertexBuffers {
		parsed, err := format.ParseVertexLayout(vb.Layout)
		if err != nil {
			return &FormatParseError{Layout: vb.Layout, Err: err}
		}
		if vb.Buffer == nil {
			return &FormatParseError{Layout: vb.Layout, Reason: "no buffer"}
		}
		if vb.Buffer.Released() {
			return fmt.Errorf("descriptor: vertex buffer %q: %w", vb.Layout, resource.ErrReleased)
		}
		if len(vb.Locations) != len(parsed.Attributes) {
			return &FormatParseError{Layout: vb.Layout, Reason: fmt.Sprintf("%d attributes but %d locations", len(parsed.Attributes), len(vb.Locations))}
		}
		if vb.Offset < 0 || vb.Offset >= vb.Buffer.Size() {
			return &FormatParseError{Layout: vb.Layout, Reason: fmt.Sprintf("offset %d outside buffer of %d bytes", vb.Offset, vb.Buffer.Size())}
		}

		slot := Slot{Buffer: vb.Buffer, Offset: vb.Offset, Layout: backend.VertexLayout{Stride: parsed.Stride, PerInstance: parsed.PerInstance}}
		for i, attr := range parsed.Attributes {
			loc := vb.Locations[i]
			if loc < 0 {
				continue
			}
			if locations[loc] {
				return &FormatParseError{Layout: vb.Layout, Reason: fmt.Sprintf("location %d is bound twice", loc)}
			}
			locations[loc] = true
			slot.Layout.Attributes = append(slot.Layout.Attributes, backend.VertexAttribute{Location: loc, Format: attr.Format, Offset: attr.Offset})
		}
		if len(slot.Layout.Attributes) > 0 {
			r.Slots = append(r.Slots, slot)
		}
	}
	return nil
}

func (r *Resolved) resolveDraw(d PipelineDescriptor) error {
	if d.IndexBuffer != nil {
		if d.IndexBuffer.Released() {
			return fmt.Errorf("descriptor: index buffer: %w", resource.ErrReleased)
		}
		if d.IndexBuffer.Usage()&resource.UsageIndex == 0 {
			return &UnsupportedOptionError{Option: "index_buffer", Value: "buffer without index usage"}
		}
	}

	switch {
	case d.VertexCount < 0:
		return &VertexCountError{Reason: fmt.Sprintf("negative count %d", d.VertexCount)}
	case d.VertexCount > 0:
		r.VertexCount = d.VertexCount
	default:
		n, err := r.inferVertexCount(d)
		if err != nil {
			return err
		}
		r.VertexCount = n
	}

	r.InstanceCount = d.InstanceCount
	if r.InstanceCount == 0 {
		r.InstanceCount = 1
	}
	if r.InstanceCount < 0 {
		return &UnsupportedOptionError{Option: "instance_count", Value: fmt.Sprint(d.InstanceCount)}
	}
	if r.FirstVertex < 0 {
		return &UnsupportedOptionError{Option: "first_vertex", Value: fmt.Sprint(d.FirstVertex)}
	}
	if d.LineWidth != 0 && d.LineWidth != 1 {
		return &UnsupportedOptionError{Option: "line_width", Value: fmt.Sprint(d.LineWidth)}
	}

	r.Viewport = d.Viewport
	if r.Viewport.IsZero() {
		r.Viewport = common.Viewport{Width: r.Width, Height: r.Height}
	}
	if !r.Viewport.Within(r.Width, r.Height) {
		return &UnsupportedOptionError{Option: "viewport", Value: fmt.Sprintf("%+v", r.Viewport)}
	}
	return nil
}

func (r *Resolved) inferVertexCount(d PipelineDescriptor) (int, error) {
	if d.IndexBuffer != nil {
		size := 4
		if d.ShortIndex {
			size = 2
		}
		if d.IndexBuffer.Size()%size != 0 {
			return 0, &VertexCountError{Reason: fmt.Sprintf("index buffer of %d bytes is not a multiple of %d", d.IndexBuffer.Size(), size)}
		}
		return d.IndexBuffer.Size() / size, nil
	}

	count := -1
	for _, s := range r.Slots {
		if s.Layout.PerInstance {
			continue
		}
		avail := s.Buffer.Size() - s.Offset
		if avail%s.Layout.Stride != 0 {
			return 0, &VertexCountError{Reason: fmt.Sprintf("%d bytes is not a multiple of the stride %d", avail, s.Layout.Stride)}
		}
		n := avail / s.Layout.Stride
		if count >= 0 && n != count {
			return 0, &VertexCountError{Reason: fmt.Sprintf("vertex buffers hold %d and %d vertices", count, n)}
		}
		count = n
	}
	if count < 0 {
		return 0, &VertexCountError{Reason: "no vertex_count and no per-vertex buffer to infer it from"}
	}
	return count, nil
}

// CheckReflection matches the resolved bindings and vertex attributes against the
// declarations of the expanded shaders.
//
// Every layout entry must be declared by the shaders and every declaration must have a
// resource, except a sampler declared at the binding after a sampled image. Uniform and
// storage ranges must not be smaller than the declared type. Every vertex input location
// needs an attribute.
//
// Parameters:
//   - r: the resolved descriptor
//   - bindings: the merged bindings of both stages
//   - inputs: the vertex entry point inputs
//
// Returns:
//   - error: *BindingMismatchError or *FormatParseError
func CheckReflection(r *Resolved, bindings []shader.Binding, inputs []shader.VertexInput) error {
	for _, e := range r.Layout {
		if _, ok := shader.FindBinding(bindings, e.Group, e.Binding); !ok {
			return &BindingMismatchError{Group: e.Group, Binding: e.Binding, Reason: fmt.Sprintf("layout entry %q is not declared by the shaders", e.Name)}
		}
	}

	covered := map[slotKey]bool{}
	for _, res := range r.Resources {
		decl, _ := shader.FindBinding(bindings, res.Group, res.Binding)
		covered[slotKey{res.Group, res.Binding}] = true
		mismatch := func(reason string) error {
			return &BindingMismatchError{Group: res.Group, Binding: res.Binding, Reason: reason}
		}

		switch res.Type {
		case ResourceUniformBuffer:
			if decl.Kind != shader.BindingUniform {
				return mismatch(fmt.Sprintf("uniform_buffer bound to %q", decl.Type))
			}
		case ResourceStorageBuffer:
			if decl.Kind != shader.BindingStorage && decl.Kind != shader.BindingReadOnlyStorage {
				return mismatch(fmt.Sprintf("storage_buffer bound to %q", decl.Type))
			}
		case ResourceSampler:
			if decl.Kind != shader.BindingTexture {
				return mismatch(fmt.Sprintf("sampler bound to %q", decl.Type))
			}
			if s, ok := shader.FindBinding(bindings, res.Group, res.Binding+1); ok && s.Kind.IsSampler() {
				covered[slotKey{res.Group, res.Binding + 1}] = true
			}
			continue
		}
		if decl.Size > 0 && uint64(res.Size) < decl.Size {
			return mismatch(fmt.Sprintf("%d byte range is smaller than %q (%d bytes)", res.Size, decl.Type, decl.Size))
		}
	}
	for _, decl := range bindings {
		if !covered[slotKey{decl.Group, decl.Binding}] {
			return &BindingMismatchError{Group: decl.Group, Binding: decl.Binding, Reason: fmt.Sprintf("%q is declared by the shaders but has no resource", decl.Name)}
		}
	}

	provided := map[int]bool{}
	for _, s := range r.Slots {
		for _, a := range s.Layout.Attributes {
			provided[a.Location] = true
		}
	}
	for _, in := range inputs {
		if !provided[in.Location] {
			return &FormatParseError{Reason: fmt.Sprintf("shader input @location(%d) has no vertex attribute", in.Location)}
		}
	}
	return nil
}

// IsValidationError reports whether err was produced by descriptor validation.
func IsValidationError(err error) bool {
	var (
		bm *BindingMismatchError
		fp *FormatParseError
		fm *FramebufferMismatchError
		uo *UnsupportedOptionError
		fh *FeedbackHazardError
		vc *VertexCountError
	)
	return errors.As(err, &bm) || errors.As(err, &fp) || errors.As(err, &fm) ||
		errors.As(err, &uo) || errors.As(err, &fh) || errors.As(err, &vc)
}
