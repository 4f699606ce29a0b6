package headless

import (
	"fmt"
	"image"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
	"golang.org/x/image/draw"
)

func blittable(f format.ImageFormat) bool {
	return f.Kind == format.KindColor && f.Components == 4 && f.Scalar == format.ScalarUnorm8
}

// regionRGBA copies a rectangle of an 8-bit four component image into an RGBA image.
func regionRGBA(obj *imageObject, rect common.Viewport) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, rect.Width, rect.Height))
	src := obj.levels[0][0]
	for y := 0; y < rect.Height; y++ {
		for x := 0; x < rect.Width; x++ {
			s := ((rect.Y+y)*obj.desc.Width + rect.X + x) * 4
			d := out.PixOffset(x, y)
			copy(out.Pix[d:d+4], src[s:s+4])
			if obj.desc.Format.BGR {
				out.Pix[d], out.Pix[d+2] = out.Pix[d+2], out.Pix[d]
			}
		}
	}
	return out
}

func (b *headlessBackend) BlitImage(desc backend.BlitDesc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, ok := b.images[desc.Source]
	if !ok {
		return fmt.Errorf("headless: blit source %d: %w", desc.Source, backend.ErrInvalidHandle)
	}
	if !blittable(src.desc.Format) {
		return fmt.Errorf("headless: blit from %s: %w", src.desc.Format.Name, backend.ErrUnsupported)
	}
	if !desc.SourceViewport.Within(src.desc.Width, src.desc.Height) {
		return fmt.Errorf("headless: blit source viewport %+v out of range", desc.SourceViewport)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, desc.TargetViewport.Width, desc.TargetViewport.Height))
	var scaler draw.Scaler = draw.BiLinear
	if desc.Filter == common.FilterNearest {
		scaler = draw.NearestNeighbor
	}
	scaler.Scale(scaled, scaled.Bounds(), regionRGBA(src, desc.SourceViewport), image.Rect(0, 0, desc.SourceViewport.Width, desc.SourceViewport.Height), draw.Src, nil)

	tv := desc.TargetViewport
	if desc.Target == 0 {
		if !tv.Within(b.surface.Rect.Dx(), b.surface.Rect.Dy()) {
			return fmt.Errorf("headless: blit target viewport %+v out of range", tv)
		}
		draw.Draw(b.surface, image.Rect(tv.X, tv.Y, tv.X+tv.Width, tv.Y+tv.Height), scaled, image.Point{}, draw.Src)
		b.surfaceDirty = true
		b.record(Command{Kind: CmdBlit, Blit: desc})
		return nil
	}

	dst, ok := b.images[desc.Target]
	if !ok {
		return fmt.Errorf("headless: blit target %d: %w", desc.Target, backend.ErrInvalidHandle)
	}
	if !blittable(dst.desc.Format) {
		return fmt.Errorf("headless: blit to %s: %w", dst.desc.Format.Name, backend.ErrUnsupported)
	}
	if !tv.Within(dst.desc.Width, dst.desc.Height) {
		return fmt.Errorf("headless: blit target viewport %+v out of range", tv)
	}
	pix := dst.levels[0][0]
	for y := 0; y < tv.Height; y++ {
		for x := 0; x < tv.Width; x++ {
			s := scaled.PixOffset(x, y)
			d := ((tv.Y+y)*dst.desc.Width + tv.X + x) * 4
			copy(pix[d:d+4], scaled.Pix[s:s+4])
			if dst.desc.Format.BGR {
				pix[d], pix[d+2] = pix[d+2], pix[d]
			}
		}
	}
	b.record(Command{Kind: CmdBlit, Blit: desc})
	return nil
}
