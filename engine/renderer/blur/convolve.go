package blur

import (
	"errors"
	"image"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/anthonynsimon/bild/clone"
)

// ErrInvalidKernel is returned by Convolve for kernels without a center tap.
var ErrInvalidKernel = errors.New("blur: kernel length must be odd")

// pools holds one long-lived worker pool per worker count. Pool workers never exit on their
// own, so they are created once and shared by every call.
var (
	poolsMu sync.Mutex
	pools   = map[int]worker.DynamicWorkerPool{}
)

// sharedPool returns the pool with n workers, creating it on first use.
func sharedPool(n int) worker.DynamicWorkerPool {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	p, ok := pools[n]
	if !ok {
		p = worker.NewDynamicWorkerPool(n, 256, time.Second)
		pools[n] = p
	}
	return p
}

// Convolve applies kernel horizontally then vertically to src on the CPU, extending the
// edge pixels outward. Rows of each pass are filtered in parallel.
//
// Parameters:
//   - src: the image to filter
//   - kernel: an odd-length 1-D kernel, normally from Kernel
//   - workers: the number of worker goroutines; values below 1 use one per CPU
//
// Returns:
//   - *image.RGBA: the filtered image, with the bounds of src moved to the origin
//   - error: ErrInvalidKernel for an empty or even-length kernel
func Convolve(src image.Image, kernel []float64, workers int) (*image.RGBA, error) {
	if len(kernel)%2 == 0 {
		return nil, ErrInvalidKernel
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	r := len(kernel) / 2
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	padded := clone.Pad(src, r, r, clone.EdgeExtend)
	pw := padded.Bounds().Dx()
	ph := h + 2*r

	// horizontal[y][x] covers every padded row so the vertical pass can read past the edges
	horizontal := make([]float64, ph*w*4)
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	pool := sharedPool(workers)
	run := func(rows int, do func(y int)) {
		var wg sync.WaitGroup
		for y := range rows {
			wg.Add(1)
			pool.SubmitTask(worker.Task{
				ID: y,
				Do: func() (any, error) {
					defer wg.Done()
					do(y)
					return nil, nil
				},
			})
		}
		wg.Wait()
	}

	run(ph, func(y int) {
		row := padded.Pix[y*padded.Stride : y*padded.Stride+pw*4]
		for x := range w {
			var acc [4]float64
			for k, c := range kernel {
				p := (x + k) * 4
				for ch := range 4 {
					acc[ch] += c * float64(row[p+ch])
				}
			}
			copy(horizontal[(y*w+x)*4:], acc[:])
		}
	})

	run(h, func(y int) {
		for x := range w {
			var acc [4]float64
			for k, c := range kernel {
				p := ((y+k)*w + x) * 4
				for ch := range 4 {
					acc[ch] += c * horizontal[p+ch]
				}
			}
			o := y*out.Stride + x*4
			for ch := range 4 {
				out.Pix[o+ch] = uint8(math.Round(min(255, max(0, acc[ch]))))
			}
		}
	})
	return out, nil
}
