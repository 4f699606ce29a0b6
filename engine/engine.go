// Package engine drives the frame loop: it owns the window, calls the render callback once per
// displayed frame between the Context's NewFrame and EndFrame, and runs an optional fixed-rate
// tick loop for logic updates.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-zen/engine/logger"
	"github.com/Carmen-Shannon/oxy-zen/engine/profiler"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer"
	"github.com/Carmen-Shannon/oxy-zen/engine/window"
)

// ErrNoContext is returned when frames are requested from an engine without a renderer Context.
var ErrNoContext = errors.New("engine: no renderer context")

// Frame is the read-only input of one render callback.
type Frame struct {
	// Index counts frames from 0.
	Index uint64
	// Time is the seconds elapsed since the engine started.
	Time float64
	// Delta is the seconds elapsed since the previous frame.
	Delta float32
	// Width and Height are the drawable size in pixels.
	Width  int
	Height int
}

// Aspect returns Width / Height, or 1 for an empty drawable.
func (f Frame) Aspect() float32 {
	if f.Width <= 0 || f.Height <= 0 {
		return 1
	}
	return float32(f.Width) / float32(f.Height)
}

// engine implements the Engine interface.
type engine struct {
	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window window.Window
	ctx    renderer.Context

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(frame Frame)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	start      time.Time
	lastRender time.Time
	frames     uint64
	frameErr   error
}

// Engine is the frame driver. It is created with a window, a renderer Context or both; Run needs
// a window, RunFrames only a Context.
type Engine interface {
	// Window returns the window, or nil for an offscreen engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Context returns the renderer Context frames are drawn with.
	//
	// Returns:
	//   - renderer.Context: the context, or nil when none was set
	Context() renderer.Context

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each tick on the tick goroutine. It must not
	// touch the renderer Context.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called once per frame. All Resource and Pipeline
	// calls of a frame happen inside it.
	//
	// Parameters:
	//   - callback: function receiving the frame's timing and drawable size
	SetRenderCallback(callback func(frame Frame))

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run drives frames from the window's message loop and blocks until the window closes or
	// Quit is called.
	//
	// Returns:
	//   - error: the first frame error, which also stops the loop
	Run() error

	// RunFrames renders n frames synchronously without a message loop.
	//
	// Parameters:
	//   - n: the number of frames
	//
	// Returns:
	//   - error: the first frame error
	RunFrames(n int) error

	// Quit stops the loops. Safe to call multiple times.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
		start:           time.Now(),
	}
	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if e.ctx != nil {
				e.ctx.Resize(width, height)
			}
		})
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Context() renderer.Context {
	return e.ctx
}

func (e *engine) Run() error {
	if e.window == nil {
		return fmt.Errorf("engine: Run needs a window")
	}
	if e.ctx == nil {
		return ErrNoContext
	}
	e.running = true
	e.wg.Add(1)
	go e.handleEngine()

	// frames run on the window's thread, which owns the surface
	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			_ = e.window.Close()
			return
		default:
		}
		if err := e.frame(); err != nil {
			e.frameErr = err
			logger.Logger().Warn("engine: frame failed", "frame", e.frames, "error", err)
			e.signalQuit()
		}
	})
	e.window.ProcessMessages()

	e.signalQuit()
	e.wg.Wait()
	return e.frameErr
}

func (e *engine) RunFrames(n int) error {
	if e.ctx == nil {
		return ErrNoContext
	}
	for range n {
		if err := e.frame(); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all loops to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// frame renders one frame: NewFrame, the render callback, EndFrame. A panic in the callback is
// recovered into an error so the frame is still ended.
func (e *engine) frame() (err error) {
	now := time.Now()
	if e.lastRender.IsZero() {
		e.lastRender = now
	}
	f := Frame{
		Index: e.frames,
		Time:  now.Sub(e.start).Seconds(),
		Delta: float32(now.Sub(e.lastRender).Seconds()),
	}
	if e.window != nil {
		f.Time = e.window.Time()
		f.Width, f.Height = e.window.Size()
	} else {
		f.Width, f.Height = e.ctx.SurfaceSize()
	}
	e.lastRender = now

	if err := e.ctx.NewFrame(); err != nil {
		return fmt.Errorf("engine: begin frame %d: %w", f.Index, err)
	}
	if e.renderCallback != nil {
		if err := e.callRender(f); err != nil {
			_ = e.ctx.EndFrame()
			return err
		}
	}
	if err := e.ctx.EndFrame(); err != nil {
		return fmt.Errorf("engine: end frame %d: %w", f.Index, err)
	}
	e.frames++

	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick()
	}
	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
			time.Sleep(remaining)
		}
	}
	return nil
}

func (e *engine) callRender(f Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Logger().Warn("engine: render callback recovered from panic", "frame", f.Index, "panic", r)
			err = fmt.Errorf("engine: render callback panicked in frame %d: %v", f.Index, r)
		}
	}()
	e.renderCallback(f)
	return nil
}

// handleEngine runs the fixed-rate tick loop until the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) SetTickRate(fps float64) {
	newRate := tickInterval(fps)
	if !e.running {
		e.engineTickRate = newRate
		return
	}
	// replace a pending update instead of blocking
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(frame Frame)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameInterval(fps)
}

func tickInterval(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}

func frameInterval(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
