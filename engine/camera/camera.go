package camera

import (
	"sync"
)

type cameraImpl struct {
	mu *sync.Mutex

	projection Projection
	controller CameraController

	position [3]float32
	matrix   [16]float32
}

// Camera keeps a Projection and follows a CameraController, recomputing its view-projection
// matrix once per frame via Update.
type Camera interface {
	// Projection returns the current lens settings.
	//
	// Returns:
	//   - Projection: the projection
	Projection() Projection

	// SetProjection applies options over the current projection and recomputes the matrix.
	//
	// Parameters:
	//   - opts: variadic list of Option functions
	SetProjection(opts ...Option)

	// SetAspect sets the aspect ratio (width / height) and recomputes the matrix.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// Matrix returns the combined view-projection matrix (column-major).
	//
	// Returns:
	//   - [16]float32: the matrix
	Matrix() [16]float32

	// Position returns the eye position used for the last matrix.
	//
	// Returns:
	//   - x, y, z: the eye position
	Position() (x, y, z float32)

	// Uniform returns the GPU layout of the camera for a uniform buffer.
	//
	// Returns:
	//   - GPUCameraUniform: the matrix and eye position
	Uniform() GPUCameraUniform

	// Controller returns the attached CameraController.
	//
	// Returns:
	//   - CameraController: the controller
	Controller() CameraController

	// SetController attaches a CameraController and recomputes the matrix from it.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)

	// Update reads position and target from the controller and recomputes the matrix.
	// Should be called once per frame, typically in the render callback.
	Update()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera following ctrl.
//
// Parameters:
//   - ctrl: the controller providing position and target
//   - options: variadic list of Option functions applied over DefaultProjection
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(ctrl CameraController, options ...Option) Camera {
	c := &cameraImpl{
		mu:         &sync.Mutex{},
		projection: DefaultProjection(),
		controller: ctrl,
	}
	for _, option := range options {
		option(&c.projection)
	}
	c.updateMatrix()
	return c
}

func (c *cameraImpl) Projection() Projection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) SetProjection(opts ...Option) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, opt := range opts {
		opt(&c.projection)
	}
	c.updateMatrix()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.SetProjection(WithAspect(aspect))
}

func (c *cameraImpl) Matrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matrix
}

func (c *cameraImpl) Position() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position[0], c.position[1], c.position[2]
}

func (c *cameraImpl) Uniform() GPUCameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GPUCameraUniform{ViewProj: c.matrix, CameraPosition: c.position}
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrix()
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrix()
}

// updateMatrix is a no-op without a controller. Caller must hold the mutex.
func (c *cameraImpl) updateMatrix() {
	if c.controller == nil {
		return
	}
	px, py, pz := c.controller.Position()
	tx, ty, tz := c.controller.Target()
	c.position = [3]float32{px, py, pz}
	c.matrix = c.projection.Matrix(c.position, [3]float32{tx, ty, tz})
}
