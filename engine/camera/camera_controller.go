package camera

import (
	"sync"

	"github.com/chewxy/math32"
)

// CameraController provides the eye position and look-at target of a Camera.
type CameraController interface {
	// Position returns the eye position.
	//
	// Returns:
	//   - x, y, z: the position
	Position() (x, y, z float32)

	// Target returns the point the camera looks at.
	//
	// Returns:
	//   - x, y, z: the target
	Target() (x, y, z float32)

	// SetTarget moves the orbit center, keeping radius and angles.
	//
	// Parameters:
	//   - x, y, z: the new target
	SetTarget(x, y, z float32)

	// Orbit rotates the eye around the target.
	//
	// Parameters:
	//   - azimuth: radians added around the up (+Z) axis
	//   - elevation: radians added above the XY plane, clamped to the elevation bounds
	Orbit(azimuth, elevation float32)

	// Zoom moves the eye toward the target by delta times the zoom speed, clamped to the
	// radius bounds.
	//
	// Parameters:
	//   - delta: positive values move closer
	Zoom(delta float32)

	// Radius returns the distance between eye and target.
	Radius() float32

	// SetRadius sets the distance between eye and target, clamped to the radius bounds.
	SetRadius(radius float32)

	// Azimuth returns the angle around the up axis in radians.
	Azimuth() float32

	// SetAzimuth sets the angle around the up axis in radians.
	SetAzimuth(azimuth float32)

	// Elevation returns the angle above the XY plane in radians.
	Elevation() float32

	// SetElevation sets the angle above the XY plane, clamped to the elevation bounds.
	SetElevation(elevation float32)
}

// orbitController orbits a target on a sphere around the +Z up axis.
type orbitController struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32

	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	zoomSpeed float32
}

var _ CameraController = &orbitController{}

// NewOrbitController creates a controller 5 units from the origin, 30 degrees above the XY plane.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewOrbitController(options ...CameraControllerOption) CameraController {
	cc := &orbitController{
		mu:           &sync.Mutex{},
		radius:       5,
		elevation:    math32.Pi / 6,
		minRadius:    0.01,
		maxRadius:    10000,
		minElevation: -math32.Pi/2 + 0.01,
		maxElevation: math32.Pi/2 - 0.01,
		zoomSpeed:    1,
	}
	for _, option := range options {
		option(cc)
	}
	cc.clamp()
	cc.updatePosition()
	return cc
}

// clamp keeps radius and elevation within bounds; the poles are excluded so the up vector
// never becomes parallel to the view direction. Caller must hold the mutex.
func (cc *orbitController) clamp() {
	cc.radius = min(max(cc.radius, cc.minRadius), cc.maxRadius)
	cc.elevation = min(max(cc.elevation, cc.minElevation), cc.maxElevation)
}

// updatePosition recomputes the eye from the spherical coordinates. Caller must hold the mutex.
func (cc *orbitController) updatePosition() {
	sinElev, cosElev := math32.Sincos(cc.elevation)
	sinAzim, cosAzim := math32.Sincos(cc.azimuth)
	cc.position[0] = cc.target[0] + cc.radius*cosElev*cosAzim
	cc.position[1] = cc.target[1] + cc.radius*cosElev*sinAzim
	cc.position[2] = cc.target[2] + cc.radius*sinElev
}

func (cc *orbitController) Position() (x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position[0], cc.position[1], cc.position[2]
}

func (cc *orbitController) Target() (x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target[0], cc.target[1], cc.target[2]
}

func (cc *orbitController) SetTarget(x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = [3]float32{x, y, z}
	cc.updatePosition()
}

func (cc *orbitController) Orbit(azimuth, elevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth += azimuth
	cc.elevation += elevation
	cc.clamp()
	cc.updatePosition()
}

func (cc *orbitController) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius -= delta * cc.zoomSpeed
	cc.clamp()
	cc.updatePosition()
}

func (cc *orbitController) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *orbitController) SetRadius(radius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = radius
	cc.clamp()
	cc.updatePosition()
}

func (cc *orbitController) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *orbitController) SetAzimuth(azimuth float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth = azimuth
	cc.updatePosition()
}

func (cc *orbitController) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}

func (cc *orbitController) SetElevation(elevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.elevation = elevation
	cc.clamp()
	cc.updatePosition()
}
