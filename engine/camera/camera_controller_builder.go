package camera

// CameraControllerOption is a functional option applied to an orbit controller during construction.
type CameraControllerOption func(*orbitController)

// WithRadius sets the initial distance between eye and target.
//
// Parameters:
//   - radius: the distance
//
// Returns:
//   - CameraControllerOption: a function that sets the radius
func WithRadius(radius float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.radius = radius
	}
}

// WithAzimuth sets the initial angle around the up axis in radians.
//
// Parameters:
//   - azimuth: the angle
//
// Returns:
//   - CameraControllerOption: a function that sets the azimuth
func WithAzimuth(azimuth float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.azimuth = azimuth
	}
}

// WithElevation sets the initial angle above the XY plane in radians.
//
// Parameters:
//   - elevation: the angle
//
// Returns:
//   - CameraControllerOption: a function that sets the elevation
func WithElevation(elevation float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.elevation = elevation
	}
}

// WithTarget sets the orbit center.
//
// Parameters:
//   - x, y, z: the target
//
// Returns:
//   - CameraControllerOption: a function that sets the target
func WithTarget(x, y, z float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.target = [3]float32{x, y, z}
	}
}

// WithRadiusBounds limits the radius reachable by Zoom and SetRadius.
func WithRadiusBounds(min, max float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.minRadius = min
		cc.maxRadius = max
	}
}

// WithElevationBounds limits the elevation reachable by Orbit and SetElevation.
func WithElevationBounds(min, max float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.minElevation = min
		cc.maxElevation = max
	}
}

// WithZoomSpeed sets the radius change per unit of Zoom delta.
func WithZoomSpeed(speed float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.zoomSpeed = speed
	}
}
