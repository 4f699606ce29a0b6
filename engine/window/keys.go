package window

// Key is a keyboard key code. Values match GLFW, which uses ASCII for printable keys.
type Key uint32

const (
	KeySpace Key = 32
	Key0     Key = 48
	Key1     Key = 49
	Key2     Key = 50
	Key3     Key = 51
	Key4     Key = 52
	Key5     Key = 53
	Key6     Key = 54
	Key7     Key = 55
	Key8     Key = 56
	Key9     Key = 57
	KeyA     Key = 65
	KeyB     Key = 66
	KeyC     Key = 67
	KeyD     Key = 68
	KeyE     Key = 69
	KeyF     Key = 70
	KeyP     Key = 80
	KeyQ     Key = 81
	KeyR     Key = 82
	KeyS     Key = 83
	KeyW     Key = 87

	KeyEscape    Key = 256
	KeyEnter     Key = 257
	KeyBackspace Key = 259
	KeyRight     Key = 262
	KeyLeft      Key = 263
	KeyDown      Key = 264
	KeyUp        Key = 265
	KeyLeftShift Key = 340
)

// Digit returns the number of a digit key and whether k is one.
func (k Key) Digit() (int, bool) {
	if k < Key0 || k > Key9 {
		return 0, false
	}
	return int(k - Key0), true
}
