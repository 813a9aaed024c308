package common

// Virtual key codes used by the demo bindings.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyC = 67 // C key (ASCII), capture the current frame
	KeyP = 80 // P key (ASCII), toggle particle sorting
	KeyO = 79 // O key (ASCII), toggle object sorting
	KeyR = 82 // R key (ASCII), force a device reset

	Key1 = 49 // 1 key (ASCII)
	Key2 = 50 // 2 key (ASCII)
	Key3 = 51 // 3 key (ASCII)
	Key4 = 52 // 4 key (ASCII)
	Key5 = 53 // 5 key (ASCII)
)
