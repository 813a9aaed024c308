package common

import (
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Number is the set of scalar types accepted by the generic math helpers.
type Number interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | ~float32 | ~float64
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}

// Clamp limits v to the closed range [lo, hi].
func Clamp[T Number](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Saturate clamps a float32 to [0, 1]. NaN is mapped to 0.
func Saturate(v float32) float32 {
	if math32.IsNaN(v) {
		return 0
	}
	return Clamp(v, 0, 1)
}

// Luminance returns the Rec. 709 relative luminance of a linear RGB color.
func Luminance(c mgl32.Vec3) float32 {
	return c.Dot(mgl32.Vec3{0.2126, 0.7152, 0.0722})
}

// NextPowerOfTwo returns the smallest power of two greater than or equal to v.
// Zero maps to 1.
//
// Parameters:
//   - v: the value to round up
//
// Returns:
//   - uint32: the rounded power of two
func NextPowerOfTwo(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}

// MipLevelCount returns the number of mip levels in a full chain for a width x height texture,
// counting the base level.
//
// Parameters:
//   - width: base level width in texels
//   - height: base level height in texels
//
// Returns:
//   - uint32: number of mip levels, at least 1
func MipLevelCount(width, height uint32) uint32 {
	size := max(width, height)
	levels := uint32(1)
	for size > 1 {
		size >>= 1
		levels++
	}
	return levels
}

// RotationZYX builds the rotation matrix Rz * Ry * Rx for Euler angles in radians.
// Applied to a column vector, X is rotated first and Z last.
//
// Parameters:
//   - euler: rotation angles around the X, Y and Z axes
//
// Returns:
//   - mgl32.Mat4: the combined rotation
func RotationZYX(euler mgl32.Vec3) mgl32.Mat4 {
	return mgl32.HomogRotate3DZ(euler.Z()).
		Mul4(mgl32.HomogRotate3DY(euler.Y())).
		Mul4(mgl32.HomogRotate3DX(euler.X()))
}

// ModelMatrix composes translation * RotationZYX * scale.
//
// Parameters:
//   - position: translation in world space
//   - euler: rotation angles in radians
//   - scale: per-axis scale factors
//
// Returns:
//   - mgl32.Mat4: the world matrix
func ModelMatrix(position, euler, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(position.X(), position.Y(), position.Z()).
		Mul4(RotationZYX(euler)).
		Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// Perspective creates a perspective projection matrix mapping view depth into the WebGPU
// clip space range [0, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1 / math32.Tan(fovY/2)
	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1
	out[14] = (near * far) / (near - far)
	return out
}

// Orthographic creates an orthographic projection matrix with depth mapped to [0, 1].
func Orthographic(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	out := mgl32.Ident4()
	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = 1 / (near - far)
	out[12] = -(right + left) / (right - left)
	out[13] = -(top + bottom) / (top - bottom)
	out[14] = near / (near - far)
	return out
}
