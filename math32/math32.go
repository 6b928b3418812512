// Package math32 wraps github.com/xlab/linmath with the handful of
// operations the scene graph, camera and culling code need: transform
// composition, view/projection matrices, and the Vulkan clip-space
// fixup the reference engine's math.go performs by hand.
package math32

import (
	"math"

	lin "github.com/xlab/linmath"
)

// Vec3 and Vec4 are re-exported so callers never import linmath directly.
type Vec3 = lin.Vec3
type Vec4 = lin.Vec4

// Mat4 is a column-major 4x4 matrix, same layout as lin.Mat4x4.
type Mat4 = lin.Mat4x4

// Identity sets m to the identity matrix.
func Identity(m *Mat4) {
	*m = Mat4{}
	m.Fill(1.0)
	m.ScaleAniso(m, 1, 1, 1)
}

// Mul sets dst = a * b, using linmath's receiver-as-destination idiom
// the same way the reference engine's VulkanProjectionMat does.
func Mul(dst, a, b *Mat4) {
	dst.Mult(a, b)
}

// Quat is a rotation quaternion, (x, y, z, w).
type Quat [4]float32

// TRS composes a local transform from translation, rotation quaternion
// and per-axis scale, the matrix-free node representation the asset
// loader boundary (spec.md §6) surfaces alongside a raw 4x4 matrix.
func TRS(dst *Mat4, translation Vec3, rotation Quat, scale Vec3) {
	x, y, z, w := rotation[0], rotation[1], rotation[2], rotation[3]
	x2, y2, z2 := x+x, y+y, z+z
	xx, xy, xz := x*x2, x*y2, x*z2
	yy, yz, zz := y*y2, y*z2, z*z2
	wx, wy, wz := w*x2, w*y2, w*z2

	dst[0] = Vec4{(1 - (yy + zz)) * scale[0], (xy + wz) * scale[0], (xz - wy) * scale[0], 0}
	dst[1] = Vec4{(xy - wz) * scale[1], (1 - (xx + zz)) * scale[1], (yz + wx) * scale[1], 0}
	dst[2] = Vec4{(xz + wy) * scale[2], (yz - wx) * scale[2], (1 - (xx + yy)) * scale[2], 0}
	dst[3] = Vec4{translation[0], translation[1], translation[2], 1}
}

// LookAt builds a right-handed view matrix, delegating to linmath.
func LookAt(dst *Mat4, eye, center, up Vec3) {
	dst.LookAt(eye, center, up)
}

// PerspectiveReverseZ builds a Vulkan-clip-space, reverse-Z projection
// matrix: near plane maps to depth 1.0, far to 0.0 (see spec.md
// GLOSSARY "Reverse-Z"). fovy is in radians.
func PerspectiveReverseZ(dst *Mat4, fovy, aspect, near, far float32) {
	f := float32(1.0 / math.Tan(float64(fovy)/2))
	*dst = Mat4{}
	dst[0][0] = f / aspect
	dst[1][1] = -f // Vulkan clip space: +Y is down.
	dst[2][2] = near / (far - near)
	dst[2][3] = -1
	dst[3][2] = (near * far) / (far - near)
}
