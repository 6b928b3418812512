package engine

import (
	"testing"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/material"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/math32"
)

func TestPipelineIDForPassDistinguishesOpaqueAndTransparent(t *testing.T) {
	if pipelineIDForPass(material.MainColor) == pipelineIDForPass(material.TransparentPass) {
		t.Fatal("opaque and transparent passes must map to distinct pipeline ids")
	}
}

func TestMaterialIDForResourcesIsStableAndDistinct(t *testing.T) {
	a := &material.Resources{}
	b := &material.Resources{}

	if materialIDForResources(a) != materialIDForResources(a) {
		t.Fatal("same Resources pointer must yield the same id across calls")
	}
	if materialIDForResources(a) == materialIDForResources(b) {
		t.Fatal("distinct Resources pointers must yield distinct ids")
	}
	if materialIDForResources(nil) != 0 {
		t.Fatal("nil Resources must map to the zero id")
	}
}

func TestCopyMat4FlattensColumnMajor(t *testing.T) {
	var m math32.Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			m[c][r] = float32(c*4 + r)
		}
	}
	dst := make([]float32, 16)
	copyMat4(dst, m)
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			want := float32(c*4 + r)
			if got := dst[c*4+r]; got != want {
				t.Errorf("dst[%d] = %v, want %v", c*4+r, got, want)
			}
		}
	}
}

func TestCameraViewProjIsComposedFromViewAndProj(t *testing.T) {
	c := Camera{
		Eye: math32.Vec3{0, 0, 3}, Center: math32.Vec3{0, 0, 0}, Up: math32.Vec3{0, 1, 0},
		Fovy: 1.22, Near: 0.1, Far: 100,
	}
	view, proj, viewProj := c.ViewProj(16.0 / 9.0)

	var want math32.Mat4
	math32.Mul(&want, &proj, &view)
	if viewProj != want {
		t.Fatal("ViewProj must return proj*view as the composed matrix")
	}
}
