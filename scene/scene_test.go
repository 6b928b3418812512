package scene

import (
	"testing"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/math32"
)

func translation(x, y, z float32) math32.Mat4 {
	var m math32.Mat4
	math32.Identity(&m)
	m[3] = math32.Vec4{x, y, z, 1}
	return m
}

func TestRefreshTransformsPropagatesParentWorld(t *testing.T) {
	var g Graph
	root := g.Insert(NilNode, translation(1, 0, 0), nil)
	child := g.Insert(root, translation(0, 2, 0), nil)

	g.RefreshTransforms()

	rootWorld := g.World(root)
	if rootWorld[3][0] != 1 {
		t.Fatalf("root world translation.x = %v, want 1", rootWorld[3][0])
	}
	childWorld := g.World(child)
	if childWorld[3][0] != 1 || childWorld[3][1] != 2 {
		t.Fatalf("child world translation = (%v,%v), want (1,2)", childWorld[3][0], childWorld[3][1])
	}
}

func TestRefreshTransformsSkipsCleanSubtrees(t *testing.T) {
	var g Graph
	root := g.Insert(NilNode, translation(0, 0, 0), nil)
	g.RefreshTransforms()

	// Mutate the arena directly to prove a second refresh without any
	// SetLocal call leaves an already-clean world transform untouched.
	g.nodes[root-1].world = translation(9, 9, 9)
	g.RefreshTransforms()
	if w := g.World(root); w[3][0] != 9 {
		t.Fatalf("clean subtree was recomputed: world = %v", w)
	}
}

func TestRemoveReturnsSlotToFreeList(t *testing.T) {
	var g Graph
	a := g.Insert(NilNode, translation(0, 0, 0), nil)
	g.Remove(a)
	if len(g.free) != 1 {
		t.Fatalf("free list len = %d, want 1", len(g.free))
	}
	b := g.Insert(NilNode, translation(1, 1, 1), nil)
	if b != a {
		t.Fatalf("Insert after Remove did not reuse freed slot: got %d, want %d", b, a)
	}
}

func TestCullRejectsBoundsBehindCamera(t *testing.T) {
	var viewProj math32.Mat4
	math32.PerspectiveReverseZ(&viewProj, 1.0, 1.0, 0.1, 100)
	var world math32.Mat4
	math32.Identity(&world)

	// Origin far behind the near plane on the camera's own axis.
	behind := Bounds{Origin: math32.Vec3{0, 0, 1000}, Extents: math32.Vec3{0.1, 0.1, 0.1}}
	if !Cull(behind, viewProj, world) {
		t.Fatal("expected bounds far behind camera to be culled")
	}
}

func TestCullAcceptsBoundsInFrustum(t *testing.T) {
	var viewProj math32.Mat4
	math32.PerspectiveReverseZ(&viewProj, 1.2, 1.0, 0.1, 100)
	var world math32.Mat4
	math32.Identity(&world)

	inView := Bounds{Origin: math32.Vec3{0, 0, -5}, Extents: math32.Vec3{0.5, 0.5, 0.5}}
	if Cull(inView, viewProj, world) {
		t.Fatal("expected bounds directly in front of camera to survive culling")
	}
}

func TestStableSortOpaqueOrdersByPipelineThenMaterialThenMesh(t *testing.T) {
	objs := []RenderObject{
		{pipelineID: 1, materialID: 2, meshID: 1},
		{pipelineID: 0, materialID: 5, meshID: 9},
		{pipelineID: 1, materialID: 1, meshID: 0},
	}
	stableSortOpaque(objs)
	if objs[0].pipelineID != 0 {
		t.Fatalf("first element pipelineID = %d, want 0", objs[0].pipelineID)
	}
	if objs[1].materialID != 1 || objs[2].materialID != 2 {
		t.Fatalf("pipeline-1 group not ordered by materialID: %+v", objs[1:])
	}
}
