package external

import (
	"testing"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/vkerr"
)

func TestFileShaderSourceLoadMissingFileReturnsVkerr(t *testing.T) {
	src := FileShaderSource{Dir: "shaders-does-not-exist"}
	_, err := src.Load("gradient.comp.spv")
	if err == nil {
		t.Fatal("expected error for missing shader file")
	}
	var verr *vkerr.Error
	if !asVkerr(err, &verr) {
		t.Fatalf("error is not *vkerr.Error: %v", err)
	}
	if verr.Kind != vkerr.KindInit {
		t.Fatalf("Kind = %v, want KindInit", verr.Kind)
	}
}

func asVkerr(err error, target **vkerr.Error) bool {
	if v, ok := err.(*vkerr.Error); ok {
		*target = v
		return true
	}
	return false
}
