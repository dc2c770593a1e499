package analysis

import (
	"reflect"
	"testing"

	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

func TestMergePatches_Empty(t *testing.T) {
	patch := MergePatches(nil)
	if patch == nil {
		t.Fatal("MergePatches(nil) = nil, want empty patch")
	}
	if len(patch) != 0 {
		t.Errorf("MergePatches(nil) has %d keys, want 0", len(patch))
	}
}

func TestMergePatches_LastItemWins(t *testing.T) {
	items := []domain.RecommendationItem{
		{Change: "a", Reason: "x", ProfilePatch: map[string]any{"k": 1}},
		{Change: "b", Reason: "y", ProfilePatch: map[string]any{"k": 2, "j": 5}},
	}

	patch := MergePatches(items)
	want := domain.ProfilePatch{"k": 2, "j": 5}
	if !reflect.DeepEqual(patch, want) {
		t.Errorf("MergePatches() = %v, want %v", patch, want)
	}
}

func TestMergePatches_NilFragment(t *testing.T) {
	items := []domain.RecommendationItem{
		{Change: "a", Reason: "x", ProfilePatch: nil},
		{Change: "b", Reason: "y", ProfilePatch: map[string]any{"basal_22_02": 0.45}},
	}

	patch := MergePatches(items)
	if len(patch) != 1 || patch["basal_22_02"] != 0.45 {
		t.Errorf("MergePatches() = %v, want only basal_22_02", patch)
	}
}

func TestMergePatches_DoesNotMutateInput(t *testing.T) {
	items := []domain.RecommendationItem{
		{Change: "a", Reason: "x", ProfilePatch: map[string]any{"k": 1}},
	}

	patch := MergePatches(items)
	patch["k"] = 99
	if items[0].ProfilePatch["k"] != 1 {
		t.Error("MergePatches() leaked the accumulator into the input item")
	}
}
