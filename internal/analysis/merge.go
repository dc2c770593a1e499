package analysis

import (
	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

// MergePatches folds the profile patch fragments of a batch into one
// patch. Items are visited in sequence order and later values
// overwrite earlier ones for the same key; this is the only place
// conflicts between simultaneous recommendations are resolved.
// An empty input yields an empty patch, never nil.
func MergePatches(items []domain.RecommendationItem) domain.ProfilePatch {
	patch := make(domain.ProfilePatch)
	for _, item := range items {
		for k, v := range item.ProfilePatch {
			patch[k] = v
		}
	}
	return patch
}
