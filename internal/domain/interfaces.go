package domain

import (
	"context"
)

// MonitorService is the upstream monitoring service the cockpit reads
// from and uploads to. Implementations report transient failures as
// errors; the cockpit converts them to user-facing messages and never
// lets them escape as faults.
type MonitorService interface {
	FetchRecent(ctx context.Context, limit int) ([]GlucoseEntry, error)
	UploadProfilePatch(ctx context.Context, patch ProfilePatch) error
	AuthorizePendingBolus(ctx context.Context) error
}

// AdviceService analyzes a glucose history and suggests therapy
// changes. A nil Advice with nil error means no advice was available.
type AdviceService interface {
	Analyze(ctx context.Context, history []GlucoseEntry) (*Advice, error)
}

// PinConfirmer asks the caregiver to confirm via PIN. It must be
// awaited before any gated action proceeds.
type PinConfirmer interface {
	Confirm(ctx context.Context) (bool, error)
}

// BatchArchive is the abstract append-only persistence boundary for
// recommendation batches. The session history log is warm-loaded from
// it at startup; save failures are logged and never fatal.
type BatchArchive interface {
	SaveBatch(ctx context.Context, batch RecommendationBatch) error
	LoadBatches(ctx context.Context) ([]RecommendationBatch, error)
}
