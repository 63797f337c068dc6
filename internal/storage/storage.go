package storage

import (
	"context"

	"fitlife/plan-service/internal/domain"
)

// PlanArchiver stores superseded plan documents for audit. Archival is
// best-effort: the caller logs and swallows failures, the durable store
// remains the system of record.
type PlanArchiver interface {
	// ArchivePlan writes the plan document (including its profile snapshot)
	// to the archive.
	ArchivePlan(ctx context.Context, plan *domain.Plan) error
}

// NopArchiver discards everything. Used when no archive bucket is configured.
type NopArchiver struct{}

func (NopArchiver) ArchivePlan(ctx context.Context, plan *domain.Plan) error { return nil }
