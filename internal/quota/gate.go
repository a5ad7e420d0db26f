package quota

import (
	"context"
	"log/slog"

	"github.com/tomaszkw/docmeter/internal/common"
	"github.com/tomaszkw/docmeter/internal/entity"
)

// SnapshotSource fetches the current allowance for an account. Supplied by
// the billing collaborator; the gate treats snapshots as read-only.
type SnapshotSource interface {
	Snapshot(ctx context.Context, accountID string) (entity.QuotaSnapshot, error)
}

// Gate is the admission policy for metered ingestion. It is advisory: it
// never reserves or decrements allowance. Decrement happens downstream
// after successful processing, so two concurrent admissions against the
// same account can both pass; the backend stays the final authority.
type Gate struct {
	logger *slog.Logger
}

func NewGate(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{logger: logger}
}

// Admit allows the batch or returns a QuotaError whose reason
// distinguishes an exhausted allowance from a batch that is simply too
// large for what remains.
func (g *Gate) Admit(snapshot entity.QuotaSnapshot, pagesRequested int) error {
	remaining := snapshot.Remaining()

	if remaining <= 0 {
		g.logger.Info("admission denied: allowance exhausted",
			"tier", snapshot.Tier, "allowance", snapshot.Allowance, "consumed", snapshot.Consumed)
		return &common.QuotaError{
			Reason:    common.DenyAllowanceExhausted,
			Remaining: remaining,
			Requested: pagesRequested,
		}
	}

	if pagesRequested > remaining {
		g.logger.Info("admission denied: batch exceeds remaining allowance",
			"tier", snapshot.Tier, "requested", pagesRequested, "remaining", remaining)
		return &common.QuotaError{
			Reason:    common.DenyBatchTooLarge,
			Remaining: remaining,
			Requested: pagesRequested,
		}
	}

	return nil
}
