package async

import (
	"context"
	"time"

	"github.com/tomaszkw/docmeter/internal/entity"
)

// Update is the smallest useful unit: one observed job state to persist.
type Update struct {
	Job        entity.Job
	ReceivedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, upd Update) error
	Shutdown(ctx context.Context)
}
