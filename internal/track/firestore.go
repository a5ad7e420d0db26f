package track

import (
	"context"
	"encoding/json"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tomaszkw/docmeter/internal/entity"
)

// FirestoreFeed implements Feed on top of document snapshot listeners: one
// document per job, rewritten in full by the backend executor on every
// status change. Releasing the subscription cancels the listener so the
// stream does not leak.
type FirestoreFeed struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

func NewFirestoreFeed(client *firestore.Client, collection string, logger *slog.Logger) *FirestoreFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &FirestoreFeed{client: client, collection: collection, logger: logger}
}

func (f *FirestoreFeed) Subscribe(jobID string, handler func(entity.Job)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	iter := f.client.Collection(f.collection).Doc(jobID).Snapshots(ctx)

	go func() {
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled {
					return
				}
				// A dropped stream is not retried here; reconnection is the
				// caller's concern and detach remains their escape hatch.
				f.logger.Warn("job feed stream ended", "job_id", jobID, "error", err)
				return
			}
			if !snap.Exists() {
				continue
			}

			raw, err := json.Marshal(snap.Data())
			if err != nil {
				f.logger.Warn("job document not serializable", "job_id", jobID, "error", err)
				continue
			}
			if err := ValidateJobJSON(raw); err != nil {
				f.logger.Warn("job document rejected by schema", "job_id", jobID, "error", err)
				continue
			}

			var job entity.Job
			if err := json.Unmarshal(raw, &job); err != nil {
				f.logger.Warn("job document decode failed", "job_id", jobID, "error", err)
				continue
			}
			handler(job)
		}
	}()

	return cancel, nil
}
