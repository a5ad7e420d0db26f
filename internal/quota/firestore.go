package quota

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tomaszkw/docmeter/internal/common"
	"github.com/tomaszkw/docmeter/internal/entity"
)

// FirestoreSnapshotSource reads the billing collaborator's account
// documents: one document per account carrying tier, allowance, and
// consumed for the current period.
type FirestoreSnapshotSource struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

func NewFirestoreSnapshotSource(client *firestore.Client, collection string, logger *slog.Logger) *FirestoreSnapshotSource {
	if logger == nil {
		logger = slog.Default()
	}
	if collection == "" {
		collection = "accounts"
	}
	return &FirestoreSnapshotSource{client: client, collection: collection, logger: logger}
}

type accountDoc struct {
	Tier      string `firestore:"tier"`
	Allowance int    `firestore:"allowance"`
	Consumed  int    `firestore:"consumed"`
}

func (s *FirestoreSnapshotSource) Snapshot(ctx context.Context, accountID string) (entity.QuotaSnapshot, error) {
	snap, err := s.client.Collection(s.collection).Doc(accountID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return entity.QuotaSnapshot{}, fmt.Errorf("account %s: %w", accountID, common.ErrNotFound)
	}
	if err != nil {
		s.logger.Error("quota snapshot lookup failed", "account_id", accountID, "error", err)
		return entity.QuotaSnapshot{}, fmt.Errorf("fetch quota snapshot: %w", err)
	}

	var doc accountDoc
	if err := snap.DataTo(&doc); err != nil {
		return entity.QuotaSnapshot{}, fmt.Errorf("decode account document: %w", err)
	}
	return entity.QuotaSnapshot{
		Tier:      doc.Tier,
		Allowance: doc.Allowance,
		Consumed:  doc.Consumed,
	}, nil
}
