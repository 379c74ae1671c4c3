package store

import (
	"context"
	"fmt"

	"github.com/avvvet/ict-services/internal/panelsvc/models"
	"go.mongodb.org/mongo-driver/mongo"
)

const JournalCollection = "scan_journal"

// JournalStore keeps a short-lived record of every scan for operators.
type JournalStore struct {
	coll *mongo.Collection
}

func NewJournalStore(db *mongo.Database) *JournalStore {
	return &JournalStore{coll: db.Collection(JournalCollection)}
}

func (s *JournalStore) Record(ctx context.Context, rec models.ScanRecord) error {
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to record scan %s: %w", rec.ScanID, err)
	}
	return nil
}
