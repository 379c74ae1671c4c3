package store

import (
	"context"
	"fmt"

	"github.com/avvvet/ict-services/internal/panelsvc/models"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// Querier is the part of *pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type HistoryStore struct {
	db Querier
}

func NewHistoryStore(db Querier) *HistoryStore {
	return &HistoryStore{db: db}
}

// History returns the test records of one board, most recent first.
func (s *HistoryStore) History(ctx context.Context, serial string) ([]models.HistoryRow, error) {
	query := `
		SELECT serial_nmbr, station, result, date_time, COALESCE(log_file_name, '')
		FROM smt_test
		WHERE serial_nmbr = $1
		ORDER BY date_time DESC
	`

	rows, err := s.db.Query(ctx, query, serial)
	if err != nil {
		return nil, fmt.Errorf("failed to query history of %s: %w", serial, err)
	}
	defer rows.Close()

	var history []models.HistoryRow
	for rows.Next() {
		var h models.HistoryRow
		err := rows.Scan(
			&h.Serial,
			&h.Station,
			&h.Result,
			&h.DateTime,
			&h.LogFileName,
		)
		if err != nil {
			log.Warnf("skipping history row of %s: %v", serial, err)
			continue
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history of %s: %w", serial, err)
	}

	return history, nil
}

// SiblingHistory returns only result and log reference of a board, most
// recent first.
func (s *HistoryStore) SiblingHistory(ctx context.Context, serial string) ([]models.SiblingRow, error) {
	query := `
		SELECT result, COALESCE(log_file_name, '')
		FROM smt_test
		WHERE serial_nmbr = $1
		ORDER BY date_time DESC
	`

	rows, err := s.db.Query(ctx, query, serial)
	if err != nil {
		return nil, fmt.Errorf("failed to query sibling history of %s: %w", serial, err)
	}
	defer rows.Close()

	var history []models.SiblingRow
	for rows.Next() {
		var h models.SiblingRow
		if err := rows.Scan(&h.Result, &h.LogFileName); err != nil {
			log.Warnf("skipping sibling row of %s: %v", serial, err)
			continue
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sibling history of %s: %w", serial, err)
	}

	return history, nil
}
