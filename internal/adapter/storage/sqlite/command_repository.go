package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/ports"
)

type CommandRepository struct {
	db  *sql.DB
	log *zap.Logger
}

func NewCommandRepository(db *sql.DB, log *zap.Logger) ports.CommandRepository {
	return &CommandRepository{db: db, log: log}
}

func (r *CommandRepository) Save(ctx context.Context, record *domain.CommandRecord) error {
	query := `
	INSERT INTO commands (id, session_id, text, intent_tag, confidence, status, result, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.SessionID, record.Text, string(record.IntentTag),
		record.Confidence, string(record.Status), record.Result, record.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

func (r *CommandRepository) FindRecent(ctx context.Context, sessionID string, limit int) ([]domain.CommandRecord, error) {
	query := `
		SELECT id, session_id, text, intent_tag, confidence, status, result, created_at
		FROM commands WHERE session_id = ?
		ORDER BY created_at DESC LIMIT ?`

	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	var records []domain.CommandRecord
	for rows.Next() {
		var rec domain.CommandRecord
		var intent, status string
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Text, &intent, &rec.Confidence, &status, &rec.Result, &createdAt); err != nil {
			return nil, fmt.Errorf("scan command row: %w", err)
		}
		rec.IntentTag = domain.IntentTag(intent)
		rec.Status = domain.CommandStatus(status)
		rec.CreatedAt = time.Unix(0, createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return records, nil
}
