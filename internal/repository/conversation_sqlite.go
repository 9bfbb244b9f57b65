package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cryptopal-backend/internal/models"
)

type SQLiteConversationRepo struct {
	db    *sql.DB
	clock *Clock
}

var _ ConversationStore = &SQLiteConversationRepo{}

func NewSQLiteConversationRepo(db *sql.DB) *SQLiteConversationRepo {
	return &SQLiteConversationRepo{db: db, clock: NewClock(time.Now)}
}

func (r *SQLiteConversationRepo) Append(ctx context.Context, sessionID string, role models.Role, content string) (*models.Turn, error) {
	if err := validateTurn(sessionID, role); err != nil {
		return nil, err
	}

	turn := &models.Turn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: FormatTimestamp(r.clock.Next()),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		turn.SessionID, string(turn.Role), turn.Content, turn.Timestamp,
	)
	if err != nil {
		return nil, storageErr("append", err)
	}
	return turn, nil
}

func (r *SQLiteConversationRepo) Recent(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	turns := []models.Turn{}
	if limit <= 0 {
		return turns, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at
			FROM conversations
			WHERE session_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC`, sessionID, limit)
	if err != nil {
		return nil, storageErr("recent", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.Turn
		var role string
		var createdAt sql.NullString
		if err := rows.Scan(&t.SessionID, &role, &t.Content, &createdAt); err != nil {
			return nil, storageErr("recent", err)
		}
		t.Role = models.Role(role)
		t.Timestamp = NormalizeTimestamp(createdAt.String)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("recent", err)
	}
	return turns, nil
}

func (r *SQLiteConversationRepo) Clear(ctx context.Context, sessionID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("clear", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, sessionID); err != nil {
		tx.Rollback()
		return storageErr("clear", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("clear", err)
	}
	return nil
}

func (r *SQLiteConversationRepo) Reset(ctx context.Context, sessionID string, role models.Role, content string) (*models.Turn, error) {
	if err := validateTurn(sessionID, role); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("reset", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, sessionID); err != nil {
		tx.Rollback()
		return nil, storageErr("reset", err)
	}

	turn := &models.Turn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: FormatTimestamp(r.clock.Next()),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		turn.SessionID, string(turn.Role), turn.Content, turn.Timestamp,
	); err != nil {
		tx.Rollback()
		return nil, storageErr("reset", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("reset", err)
	}
	return turn, nil
}

func (r *SQLiteConversationRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE created_at < ?`, FormatTimestamp(cutoff))
	if err != nil {
		return 0, storageErr("prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("prune", fmt.Errorf("rows affected: %w", err))
	}
	return n, nil
}

func (r *SQLiteConversationRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}
