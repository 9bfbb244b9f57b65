package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cryptopal-backend/internal/models"
)

type PostgresConversationRepo struct {
	pool  *pgxpool.Pool
	clock *Clock
}

var _ ConversationStore = &PostgresConversationRepo{}

func NewPostgresConversationRepo(pool *pgxpool.Pool) *PostgresConversationRepo {
	return &PostgresConversationRepo{pool: pool, clock: NewClock(time.Now)}
}

func (r *PostgresConversationRepo) Append(ctx context.Context, sessionID string, role models.Role, content string) (*models.Turn, error) {
	if err := validateTurn(sessionID, role); err != nil {
		return nil, err
	}

	createdAt := r.clock.Next()
	query := `
		INSERT INTO conversations (session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.pool.Exec(ctx, query, sessionID, string(role), content, createdAt); err != nil {
		return nil, storageErr("append", err)
	}

	return &models.Turn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: FormatTimestamp(createdAt),
	}, nil
}

func (r *PostgresConversationRepo) Recent(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	turns := []models.Turn{}
	if limit <= 0 {
		return turns, nil
	}

	query := `
		SELECT session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at
			FROM conversations
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, storageErr("recent", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.Turn
		var role string
		var createdAt time.Time
		if err := rows.Scan(&t.SessionID, &role, &t.Content, &createdAt); err != nil {
			return nil, storageErr("recent", err)
		}
		t.Role = models.Role(role)
		t.Timestamp = FormatTimestamp(createdAt)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("recent", err)
	}
	return turns, nil
}

func (r *PostgresConversationRepo) Clear(ctx context.Context, sessionID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storageErr("clear", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM conversations WHERE session_id = $1`, sessionID); err != nil {
		return storageErr("clear", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("clear", err)
	}
	return nil
}

func (r *PostgresConversationRepo) Reset(ctx context.Context, sessionID string, role models.Role, content string) (*models.Turn, error) {
	if err := validateTurn(sessionID, role); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storageErr("reset", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM conversations WHERE session_id = $1`, sessionID); err != nil {
		return nil, storageErr("reset", err)
	}

	createdAt := r.clock.Next()
	if _, err := tx.Exec(ctx, `
		INSERT INTO conversations (session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4)`, sessionID, string(role), content, createdAt); err != nil {
		return nil, storageErr("reset", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("reset", err)
	}

	return &models.Turn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: FormatTimestamp(createdAt),
	}, nil
}

func (r *PostgresConversationRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, storageErr("prune", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresConversationRepo) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}
