package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cryptopal-backend/internal/models"
)

// ConversationStore is the durable, append-only log of chat turns keyed by
// session id. Implementations must be safe for concurrent use; operations on
// different sessions never block each other beyond the engine's own locking.
type ConversationStore interface {
	Append(ctx context.Context, sessionID string, role models.Role, content string) (*models.Turn, error)
	// Recent returns at most limit of the newest turns, oldest first.
	Recent(ctx context.Context, sessionID string, limit int) ([]models.Turn, error)
	Clear(ctx context.Context, sessionID string) error
	// Reset clears the session and writes a single seed turn in one transaction.
	Reset(ctx context.Context, sessionID string, role models.Role, content string) (*models.Turn, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
}

var ErrInvalidTurn = errors.New("invalid turn")

// StorageError wraps every failure of the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func validateTurn(sessionID string, role models.Role) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidTurn)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidTurn, role)
	}
	return nil
}

// TimestampLayout is the single textual form of turn timestamps handed to
// callers. Fixed width and UTC, so lexical order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Layouts seen in stored rows: our own, RFC 3339, the go-sqlite3 driver's
// time format and SQLite's CURRENT_TIMESTAMP.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// NormalizeTimestamp converts a stored timestamp to TimestampLayout. Values
// that match no known layout are returned unchanged.
func NormalizeTimestamp(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return FormatTimestamp(t)
		}
	}
	return raw
}

// Clock hands out strictly increasing microsecond timestamps.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
