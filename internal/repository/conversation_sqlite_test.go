package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cryptopal-backend/internal/database"
	"cryptopal-backend/internal/models"
)

func newTestSQLiteRepo(t *testing.T) *SQLiteConversationRepo {
	t.Helper()
	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.RunSQLiteMigrations(db))
	return NewSQLiteConversationRepo(db)
}

func TestSQLiteConversationRepo_AppendAndRecent(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, "sess-1", models.RoleAssistant, "welcome")
	require.NoError(t, err)
	_, err = repo.Append(ctx, "sess-1", models.RoleUser, "hello")
	require.NoError(t, err)
	_, err = repo.Append(ctx, "sess-2", models.RoleUser, "other session")
	require.NoError(t, err)
	last, err := repo.Append(ctx, "sess-1", models.RoleAssistant, "hi there")
	require.NoError(t, err)

	turns, err := repo.Recent(ctx, "sess-1", 20)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, "welcome", turns[0].Content)
	require.Equal(t, models.RoleUser, turns[1].Role)
	require.Equal(t, "hi there", turns[2].Content)
	require.Equal(t, last.Timestamp, turns[2].Timestamp)

	for _, turn := range turns {
		_, err := time.Parse(TimestampLayout, turn.Timestamp)
		require.NoError(t, err, "timestamp %q not canonical", turn.Timestamp)
	}
}

func TestSQLiteConversationRepo_RecentReturnsNewestWithinLimit(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := repo.Append(ctx, "sess", models.RoleUser, fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	turns, err := repo.Recent(ctx, "sess", 4)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	require.Equal(t, "msg-6", turns[0].Content)
	require.Equal(t, "msg-9", turns[3].Content)
	require.True(t, sort.SliceIsSorted(turns, func(i, j int) bool { return turns[i].Timestamp < turns[j].Timestamp }))

	empty, err := repo.Recent(ctx, "sess", 0)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	none, err := repo.Recent(ctx, "unknown", 5)
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestSQLiteConversationRepo_ClearAndReset(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Append(ctx, "sess", models.RoleUser, "x")
		require.NoError(t, err)
	}
	_, err := repo.Append(ctx, "keep", models.RoleUser, "y")
	require.NoError(t, err)

	require.NoError(t, repo.Clear(ctx, "sess"))
	turns, err := repo.Recent(ctx, "sess", 10)
	require.NoError(t, err)
	require.Empty(t, turns)

	seed, err := repo.Reset(ctx, "sess", models.RoleAssistant, "Chat cleared!")
	require.NoError(t, err)
	require.Equal(t, models.RoleAssistant, seed.Role)

	turns, err = repo.Recent(ctx, "sess", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, "Chat cleared!", turns[0].Content)

	kept, err := repo.Recent(ctx, "keep", 10)
	require.NoError(t, err)
	require.Len(t, kept, 1)
}

func TestSQLiteConversationRepo_Validation(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, "", models.RoleUser, "x")
	require.True(t, errors.Is(err, ErrInvalidTurn))

	_, err = repo.Append(ctx, "sess", models.Role("system"), "x")
	require.True(t, errors.Is(err, ErrInvalidTurn))
}

func TestSQLiteConversationRepo_StorageErrorOnClosedDB(t *testing.T) {
	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, database.RunSQLiteMigrations(db))
	repo := NewSQLiteConversationRepo(db)
	require.NoError(t, db.Close())

	_, err = repo.Append(context.Background(), "sess", models.RoleUser, "x")
	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	require.Equal(t, "append", storageErr.Op)
}

func TestSQLiteConversationRepo_PruneBefore(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	repo.clock = NewClock(func() time.Time { return now })

	_, err := repo.Append(ctx, "old", models.RoleUser, "old message")
	require.NoError(t, err)
	now = base.Add(48 * time.Hour)
	_, err = repo.Append(ctx, "new", models.RoleUser, "new message")
	require.NoError(t, err)

	n, err := repo.PruneBefore(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	old, err := repo.Recent(ctx, "old", 10)
	require.NoError(t, err)
	require.Empty(t, old)
	fresh, err := repo.Recent(ctx, "new", 10)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
}

func TestSQLiteConversationRepo_LegacyTimestampsAreNormalized(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.db.Exec(
		`INSERT INTO conversations (session_id, role, content, created_at) VALUES ('legacy', 'user', 'hi', '2025-03-04 05:06:07')`)
	require.NoError(t, err)

	turns, err := repo.Recent(ctx, "legacy", 5)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, "2025-03-04T05:06:07.000000Z", turns[0].Timestamp)
}

func TestSQLiteConversationRepo_ConcurrentSessions(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if _, err := repo.Append(ctx, fmt.Sprintf("sess-%d", s), models.RoleUser, fmt.Sprintf("%d", i)); err != nil {
					errs <- err
				}
			}
		}(s)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for s := 0; s < 4; s++ {
		turns, err := repo.Recent(ctx, fmt.Sprintf("sess-%d", s), 100)
		require.NoError(t, err)
		require.Len(t, turns, 10)
		for i, turn := range turns {
			require.Equal(t, fmt.Sprintf("%d", i), turn.Content)
		}
	}
}
