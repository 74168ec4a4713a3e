package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mechconnect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "mechconnect.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("empty store has no session", func(t *testing.T) {
		session, err := store.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("save and read back", func(t *testing.T) {
		err := store.SaveSession(ctx, &models.Session{Token: "tok-1", MechanicID: 7})
		require.NoError(t, err)

		session, err := store.GetSession(ctx)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "tok-1", session.Token)
		assert.Equal(t, int64(7), session.MechanicID)
		assert.True(t, session.Valid())
	})

	t.Run("save replaces the single row", func(t *testing.T) {
		require.NoError(t, store.SaveSession(ctx, &models.Session{Token: "tok-2", MechanicID: 7}))

		session, err := store.GetSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-2", session.Token)
	})

	t.Run("empty token rejected", func(t *testing.T) {
		assert.Error(t, store.SaveSession(ctx, &models.Session{MechanicID: 7}))
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, store.ClearSession(ctx))
		session, err := store.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, session)
	})
}

func TestLedgerQueue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &models.LedgerTask{
		TaskType:  "append_earning",
		BookingID: 99,
		Payload:   `{"booking_id":99}`,
		Status:    "pending",
	}

	t.Run("create assigns id", func(t *testing.T) {
		require.NoError(t, store.CreateLedgerTask(ctx, task))
		assert.NotZero(t, task.ID)
		assert.False(t, task.CreatedAt.IsZero())
	})

	t.Run("pending tasks are returned", func(t *testing.T) {
		tasks, err := store.GetPendingLedgerTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, int64(99), tasks[0].BookingID)
		assert.Equal(t, "append_earning", tasks[0].TaskType)
	})

	t.Run("retry schedules in the future", func(t *testing.T) {
		next := time.Now().Add(time.Hour)
		require.NoError(t, store.UpdateLedgerTaskStatus(ctx, task.ID, "retry", "sheets down", &next))

		tasks, err := store.GetPendingLedgerTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, tasks, "retry with future next_retry_at must not be pending")
	})

	t.Run("due retry is pending again", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		require.NoError(t, store.UpdateLedgerTaskStatus(ctx, task.ID, "retry", "sheets down", &past))

		tasks, err := store.GetPendingLedgerTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.GreaterOrEqual(t, tasks[0].RetryCount, 1)
	})

	t.Run("completed leaves the queue", func(t *testing.T) {
		require.NoError(t, store.UpdateLedgerTaskStatus(ctx, task.ID, "completed", "", nil))

		tasks, err := store.GetPendingLedgerTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("failed tasks are listed", func(t *testing.T) {
		failed := &models.LedgerTask{TaskType: "append_earning", BookingID: 100, Payload: "{}", Status: "pending"}
		require.NoError(t, store.CreateLedgerTask(ctx, failed))
		require.NoError(t, store.UpdateLedgerTaskStatus(ctx, failed.ID, "failed", "gave up", nil))

		tasks, err := store.GetFailedLedgerTasks(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, int64(100), tasks[0].BookingID)
		require.NotNil(t, tasks[0].LastError)
		assert.Equal(t, "gave up", *tasks[0].LastError)
	})
}
