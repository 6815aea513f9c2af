package history

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"listingpilot/backend/internal/models"
	"listingpilot/backend/internal/tasks"
)

func newRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewRepository(gdb), mock
}

var attemptColumns = []string{"id", "attempt_id", "source", "vin", "year", "make", "model", "success", "message", "error", "duration_ms", "field_log", "started_at", "completed_at", "created_at", "updated_at", "deleted_at"}

func TestRepository_Create(t *testing.T) {
	repo, mock := newRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `posting_attempts`")).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	a := &models.PostingAttempt{AttemptID: "a-1", Source: "http", Success: true, FieldLog: "[]"}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, uint(7), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_List(t *testing.T) {
	repo, mock := newRepository(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `posting_attempts`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `posting_attempts` WHERE `posting_attempts`.`deleted_at` IS NULL ORDER BY id DESC")).
		WillReturnRows(sqlmock.NewRows(attemptColumns).
			AddRow(2, "a-2", "nats", "", 2021, "Honda", "Civic", false, "", "navigation timeout", 10000, "[]", now, now, now, now, nil).
			AddRow(1, "a-1", "http", "", 2020, "Toyota", "Camry", true, "Vehicle form filled successfully", "", 4200, "[]", now, now, now, now, nil))

	attempts, total, err := repo.List(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, attempts, 2)
	assert.Equal(t, "a-2", attempts[0].AttemptID)
	assert.True(t, attempts[1].Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetNotFound(t *testing.T) {
	repo, mock := newRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `posting_attempts` WHERE attempt_id = ?")).
		WillReturnRows(sqlmock.NewRows(attemptColumns))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_PurgeOlderThan(t *testing.T) {
	repo, mock := newRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `posting_attempts` WHERE created_at < ?")).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	n, err := repo.PurgeOlderThan(context.Background(), time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type memoryCreator struct {
	mutex    sync.Mutex
	attempts []models.PostingAttempt
	err      error
}

func (m *memoryCreator) Create(ctx context.Context, a *models.PostingAttempt) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return m.err
	}
	m.attempts = append(m.attempts, *a)
	return nil
}

func TestAsyncWriter(t *testing.T) {
	q := tasks.NewQueue(1, 4, time.Second)
	q.Start()
	repo := &memoryCreator{}

	w := NewAsyncWriter(q, repo)
	w.Record(models.PostingAttempt{AttemptID: "a-1"})
	w.Record(models.PostingAttempt{AttemptID: "a-2"})
	require.NoError(t, q.Stop(context.Background()))

	require.Len(t, repo.attempts, 2)
	assert.Equal(t, "a-1", repo.attempts[0].AttemptID)

	failing := tasks.NewQueue(1, 4, time.Second)
	failing.Start()
	NewAsyncWriter(failing, &memoryCreator{err: errors.New("db down")}).Record(models.PostingAttempt{AttemptID: "a-3"})
	require.NoError(t, failing.Stop(context.Background()))
	assert.Equal(t, 1, failing.Failed())
}
