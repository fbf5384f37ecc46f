package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	rm "rehab_monitor"
	"rehab_monitor/internal/models"
	"rehab_monitor/internal/repository/db"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = conn.Close()
	})
	return NewSQLiteStore(conn), mock
}

func TestSQLiteStore_Set_WritesJSONAndUTCTimestamp(t *testing.T) {
	store, mock := newMockStore(t)

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs(
			rm.CollectionSystemStatus,
			rm.DocStatus,
			`{"is_armed":true,"session_start_time":"2024-05-01T10:00:00Z"}`,
			isUTCRecent,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Set(context.Background(), rm.StatusPath, models.Fields{
		models.FieldIsArmed:          true,
		models.FieldSessionStartTime: start,
	})
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}

func TestSQLiteStore_Set_RejectsInvalidPath(t *testing.T) {
	store, _ := newMockStore(t)

	err := store.Set(context.Background(), rm.DocPath{Collection: "history"}, models.Fields{})
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("Set() error = %v, want ErrInvalidPath", err)
	}
}

func TestSQLiteStore_Get(t *testing.T) {
	tests := []struct {
		name       string
		mockExpect func(sqlmock.Sqlmock)
		wantExists bool
		wantErr    bool
	}{
		{
			name: "existing document",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
					WithArgs(rm.CollectionSystemStatus, rm.DocStatus).
					WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(`{"is_active":true}`))
			},
			wantExists: true,
		},
		{
			name: "missing document is not an error",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
					WithArgs(rm.CollectionSystemStatus, rm.DocStatus).
					WillReturnError(sql.ErrNoRows)
			},
			wantExists: false,
		},
		{
			name: "query error",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
					WithArgs(rm.CollectionSystemStatus, rm.DocStatus).
					WillReturnError(errors.New("disk I/O error"))
			},
			wantErr: true,
		},
		{
			name: "corrupt body",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
					WithArgs(rm.CollectionSystemStatus, rm.DocStatus).
					WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(`{not json`))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.mockExpect(mock)

			doc, err := store.Get(context.Background(), rm.StatusPath)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Get() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && doc.Exists != tt.wantExists {
				t.Fatalf("Get().Exists = %v, want %v", doc.Exists, tt.wantExists)
			}
		})
	}
}

func TestSQLiteStore_Update_ChangesOnlyOneField(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
		WithArgs(rm.CollectionSystemStatus, rm.DocStatus).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).
			AddRow(`{"is_active":true,"is_armed":true,"session_start_time":"2024-05-01T10:00:00Z"}`))
	mock.ExpectExec(regexp.QuoteMeta(updateDocumentSQL)).
		WithArgs(
			`{"is_active":true,"is_armed":false,"session_start_time":"2024-05-01T10:00:00Z"}`,
			sqlmock.AnyArg(),
			rm.CollectionSystemStatus,
			rm.DocStatus,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Update(context.Background(), rm.StatusPath, models.FieldIsArmed, false); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

func TestSQLiteStore_Update_MissingDocument(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
		WithArgs(rm.CollectionSystemStatus, rm.DocStatus).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := store.Update(context.Background(), rm.StatusPath, models.FieldIsArmed, true)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_Query_OrdersDescending(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectCollectionSQL)).
		WithArgs(rm.CollectionHistory).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("a", `{"startTime":"2024-05-01T09:00:00Z"}`).
			AddRow("b", `{"startTime":"2024-05-02T09:00:00Z"}`).
			AddRow("c", `{"events":[]}`))

	docs, err := store.Query(context.Background(), rm.CollectionHistory, Query{
		OrderBy:    models.FieldStartTime,
		Descending: true,
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	got := make([]string, 0, len(docs))
	for _, d := range docs {
		got = append(got, d.Path.ID)
	}
	want := []string{"b", "a", "c"}
	if !equalStringSlices(got, want) {
		t.Fatalf("Query() ids = %v, want %v", got, want)
	}
}

func TestSQLiteStore_Subscribe_DeliversInitialThenWrite(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
		WithArgs(rm.CollectionSystemStatus, rm.DocStatus).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs(rm.CollectionSystemStatus, rm.DocStatus, `{"is_active":true}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
		WithArgs(rm.CollectionSystemStatus, rm.DocStatus).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(`{"is_active":true}`))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Subscribe(ctx, rm.StatusPath)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	first := receiveSnapshot(t, ch)
	if first.Exists {
		t.Fatalf("initial snapshot Exists = true, want false")
	}

	if err := store.Set(ctx, rm.StatusPath, models.Fields{models.FieldIsActive: true}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	second := receiveSnapshot(t, ch)
	if !second.Exists || !second.Fields.Bool(models.FieldIsActive) {
		t.Fatalf("second snapshot = %+v, want active status", second.Document)
	}
}

func TestSQLiteStore_RealDatabase_DisarmKeepsSessionStart(t *testing.T) {
	conn, err := db.InitDB(":memory:")
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	defer conn.Close()

	store := NewSQLiteStore(conn)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Set(ctx, rm.StatusPath, models.Fields{
		models.FieldIsActive:         true,
		models.FieldIsArmed:          true,
		models.FieldSessionStartTime: start,
	}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Update(ctx, rm.StatusPath, models.FieldIsArmed, false); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	doc, err := store.Get(ctx, rm.StatusPath)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	status := models.SystemStatusFromFields(doc.Fields)
	if status.IsArmed {
		t.Errorf("IsArmed = true, want false")
	}
	if !status.IsActive {
		t.Errorf("IsActive = false, want true")
	}
	if status.SessionStartTime == nil || !status.SessionStartTime.Equal(start) {
		t.Errorf("SessionStartTime = %v, want %v", status.SessionStartTime, start)
	}

	if err := store.Delete(ctx, rm.StatusPath); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	doc, err = store.Get(ctx, rm.StatusPath)
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if doc.Exists {
		t.Errorf("document still exists after Delete")
	}
}

func receiveSnapshot(t *testing.T, ch <-chan DocumentSnapshot) DocumentSnapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("subscription closed")
		}
		if snap.Err != nil {
			t.Fatalf("snapshot error: %v", snap.Err)
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return DocumentSnapshot{}
}

// sqlmockArgumentFunc adapts a predicate to sqlmock.Argument.
type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
