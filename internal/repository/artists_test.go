package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/artists-registry/constants"
	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/confidence"
	"github.com/joseph-ayodele/artists-registry/internal/entity"
)

func strPtr(s string) *string { return &s }

func newRepoWithMock(t *testing.T) (*artistRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewArtistRepository(&DB{SQL: db, Dialect: DialectPostgres}, nil).(*artistRepository)
	return repo, mock, func() { _ = db.Close() }
}

func TestGetReturnsNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	id := uuid.New()
	mock.ExpectQuery(`SELECT id, artist_name, guru_name.* FROM artists WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	id := uuid.New()
	mock.ExpectExec("UPDATE artists SET extraction_status").
		WithArgs(string(constants.StatusFailed), "boom", sqlmock.AnyArg(), id.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), id, constants.StatusFailed, strPtr("boom"))
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteWrapsDatabaseErrors(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	id := uuid.New()
	mock.ExpectExec(`DELETE FROM artists WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnError(errors.New("connection reset"))

	err := repo.Delete(context.Background(), id)
	if !errors.Is(err, common.ErrDatabase) {
		t.Fatalf("expected ErrDatabase, got %v", err)
	}
}

func TestListBuildsPublicSearchQuery(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	like := "%ravi%"
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM artists WHERE extraction_status IN \(\$1, \$2\) AND`).
		WithArgs("completed", "verified", like, like, like).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$6 OFFSET \$7`).
		WithArgs("completed", "verified", like, like, like, 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	items, total, err := repo.List(context.Background(), ListFilter{Search: " Ravi ", PublicOnly: true, Page: 2, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("items=%d total=%d", len(items), total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCountByStatus(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`SELECT extraction_status, COUNT\(\*\) FROM artists GROUP BY extraction_status`).
		WillReturnRows(sqlmock.NewRows([]string{"extraction_status", "count"}).
			AddRow("completed", 3).
			AddRow("failed", 1))

	got, err := repo.CountByStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got[constants.StatusCompleted] != 3 || got[constants.StatusFailed] != 1 || len(got) != 2 {
		t.Errorf("counts = %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRebind(t *testing.T) {
	if got := rebind(DialectPostgres, "a = ? AND b IN (?, ?)"); got != "a = $1 AND b IN ($2, $3)" {
		t.Errorf("rebind = %q", got)
	}
	if got := rebind(DialectSQLite, "a = ?"); got != "a = ?" {
		t.Errorf("rebind sqlite = %q", got)
	}
}

func TestListFilterNormalized(t *testing.T) {
	f := ListFilter{Page: -1, Limit: 1000}.normalized()
	if f.Page != 1 || f.Limit != MaxListLimit {
		t.Errorf("normalized = %+v", f)
	}
}

func openSQLiteForTest(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, common.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "artists.db")}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close(nil) })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openSQLiteForTest(t)
	repo := NewArtistRepository(db, nil)

	a := &entity.Artist{
		ArtistName: strPtr("Ravi Shankar"),
		Gharana:    strPtr("Maihar"),
		OriginalDocument: entity.Document{
			Filename: "ravi.pdf", Path: "/tmp/ravi.pdf", FileType: "pdf", UploadedAt: time.Now(),
		},
		CreatedBy: "admin",
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == uuid.Nil || a.ExtractionStatus != constants.StatusPending {
		t.Fatalf("defaults not applied: %+v", a)
	}

	got, err := repo.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got.ArtistName != "Ravi Shankar" || got.GuruName != nil || got.OriginalDocument.Filename != "ravi.pdf" {
		t.Errorf("got = %+v", got)
	}

	now := time.Now()
	got.ExtractionStatus = constants.StatusVerified
	got.Confidence = confidence.High
	got.IsVerified = true
	got.VerifiedBy = strPtr("admin")
	got.VerifiedAt = &now
	got.FallbackUsed = true
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}

	items, total, err := repo.List(ctx, ListFilter{Search: "maihar", PublicOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("List total=%d len=%d", total, len(items))
	}
	if !items[0].IsVerified || !items[0].FallbackUsed || items[0].VerifiedAt == nil || items[0].Confidence != confidence.High {
		t.Errorf("item = %+v", items[0])
	}

	if _, total, _ := repo.List(ctx, ListFilter{Status: constants.StatusFailed}); total != 0 {
		t.Errorf("failed total = %d", total)
	}

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, a.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), common.DatabaseConfig{Driver: "mysql"}, nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}
