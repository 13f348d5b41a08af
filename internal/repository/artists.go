package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/artists-registry/constants"
	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/confidence"
	"github.com/joseph-ayodele/artists-registry/internal/entity"
)

// MaxListLimit caps one page of results.
const MaxListLimit = 100

// ListFilter selects a page of artists. Search matches name, guru and
// gharana case-insensitively.
type ListFilter struct {
	Search     string
	Status     constants.ExtractionStatus
	PublicOnly bool
	Page       int // 1-based
	Limit      int
}

func (f ListFilter) normalized() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

type ArtistRepository interface {
	Create(ctx context.Context, a *entity.Artist) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Artist, error)
	List(ctx context.Context, f ListFilter) ([]*entity.Artist, int, error)
	Update(ctx context.Context, a *entity.Artist) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.ExtractionStatus, errMsg *string) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[constants.ExtractionStatus]int, error)
}

type artistRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
}

func NewArtistRepository(db *DB, logger *slog.Logger) ArtistRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &artistRepository{db: db.SQL, dialect: db.Dialect, logger: logger, now: time.Now}
}

const artistColumns = `id, artist_name, guru_name, gharana, biography, description, phone, email, address, profile_photo,
doc_filename, doc_path, doc_file_type, doc_uploaded_at, extraction_status, extraction_error, raw_text, method,
confidence, fallback_used, processing_time_ms, enhancement_provider, is_verified, verified_by, verified_at,
created_by, created_at, updated_at`

func (r *artistRepository) q(query string) string { return rebind(r.dialect, query) }

func (r *artistRepository) Create(ctx context.Context, a *entity.Artist) error {
	now := r.now().UTC()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.ExtractionStatus == "" {
		a.ExtractionStatus = constants.StatusPending
	}
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, r.q(`
INSERT INTO artists (`+artistColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		a.ID.String(), nullable(a.ArtistName), nullable(a.GuruName), nullable(a.Gharana), nullable(a.Biography),
		nullable(a.Description), nullable(a.Phone), nullable(a.Email), nullable(a.Address), nullable(a.ProfilePhoto),
		a.OriginalDocument.Filename, a.OriginalDocument.Path, a.OriginalDocument.FileType, a.OriginalDocument.UploadedAt.UTC(),
		string(a.ExtractionStatus), nullable(a.ExtractionError), a.RawText, a.Method,
		string(a.Confidence), a.FallbackUsed, a.ProcessingTimeMs, nullable(a.EnhancementProvider),
		a.IsVerified, nullable(a.VerifiedBy), nullableTime(a.VerifiedAt),
		a.CreatedBy, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create artist", "id", a.ID, "error", err)
		return common.DatabaseError("create artist", err)
	}
	return nil
}

func (r *artistRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Artist, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+artistColumns+` FROM artists WHERE id = ?`), id.String())
	a, err := scanArtist(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundError(fmt.Sprintf("artist %s not found", id))
		}
		r.logger.Error("failed to get artist", "id", id, "error", err)
		return nil, common.DatabaseError("get artist", err)
	}
	return a, nil
}

func (r *artistRepository) List(ctx context.Context, f ListFilter) ([]*entity.Artist, int, error) {
	f = f.normalized()

	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "extraction_status = ?")
		args = append(args, string(f.Status))
	}
	if f.PublicOnly {
		where = append(where, "extraction_status IN (?, ?)")
		args = append(args, string(constants.StatusCompleted), string(constants.StatusVerified))
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		where = append(where, "(LOWER(COALESCE(artist_name, '')) LIKE ? OR LOWER(COALESCE(guru_name, '')) LIKE ? OR LOWER(COALESCE(gharana, '')) LIKE ?)")
		args = append(args, like, like, like)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM artists`+clause), args...).Scan(&total); err != nil {
		r.logger.Error("failed to count artists", "error", err)
		return nil, 0, common.DatabaseError("count artists", err)
	}

	pageArgs := append(append([]any{}, args...), f.Limit, (f.Page-1)*f.Limit)
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT `+artistColumns+` FROM artists`+clause+` ORDER BY created_at DESC LIMIT ? OFFSET ?`), pageArgs...)
	if err != nil {
		r.logger.Error("failed to list artists", "error", err)
		return nil, 0, common.DatabaseError("list artists", err)
	}
	defer rows.Close()

	out := make([]*entity.Artist, 0, f.Limit)
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, 0, common.DatabaseError("scan artist", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, common.DatabaseError("iterate artists", err)
	}
	return out, total, nil
}

// Update writes every mutable column.
func (r *artistRepository) Update(ctx context.Context, a *entity.Artist) error {
	a.UpdatedAt = r.now().UTC()
	res, err := r.db.ExecContext(ctx, r.q(`
UPDATE artists SET
    artist_name = ?, guru_name = ?, gharana = ?, biography = ?, description = ?,
    phone = ?, email = ?, address = ?, profile_photo = ?,
    extraction_status = ?, extraction_error = ?, raw_text = ?, method = ?, confidence = ?,
    fallback_used = ?, processing_time_ms = ?, enhancement_provider = ?,
    is_verified = ?, verified_by = ?, verified_at = ?, updated_at = ?
WHERE id = ?`),
		nullable(a.ArtistName), nullable(a.GuruName), nullable(a.Gharana), nullable(a.Biography), nullable(a.Description),
		nullable(a.Phone), nullable(a.Email), nullable(a.Address), nullable(a.ProfilePhoto),
		string(a.ExtractionStatus), nullable(a.ExtractionError), a.RawText, a.Method, string(a.Confidence),
		a.FallbackUsed, a.ProcessingTimeMs, nullable(a.EnhancementProvider),
		a.IsVerified, nullable(a.VerifiedBy), nullableTime(a.VerifiedAt), a.UpdatedAt,
		a.ID.String(),
	)
	if err != nil {
		r.logger.Error("failed to update artist", "id", a.ID, "error", err)
		return common.DatabaseError("update artist", err)
	}
	return r.expectOne(res, a.ID)
}

func (r *artistRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.ExtractionStatus, errMsg *string) error {
	res, err := r.db.ExecContext(ctx, r.q(`
UPDATE artists SET extraction_status = ?, extraction_error = ?, updated_at = ?
WHERE id = ?`), string(status), nullable(errMsg), r.now().UTC(), id.String())
	if err != nil {
		r.logger.Error("failed to update artist status", "id", id, "status", status, "error", err)
		return common.DatabaseError("update artist status", err)
	}
	return r.expectOne(res, id)
}

func (r *artistRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM artists WHERE id = ?`), id.String())
	if err != nil {
		r.logger.Error("failed to delete artist", "id", id, "error", err)
		return common.DatabaseError("delete artist", err)
	}
	return r.expectOne(res, id)
}

func (r *artistRepository) CountByStatus(ctx context.Context) (map[constants.ExtractionStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT extraction_status, COUNT(*) FROM artists GROUP BY extraction_status`)
	if err != nil {
		r.logger.Error("failed to count artists by status", "error", err)
		return nil, common.DatabaseError("count artists by status", err)
	}
	defer rows.Close()

	out := make(map[constants.ExtractionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, common.DatabaseError("scan status count", err)
		}
		out[constants.ExtractionStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("iterate status counts", err)
	}
	return out, nil
}

func (r *artistRepository) expectOne(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return common.DatabaseError("rows affected", err)
	}
	if n == 0 {
		return common.NotFoundError(fmt.Sprintf("artist %s not found", id))
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtist(s scanner) (*entity.Artist, error) {
	var (
		a                                                         entity.Artist
		id, status, conf                                          string
		name, guru, gharana, bio, desc, phone, email, addr, photo sql.NullString
		extErr, provider, verifiedBy                              sql.NullString
		verifiedAt                                                sql.NullTime
	)
	if err := s.Scan(
		&id, &name, &guru, &gharana, &bio, &desc, &phone, &email, &addr, &photo,
		&a.OriginalDocument.Filename, &a.OriginalDocument.Path, &a.OriginalDocument.FileType, &a.OriginalDocument.UploadedAt,
		&status, &extErr, &a.RawText, &a.Method,
		&conf, &a.FallbackUsed, &a.ProcessingTimeMs, &provider,
		&a.IsVerified, &verifiedBy, &verifiedAt,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse artist id %q: %w", id, err)
	}
	a.ID = parsed
	a.ExtractionStatus = constants.ExtractionStatus(status)
	a.Confidence = confidence.Tier(conf)
	a.ArtistName, a.GuruName, a.Gharana = ptr(name), ptr(guru), ptr(gharana)
	a.Biography, a.Description = ptr(bio), ptr(desc)
	a.Phone, a.Email, a.Address, a.ProfilePhoto = ptr(phone), ptr(email), ptr(addr), ptr(photo)
	a.ExtractionError, a.EnhancementProvider, a.VerifiedBy = ptr(extErr), ptr(provider), ptr(verifiedBy)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		a.VerifiedAt = &t
	}
	return &a, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
