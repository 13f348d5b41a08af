package artists

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/artists-registry/constants"
	"github.com/joseph-ayodele/artists-registry/internal/async"
	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/enhance"
	"github.com/joseph-ayodele/artists-registry/internal/entity"
	"github.com/joseph-ayodele/artists-registry/internal/extract"
	"github.com/joseph-ayodele/artists-registry/internal/normalize"
	"github.com/joseph-ayodele/artists-registry/internal/repository"
)

// Extractor turns a stored document into an extraction result.
type Extractor interface {
	Extract(ctx context.Context, filePath, fileType string) (extract.ExtractionResult, error)
}

// Enhancer refines regex-extracted fields.
type Enhancer interface {
	Enhance(ctx context.Context, raw string, fields normalize.Fields) (enhance.Enhanced, error)
}

// Service handles artist profile business logic.
type Service struct {
	repo      repository.ArtistRepository
	extractor Extractor
	enhancer  Enhancer    // optional
	queue     async.Queue // optional; nil extracts inline
	uploadDir string
	maxBytes  int64
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithEnhancer(e Enhancer) Option { return func(s *Service) { s.enhancer = e } }

func WithQueue(q async.Queue) Option { return func(s *Service) { s.queue = q } }

func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func NewService(repo repository.ArtistRepository, ex Extractor, uploadDir string, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:      repo,
		extractor: ex,
		uploadDir: uploadDir,
		maxBytes:  10 << 20,
		logger:    logger,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetQueue attaches the async queue after construction; the queue's
// workers call back into Process.
func (s *Service) SetQueue(q async.Queue) { s.queue = q }

// UploadInput describes one uploaded document.
type UploadInput struct {
	Filename  string
	Reader    io.Reader
	CreatedBy string
}

// Upload stores the document, creates a pending artist and extracts it,
// inline or through the queue. An inline extraction failure returns the
// failed artist together with the error.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*entity.Artist, error) {
	name := filepath.Base(strings.TrimSpace(in.Filename))
	fileType := constants.NormalizeExt(filepath.Ext(name))
	if name == "" || name == "." || in.Reader == nil {
		return nil, common.InvalidArgumentError("document is required")
	}
	if !constants.IsSupported(fileType) {
		s.logger.Warn("upload rejected", "filename", name, "file_type", fileType)
		return nil, common.NewAppError("UNSUPPORTED_FORMAT", fmt.Sprintf("unsupported file type %q", fileType), extract.ErrUnsupportedFormat)
	}

	path, err := s.store(in.Reader, fileType)
	if err != nil {
		return nil, err
	}

	a := &entity.Artist{
		OriginalDocument: entity.Document{Filename: name, Path: path, FileType: fileType, UploadedAt: s.now().UTC()},
		ExtractionStatus: constants.StatusPending,
		CreatedBy:        in.CreatedBy,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	s.logger.Info("artist upload stored", "artist_id", a.ID, "filename", name, "file_type", fileType)

	if s.queue != nil {
		job := async.Job{ArtistID: a.ID, RequestID: common.RequestIDFromContext(ctx)}
		err := s.queue.Enqueue(ctx, job)
		if err == nil {
			return a, nil
		}
		s.logger.Warn("enqueue failed, extracting inline", "artist_id", a.ID, "error", err)
	}

	perr := s.Process(ctx, a.ID)
	got, err := s.repo.Get(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return got, perr
}

func (s *Service) store(r io.Reader, fileType string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", common.NewAppError("STORAGE_ERROR", "create upload dir", err)
	}
	path := filepath.Join(s.uploadDir, uuid.New().String()+"."+fileType)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", common.NewAppError("STORAGE_ERROR", "create upload file", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", common.NewAppError("STORAGE_ERROR", "write upload file", err)
	}
	if n > s.maxBytes {
		_ = os.Remove(path)
		return "", common.InvalidArgumentErrorf("document exceeds %d bytes", s.maxBytes)
	}
	if n == 0 {
		_ = os.Remove(path)
		return "", common.InvalidArgumentError("document is empty")
	}
	return path, nil
}

// Process extracts and enhances a pending or failed artist. The stored
// upload is removed once extraction succeeds and kept on failure so the
// artist can be reprocessed.
func (s *Service) Process(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.ExtractionStatus != constants.StatusPending && a.ExtractionStatus != constants.StatusFailed {
		return common.ConflictError(fmt.Sprintf("artist %s is %s", id, a.ExtractionStatus))
	}
	if err := s.repo.UpdateStatus(ctx, id, constants.StatusProcessing, nil); err != nil {
		return err
	}

	res, xerr := s.extractor.Extract(ctx, a.OriginalDocument.Path, a.OriginalDocument.FileType)
	if xerr != nil {
		s.logger.Error("artist extraction failed", "artist_id", id, "error", xerr)
		s.markFailed(ctx, id, OperatorMessage(xerr))
		return xerr
	}

	fields := res.Fields
	var description, provider *string
	if s.enhancer != nil {
		enh, err := s.enhancer.Enhance(ctx, res.RawText, res.Fields)
		if err != nil {
			s.logger.Warn("enhancement aborted, keeping regex fields", "artist_id", id, "error", err)
		} else {
			fields, description = enh.Fields, enh.Description
			p := enh.Provider
			provider = &p
		}
	}

	applyFields(a, fields)
	if description != nil {
		a.Description = description
	}
	a.EnhancementProvider = provider
	a.RawText = res.RawText
	a.Method = res.Metadata.Method
	a.Confidence = res.Metadata.Confidence
	a.FallbackUsed = res.Metadata.FallbackUsed
	a.ProcessingTimeMs = res.Metadata.ProcessingTimeMs
	a.ExtractionStatus = constants.StatusCompleted
	a.ExtractionError = nil
	if err := s.repo.Update(context.WithoutCancel(ctx), a); err != nil {
		s.logger.Error("failed to save extraction results", "artist_id", id, "error", err)
		s.markFailed(ctx, id, "extraction results could not be saved")
		return err
	}

	if err := os.Remove(a.OriginalDocument.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove stored upload", "artist_id", id, "path", a.OriginalDocument.Path, "error", err)
	}
	s.logger.Info("artist extraction completed", "artist_id", id, "method", a.Method,
		"confidence", a.Confidence, "fallback_used", a.FallbackUsed, "provider", provider)
	return nil
}

// markFailed moves an artist out of processing. A canceled request must not
// leave the row stuck there, since only failed artists can be reprocessed.
func (s *Service) markFailed(ctx context.Context, id uuid.UUID, msg string) {
	if err := s.repo.UpdateStatus(context.WithoutCancel(ctx), id, constants.StatusFailed, &msg); err != nil {
		s.logger.Error("failed to mark artist failed", "artist_id", id, "error", err)
	}
}

// Reprocess re-runs extraction for a failed artist.
func (s *Service) Reprocess(ctx context.Context, id uuid.UUID) (*entity.Artist, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ExtractionStatus != constants.StatusFailed {
		return nil, common.ConflictError(fmt.Sprintf("only failed artists can be reprocessed, artist %s is %s", id, a.ExtractionStatus))
	}
	perr := s.Process(ctx, id)
	got, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return got, perr
}

// ExtractOnce runs the pipeline on a document without persisting anything.
func (s *Service) ExtractOnce(ctx context.Context, filename string, r io.Reader) (extract.ExtractionResult, error) {
	fileType := constants.NormalizeExt(filepath.Ext(strings.TrimSpace(filename)))
	if !constants.IsSupported(fileType) {
		return extract.ExtractionResult{}, common.NewAppError("UNSUPPORTED_FORMAT", fmt.Sprintf("unsupported file type %q", fileType), extract.ErrUnsupportedFormat)
	}
	path, err := s.store(r, fileType)
	if err != nil {
		return extract.ExtractionResult{}, err
	}
	defer os.Remove(path)
	return s.extractor.Extract(ctx, path, fileType)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entity.Artist, error) {
	return s.repo.Get(ctx, id)
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// ListFilter is the admin listing query.
type ListFilter struct {
	Search string
	Status string
	Page   int
	Limit  int
}

func (s *Service) List(ctx context.Context, f ListFilter) (Page[*entity.Artist], error) {
	status := constants.ExtractionStatus(strings.ToLower(strings.TrimSpace(f.Status)))
	if status != "" && !status.Valid() {
		return Page[*entity.Artist]{}, common.InvalidArgumentErrorf("unknown status %q", f.Status)
	}
	rf := repository.ListFilter{Search: f.Search, Status: status, Page: f.Page, Limit: f.Limit}
	items, total, err := s.repo.List(ctx, rf)
	if err != nil {
		return Page[*entity.Artist]{}, err
	}
	return newPage(items, total, rf), nil
}

// ListPublic lists completed and verified artists with public fields only.
func (s *Service) ListPublic(ctx context.Context, search string, page, limit int) (Page[entity.PublicArtist], error) {
	rf := repository.ListFilter{Search: search, PublicOnly: true, Page: page, Limit: limit}
	items, total, err := s.repo.List(ctx, rf)
	if err != nil {
		return Page[entity.PublicArtist]{}, err
	}
	out := make([]entity.PublicArtist, 0, len(items))
	for _, a := range items {
		out = append(out, a.Public())
	}
	return newPage(out, total, rf), nil
}

func newPage[T any](items []T, total int, f repository.ListFilter) Page[T] {
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > repository.MaxListLimit {
		limit = repository.MaxListLimit
	}
	return Page[T]{Items: items, Total: total, Page: page, Limit: limit}
}

// UpdateInput carries admin edits. A nil field is left unchanged and an
// empty string clears it.
type UpdateInput struct {
	ArtistName   *string `json:"artistName"`
	GuruName     *string `json:"guruName"`
	Gharana      *string `json:"gharana"`
	Biography    *string `json:"biography"`
	Description  *string `json:"description"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	Address      *string `json:"address"`
	ProfilePhoto *string `json:"profilePhoto"`
}

func (in UpdateInput) validate() error {
	v := common.NewValidator().
		Field("artistName", in.ArtistName, common.MaxLength(200)).
		Field("guruName", in.GuruName, common.MaxLength(200)).
		Field("gharana", in.Gharana, common.MaxLength(100)).
		Field("biography", in.Biography, common.MaxLength(10000)).
		Field("description", in.Description, common.MaxLength(2000)).
		Field("phone", in.Phone, common.MaxLength(32)).
		Field("address", in.Address, common.MaxLength(500))
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		v.Field("email", strings.TrimSpace(*in.Email), common.Email)
	}
	return v.Err()
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*entity.Artist, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	edit(&a.ArtistName, in.ArtistName)
	edit(&a.GuruName, in.GuruName)
	edit(&a.Gharana, in.Gharana)
	edit(&a.Biography, in.Biography)
	edit(&a.Description, in.Description)
	edit(&a.Phone, in.Phone)
	edit(&a.Email, in.Email)
	edit(&a.Address, in.Address)
	edit(&a.ProfilePhoto, in.ProfilePhoto)
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("artist updated", "artist_id", id)
	return a, nil
}

// Verify marks a completed artist as verified. Verifying twice is a no-op.
func (s *Service) Verify(ctx context.Context, id uuid.UUID, by string) (*entity.Artist, error) {
	by = strings.TrimSpace(by)
	if by == "" {
		return nil, common.InvalidArgumentError("verifier is required")
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch a.ExtractionStatus {
	case constants.StatusVerified:
		return a, nil
	case constants.StatusCompleted:
	default:
		return nil, common.ConflictError(fmt.Sprintf("artist %s is %s and cannot be verified", id, a.ExtractionStatus))
	}
	now := s.now().UTC()
	a.ExtractionStatus = constants.StatusVerified
	a.IsVerified = true
	a.VerifiedBy = &by
	a.VerifiedAt = &now
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("artist verified", "artist_id", id, "verified_by", by)
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(a.OriginalDocument.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove stored upload", "artist_id", id, "error", err)
	}
	s.logger.Info("artist deleted", "artist_id", id)
	return nil
}

// Stats summarizes extraction outcomes across all artists.
type Stats struct {
	Total    int                                `json:"total"`
	Verified int                                `json:"verified"`
	ByStatus map[constants.ExtractionStatus]int `json:"byStatus"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{ByStatus: counts, Verified: counts[constants.StatusVerified]}
	for _, n := range counts {
		st.Total += n
	}
	return st, nil
}

// OperatorMessage is the short reason stored on a failed artist.
func OperatorMessage(err error) string {
	var oe *extract.OcrExhaustedError
	switch {
	case errors.Is(err, extract.ErrFileNotFound):
		return "uploaded document is missing"
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return "unsupported file type"
	case errors.As(err, &oe):
		return oe.Error()
	case errors.Is(err, extract.ErrNoText):
		return "no text could be extracted from the document"
	case errors.Is(err, context.DeadlineExceeded):
		return "extraction timed out"
	}
	return err.Error()
}

func applyFields(a *entity.Artist, f normalize.Fields) {
	a.ArtistName, a.GuruName, a.Gharana, a.Biography = f.ArtistName, f.GuruName, f.Gharana, f.Biography
	a.Phone, a.Email, a.Address = f.Contact.Phone, f.Contact.Email, f.Contact.Address
}

func edit(dst **string, v *string) {
	if v == nil {
		return
	}
	s := strings.Join(strings.Fields(*v), " ")
	if s == "" {
		*dst = nil
		return
	}
	*dst = &s
}
