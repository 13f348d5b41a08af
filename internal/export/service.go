package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/artists-registry/internal/entity"
	"github.com/joseph-ayodele/artists-registry/internal/extract"
	"github.com/joseph-ayodele/artists-registry/internal/repository"
)

// ArtistLister is the slice of the repository the export needs.
type ArtistLister interface {
	List(ctx context.Context, f repository.ListFilter) ([]*entity.Artist, int, error)
}

// Service produces XLSX bytes for exports.
type Service struct {
	repo   ArtistLister
	logger *slog.Logger
}

func NewService(repo ArtistLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

var artistHeaders = []string{
	"Artist Name", "Guru", "Gharana", "Phone", "Email", "Address",
	"Status", "Confidence", "Verified", "Created",
}

// ExportArtistsXLSX writes every artist matching f (all pages) to sheet "Artists".
func (s *Service) ExportArtistsXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error) {
	start := time.Now()

	var all []*entity.Artist
	f.Page, f.Limit = 1, repository.MaxListLimit
	for {
		items, total, err := s.repo.List(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("query artists: %w", err)
		}
		all = append(all, items...)
		if len(items) == 0 || len(all) >= total {
			break
		}
		f.Page++
	}

	rows := make([][]any, 0, len(all))
	for _, a := range all {
		verified := "No"
		if a.IsVerified {
			verified = "Yes"
		}
		rows = append(rows, []any{
			str(a.ArtistName), str(a.GuruName), str(a.Gharana),
			str(a.Phone), str(a.Email), str(a.Address),
			string(a.ExtractionStatus), string(a.Confidence), verified,
			a.CreatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}

	buf, err := writeSheet("Artists", artistHeaders, rows, []float64{24, 28, 16, 18, 28, 40, 12, 12, 10, 18})
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.artists", "rows", len(rows), "bytes", len(buf), "elapsed_ms", time.Since(start).Milliseconds())
	return buf, nil
}

// BatchRow is one file of a CLI batch run.
type BatchRow struct {
	File   string
	Result extract.ExtractionResult
	Err    error
}

var batchHeaders = []string{
	"File", "Status", "Artist Name", "Guru", "Gharana", "Phone", "Email",
	"Method", "Confidence", "Fallback", "Chars", "Time (ms)", "Error",
}

// BatchXLSX summarizes a batch extraction on sheet "Extraction".
func BatchXLSX(results []BatchRow) ([]byte, error) {
	rows := make([][]any, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			rows = append(rows, []any{r.File, "failed", "", "", "", "", "", "", "", "", 0, 0, truncate(r.Err.Error(), 300)})
			continue
		}
		f, m := r.Result.Fields, r.Result.Metadata
		fallback := "No"
		if m.FallbackUsed {
			fallback = "Yes"
		}
		rows = append(rows, []any{
			r.File, "completed", str(f.ArtistName), str(f.GuruName), str(f.Gharana),
			str(f.Contact.Phone), str(f.Contact.Email),
			m.Method, string(m.Confidence), fallback, m.TextLength, m.ProcessingTimeMs, "",
		})
	}
	return writeSheet("Extraction", batchHeaders, rows, []float64{40, 10, 24, 28, 16, 18, 28, 30, 12, 10, 8, 10, 48})
}

func writeSheet(sheet string, headers []string, rows [][]any, widths []float64) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
