package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/kursadbilgin/enroll-engine/internal/domain"
)

const (
	sheetName     = "Results"
	timeLayout    = "2006-01-02 15:04:05"
	filePerm      = 0o644
	headerRowSize = 1
)

// headerRow is the fixed first row of every result artifact.
var headerRow = []string{
	"Original Row",
	"Reservation ID",
	"Full Name",
	"Email",
	"Confirmation Code",
	"Affiliator",
	"Status",
	"Observation",
	"Processed At",
}

// Writer accumulates outcome rows and materializes them into an xlsx
// artifact. Rows are append-only; each Save rewrites the whole file
// atomically so a reader never observes a torn row.
type Writer struct {
	path   string
	rows   []domain.OutcomeRow
	logger *zap.Logger
}

// NewWriter prepares a writer for the given artifact path. The parent
// directory must already exist.
func NewWriter(path string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{path: path, logger: logger}
}

func (w *Writer) Path() string { return w.path }

func (w *Writer) Append(row domain.OutcomeRow) {
	w.rows = append(w.rows, row)
}

func (w *Writer) RowCount() int { return len(w.rows) }

// Save writes header plus all accumulated rows to a temp file in the
// artifact's directory, then renames it over the final path.
func (w *Writer) Save() error {
	book := excelize.NewFile()
	defer book.Close()

	index, err := book.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	book.SetActiveSheet(index)
	if err := book.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	if err := book.SetSheetRow(sheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range w.rows {
		cell := fmt.Sprintf("A%d", i+headerRowSize+1)
		values := []any{
			row.SourceRowIndex,
			row.ReservationID,
			row.FullName,
			row.Email,
			row.Code,
			row.Affiliator,
			row.Status.String(),
			row.Observation,
			row.ProcessedAt.Format(timeLayout),
		}
		if err := book.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".artifact-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()

	if err := book.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp artifact: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace artifact: %w", err)
	}

	w.logger.Debug("result artifact saved",
		zap.String("path", w.path),
		zap.Int("rows", len(w.rows)),
	)
	return nil
}

// CleanupOld removes xlsx artifacts in dir whose modification time is
// older than maxAge. Missing directories are not an error.
func CleanupOld(dir string, maxAge time.Duration, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read results dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".xlsx" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("stale artifact removal failed",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("stale artifacts removed",
			zap.String("dir", dir),
			zap.Int("count", removed),
		)
	}
	return removed, nil
}
