package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/kursadbilgin/enroll-engine/internal/domain"
)

// Roster files follow a fixed layout: headers in row 4, data from
// row 5; reservation in column C, full name in G, email in I.
const (
	dataStartRow = 5

	reservationColumn = 2 // C
	nameColumn        = 6 // G
	emailColumn       = 8 // I
)

// placeholderNames are spreadsheet artifacts that mean "empty".
var placeholderNames = map[string]struct{}{
	"nan":  {},
	"none": {},
	"null": {},
	"n/a":  {},
	"-":    {},
}

// ReadRoster parses an uploaded xlsx roster into records. Rows with a
// blank or placeholder name are skipped; emails are lower-cased; a
// missing reservation becomes "N/A". Fails when no usable row remains.
func ReadRoster(r io.Reader, logger *zap.Logger) ([]domain.Record, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable xlsx workbook: %v", domain.ErrValidation, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrValidation)
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	var records []domain.Record
	skipped := 0
	for i := dataStartRow - 1; i < len(rows); i++ {
		rowNumber := i + 1

		name := strings.TrimSpace(cellAt(rows[i], nameColumn))
		if name == "" || isPlaceholder(name) {
			skipped++
			continue
		}

		email := strings.ToLower(strings.TrimSpace(cellAt(rows[i], emailColumn)))
		if !strings.Contains(email, "@") {
			logger.Debug("roster row skipped, email unusable",
				zap.Int("row", rowNumber),
				zap.String("email", email),
			)
			skipped++
			continue
		}

		reservation := strings.TrimSpace(cellAt(rows[i], reservationColumn))
		if reservation == "" {
			reservation = "N/A"
		}

		records = append(records, domain.Record{
			ReservationID:  reservation,
			FullName:       name,
			Email:          email,
			SourceRowIndex: rowNumber,
		})
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: roster contains no usable rows", domain.ErrValidation)
	}

	logger.Info("roster parsed",
		zap.Int("records", len(records)),
		zap.Int("skipped", skipped),
	)
	return records, nil
}

func cellAt(row []string, index int) string {
	if index >= len(row) {
		return ""
	}
	return row[index]
}

func isPlaceholder(name string) bool {
	_, ok := placeholderNames[strings.ToLower(name)]
	return ok
}
