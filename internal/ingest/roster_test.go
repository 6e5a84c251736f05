package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kursadbilgin/enroll-engine/internal/domain"
)

type rosterRow struct {
	reservation string
	name        string
	email       string
}

func buildRoster(t *testing.T, rows []rosterRow) *bytes.Reader {
	t.Helper()

	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)

	must := func(err error) {
		if err != nil {
			t.Fatalf("build roster: %v", err)
		}
	}
	must(book.SetCellValue(sheet, "C4", "Reservation"))
	must(book.SetCellValue(sheet, "G4", "Guest Name"))
	must(book.SetCellValue(sheet, "I4", "Email"))

	for i, row := range rows {
		n := i + 5
		must(book.SetCellValue(sheet, fmt.Sprintf("C%d", n), row.reservation))
		must(book.SetCellValue(sheet, fmt.Sprintf("G%d", n), row.name))
		must(book.SetCellValue(sheet, fmt.Sprintf("I%d", n), row.email))
	}

	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		t.Fatalf("serialize roster: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestReadRoster(t *testing.T) {
	t.Parallel()

	src := buildRoster(t, []rosterRow{
		{reservation: "R-001", name: "Maria Garcia", email: "Maria.Garcia@Gmail.com"},
		{reservation: "", name: "Juan Lopez", email: "juan@hotmail.es"},
		{reservation: "R-003", name: "nan", email: "ghost@gmail.com"},
		{reservation: "R-004", name: "", email: "blank@gmail.com"},
		{reservation: "R-005", name: "Pedro Diaz", email: "no-at-sign"},
	})

	records, err := ReadRoster(src, nil)
	if err != nil {
		t.Fatalf("ReadRoster() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	first := records[0]
	if first.ReservationID != "R-001" {
		t.Fatalf("ReservationID = %q, want R-001", first.ReservationID)
	}
	if first.Email != "maria.garcia@gmail.com" {
		t.Fatalf("Email = %q, want lower-cased", first.Email)
	}
	if first.SourceRowIndex != 5 {
		t.Fatalf("SourceRowIndex = %d, want 5", first.SourceRowIndex)
	}

	second := records[1]
	if second.ReservationID != "N/A" {
		t.Fatalf("missing reservation = %q, want N/A", second.ReservationID)
	}
	if second.SourceRowIndex != 6 {
		t.Fatalf("SourceRowIndex = %d, want 6", second.SourceRowIndex)
	}
}

func TestReadRoster_NoUsableRows(t *testing.T) {
	t.Parallel()

	src := buildRoster(t, []rosterRow{
		{name: "nan", email: "x@gmail.com"},
		{name: "Solo Sin", email: "not-an-email"},
	})

	_, err := ReadRoster(src, nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestReadRoster_NotAWorkbook(t *testing.T) {
	t.Parallel()

	_, err := ReadRoster(bytes.NewReader([]byte("definitely not xlsx")), nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}
