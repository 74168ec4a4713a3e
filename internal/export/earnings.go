package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mechconnect/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Earnings"

// CompletedLister supplies the bookings completed since an instant.
type CompletedLister interface {
	CompletedSince(ctx context.Context, since time.Time) ([]models.Booking, error)
}

// EarningsExporter writes a completed-bookings workbook for a date range.
type EarningsExporter struct {
	jobs   CompletedLister
	dir    string
	logger *zerolog.Logger
}

func NewEarningsExporter(jobs CompletedLister, dir string, logger *zerolog.Logger) *EarningsExporter {
	return &EarningsExporter{jobs: jobs, dir: dir, logger: logger}
}

// Export builds an xlsx file of bookings completed at or after the given
// instant and returns its path.
func (e *EarningsExporter) Export(ctx context.Context, since time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	bookings, err := e.jobs.CompletedSince(ctx, since)
	if err != nil {
		return "", fmt.Errorf("error getting completed bookings: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Earnings since %s", since.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "F1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	writeHeaders(f)
	total := writeRows(f, bookings)

	totalRow := len(bookings) + 3
	labelCell, _ := excelize.CoordinatesToCellName(5, totalRow)
	valueCell, _ := excelize.CoordinatesToCellName(6, totalRow)
	_ = f.SetCellValue(sheetName, labelCell, "Total")
	_ = f.SetCellValue(sheetName, valueCell, models.FormatCents(total))

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "B", "E", 25)
	_ = f.SetColWidth(sheetName, "F", "F", 14)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("earnings_%s.xlsx", since.Format("2006-01-02"))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("earnings export created")
	return filePath, nil
}

func writeHeaders(f *excelize.File) {
	headers := []string{"Booking", "Client", "Service", "Summary", "Completed", "Amount"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
}

func writeRows(f *excelize.File, bookings []models.Booking) int64 {
	var total int64
	for i, b := range bookings {
		row := i + 3
		completedAt := ""
		if b.CompletedAt != nil {
			completedAt = b.CompletedAt.Format("2006-01-02 15:04")
		}

		values := []interface{}{b.ID, b.ClientName, b.ServiceType, b.Summary, completedAt, b.Fee}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, value)
		}

		total += b.FeeCents()
	}
	return total
}
