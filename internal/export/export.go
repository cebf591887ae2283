package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"spacehub/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const bookingsSheet = "Bookings"

// Exporter writes booking collections to Excel files under a configured
// directory. Files are handed to the user and never read back.
type Exporter struct {
	path   string
	logger *zerolog.Logger
}

func New(path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{path: path, logger: logger}
}

// BookingsFile renders the given bookings into a new .xlsx file and
// returns its path.
func (e *Exporter) BookingsFile(userID int64, bookings []models.Booking) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"ID", "Event", "Space", "Start", "End",
		"Organizer", "Email", "Type", "Attendance", "Status",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, header)
		_ = f.SetCellStyle(bookingsSheet, cell, cell, headerStyle)
	}

	for i, booking := range bookings {
		row := i + 2
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("A%d", row), booking.ID)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("B%d", row), booking.EventName)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("C%d", row), spaceLabel(&booking))
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("D%d", row), booking.Start.Format("02.01.2006 15:04"))
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("E%d", row), booking.End.Format("02.01.2006 15:04"))
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("F%d", row), booking.OrganizerName)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("G%d", row), booking.OrganizerEmail)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("H%d", row), booking.EventType)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("I%d", row), booking.Attendance)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("J%d", row), booking.Status)

		if styleID, serr := statusStyle(f, booking.Status); serr == nil {
			cell := fmt.Sprintf("J%d", row)
			_ = f.SetCellStyle(bookingsSheet, cell, cell, styleID)
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 8)
	_ = f.SetColWidth(bookingsSheet, "B", "C", 25)
	_ = f.SetColWidth(bookingsSheet, "D", "E", 18)
	_ = f.SetColWidth(bookingsSheet, "F", "G", 22)
	_ = f.SetColWidth(bookingsSheet, "H", "J", 14)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%d_%s.xlsx", userID, time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

func spaceLabel(b *models.Booking) string {
	if b.SpaceName != "" {
		return b.SpaceName
	}
	return fmt.Sprintf("#%d", b.SpaceID)
}

func statusStyle(f *excelize.File, status string) (int, error) {
	var color string
	switch status {
	case models.StatusConfirmed, models.StatusCompleted:
		color = "#C6EFCE"
	case models.StatusPending:
		color = "#FFEB9C"
	case models.StatusRejected, models.StatusCancelled:
		color = "#FFC7CE"
	default:
		color = "#FFFFFF"
	}

	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
	})
}
