package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"spacehub/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrRowNotFound сигнализирует, что заявка отсутствует в таблице.
var ErrRowNotFound = errors.New("booking row not found")

const bookingsRange = "Bookings"

// SheetsService зеркалирует заявки в Google таблицу. Таблица — витрина
// для администраторов; источником правды остается бэкенд.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
}

func NewSheetsService(credentialsFile, spreadsheetID string) (*SheetsService, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	service := &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[int64]int),
	}

	// Прогреваем кэш строк в фоне
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = service.WarmUpCache(ctx)
	}()

	return service, nil
}

// TestConnection проверяет доступ к таблице.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsRange+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail возвращает email сервисного аккаунта
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// ReplaceBookingsSheet полностью перезаписывает лист заявок.
func (s *SheetsService) ReplaceBookingsSheet(ctx context.Context, bookings []models.Booking) error {
	clearRange := bookingsRange + "!A2:Z"
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear bookings sheet: %v", err)
	}

	values := [][]interface{}{
		{"ID", "Event", "Space", "Start", "End", "Organizer", "Email", "Type", "Attendance", "Status"},
	}
	for i := range bookings {
		values = append(values, bookingRowValues(&bookings[i]))
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, bookingsRange+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update bookings sheet: %v", err)
	}

	s.cacheMu.Lock()
	s.rowCache = make(map[int64]int)
	for i, b := range bookings {
		s.rowCache[b.ID] = i + 2 // данные начинаются со второй строки
	}
	s.cacheMu.Unlock()

	return nil
}

// UpdateBookingStatus обновляет статус заявки по ее номеру строки.
func (s *SheetsService) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	rowIdx, err := s.findBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}

	statusRange := fmt.Sprintf("%s!J%d:J%d", bookingsRange, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, statusRange, &sheets.ValueRange{
		Values: [][]interface{}{{status}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache читает колонку ID и наполняет кэш строк.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsRange+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if id := cellID(row[0]); id > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// findBookingRow ищет строку заявки (1-based) в колонке A с кэшем.
func (s *SheetsService) findBookingRow(ctx context.Context, bookingID int64) (int, error) {
	if bookingID == 0 {
		return 0, fmt.Errorf("booking id is required")
	}

	s.cacheMu.RLock()
	row, ok := s.rowCache[bookingID]
	s.cacheMu.RUnlock()
	if ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsRange+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, cells := range resp.Values {
		if len(cells) == 0 {
			continue
		}
		if cellID(cells[0]) == bookingID {
			rowIdx := i + 1
			s.cacheMu.Lock()
			s.rowCache[bookingID] = rowIdx
			s.cacheMu.Unlock()
			return rowIdx, nil
		}
	}

	return 0, ErrRowNotFound
}

func cellID(v interface{}) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case string:
		var id int64
		fmt.Sscanf(val, "%d", &id)
		return id
	}
	return 0
}

func bookingRowValues(b *models.Booking) []interface{} {
	space := b.SpaceName
	if space == "" {
		space = fmt.Sprintf("#%d", b.SpaceID)
	}
	return []interface{}{
		b.ID,
		b.EventName,
		space,
		b.Start.Format("2006-01-02 15:04"),
		b.End.Format("2006-01-02 15:04"),
		b.OrganizerName,
		b.OrganizerEmail,
		b.EventType,
		b.Attendance,
		b.Status,
	}
}
