package sheets

import (
	"context"
	"fmt"
	"os"

	"mechconnect/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const earningsRange = "Earnings!A:G"

// LedgerService appends earning rows to a Google Sheets spreadsheet. One row
// per completed booking; the worker retries, so appends must stay cheap and
// stateless.
type LedgerService struct {
	service       *sheetsapi.Service
	spreadsheetID string
}

// NewLedgerService authenticates with a service account credentials file.
func NewLedgerService(ctx context.Context, credentialsFile, spreadsheetID string) (*LedgerService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	srv, err := sheetsapi.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &LedgerService{service: srv, spreadsheetID: spreadsheetID}, nil
}

// TestConnection reads the header row to verify access.
func (s *LedgerService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Earnings!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// AppendEarning adds one earning row for a completed booking.
func (s *LedgerService) AppendEarning(ctx context.Context, booking *models.Booking) error {
	completedAt := ""
	if booking.CompletedAt != nil {
		completedAt = booking.CompletedAt.Format("2006-01-02 15:04:05")
	}

	row := []interface{}{
		booking.ID,
		booking.RequestID,
		booking.ClientName,
		booking.ServiceType,
		booking.Summary,
		booking.Fee,
		completedAt,
	}
	body := &sheetsapi.ValueRange{Values: [][]interface{}{row}}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, earningsRange, body).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append earning row: %v", err)
	}
	return nil
}
