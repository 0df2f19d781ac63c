// Package google mirrors category month views to a Google Sheets
// spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/1fach/einfach-budget/internal/core"
	"github.com/1fach/einfach-budget/internal/log"
	"github.com/1fach/einfach-budget/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ sheets.SnapshotWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Optional: GOOGLE_SHEET_NAME (default "Budget"), GOOGLE_CREDENTIALS_JSON
// for explicit credentials; otherwise application default credentials apply.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Budget"
	}

	opts := []goption.ClientOption{
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}
	if credentialsJSON := os.Getenv("GOOGLE_CREDENTIALS_JSON"); credentialsJSON != "" {
		opts = append(opts, goption.WithCredentialsJSON([]byte(credentialsJSON)))
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// WriteCategoryMonth appends one snapshot row:
// period, category id, name, assigned, activity, available.
func (c *Client) WriteCategoryMonth(ctx context.Context, cm core.CategoryMonth) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	vr := &gsheet.ValueRange{
		Values: [][]interface{}{{
			cm.Period.String(),
			cm.CategoryID,
			cm.Name,
			cm.Assigned.String(),
			cm.Activity.String(),
			cm.Available.String(),
		}},
	}

	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append snapshot row: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored category month to spreadsheet",
		log.FieldCategoryID, cm.CategoryID,
		log.FieldPeriod, cm.Period.String(),
		"sheet", c.sheetName)
	return nil
}
