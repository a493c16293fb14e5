package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cardbill/internal/core"
	"cardbill/internal/log"
	ports "cardbill/internal/sheets"
)

// Columns of the invoices sheet.
var header = []any{"Month", "Card ID", "Bank", "Due Day", "Total", "Updated At"}

type Config struct {
	SpreadsheetID   string
	InvoicesSheet   string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	invoicesSheet string
	logger        *log.Logger
}

var (
	_ ports.InvoiceWriter = (*Client)(nil)
	_ ports.InvoiceReader = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Default(log.ComponentSheets)
	}
	svc, err := newSheetsService(ctx, cfg.CredentialsJSON, cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	sheet := strings.TrimSpace(cfg.InvoicesSheet)
	if sheet == "" {
		sheet = "Invoices"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		invoicesSheet: sheet,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

func newSheetsService(ctx context.Context, credentialsJSON, credentialsFile string) (*gsheet.Service, error) {
	credentialsJSON = strings.TrimSpace(credentialsJSON)
	credentialsFile = strings.TrimSpace(credentialsFile)
	if credentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var data []byte
	switch {
	case credentialsJSON != "":
		data = []byte(credentialsJSON)
	case credentialsFile != "":
		var err error
		data, err = os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(data),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// UpsertInvoiceRow rewrites the row of (month, card) in place, or appends it.
func (c *Client) UpsertInvoiceRow(ctx context.Context, row ports.InvoiceRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.Month.IsZero() || row.CardID <= 0 {
		return "", fmt.Errorf("invalid invoice row %s/%d", row.Month, row.CardID)
	}

	rng := fmt.Sprintf("%s!A:B", c.invoicesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rng, err)
	}

	if len(resp.Values) == 0 {
		if err := c.writeRow(ctx, 1, header); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
		resp.Values = [][]any{header}
	}

	rowNum := findInvoiceRow(resp.Values, row.Month, row.CardID)
	if rowNum == 0 {
		rowNum = len(resp.Values) + 1
	}
	if err := c.writeRow(ctx, rowNum, formatRow(row)); err != nil {
		return "", err
	}

	ref := fmt.Sprintf("%s!A%d:F%d", c.invoicesSheet, rowNum, rowNum)
	c.logger.DebugContext(ctx, "Invoice row written",
		log.FieldMonth, row.Month.String(),
		log.FieldCardID, row.CardID,
		"ref", ref)
	return ref, nil
}

func (c *Client) writeRow(ctx context.Context, rowNum int, values []any) error {
	rng := fmt.Sprintf("%s!A%d:F%d", c.invoicesSheet, rowNum, rowNum)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// ListInvoiceRows returns the rows of month, in sheet order.
func (c *Client) ListInvoiceRows(ctx context.Context, month core.Month) ([]ports.InvoiceRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:F", c.invoicesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows, skipped := parseInvoiceRows(resp.Values)
	if skipped > 0 {
		c.logger.WarnContext(ctx, "Skipped unparsable invoice rows", log.FieldCount, skipped)
	}
	var out []ports.InvoiceRow
	for _, r := range rows {
		if r.Month == month {
			out = append(out, r)
		}
	}
	return out, nil
}

func formatRow(row ports.InvoiceRow) []any {
	updated := row.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return []any{
		row.Month.String(),
		row.CardID,
		row.Bank,
		row.DueDay,
		row.Total.String(),
		updated.UTC().Format(time.RFC3339),
	}
}
