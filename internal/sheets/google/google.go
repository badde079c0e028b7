// Package google mirrors fund collections into a Google Sheets ledger.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"mahal/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string
}

var _ sheets.Ledger = (*Client)(nil)

// New creates a ledger client for the named sheet. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, ledgerSheet string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	ledgerSheet = strings.TrimSpace(ledgerSheet)
	if ledgerSheet == "" {
		ledgerSheet = "Ledger"
	}

	creds, err := loadCredentials(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets ledger client ready",
		"spreadsheet_id", spreadsheetID,
		"sheet", ledgerSheet)

	return &Client{svc: svc, spreadsheetID: spreadsheetID, ledgerSheet: ledgerSheet}, nil
}

func loadCredentials(ctx context.Context) ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	slog.InfoContext(ctx, "Read service account credentials", "path", path, "size", len(b))
	return b, nil
}

// newHTTPClientWithPooling keeps connections to the Sheets API alive between
// worker messages.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// receiptColumn reads column B, the receipt numbers.
func (c *Client) receiptColumn(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!B:B", c.ledgerSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// UpsertCollection overwrites the row holding row.Receipt, or writes a new
// row below the last one. Redelivered messages therefore never duplicate a
// receipt.
func (c *Client) UpsertCollection(ctx context.Context, row sheets.LedgerRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.Receipt == "" {
		return "", errors.New("ledger row without receipt")
	}

	col, err := c.receiptColumn(ctx)
	if err != nil {
		return "", err
	}
	target := findReceiptRow(col, row.Receipt)
	if target == 0 {
		target = len(col) + 1
		if len(col) == 0 {
			if err := c.writeHeader(ctx); err != nil {
				return "", err
			}
			target = 2
		}
	}

	ref := fmt.Sprintf("%s!"+ledgerRange, c.ledgerSheet, target, target)
	vr := &gsheet.ValueRange{Values: [][]any{toValues(row)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write %s: %w", ref, err)
	}

	slog.InfoContext(ctx, "Ledger row written",
		"receipt", row.Receipt,
		"sheets_ref", ref)

	return ref, nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	header := make([]any, len(sheets.LedgerHeader))
	for i, h := range sheets.LedgerHeader {
		header[i] = h
	}
	ref := fmt.Sprintf("%s!"+ledgerRange, c.ledgerSheet, 1, 1)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	return nil
}

// DeleteByReceipt removes the row holding receipt.
func (c *Client) DeleteByReceipt(ctx context.Context, receipt string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	col, err := c.receiptColumn(ctx)
	if err != nil {
		return err
	}
	target := findReceiptRow(col, receipt)
	if target == 0 {
		slog.WarnContext(ctx, "Ledger row already absent", "receipt", receipt)
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{
			Range: &gsheet.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "ROWS",
				StartIndex: int64(target - 1),
				EndIndex:   int64(target),
			},
		},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete ledger row %d: %w", target, err)
	}

	slog.InfoContext(ctx, "Ledger row deleted", "receipt", receipt, "row", target)
	return nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.ledgerSheet {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.ledgerSheet)
}

// ListRows reads every ledger row, skipping the header and blank lines.
func (c *Client) ListRows(ctx context.Context) ([]sheets.LedgerRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:H", c.ledgerSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseLedger(resp.Values)
}

func parseLedger(values [][]any) ([]sheets.LedgerRow, error) {
	var out []sheets.LedgerRow
	for i, raw := range values {
		if i == 0 && isHeader(raw) {
			continue
		}
		row, ok, err := parseLedgerRow(raw)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}
