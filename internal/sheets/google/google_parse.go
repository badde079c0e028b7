package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"mahal/internal/core"
	"mahal/internal/sheets"
)

const ledgerDateLayout = "2006-01-02"

// ledgerRange is the column span one LedgerRow occupies.
const ledgerRange = "A%d:H%d"

func toValues(r sheets.LedgerRow) []any {
	return []any{
		r.Date.UTC().Format(ledgerDateLayout),
		r.Receipt,
		string(r.Bucket),
		r.Category,
		r.Amount.String(),
		r.CollectedBy,
		r.MemberCode,
		strconv.FormatInt(r.CollectionID, 10),
	}
}

// parseLedgerRow converts one sheet row back into a LedgerRow. Rows without
// a receipt are reported as not ok.
func parseLedgerRow(raw []any) (sheets.LedgerRow, bool, error) {
	cols := toStrings(raw)
	receipt := safeGet(cols, 1)
	if receipt == "" {
		return sheets.LedgerRow{}, false, nil
	}
	row := sheets.LedgerRow{
		Receipt:     receipt,
		Bucket:      core.Bucket(safeGet(cols, 2)),
		Category:    safeGet(cols, 3),
		CollectedBy: safeGet(cols, 5),
		MemberCode:  safeGet(cols, 6),
	}
	if d := safeGet(cols, 0); d != "" {
		t, err := time.Parse(ledgerDateLayout, d)
		if err != nil {
			return sheets.LedgerRow{}, false, fmt.Errorf("receipt %s: bad date %q: %w", receipt, d, err)
		}
		row.Date = t
	}
	if a := safeGet(cols, 4); a != "" {
		cents, err := core.ParseDecimalToCents(a)
		if err != nil {
			return sheets.LedgerRow{}, false, fmt.Errorf("receipt %s: bad amount %q: %w", receipt, a, err)
		}
		row.Amount = core.Money{Cents: cents}
	}
	if id := safeGet(cols, 7); id != "" {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return sheets.LedgerRow{}, false, fmt.Errorf("receipt %s: bad collection id %q: %w", receipt, id, err)
		}
		row.CollectionID = n
	}
	return row, true, nil
}

// findReceiptRow returns the 1-based sheet row of receipt within a column-B
// read starting at row 1, or 0 when absent.
func findReceiptRow(receiptCol [][]any, receipt string) int {
	for i, row := range receiptCol {
		cols := toStrings(row)
		if len(cols) > 0 && cols[0] == receipt {
			return i + 1
		}
	}
	return 0
}

func isHeader(raw []any) bool {
	cols := toStrings(raw)
	return len(cols) > 1 && strings.EqualFold(cols[1], sheets.LedgerHeader[1])
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
