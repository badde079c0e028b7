// Package sheets declares the treasurer ledger the sync worker mirrors fund
// collections into.
package sheets

import (
	"context"
	"time"

	"mahal/internal/core"
)

// LedgerHeader is the first row of the ledger sheet.
var LedgerHeader = []string{"Date", "Receipt", "Bucket", "Category", "Amount", "Collected By", "Member Code", "Collection ID"}

// LedgerRow is one fund collection as written to the ledger. The receipt
// number identifies the row.
type LedgerRow struct {
	Date         time.Time
	Receipt      string
	Bucket       core.Bucket
	Category     string
	Amount       core.Money
	CollectedBy  string
	MemberCode   string
	CollectionID int64
}

// Ports for outbound adapters.
type (
	// LedgerWriter writes a row, replacing any row with the same receipt.
	LedgerWriter interface {
		UpsertCollection(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// LedgerDeleter removes the row holding receipt. A missing row is not an
	// error.
	LedgerDeleter interface {
		DeleteByReceipt(ctx context.Context, receipt string) error
	}

	LedgerReader interface {
		ListRows(ctx context.Context) ([]LedgerRow, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerDeleter
		LedgerReader
	}
)
