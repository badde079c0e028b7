// Package worker mirrors fund collections into the treasurer ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mahal/internal/amqp"
	"mahal/internal/core"
	"mahal/internal/ports"
	"mahal/internal/sheets"
)

// CollectionSource is what the worker reads from the primary store.
type CollectionSource interface {
	ports.CollectionReader
	ports.MemberLookup
}

// SyncWorker applies collection sync messages to the ledger.
type SyncWorker struct {
	store      CollectionSource
	ledger     sheets.Ledger
	normalizer core.Normalizer
	batchSize  int
}

func NewSyncWorker(store CollectionSource, ledger sheets.Ledger, n core.Normalizer, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{store: store, ledger: ledger, normalizer: n, batchSize: batchSize}
}

// HandleMessage dispatches on the message operation. A returned error
// requeues the message.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.CollectionSyncMessage) error {
	switch msg.Operation {
	case amqp.OpSync:
		return w.handleSync(ctx, msg)
	case amqp.OpDelete:
		return w.handleDelete(ctx, msg)
	default:
		return fmt.Errorf("unknown operation %q", msg.Operation)
	}
}

func (w *SyncWorker) handleSync(ctx context.Context, msg *amqp.CollectionSyncMessage) error {
	c, err := w.store.GetCollection(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted after the message was sent; the delete message handles the ledger.
		slog.WarnContext(ctx, "Collection gone before sync, skipping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get collection from storage: %w", err)
	}

	rows, err := w.toRows(ctx, []core.FundCollection{c})
	if err != nil {
		return err
	}
	ref, err := w.ledger.UpsertCollection(ctx, rows[0])
	if err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}

	slog.InfoContext(ctx, "Collection synced to ledger",
		"id", c.ID,
		"receipt", c.ReceiptNumber,
		"sheets_ref", ref,
		"amount_cents", c.Amount.Cents)

	return nil
}

func (w *SyncWorker) handleDelete(ctx context.Context, msg *amqp.CollectionSyncMessage) error {
	if err := w.ledger.DeleteByReceipt(ctx, msg.ReceiptNumber); err != nil {
		return fmt.Errorf("delete ledger row: %w", err)
	}
	slog.InfoContext(ctx, "Collection removed from ledger",
		"id", msg.ID,
		"receipt", msg.ReceiptNumber,
		"timestamp", msg.Timestamp)
	return nil
}

// ReconcileResult summarizes one Reconcile pass.
type ReconcileResult struct {
	Written int
	Deleted int
	Pending int // differences left for the next pass
}

// Reconcile compares the store with the ledger and repairs at most batchSize
// rows. It recovers from messages lost while the worker or broker was down.
func (w *SyncWorker) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	collections, err := w.store.ListCollections(ctx)
	if err != nil {
		return res, fmt.Errorf("list collections: %w", err)
	}
	existing, err := w.ledger.ListRows(ctx)
	if err != nil {
		return res, fmt.Errorf("list ledger rows: %w", err)
	}
	want, err := w.toRows(ctx, collections)
	if err != nil {
		return res, err
	}

	inLedger := make(map[string]sheets.LedgerRow, len(existing))
	for _, r := range existing {
		inLedger[r.Receipt] = r
	}
	inStore := make(map[string]bool, len(want))

	budget := w.batchSize
	for _, row := range want {
		inStore[row.Receipt] = true
		if cur, ok := inLedger[row.Receipt]; ok && sameRow(cur, row) {
			continue
		}
		if budget == 0 {
			res.Pending++
			continue
		}
		if _, err := w.ledger.UpsertCollection(ctx, row); err != nil {
			return res, fmt.Errorf("write ledger row %s: %w", row.Receipt, err)
		}
		budget--
		res.Written++
	}
	for _, r := range existing {
		if inStore[r.Receipt] {
			continue
		}
		if budget == 0 {
			res.Pending++
			continue
		}
		if err := w.ledger.DeleteByReceipt(ctx, r.Receipt); err != nil {
			return res, fmt.Errorf("delete ledger row %s: %w", r.Receipt, err)
		}
		budget--
		res.Deleted++
	}

	if res.Written+res.Deleted+res.Pending > 0 {
		slog.InfoContext(ctx, "Ledger reconciled",
			"written", res.Written,
			"deleted", res.Deleted,
			"pending", res.Pending)
	}
	return res, nil
}

func (w *SyncWorker) toRows(ctx context.Context, list []core.FundCollection) ([]sheets.LedgerRow, error) {
	var ids []int64
	for _, c := range list {
		if c.MemberID != nil {
			ids = append(ids, *c.MemberID)
		}
	}
	var refs map[int64]core.MemberRef
	if len(ids) > 0 {
		var err error
		if refs, err = w.store.MemberRefs(ctx, ids); err != nil {
			return nil, fmt.Errorf("resolve members: %w", err)
		}
	}

	rows := make([]sheets.LedgerRow, 0, len(list))
	for _, c := range list {
		row := sheets.LedgerRow{
			Date:         c.CollectedDate.UTC().Truncate(24 * time.Hour),
			Receipt:      c.ReceiptNumber,
			Bucket:       w.normalizer.Normalize(c.Category),
			Category:     c.Category,
			Amount:       c.Amount,
			CollectedBy:  c.CollectedBy,
			CollectionID: c.ID,
		}
		if c.MemberID != nil {
			row.MemberCode = refs[*c.MemberID].RegistrationCode
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func sameRow(a, b sheets.LedgerRow) bool {
	return a.Date.Equal(b.Date) &&
		a.Receipt == b.Receipt &&
		a.Bucket == b.Bucket &&
		a.Category == b.Category &&
		a.Amount == b.Amount &&
		a.CollectedBy == b.CollectedBy &&
		a.MemberCode == b.MemberCode &&
		a.CollectionID == b.CollectionID
}
