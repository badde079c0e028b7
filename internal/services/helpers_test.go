package services

import (
	"context"
	"testing"
	"time"

	"mahal/internal/core"
	"mahal/internal/storage/memory"
)

var baseDate = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func seedCollections(t *testing.T, store *memory.Store, items ...core.FundCollection) []core.FundCollection {
	t.Helper()
	out := make([]core.FundCollection, 0, len(items))
	for _, c := range items {
		if c.CollectedBy == "" {
			c.CollectedBy = "treasurer"
		}
		if c.ReceiptNumber == "" {
			c.ReceiptNumber = NewReceiptNumber(c.CollectedDate)
		}
		created, err := store.CreateCollection(context.Background(), c)
		if err != nil {
			t.Fatalf("seed collection: %v", err)
		}
		out = append(out, created)
	}
	return out
}

func fc(cents int64, category string, at time.Time) core.FundCollection {
	return core.FundCollection{Amount: core.Money{Cents: cents}, Category: category, CollectedDate: at}
}

func testMember(name string) core.Member {
	return core.Member{Name: name, Age: 40, Phone: "9876543210", HouseName: "Valiyaveedu"}
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }
