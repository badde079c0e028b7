package services

import (
	"context"
	"testing"

	"mahal/internal/core"
	"mahal/internal/storage/memory"
)

func newAggregator(store *memory.Store) *FundAggregator {
	return NewFundAggregator(store, store, core.DefaultNormalizer())
}

func TestMemorialAliasesShareOneBucket(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedCollections(t, store,
		fc(100, "mayyathu", baseDate),
		fc(200, "mayyathu_fund", baseDate.AddDate(0, 0, 1)),
		fc(300, "mayyathu fund", baseDate.AddDate(0, 0, 2)),
		fc(400, "mayyathu-fund", baseDate.AddDate(0, 0, 3)),
	)
	agg := newAggregator(store)

	total, err := agg.TotalByBucket(ctx, core.BucketMemorialFund)
	if err != nil {
		t.Fatalf("TotalByBucket: %v", err)
	}
	if total.Cents != 1000 {
		t.Fatalf("memorial total = %d, want 1000", total.Cents)
	}

	list, err := agg.CollectionsByBucket(ctx, core.BucketMemorialFund)
	if err != nil {
		t.Fatalf("CollectionsByBucket: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("memorial collections = %d, want 4", len(list))
	}
}

func TestUnknownCategoryCountsAsOtherOnly(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedCollections(t, store,
		fc(700, "sadaqa", baseDate),
		fc(300, "monthly", baseDate),
	)
	agg := newAggregator(store)

	totals, err := agg.BucketTotals(ctx)
	if err != nil {
		t.Fatalf("BucketTotals: %v", err)
	}
	want := map[core.Bucket]int64{
		core.BucketMemorialFund:    0,
		core.BucketMonthlyDonation: 300,
		core.BucketOther:           700,
	}
	for _, bt := range totals {
		if bt.Total.Cents != want[bt.Bucket] {
			t.Errorf("%s total = %d, want %d", bt.Bucket, bt.Total.Cents, want[bt.Bucket])
		}
	}

	total, _ := agg.TotalAmount(ctx)
	if total.Cents != 1000 {
		t.Fatalf("total = %d, want 1000", total.Cents)
	}

	other, err := agg.CollectionsByBucket(ctx, core.BucketOther)
	if err != nil {
		t.Fatalf("CollectionsByBucket(other): %v", err)
	}
	if len(other) != 1 || other[0].Category != "sadaqa" {
		t.Fatalf("other bucket = %+v", other)
	}
}

func TestTotalEqualsSumOfBuckets(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	categories := []string{"mayyathu", "Mayyathu", "monthly", "monthly donation", "zakat", "", "memorial_fund", "MONTHLY"}
	for i, cat := range categories {
		seedCollections(t, store, fc(int64(i+1)*111, cat, baseDate.AddDate(0, i, 0)))
	}
	agg := newAggregator(store)

	total, err := agg.TotalAmount(ctx)
	if err != nil {
		t.Fatalf("TotalAmount: %v", err)
	}
	var sum, listed int64
	for _, b := range core.AllBuckets() {
		bt, err := agg.TotalByBucket(ctx, b)
		if err != nil {
			t.Fatalf("TotalByBucket(%s): %v", b, err)
		}
		sum += bt.Cents

		r, err := agg.BucketReport(ctx, b)
		if err != nil {
			t.Fatalf("BucketReport(%s): %v", b, err)
		}
		if r.Total != bt {
			t.Fatalf("%s report total %d disagrees with bucket total %d", b, r.Total.Cents, bt.Cents)
		}
		listed += int64(len(r.Collections))
	}
	if sum != total.Cents {
		t.Fatalf("sum of buckets %d != total %d", sum, total.Cents)
	}
	if listed != int64(len(categories)) {
		t.Fatalf("each record must be listed in exactly one bucket, listed %d of %d", listed, len(categories))
	}
}

func TestRecentActivityLimitAndOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	// Insert out of chronological order.
	for _, day := range []int{3, 7, 1, 8, 2, 6, 4, 5} {
		seedCollections(t, store, fc(int64(day)*100, "monthly", baseDate.AddDate(0, 0, day)))
	}
	agg := newAggregator(store)

	recent, err := agg.RecentActivity(ctx, 5)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("got %d entries, want 5", len(recent))
	}
	for i, wantDay := range []int{8, 7, 6, 5, 4} {
		if !recent[i].Timestamp.Equal(baseDate.AddDate(0, 0, wantDay)) {
			t.Fatalf("entry %d at %v, want day %d", i, recent[i].Timestamp, wantDay)
		}
		if recent[i].Action != core.ActionMoneyCollection || recent[i].Bucket != core.BucketMonthlyDonation {
			t.Fatalf("entry %d = %+v", i, recent[i])
		}
	}

	def, _ := agg.RecentActivity(ctx, 0)
	if len(def) != DefaultRecentLimit {
		t.Fatalf("default limit returned %d", len(def))
	}
}

func TestMonthlySeriesAscending(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedCollections(t, store,
		fc(100, "monthly", baseDate.AddDate(0, 2, 0)),
		fc(200, "zakat", baseDate.AddDate(-1, 0, 0)),
		fc(300, "mayyathu", baseDate),
		fc(400, "monthly", baseDate.AddDate(0, 0, 5)),
	)
	series, err := newAggregator(store).MonthlySeries(ctx)
	if err != nil {
		t.Fatalf("MonthlySeries: %v", err)
	}
	want := []core.MonthlyTotal{
		{Year: 2024, Month: 1, Total: core.Money{Cents: 200}, Count: 1},
		{Year: 2025, Month: 1, Total: core.Money{Cents: 700}, Count: 2},
		{Year: 2025, Month: 3, Total: core.Money{Cents: 100}, Count: 1},
	}
	if len(series) != len(want) {
		t.Fatalf("series = %+v", series)
	}
	for i := range want {
		if series[i] != want[i] {
			t.Fatalf("series[%d] = %+v, want %+v", i, series[i], want[i])
		}
	}

	empty, err := newAggregator(memory.New()).MonthlySeries(ctx)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("empty store should give an empty series, got %v, %v", empty, err)
	}
}

func TestCollectionsByBucketResolvesMembers(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m, err := store.CreateMember(ctx, core.Member{RegistrationCode: "REG5555", Name: "Ibrahim", Phone: "9876543210", HouseName: "H"})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	gone := int64(424242)
	withMember := fc(100, "monthly", baseDate)
	withMember.MemberID = &m.ID
	dangling := fc(200, "monthly", baseDate.AddDate(0, 0, 1))
	dangling.MemberID = &gone
	seedCollections(t, store, withMember, dangling)

	list, err := newAggregator(store).CollectionsByBucket(ctx, core.BucketMonthlyDonation)
	if err != nil {
		t.Fatalf("CollectionsByBucket: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d collections", len(list))
	}
	if list[0].Member != nil {
		t.Fatalf("dangling reference should stay unresolved, got %+v", list[0].Member)
	}
	if list[1].Member == nil || list[1].Member.RegistrationCode != "REG5555" {
		t.Fatalf("member not resolved: %+v", list[1].Member)
	}
}

func TestConfiguredAliasesFeedAggregation(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedCollections(t, store, fc(900, "janaza", baseDate))
	n := core.DefaultNormalizer().WithAliases(map[core.Bucket][]string{core.BucketMemorialFund: {"janaza"}})

	total, err := NewFundAggregator(store, store, n).TotalByBucket(ctx, core.BucketMemorialFund)
	if err != nil || total.Cents != 900 {
		t.Fatalf("memorial total = %d, %v", total.Cents, err)
	}
}
